package types

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OHLCV is a single candle. Series are supplied in non-decreasing
// timestamp order and are never sorted or mutated by the engine.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Side of a trade leg.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParameterSet maps a strategy parameter name to its value. Strategies read
// the keys they know about and ignore the rest.
type ParameterSet map[string]float64

// Get returns the named value or def when it is absent.
func (p ParameterSet) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Clone returns an independent copy.
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in lexical order.
func (p ParameterSet) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key is a canonical representation used to group identical sets,
// e.g. "long_window=21,short_window=9". The empty set has key "{}".
func (p ParameterSet) Key() string {
	if len(p) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, k+"="+strconv.FormatFloat(p[k], 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

// String implements fmt.Stringer.
func (p ParameterSet) String() string {
	return p.Key()
}

// ParameterGrid maps a parameter name to its ordered candidate values.
type ParameterGrid map[string][]float64

// Size returns the number of combinations the grid expands to. An empty
// grid has one (the defaults). Overflow saturates at math.MaxInt.
func (g ParameterGrid) Size() int {
	size := 1
	for _, values := range g {
		if len(values) == 0 {
			return 0
		}
		if size > math.MaxInt/len(values) {
			return math.MaxInt
		}
		size *= len(values)
	}
	return size
}

// Validate reports the first parameter with no candidates or a non-finite one.
func (g ParameterGrid) Validate() error {
	names := make([]string, 0, len(g))
	for k := range g {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		if len(g[name]) == 0 {
			return fmt.Errorf("parameter %q has no candidate values", name)
		}
		for _, v := range g[name] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("parameter %q has non-finite candidate %v", name, v)
			}
		}
	}
	return nil
}

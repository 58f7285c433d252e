package strategy

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/indicators"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// Parameter names recognised by the moving-average crossover.
const (
	ParamShortWindow = "short_window"
	ParamLongWindow  = "long_window"

	DefaultShortWindow = 9
	DefaultLongWindow  = 21
)

// MACrossover enters when the short average crosses above the long average
// and exits when it crosses back below. A cross requires a strict inequality
// on the current bar and the opposite non-strict one on the previous bar.
type MACrossover struct {
	kind        Kind
	shortWindow int
	longWindow  int
	short       indicators.SeriesIndicator
	long        indicators.SeriesIndicator

	shortValues []float64
	longValues  []float64
}

// NewMACrossover builds a crossover of the given kind from params, falling
// back to the 9/21 defaults for absent keys.
func NewMACrossover(kind Kind, params types.ParameterSet) (*MACrossover, error) {
	shortWindow, err := windowParam(params, ParamShortWindow, DefaultShortWindow)
	if err != nil {
		return nil, err
	}
	longWindow, err := windowParam(params, ParamLongWindow, DefaultLongWindow)
	if err != nil {
		return nil, err
	}
	if longWindow <= shortWindow {
		return nil, errors.NewConfigError("strategy", "new_ma_crossover",
			"%s (%d) must be greater than %s (%d)", ParamLongWindow, longWindow, ParamShortWindow, shortWindow)
	}

	s := &MACrossover{
		kind:        kind,
		shortWindow: shortWindow,
		longWindow:  longWindow,
	}
	switch kind {
	case KindSMACrossover:
		s.short, s.long = indicators.NewSMA(shortWindow), indicators.NewSMA(longWindow)
	default:
		s.kind = KindEMACrossover
		s.short, s.long = indicators.NewEMA(shortWindow), indicators.NewEMA(longWindow)
	}
	return s, nil
}

func windowParam(params types.ParameterSet, name string, def int) (int, error) {
	v := params.Get(name, float64(def))
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v < 1 || v > math.MaxInt32 {
		return 0, errors.NewConfigError("strategy", "parse_params", "%s must be a positive integer, got %v", name, v)
	}
	return int(v), nil
}

// GetName returns the name of the strategy
func (s *MACrossover) GetName() string {
	return fmt.Sprintf("%s(%d/%d)", s.kind, s.shortWindow, s.longWindow)
}

func (s *MACrossover) Kind() Kind { return s.kind }

// WarmupBars returns the long window; the previous bar's long average is
// defined from index longWindow onwards.
func (s *MACrossover) WarmupBars() int { return s.longWindow }

func (s *MACrossover) Prepare(data []types.OHLCV) {
	s.shortValues = s.short.Series(data)
	s.longValues = s.long.Series(data)
}

func (s *MACrossover) Step(i int, inPosition bool) TradeAction {
	if i < s.longWindow || i >= len(s.longValues) {
		return ActionHold
	}

	shortNow, longNow := s.shortValues[i], s.longValues[i]
	shortPrev, longPrev := s.shortValues[i-1], s.longValues[i-1]

	if !inPosition && shortNow > longNow && shortPrev <= longPrev {
		return ActionBuy
	}
	if inPosition && shortNow < longNow && shortPrev >= longPrev {
		return ActionSell
	}
	return ActionHold
}

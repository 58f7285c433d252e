package optimization

import (
	"sort"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// DefaultMaxCombinations bounds grid expansion unless the caller overrides it.
const DefaultMaxCombinations = 10000

// GridIterator walks the Cartesian product of a grid in odometer order:
// parameter names are sorted and the first name is the least significant
// digit. It can be restarted with Reset.
type GridIterator struct {
	names   []string
	values  [][]float64
	indices []int
	done    bool
}

// NewGridIterator validates grid and positions the iterator before the
// first combination. An empty grid yields exactly one empty set.
func NewGridIterator(grid types.ParameterGrid) (*GridIterator, error) {
	if err := grid.Validate(); err != nil {
		return nil, errors.NewConfigError("grid", "generate", "%v", err)
	}

	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([][]float64, len(names))
	for i, name := range names {
		values[i] = grid[name]
	}

	return &GridIterator{
		names:   names,
		values:  values,
		indices: make([]int, len(names)),
	}, nil
}

// Next returns the next combination, or false when exhausted.
func (it *GridIterator) Next() (types.ParameterSet, bool) {
	if it.done {
		return nil, false
	}

	set := make(types.ParameterSet, len(it.names))
	for i, name := range it.names {
		set[name] = it.values[i][it.indices[i]]
	}

	// advance the odometer from the least significant digit
	carry := true
	for i := 0; i < len(it.indices) && carry; i++ {
		it.indices[i]++
		if it.indices[i] >= len(it.values[i]) {
			it.indices[i] = 0
		} else {
			carry = false
		}
	}
	if carry {
		it.done = true
	}

	return set, true
}

// Reset rewinds to the first combination.
func (it *GridIterator) Reset() {
	for i := range it.indices {
		it.indices[i] = 0
	}
	it.done = false
}

// Names returns the sorted parameter names.
func (it *GridIterator) Names() []string {
	return append([]string(nil), it.names...)
}

// GenerateCombinations expands grid eagerly.
func GenerateCombinations(grid types.ParameterGrid) ([]types.ParameterSet, error) {
	return GenerateCombinationsLimited(grid, 0)
}

// GenerateCombinationsLimited expands grid and fails when it would produce
// more than maxCombinations sets. maxCombinations <= 0 disables the bound.
func GenerateCombinationsLimited(grid types.ParameterGrid, maxCombinations int) ([]types.ParameterSet, error) {
	it, err := NewGridIterator(grid)
	if err != nil {
		return nil, err
	}

	size := grid.Size()
	if maxCombinations > 0 && size > maxCombinations {
		return nil, errors.NewConfigError("grid", "generate",
			"grid expands to %d combinations, limit is %d", size, maxCombinations)
	}

	combos := make([]types.ParameterSet, 0, size)
	for set, ok := it.Next(); ok; set, ok = it.Next() {
		combos = append(combos, set)
	}
	return combos, nil
}

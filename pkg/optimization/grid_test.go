package optimization

import (
	"testing"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerateCombinations_CartesianProduct tests that each combination appears exactly once
func TestGenerateCombinations_CartesianProduct(t *testing.T) {
	combos, err := GenerateCombinations(types.ParameterGrid{"a": {1, 2}, "b": {10, 20}})
	require.NoError(t, err)
	require.Len(t, combos, 4)

	seen := make(map[string]int)
	for _, c := range combos {
		seen[c.Key()]++
	}
	assert.Equal(t, map[string]int{
		"a=1,b=10": 1,
		"a=2,b=10": 1,
		"a=1,b=20": 1,
		"a=2,b=20": 1,
	}, seen)
}

// TestGenerateCombinations_OdometerOrder tests that the first name varies fastest
func TestGenerateCombinations_OdometerOrder(t *testing.T) {
	combos, err := GenerateCombinations(types.ParameterGrid{"b": {10, 20}, "a": {1, 2, 3}})
	require.NoError(t, err)

	keys := make([]string, len(combos))
	for i, c := range combos {
		keys[i] = c.Key()
	}
	assert.Equal(t, []string{
		"a=1,b=10", "a=2,b=10", "a=3,b=10",
		"a=1,b=20", "a=2,b=20", "a=3,b=20",
	}, keys)
}

// TestGenerateCombinations_Deterministic tests repeated generation yields the same order
func TestGenerateCombinations_Deterministic(t *testing.T) {
	grid := types.ParameterGrid{"x": {1, 2, 3}, "y": {4, 5}, "z": {6, 7}}
	first, err := GenerateCombinations(grid)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := GenerateCombinations(grid)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestGenerateCombinations_EmptyGrid tests that an empty grid yields one empty set
func TestGenerateCombinations_EmptyGrid(t *testing.T) {
	combos, err := GenerateCombinations(types.ParameterGrid{})
	require.NoError(t, err)
	require.Len(t, combos, 1)
	assert.Empty(t, combos[0])

	combos, err = GenerateCombinations(nil)
	require.NoError(t, err)
	assert.Len(t, combos, 1)
}

// TestGenerateCombinations_EmptyCandidates tests the error for an empty candidate list
func TestGenerateCombinations_EmptyCandidates(t *testing.T) {
	_, err := GenerateCombinations(types.ParameterGrid{"a": {1}, "b": {}})
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.Contains(t, err.Error(), `"b"`)
}

// TestGenerateCombinationsLimited tests the caller supplied bound
func TestGenerateCombinationsLimited(t *testing.T) {
	grid := types.ParameterGrid{"a": {1, 2, 3}, "b": {1, 2, 3}}

	_, err := GenerateCombinationsLimited(grid, 8)
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))

	combos, err := GenerateCombinationsLimited(grid, 9)
	require.NoError(t, err)
	assert.Len(t, combos, 9)
}

// TestGridIterator_Reset tests that the iterator can be restarted
func TestGridIterator_Reset(t *testing.T) {
	it, err := NewGridIterator(types.ParameterGrid{"a": {1, 2}})
	require.NoError(t, err)

	count := 0
	for _, ok := it.Next(); ok; _, ok = it.Next() {
		count++
	}
	assert.Equal(t, 2, count)

	it.Reset()
	set, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, 1.0, set["a"])
	assert.Equal(t, []string{"a"}, it.Names())
}

// TestGetDefaultGrid tests default grids per strategy
func TestGetDefaultGrid(t *testing.T) {
	grid := GetDefaultGrid("ema-crossover")
	assert.Equal(t, 30, grid.Size())

	grid["short_window"][0] = 99
	assert.Equal(t, 5.0, DefaultCrossoverGrid["short_window"][0], "returned grid must be a copy")

	assert.Empty(t, GetDefaultGrid("unknown"))
}

// TestMinWarmup tests the smallest warm-up among valid combinations
func TestMinWarmup(t *testing.T) {
	combos, err := GenerateCombinations(types.ParameterGrid{"short_window": {5, 30}, "long_window": {21, 25}})
	require.NoError(t, err)

	bars, ok := MinWarmup("ema-crossover", combos)
	require.True(t, ok)
	assert.Equal(t, 21, bars)

	_, ok = MinWarmup("ema-crossover", []types.ParameterSet{{"short_window": 40, "long_window": 10}})
	assert.False(t, ok)
}

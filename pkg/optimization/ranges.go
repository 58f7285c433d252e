package optimization

import (
	"github.com/ducminhle1904/crypto-backtest-lab/internal/strategy"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// DefaultCrossoverGrid is the search space used when a moving-average
// crossover is optimized without an explicit grid.
var DefaultCrossoverGrid = types.ParameterGrid{
	strategy.ParamShortWindow: {5, 7, 9, 12, 15},
	strategy.ParamLongWindow:  {18, 21, 26, 30, 40, 50},
}

// GetDefaultGrid returns a copy of the default grid for strategyID. Variants
// without tunable parameters get an empty grid.
func GetDefaultGrid(strategyID string) types.ParameterGrid {
	switch strategy.ParseKind(strategyID) {
	case strategy.KindEMACrossover, strategy.KindSMACrossover:
		grid := make(types.ParameterGrid, len(DefaultCrossoverGrid))
		for name, values := range DefaultCrossoverGrid {
			grid[name] = append([]float64(nil), values...)
		}
		return grid
	default:
		return types.ParameterGrid{}
	}
}

// MinWarmup returns the smallest warm-up requirement among the valid
// combinations for strategyID. ok is false when no combination is valid.
func MinWarmup(strategyID string, combos []types.ParameterSet) (bars int, ok bool) {
	for _, combo := range combos {
		warmup, valid := strategy.WarmupFor(strategyID, combo)
		if !valid {
			continue
		}
		if !ok || warmup < bars {
			bars, ok = warmup, true
		}
	}
	return bars, ok
}

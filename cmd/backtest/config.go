package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/config"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/strategy"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/data"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/optimization"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/reporting"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// DataFlags selects the candle series a command runs on
type DataFlags struct {
	DataFile string
	DataRoot string
	Exchange string
	Symbol   string
	Interval string
	Period   string
	Start    string
	End      string
}

// RunFlags describe the strategy and capital of a run
type RunFlags struct {
	Strategy string
	Capital  float64
	Params   string
	Grid     string
	GridFile string
}

var (
	dataFlags DataFlags
	runFlags  RunFlags
)

func addDataFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&dataFlags.DataFile, "data", "", "Candle CSV file (default: located under --data-root)")
	f.StringVar(&dataFlags.DataRoot, "data-root", "data", "Root of downloaded candle files")
	f.StringVar(&dataFlags.Exchange, "exchange", "bybit", "Exchange directory under --data-root")
	f.StringVarP(&dataFlags.Symbol, "symbol", "s", "BTCUSDT", "Trading symbol")
	f.StringVarP(&dataFlags.Interval, "interval", "i", "1h", "Candle interval (e.g. 5m, 1h, 4h, 1d)")
	f.StringVar(&dataFlags.Period, "period", "", "Trailing window to keep (e.g. 30d, 180d, 720h)")
	f.StringVar(&dataFlags.Start, "start", "", "First date to keep (YYYY-MM-DD)")
	f.StringVar(&dataFlags.End, "end", "", "Last date to keep, exclusive (YYYY-MM-DD)")
}

func addRunFlags(cmd *cobra.Command, withParams, withGrid bool) {
	f := cmd.Flags()
	f.StringVar(&runFlags.Strategy, "strategy", "ema-crossover", "Strategy identifier ("+strings.Join(strategy.Known(), ", ")+")")
	f.Float64Var(&runFlags.Capital, "capital", 0, "Initial capital (default: DEFAULT_CAPITAL)")
	if withParams {
		f.StringVar(&runFlags.Params, "params", "", `Strategy parameters, e.g. "short_window=9,long_window=21"`)
	}
	if withGrid {
		f.StringVar(&runFlags.Grid, "grid", "", `Parameter grid, e.g. "short_window=5,9,12;long_window=21,30"`)
		f.StringVar(&runFlags.GridFile, "grid-file", "", "YAML grid file")
	}
}

// reportInterval is the interval used to name report directories. With
// --data and no explicit --interval it is read from the file path.
func reportInterval(cmd *cobra.Command) string {
	if dataFlags.DataFile != "" && !cmd.Flags().Changed("interval") {
		if interval := reporting.ExtractIntervalFromPath(dataFlags.DataFile); interval != "" {
			return interval
		}
	}
	return dataFlags.Interval
}

// capital resolves the --capital flag against the configured default
func capital() float64 {
	if runFlags.Capital > 0 {
		return runFlags.Capital
	}
	return appConfig.Engine.DefaultCapital
}

// loadCandles loads and windows the candle series selected by dataFlags
func loadCandles() ([]types.OHLCV, error) {
	manager := data.NewDataManager()

	path := dataFlags.DataFile
	if path == "" {
		path = manager.FindDataFile(dataFlags.DataRoot, dataFlags.Exchange, dataFlags.Symbol, dataFlags.Interval)
		if path == "" {
			return nil, errors.NewConfigError("cli", "load_candles",
				"no candle file for %s %s under %s; run 'backtest fetch' or pass --data", dataFlags.Symbol, dataFlags.Interval, dataFlags.DataRoot)
		}
	}

	opts, err := loadOptions()
	if err != nil {
		return nil, err
	}

	candles, err := manager.Load(path, opts)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("file", path).
		Int("candles", len(candles)).
		Time("from", candles[0].Timestamp).
		Time("to", candles[len(candles)-1].Timestamp).
		Msg("candles loaded")
	return candles, nil
}

func loadOptions() (data.LoadOptions, error) {
	var opts data.LoadOptions
	var err error
	if opts.Start, err = data.ParseDate(dataFlags.Start); err != nil {
		return opts, err
	}
	if opts.End, err = data.ParseDate(dataFlags.End); err != nil {
		return opts, err
	}
	if dataFlags.Period != "" {
		d, ok := data.ParseTrailingPeriod(dataFlags.Period)
		if !ok {
			return opts, errors.NewConfigError("cli", "load_candles", "invalid --period %q", dataFlags.Period)
		}
		opts.Trailing = d
	}
	return opts, nil
}

// parseParams parses "name=value,name=value"
func parseParams(s string) (types.ParameterSet, error) {
	params := types.ParameterSet{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.NewConfigError("cli", "parse_params", "expected name=value, got %q", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errors.NewConfigError("cli", "parse_params", "invalid value for %s: %q", name, raw)
		}
		params[strings.TrimSpace(name)] = v
	}
	return params, nil
}

// parseGrid parses "name=v1,v2;name=v1,v2". A value of the form lo:hi:step
// expands to the inclusive range.
func parseGrid(s string) (types.ParameterGrid, error) {
	grid := types.ParameterGrid{}
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, raw, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.NewConfigError("cli", "parse_grid", "expected name=v1,v2,..., got %q", entry)
		}

		var values []float64
		for _, item := range strings.Split(raw, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if strings.Count(item, ":") == 2 {
				expanded, err := expandRange(name, item)
				if err != nil {
					return nil, err
				}
				values = append(values, expanded...)
				continue
			}
			v, err := strconv.ParseFloat(item, 64)
			if err != nil {
				return nil, errors.NewConfigError("cli", "parse_grid", "invalid value for %s: %q", name, item)
			}
			values = append(values, v)
		}
		grid[name] = values
	}
	if err := grid.Validate(); err != nil {
		return nil, errors.NewConfigError("cli", "parse_grid", "%v", err)
	}
	return grid, nil
}

func expandRange(name, rng string) ([]float64, error) {
	parts := strings.Split(rng, ":")
	bounds := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.NewConfigError("cli", "parse_grid", "invalid range for %s: %q", name, rng)
		}
		bounds[i] = v
	}
	lo, hi, step := bounds[0], bounds[1], bounds[2]
	if step <= 0 || hi < lo {
		return nil, errors.NewConfigError("cli", "parse_grid", "range for %s needs lo <= hi and step > 0, got %q", name, rng)
	}
	var values []float64
	for i := 0; ; i++ {
		v := lo + float64(i)*step
		if v > hi+1e-9 {
			break
		}
		values = append(values, v)
	}
	return values, nil
}

// searchSpace resolves the grid from --grid, --grid-file or the strategy
// default, in that order. The grid file may also carry fold settings.
func searchSpace() (types.ParameterGrid, *config.GridFile, error) {
	if runFlags.Grid != "" {
		grid, err := parseGrid(runFlags.Grid)
		return grid, nil, err
	}
	if runFlags.GridFile != "" {
		file, err := config.LoadGridFile(runFlags.GridFile)
		if err != nil {
			return nil, nil, err
		}
		if file.Strategy != "" && file.Strategy != runFlags.Strategy {
			log.Info().Str("strategy", file.Strategy).Msg("using strategy from grid file")
			runFlags.Strategy = file.Strategy
		}
		if file.Capital > 0 && runFlags.Capital == 0 {
			runFlags.Capital = file.Capital
		}
		return file.Grid, file, nil
	}
	return optimization.GetDefaultGrid(runFlags.Strategy), nil, nil
}

func describeGrid(grid types.ParameterGrid) string {
	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, grid[name])
	}
	return strings.Join(parts, " ")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/data"
)

var fetchFlags struct {
	Symbols   []string
	Intervals []string
	Category  string
	Output    string
	Timeout   time.Duration
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download historical candles from Bybit",
	Long: `Download klines from Bybit into the candle layout the other commands read:
{data-root}/bybit/{category}/{SYMBOL}/{minutes}/candles.csv

Requests are paced (BYBIT_RPS), retried on rate limits and guarded by a
circuit breaker.

Examples:
  backtest fetch -s BTCUSDT -i 1h --start 2024-01-01
  backtest fetch --symbols BTCUSDT,ETHUSDT --intervals 15m,4h --period 90d --category linear`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addDataFlags(fetchCmd)
	f := fetchCmd.Flags()
	f.StringSliceVar(&fetchFlags.Symbols, "symbols", nil, "Symbols to download (overrides --symbol)")
	f.StringSliceVar(&fetchFlags.Intervals, "intervals", nil, "Intervals to download (overrides --interval)")
	f.StringVar(&fetchFlags.Category, "category", "", "Market category: spot, linear, inverse (default: BYBIT_CATEGORY)")
	f.StringVar(&fetchFlags.Output, "output", "", "Explicit output file (single symbol and interval only)")
	f.DurationVar(&fetchFlags.Timeout, "timeout", 30*time.Minute, "Overall download timeout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	symbols := fetchFlags.Symbols
	if len(symbols) == 0 {
		symbols = []string{dataFlags.Symbol}
	}
	intervals := fetchFlags.Intervals
	if len(intervals) == 0 {
		intervals = []string{dataFlags.Interval}
	}
	if fetchFlags.Output != "" && len(symbols)*len(intervals) > 1 {
		return errors.NewConfigError("cli", "fetch", "--output needs a single symbol and interval")
	}
	category := fetchFlags.Category
	if category == "" {
		category = appConfig.Bybit.Category
	}

	start, end, err := fetchWindow()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, fetchFlags.Timeout)
	defer cancel()

	client := bybit.NewClient(bybit.Config{
		APIKey:            os.Getenv("BYBIT_API_KEY"),
		APISecret:         os.Getenv("BYBIT_API_SECRET"),
		Testnet:           appConfig.Bybit.Testnet,
		Category:          category,
		RequestsPerSecond: appConfig.Bybit.RequestsPerSecond,
	})
	source := bybit.NewKlineSource(client)
	locator := data.NewDataManager()

	log.Info().
		Str("environment", client.GetEnvironment()).
		Str("category", category).
		Strs("symbols", symbols).
		Strs("intervals", intervals).
		Time("start", start).
		Time("end", end).
		Msg("downloading candles")

	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		for _, raw := range intervals {
			interval, err := bybit.ParseInterval(raw)
			if err != nil {
				return errors.NewConfigError("cli", "fetch", "%v", err)
			}

			candles, err := source.FetchHistory(ctx, symbol, interval, start, end)
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				log.Warn().Str("symbol", symbol).Str("interval", raw).Msg("no candles returned")
				continue
			}

			path := fetchFlags.Output
			if path == "" {
				path = locator.CandlePath(dataFlags.DataRoot, "bybit", category, symbol, raw)
			}
			if err := data.SaveCSV(path, candles); err != nil {
				return err
			}
			log.Info().
				Str("symbol", symbol).
				Str("interval", raw).
				Int("candles", len(candles)).
				Time("first", candles[0].Timestamp).
				Time("last", candles[len(candles)-1].Timestamp).
				Str("file", path).
				Msg("candles saved")
		}
	}
	return nil
}

// fetchWindow resolves the download window from --start/--end or --period,
// defaulting to the last 30 days
func fetchWindow() (time.Time, time.Time, error) {
	opts, err := loadOptions()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := opts.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := opts.Start
	if start.IsZero() {
		trailing := opts.Trailing
		if trailing == 0 {
			trailing = 30 * 24 * time.Hour
		}
		start = end.Add(-trailing)
	}
	return start, end, nil
}

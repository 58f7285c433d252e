package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ducminhle1904/crypto-backtest-lab/cmd/common"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/config"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/logger"
)

var (
	envFile  string
	logLevel string
	logDir   string

	appConfig *config.Config
	appLogger *logger.Logger
)

// rootCmd is the base command of the backtest CLI
var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Strategy backtesting, optimization and walk-forward validation",
	Long: `backtest simulates moving-average crossover strategies over OHLCV candles,
searches parameter grids for the best Sharpe ratio, validates the search with
walk-forward folds and analyzes the risk of return series.

The engine is also served over HTTP (serve) and over stdin/stdout (engine).`,
	Version:           common.GetShortVersion(),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			appLogger.Close()
		}
	},
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env", ".env", "Environment file path")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	flags.StringVar(&logDir, "log-dir", "", "Directory for per-run log files; overrides LOG_DIR")
}

// normalizeFlagName accepts snake_case spellings such as --in_sample_ratio
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvFile(envFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logDir != "" {
		cfg.LogDir = logDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	appConfig = cfg

	appLogger, err = logger.Setup(logger.Options{
		Level:    cfg.LogLevel,
		LogDir:   cfg.LogDir,
		Symbol:   dataFlags.Symbol,
		Interval: dataFlags.Interval,
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("command", cmd.Name()).
		Str("version", common.GetFullVersion()).
		Str("environment", cfg.Environment).
		Int("workers", cfg.WorkerCount()).
		Msg("configuration loaded")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

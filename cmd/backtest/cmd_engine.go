package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/api"
)

var engineStore bool

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Answer JSON command envelopes on stdin/stdout",
	Long: `Read {"command": "backtest|optimize|walk_forward|risk", "data": {...}}
envelopes from stdin and write one {"success", "data", "error"} line per
envelope to stdout. Logs go to stderr.

Example:
  echo '{"command":"risk","data":{"returns":[0.01,-0.02],"initial_capital":1000}}' | backtest engine`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(engineCmd)
	engineCmd.Flags().BoolVar(&engineStore, "store", false, "Persist optimize and walk-forward runs")
}

func runEngine(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	deps, err := openEngineDeps(ctx, engineStore)
	if err != nil {
		return err
	}
	defer deps.Close()

	log.Info().Str("commands", strings.Join(api.Commands(), ",")).Msg("engine reading stdin")
	return deps.dispatcher().ServeStdio(ctx, os.Stdin, os.Stdout)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/storage"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/reporting"
)

var runsFilter storage.RunFilter

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, show and delete stored runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the stored result of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsDeleteCmd)

	f := runsListCmd.Flags()
	f.StringVar(&runsFilter.Kind, "kind", "", "Only runs of this kind (optimize, walk_forward)")
	f.StringVar(&runsFilter.Symbol, "symbol", "", "Only runs for this symbol")
	f.IntVar(&runsFilter.Limit, "limit", 20, "Maximum runs to list (0 = all)")
}

func withStore(fn func(ctx context.Context, store *storage.Store) error) error {
	store, err := storage.Open(appConfig.Storage.Driver, appConfig.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(context.Background(), store)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store *storage.Store) error {
		runs, err := store.ListRuns(ctx, runsFilter)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle("STORED RUNS (%d)", len(runs))
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Kind", "Symbol", "Strategy", "Created"})
		for _, run := range runs {
			t.AppendRow(table.Row{run.ID, run.Kind, run.Symbol, run.Strategy, run.CreatedAt.Format("2006-01-02 15:04:05")})
		}
		t.Render()
		return nil
	})
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store *storage.Store) error {
		run, ok, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewConfigError("cli", "runs_show", "run %s not found", args[0])
		}
		var payload interface{}
		if err := run.Decode(&payload); err != nil {
			return err
		}
		return reporting.NewDefaultJSONFormatter().Print(os.Stdout, map[string]interface{}{
			"id":         run.ID,
			"kind":       run.Kind,
			"symbol":     run.Symbol,
			"strategy":   run.Strategy,
			"created_at": run.CreatedAt,
			"payload":    payload,
		})
	})
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store *storage.Store) error {
		if err := store.DeleteRun(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted run %s\n", args[0])
		return nil
	})
}

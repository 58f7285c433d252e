package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/reporting"
)

// OutputFlags control console and file output
type OutputFlags struct {
	OutputDir   string
	ConsoleOnly bool
	Formats     []string
	Top         int
	JSON        bool
}

var outputFlags OutputFlags

func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&outputFlags.OutputDir, "output-dir", "o", "", "Directory for result files (default: results/<SYMBOL>_<interval>)")
	f.BoolVar(&outputFlags.ConsoleOnly, "console-only", false, "Print to the console only, write no files")
	f.StringSliceVar(&outputFlags.Formats, "format", []string{"csv", "json", "xlsx"}, "File formats to write (csv, json, xlsx)")
	f.IntVar(&outputFlags.Top, "top", 10, "Rows to show in leaderboards and trade lists (0 = all)")
	f.BoolVar(&outputFlags.JSON, "json", false, "Print the result as JSON on stdout instead of tables")
}

func newReportingManager() (*reporting.ReportingManager, error) {
	cfg := reporting.ReportingConfig{
		EnableConsole:   !outputFlags.JSON,
		EnableFiles:     !outputFlags.ConsoleOnly,
		OutputDirectory: outputFlags.OutputDir,
		TopResults:      outputFlags.Top,
	}
	for _, format := range outputFlags.Formats {
		switch strings.ToLower(strings.TrimSpace(format)) {
		case "csv":
			cfg.CSVEnabled = true
		case "json":
			cfg.JSONEnabled = true
		case "xlsx", "excel":
			cfg.ExcelEnabled = true
		default:
			return nil, errors.NewConfigError("cli", "output", "unknown output format %q", format)
		}
	}
	return reporting.NewReportingManager(cfg), nil
}

// printJSON writes v to stdout when --json is set
func printJSON(v interface{}) error {
	if !outputFlags.JSON {
		return nil
	}
	return reporting.NewDefaultJSONFormatter().Print(os.Stdout, v)
}

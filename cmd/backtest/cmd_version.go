package main

import (
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/cmd/common"
)

var versionDetailed bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	// Skip config and logger setup
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		if versionDetailed {
			common.PrintDetailedVersion("backtest")
			return
		}
		common.PrintVersion("backtest")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed build information")
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/SariskaIO/sparkle-cdm-widevine/internal/wvlog"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "wvadapter",
	Short: "Inspect and exercise the Widevine OpenCDM host adapter",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		wvlog.Init(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(supportsCmd)
	rootCmd.AddCommand(decryptDemoCmd)
	rootCmd.AddCommand(inspectSessionCmd)
}

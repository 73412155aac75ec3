package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
)

var supportsCmd = &cobra.Command{
	Use:   "supports <key-system> [mime-type]",
	Short: "Report whether a key-system identifier is supported",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mimeType := ""
		if len(args) == 2 {
			mimeType = args[1]
		}
		switch cdm.IsWidevine(args[0]) {
		case true:
			fmt.Printf("%s: supported (%s)\n", args[0], mimeType)
		case false:
			fmt.Printf("%s: not supported\n", args[0])
		}
		return nil
	},
}

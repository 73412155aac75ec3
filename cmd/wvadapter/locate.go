package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SariskaIO/sparkle-cdm-widevine/locator"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Search well-known install trees for the vendor Widevine CDM library",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, ok, err := locator.Default{}.Locate(context.Background())
		if !ok {
			if err != nil {
				return fmt.Errorf("no widevine cdm library found (set %s to override): %w", locator.EnvOverrideVar, err)
			}
			return fmt.Errorf("no widevine cdm library found (set %s to override)", locator.EnvOverrideVar)
		}
		fmt.Println(path)
		return nil
	},
}

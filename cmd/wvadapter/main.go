// Command wvadapter drives the OpenCDM Widevine host adapter from the
// command line: locating the vendor CDM library, checking key-system
// support, and a synthetic end-to-end decrypt walkthrough for
// exercising the adapter without a real media pipeline.
package main

import (
	"os"

	"github.com/SariskaIO/sparkle-cdm-widevine/internal/wvlog"
)

func main() {
	if rootCmd.Execute() != nil {
		wvlog.Errorf("wvadapter: command failed")
		os.Exit(1)
	}
}

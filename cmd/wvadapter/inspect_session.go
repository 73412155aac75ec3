package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
	"github.com/SariskaIO/sparkle-cdm-widevine/session"
)

var inspectSessionCmd = &cobra.Command{
	Use:   "inspect-session",
	Short: "Print the key-status table of a synthetic demo session",
	Long: `inspect-session builds a session carrying a couple of synthetic key
entries, the way a license response would populate one via
OnSessionKeysChange, and prints its full key-status table so the table's
layout can be inspected without a real vendor library.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := session.New("demo-session", cdm.SessionTypeTemporary, nil, session.Callbacks{})
		s.OnKeyUpdate([]cdm.KeyInformation{
			{KeyID: []byte("key-one"), Status: cdm.KeyStatusUsable},
			{KeyID: []byte("key-two"), Status: cdm.KeyStatusExpired},
		})

		for keyID, info := range s.AllKeyStatuses() {
			fmt.Printf("%x: %s\n", keyID, info.Status)
		}
		return nil
	},
}

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
	"github.com/SariskaIO/sparkle-cdm-widevine/decrypt"
	"github.com/SariskaIO/sparkle-cdm-widevine/subsample"
)

// xorCdm is a stand-in ContentDecryptionModule for exercising the
// decrypt pipeline's subsample bookkeeping without a real vendor
// library: it "decrypts" by XORing each byte against the key id, which
// is reversible and makes the demo's output self-checking.
type xorCdm struct{}

func (xorCdm) Initialize(bool, bool, bool)                                                  {}
func (xorCdm) CreateSessionAndGenerateRequest(uint32, cdm.SessionType, cdm.InitDataType, []byte) {}
func (xorCdm) LoadSession(uint32, cdm.SessionType, string)                                  {}
func (xorCdm) UpdateSession(uint32, string, []byte)                                         {}
func (xorCdm) RemoveSession(uint32, string)                                                 {}
func (xorCdm) CloseSession(uint32, string)                                                  {}
func (xorCdm) SetServerCertificate(uint32, []byte)                                          {}
func (xorCdm) TimerExpired(interface{})                                                     {}
func (xorCdm) Destroy()                                                                     {}

func (xorCdm) Decrypt(input cdm.InputBuffer) (cdm.DecryptStatus, []byte) {
	if len(input.KeyID) == 0 {
		return cdm.StatusNoKey, nil
	}
	out := make([]byte, len(input.Data))
	for i, b := range input.Data {
		out[i] = b ^ input.KeyID[i%len(input.KeyID)]
	}
	return cdm.StatusSuccess, out
}

var decryptDemoCmd = &cobra.Command{
	Use:   "decrypt-demo",
	Short: "Round-trip a synthetic CENC sample through the decrypt pipeline",
	Long: `decrypt-demo builds a one-subsample sample (a clear region followed by
an "encrypted" region), decrypts it in place with a reversible stand-in CDM,
and prints the before/after hex so the subsample bookkeeping can be
inspected without a real vendor library.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keyID := []byte("demo-key")
		iv := []byte("0123456789012345")
		sample := []byte("CLEARTEXT" + "SECRETPAYLOAD!!!")

		descriptor := subsample.Encode([]cdm.SubsampleEntry{
			{ClearBytes: 9, CipherBytes: 16},
		})

		fmt.Printf("before: %s\n", hex.EncodeToString(sample))
		result := decrypt.WithSubsamples(xorCdm{}, sample, descriptor, 1, iv, keyID)
		if result.Err != cdm.ErrorNone {
			return fmt.Errorf("decrypt failed: %s", result.Err)
		}
		fmt.Printf("after:  %s\n", hex.EncodeToString(sample))
		return nil
	},
}

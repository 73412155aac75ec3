package decrypt

import (
	"bytes"
	"testing"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
	"github.com/SariskaIO/sparkle-cdm-widevine/subsample"
)

// xorCdm decrypts by XORing against the key id, which is its own
// inverse and makes round trips self-checking.
type xorCdm struct {
	status cdm.DecryptStatus
}

func (xorCdm) Initialize(bool, bool, bool)                                                      {}
func (xorCdm) CreateSessionAndGenerateRequest(uint32, cdm.SessionType, cdm.InitDataType, []byte) {}
func (xorCdm) LoadSession(uint32, cdm.SessionType, string)                                      {}
func (xorCdm) UpdateSession(uint32, string, []byte)                                              {}
func (xorCdm) RemoveSession(uint32, string)                                                      {}
func (xorCdm) CloseSession(uint32, string)                                                       {}
func (xorCdm) SetServerCertificate(uint32, []byte)                                                {}
func (xorCdm) TimerExpired(interface{})                                                           {}
func (xorCdm) Destroy()                                                                           {}

func (c xorCdm) Decrypt(input cdm.InputBuffer) (cdm.DecryptStatus, []byte) {
	if c.status != cdm.StatusSuccess {
		return c.status, nil
	}
	out := make([]byte, len(input.Data))
	for i, b := range input.Data {
		out[i] = b ^ input.KeyID[i%len(input.KeyID)]
	}
	return cdm.StatusSuccess, out
}

func TestNoSubsampleRoundTrip(t *testing.T) {
	sample := []byte("plaintext-sample")
	original := append([]byte{}, sample...)
	keyID := []byte("key")

	result := NoSubsample(xorCdm{status: cdm.StatusSuccess}, sample, []byte("iv"), keyID)
	if result.Err != cdm.ErrorNone {
		t.Fatalf("unexpected error %v", result.Err)
	}
	if bytes.Equal(sample, original) {
		t.Fatal("sample was not modified in place")
	}

	// decrypting the "ciphertext" a second time with the same xor key
	// recovers the original plaintext.
	again := NoSubsample(xorCdm{status: cdm.StatusSuccess}, sample, []byte("iv"), keyID)
	if again.Err != cdm.ErrorNone {
		t.Fatalf("unexpected error %v", again.Err)
	}
	if !bytes.Equal(sample, original) {
		t.Fatalf("round trip mismatch: got %q, want %q", sample, original)
	}
}

func TestNoSubsampleMapsStatus(t *testing.T) {
	cases := []struct {
		status cdm.DecryptStatus
		want   cdm.AdapterError
	}{
		{cdm.StatusNeedMoreData, cdm.ErrorMoreDataAvailable},
		{cdm.StatusNoKey, cdm.ErrorInvalidSession},
		{cdm.StatusDecryptError, cdm.ErrorFail},
	}
	for _, c := range cases {
		sample := []byte("x")
		result := NoSubsample(xorCdm{status: c.status}, sample, []byte("iv"), []byte("k"))
		if result.Err != c.want {
			t.Errorf("status %v: got error %v, want %v", c.status, result.Err, c.want)
		}
	}
}

func TestWithSubsamplesSkipsZeroCipherRegions(t *testing.T) {
	clear := []byte("CLEARTEXT")
	cipher := []byte("SECRETPAYLOAD!!!")
	sample := append(append([]byte{}, clear...), cipher...)
	originalCipher := append([]byte{}, cipher...)

	descriptor := subsample.Encode([]cdm.SubsampleEntry{
		{ClearBytes: uint16(len(clear)), CipherBytes: 0},
		{ClearBytes: 0, CipherBytes: uint32(len(cipher))},
	})

	keyID := []byte("demo-key")
	result := WithSubsamples(xorCdm{status: cdm.StatusSuccess}, sample, descriptor, 2, []byte("iv"), keyID)
	if result.Err != cdm.ErrorNone {
		t.Fatalf("unexpected error %v", result.Err)
	}

	if !bytes.Equal(sample[:len(clear)], clear) {
		t.Fatal("clear region must not be touched")
	}
	if bytes.Equal(sample[len(clear):], originalCipher) {
		t.Fatal("cipher region should have been decrypted in place")
	}
}

func TestDecryptDispatchesOnSubsampleCount(t *testing.T) {
	sample := []byte("abcdefgh")
	if got := Decrypt(xorCdm{status: cdm.StatusSuccess}, sample, nil, 0, []byte("iv"), []byte("k")); got.Err != cdm.ErrorNone {
		t.Fatalf("no-subsample path: got %v", got.Err)
	}
}

func TestWithSubsamplesTruncatedDescriptorFails(t *testing.T) {
	sample := []byte("abcdefgh")
	// Only 4 bytes, but a single record needs 6.
	descriptor := []byte{0, 1, 2, 3}
	got := WithSubsamples(xorCdm{status: cdm.StatusSuccess}, sample, descriptor, 1, []byte("iv"), []byte("k"))
	if got.Err != cdm.ErrorFail {
		t.Fatalf("got %v, want ErrorFail", got.Err)
	}
}

func TestWithSubsamplesOversizedCipherRunFails(t *testing.T) {
	sample := []byte("short")
	descriptor := subsample.Encode([]cdm.SubsampleEntry{
		{ClearBytes: 0, CipherBytes: 1000},
	})
	got := WithSubsamples(xorCdm{status: cdm.StatusSuccess}, sample, descriptor, 1, []byte("iv"), []byte("k"))
	if got.Err != cdm.ErrorFail {
		t.Fatalf("got %v, want ErrorFail", got.Err)
	}
}

func TestDecryptRejectsNegativeCount(t *testing.T) {
	sample := []byte("abcdefgh")
	got := Decrypt(xorCdm{status: cdm.StatusSuccess}, sample, nil, -1, []byte("iv"), []byte("k"))
	if got.Err != cdm.ErrorInvalidArg {
		t.Fatalf("got %v, want ErrorInvalidArg", got.Err)
	}
}

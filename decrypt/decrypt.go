// Package decrypt implements the DecryptPipeline (spec.md §4.9): the
// no-subsample and subsample paths over a CDM's synchronous Decrypt
// call, copying cleartext back over the input in place.
package decrypt

import (
	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
	"github.com/SariskaIO/sparkle-cdm-widevine/subsample"
)

// Result is the outcome of a decrypt operation: the adapter-level error
// code, cdm.ErrorNone on success.
type Result struct {
	Err cdm.AdapterError
}

// NoSubsample implements spec.md §4.9's no-subsample path: the whole
// sample is ciphertext. sample is decrypted in place.
func NoSubsample(instance cdm.ContentDecryptionModule, sample []byte, iv, keyID []byte) Result {
	status, plaintext := instance.Decrypt(cdm.InputBuffer{
		Data:             sample,
		EncryptionScheme: cdm.EncryptionSchemeCenc,
		KeyID:            keyID,
		IV:               iv,
		Pattern:          cdm.Pattern{},
		Timestamp:        0,
	})
	if status != cdm.StatusSuccess {
		return Result{Err: status.AdapterError()}
	}
	copy(sample, plaintext)
	return Result{Err: cdm.ErrorNone}
}

// WithSubsamples implements spec.md §4.9's subsample path: descriptor is
// the raw {clear,cipher} record stream, subsampleCount the number of
// records to parse from it. sample is decrypted in place, subsample by
// subsample, stopping at the first non-success result.
func WithSubsamples(instance cdm.ContentDecryptionModule, sample []byte, descriptor []byte, subsampleCount int, iv, keyID []byte) Result {
	entries, err := subsample.Decode(descriptor, subsampleCount)
	if err != nil {
		return Result{Err: cdm.ErrorFail}
	}

	cursor := 0
	for _, e := range entries {
		cursor += int(e.ClearBytes)
		if e.CipherBytes == 0 {
			continue
		}
		end := cursor + int(e.CipherBytes)
		if end > len(sample) {
			return Result{Err: cdm.ErrorFail}
		}

		region := sample[cursor:end]
		status, plaintext := instance.Decrypt(cdm.InputBuffer{
			Data:             region,
			EncryptionScheme: cdm.EncryptionSchemeCenc,
			KeyID:            keyID,
			IV:               iv,
			Pattern:          cdm.Pattern{},
			Timestamp:        0,
		})
		if status != cdm.StatusSuccess {
			return Result{Err: status.AdapterError()}
		}
		copy(region, plaintext)
		cursor = end
	}
	return Result{Err: cdm.ErrorNone}
}

// Decrypt dispatches to the no-subsample or subsample path depending on
// subsampleCount, matching the adapter's gstreamer_session_decrypt entry
// point (spec.md §4.7).
func Decrypt(instance cdm.ContentDecryptionModule, sample []byte, descriptor []byte, subsampleCount int, iv, keyID []byte) Result {
	if subsampleCount == 0 {
		return NoSubsample(instance, sample, iv, keyID)
	}
	if subsampleCount < 0 {
		return Result{Err: cdm.ErrorInvalidArg}
	}
	return WithSubsamples(instance, sample, descriptor, subsampleCount, iv, keyID)
}

// Package subsample implements SubsampleCodec (spec.md §4.8): the
// big-endian {u16 clear_bytes, u32 cipher_bytes} record stream CENC
// subsample descriptors are encoded as.
package subsample

import (
	"encoding/binary"
	"fmt"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
)

const recordSize = 6

// Decode parses exactly n subsample records from data. It fails if n < 1
// or data is shorter than 6*n bytes.
func Decode(data []byte, n int) ([]cdm.SubsampleEntry, error) {
	if n < 1 {
		return nil, fmt.Errorf("subsample: count must be at least 1, got %d", n)
	}
	need := recordSize * n
	if len(data) < need {
		return nil, fmt.Errorf("subsample: need %d bytes for %d records, got %d", need, n, len(data))
	}

	out := make([]cdm.SubsampleEntry, n)
	for i := 0; i < n; i++ {
		off := i * recordSize
		out[i] = cdm.SubsampleEntry{
			ClearBytes:  binary.BigEndian.Uint16(data[off : off+2]),
			CipherBytes: binary.BigEndian.Uint32(data[off+2 : off+6]),
		}
	}
	return out, nil
}

// Encode is the inverse of Decode, serializing entries back to their
// big-endian wire form. Not used on the adapter's request path — added
// so the encode/decode round trip is directly testable and so tooling
// that builds synthetic CENC descriptors (the decrypt-demo CLI command)
// has a correct counterpart to Decode.
func Encode(entries []cdm.SubsampleEntry) []byte {
	out := make([]byte, recordSize*len(entries))
	for i, e := range entries {
		off := i * recordSize
		binary.BigEndian.PutUint16(out[off:off+2], e.ClearBytes)
		binary.BigEndian.PutUint32(out[off+2:off+6], e.CipherBytes)
	}
	return out
}

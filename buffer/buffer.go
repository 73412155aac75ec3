// Package buffer implements the host side of the CDM's Buffer contract:
// heap-backed output buffers the CDM fills with decrypted bytes or
// license-request payloads.
package buffer

import "github.com/SariskaIO/sparkle-cdm-widevine/cdm"

// VecBuffer is a slice-backed cdm.Buffer. Capacity is fixed at
// allocation time; SetSize retains only the first size bytes as "used"
// without touching the underlying capacity, mirroring the reference
// adapter's VecBuffer.
type VecBuffer struct {
	data     []byte
	capacity uint32
}

// New allocates a VecBuffer with capacity bytes available for the CDM to
// write into.
func New(capacity uint32) *VecBuffer {
	return &VecBuffer{
		data:     make([]byte, capacity),
		capacity: capacity,
	}
}

// Capacity returns the originally requested size.
func (b *VecBuffer) Capacity() uint32 { return b.capacity }

// Data returns the writable region backing the buffer.
func (b *VecBuffer) Data() []byte { return b.data }

// SetSize retains only the first size bytes as used. size must not
// exceed Capacity.
func (b *VecBuffer) SetSize(size uint32) {
	if size > b.capacity {
		size = b.capacity
	}
	b.data = b.data[:size]
}

// Size returns the currently used length.
func (b *VecBuffer) Size() uint32 { return uint32(len(b.data)) }

// Destroy releases the backing memory. The buffer must not be used
// afterward.
func (b *VecBuffer) Destroy() {
	b.data = nil
	b.capacity = 0
}

// Allocator is the host's implementation of the CDM's buffer-allocation
// callback.
type Allocator struct{}

// Allocate returns a new heap-backed cdm.Buffer of the requested
// capacity.
func (Allocator) Allocate(capacity uint32) cdm.Buffer {
	return New(capacity)
}

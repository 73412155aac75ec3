// Package mediabuffer defines the MediaBuffer collaborator: the
// map-read/map-write boundary between a media pipeline's own buffer
// objects and the byte slices package decrypt operates on. spec.md marks
// the media pipeline's actual buffer type out of scope; this package
// supplies the interface plus an in-memory reference implementation,
// exercised by this package's tests. Package decrypt, System.Decrypt and
// the decrypt-demo CLI command take plain byte slices and do not go
// through a MediaBuffer.
package mediabuffer

// MediaBuffer is mapped for read/write around a Decrypt call and unmapped
// afterward. Implementations backed by a real media pipeline typically
// return a view over pipeline-owned memory from Map and release any
// mapping resources in Unmap.
type MediaBuffer interface {
	Map() []byte
	Unmap()
}

// InMemory is a MediaBuffer backed by a plain Go slice, its own address
// space the whole time — Map and Unmap are no-ops beyond returning and
// discarding the view.
type InMemory struct {
	data []byte
}

// New wraps data as an InMemory MediaBuffer. Ownership of data passes to
// the MediaBuffer; callers should not mutate it outside of a Map/Unmap
// pair afterward.
func New(data []byte) *InMemory {
	return &InMemory{data: data}
}

// Map returns the writable backing slice.
func (b *InMemory) Map() []byte { return b.data }

// Unmap is a no-op for an in-memory buffer.
func (b *InMemory) Unmap() {}

// Bytes returns the current contents, valid whether or not the buffer is
// currently mapped.
func (b *InMemory) Bytes() []byte { return b.data }

package mediabuffer

import "testing"

func TestInMemoryMapReturnsBackingSlice(t *testing.T) {
	b := New([]byte("hello"))
	mapped := b.Map()
	mapped[0] = 'H'
	b.Unmap()

	if string(b.Bytes()) != "Hello" {
		t.Fatalf("got %q, want %q", b.Bytes(), "Hello")
	}
}

func TestInMemorySatisfiesMediaBuffer(t *testing.T) {
	var _ MediaBuffer = New(nil)
}

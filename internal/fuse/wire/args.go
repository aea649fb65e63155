package wire

import (
	"bytes"
	"errors"
	"unsafe"
)

var errIncomplete = errors.New("incomplete message")

// argReader allows popping individual FUSE arguments off of the data slice.
// Any method that fails will panic with errIncomplete, allowing for recovery.
type argReader struct {
	data []byte
	off  int
}

// String pops a NUL-terminated string from the arg reader.
func (ar *argReader) String() string {
	buf := ar.data[ar.off:]
	nul := bytes.IndexByte(buf, 0)
	if len(buf) == 0 || nul == -1 {
		panic(errIncomplete)
	}

	res := buf[:nul]
	ar.off += len(res) + 1 // Add one to consume NUL byte
	return string(res)
}

// Bytes pops n bytes from the arg reader.
func (ar *argReader) Bytes(n int) []byte {
	buf := ar.data[ar.off:]
	if n < 0 || len(buf) < n {
		panic(errIncomplete)
	}
	res := make([]byte, n)
	copy(res, buf)
	ar.off += n
	return res
}

// Read pops sz bytes from the arg reader, copying them into the memory at p.
// p must point to a value at least sz bytes large.
func (ar *argReader) Read(p unsafe.Pointer, sz uintptr) {
	buf := ar.data[ar.off:]
	if len(buf) < int(sz) {
		panic(errIncomplete)
	}
	copy(unsafe.Slice((*byte)(p), sz), buf)
	ar.off += int(sz)
}

// Skip discards n bytes, or the remaining bytes if fewer than n remain.
func (ar *argReader) Skip(n int) {
	if rem := ar.Len(); n > rem {
		n = rem
	}
	ar.off += n
}

// Len returns the number of unread bytes.
func (ar *argReader) Len() int { return len(ar.data) - ar.off }

// argWriter allows queueing individual FUSE arguments onto a data slice. Both
// request and response headers start with their total length, which Finish
// fills in.
type argWriter struct {
	buf buffer
}

// Write copies sz bytes from the memory at p.
func (aw *argWriter) Write(p unsafe.Pointer, sz uintptr) {
	copy(aw.buf.alloc(int(sz)), unsafe.Slice((*byte)(p), sz))
}

// String writes s as a NUL-terminated C string.
func (aw *argWriter) String(s string) {
	out := aw.buf.alloc(len(s) + 1) // +1 for the NUL byte
	copy(out, s)
	out[len(s)] = 0
}

// Bytes writes b.
func (aw *argWriter) Bytes(b []byte) {
	copy(aw.buf.alloc(len(b)), b)
}

// Pad writes n zero bytes.
func (aw *argWriter) Pad(n int) {
	out := aw.buf.alloc(n)
	for i := range out {
		out[i] = 0
	}
}

// Finish completes the argWriter, returning the final set of data. The final
// length of data will automatically be written into the header.
func (aw *argWriter) Finish() []byte {
	*(*uint32)(unsafe.Pointer(&aw.buf[0])) = uint32(len(aw.buf))
	return aw.buf
}

type buffer []byte

// alloc allocates n bytes and returns it as a byte slice. The resulting slice
// will be exactly n bytes long; do not append.
func (b *buffer) alloc(n int) []byte {
	if len(*b)+n > cap(*b) {
		old := *b
		*b = make([]byte, len(*b), 2*cap(*b)+n)
		copy(*b, old)
	}
	off := len(*b)
	*b = (*b)[:off+n]
	return (*b)[off:]
}

// align64 aligns numBytes to the next multiple of 64 bits.
func align64(numBytes uint64) uint64 {
	// numBytes is 64-bit aligned iff none of its lowest 3 bits are set. Adding
	// 7 before masking rounds up to the next multiple instead of down.
	const size64 = uint64(unsafe.Sizeof(uint64(0)))
	return (numBytes + size64 - 1) & ^(size64 - 1)
}

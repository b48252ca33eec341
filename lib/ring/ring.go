// Package ring implements a fixed size byte ring buffer shared by a single
// producer and any number of consumers.
//
// The producer appends data with Write, advancing a write cursor that only it
// touches. Consumers Claim windows of the buffer by advancing a read cursor
// under a lock, and then copy bytes out with ReadAt.
//
// The bytes themselves are not synchronized between the producer and the
// consumers: a consumer may observe a window while it is being overwritten.
// This is fine for the intended use, collecting noise, where the value of the
// bytes matters and their exact generation does not.
package ring

import (
	"fmt"
	"sync"
)

type Buffer struct {
	data []byte

	// Only modified by the producer.
	write int

	lock sync.Mutex
	read int
}

// New returns a Buffer holding size bytes. size must be positive.
func New(size int) *Buffer {
	if size <= 0 {
		panic(fmt.Sprintf("ring buffer size must be positive, got %d", size))
	}
	return &Buffer{data: make([]byte, size)}
}

// Size returns the capacity of the buffer, in bytes.
func (b *Buffer) Size() int {
	return len(b.data)
}

// WritePos returns the offset the next Write will start at.
//
// Only meaningful when called from the producer.
func (b *Buffer) WritePos() int {
	return b.write
}

// Write copies p in the buffer starting at the write cursor.
//
// A write that would go past the end of the buffer is split: the tail of the
// buffer is filled first, and the rest wraps around from index 0. If p is
// longer than the buffer, older bytes of p are overwritten by newer ones, as
// if p had been written in multiple calls.
//
// Write must only be called by a single producer. It always consumes all of p.
func (b *Buffer) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		copied := copy(b.data[b.write:], p)
		p = p[copied:]

		b.write += copied
		if b.write >= len(b.data) {
			b.write = 0
		}
	}
	return total, nil
}

// Claim reserves a window of step bytes for the caller, returning its offset.
//
// The read cursor is advanced by step, and reset to 0 if the advance reaches
// or passes the end of the buffer. Concurrent callers always get distinct
// offsets within a cycle.
func (b *Buffer) Claim(step int) int {
	b.lock.Lock()
	defer b.lock.Unlock()

	offset := b.read
	b.read += step
	if b.read >= len(b.data) {
		b.read = 0
	}
	return offset
}

// ReadAt fills p with the bytes starting at offset.
//
// Reads crossing the end of the buffer continue from index 0, symmetric to
// Write. offset is taken modulo the buffer size.
func (b *Buffer) ReadAt(p []byte, offset int) {
	offset %= len(b.data)
	if offset < 0 {
		offset += len(b.data)
	}
	for len(p) > 0 {
		copied := copy(p, b.data[offset:])
		p = p[copied:]
		offset = 0
	}
}

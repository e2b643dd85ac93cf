// Package buffer provides the growable byte buffer backing pipeline output
// channels.
package buffer

import "io"

// InitialCapacity is the capacity allocated on first write.
const InitialCapacity = 4096

// Buffer is a growable byte buffer with independent read and write cursors.
// When every written byte has been read both cursors return to zero, so a
// producer/consumer pair that keeps up never grows the buffer.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	data  []byte
	read  int
	total int64
}

// New returns an empty buffer. Storage is allocated lazily.
func New() *Buffer {
	return &Buffer{}
}

// Write appends p. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.grow(len(p))
	b.data = append(b.data, p...)
	b.total += int64(len(p))
	return len(p), nil
}

// WriteString appends s.
func (b *Buffer) WriteString(s string) (int, error) {
	b.grow(len(s))
	b.data = append(b.data, s...)
	b.total += int64(len(s))
	return len(s), nil
}

// WriteByte appends c.
func (b *Buffer) WriteByte(c byte) error {
	b.grow(1)
	b.data = append(b.data, c)
	b.total++
	return nil
}

// Read copies unread bytes into p. It returns io.EOF when nothing is readable
// and len(p) > 0.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.Readable() == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.data[b.read:])
	b.read += n
	if b.read == len(b.data) {
		b.data = b.data[:0]
		b.read = 0
	}
	return n, nil
}

// WriteTo drains the buffer into w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	if b.Readable() == 0 {
		return 0, nil
	}
	n, err := w.Write(b.data[b.read:])
	b.read += n
	if b.read == len(b.data) {
		b.data = b.data[:0]
		b.read = 0
	}
	return int64(n), err
}

// Readable reports the number of unread bytes.
func (b *Buffer) Readable() int {
	return len(b.data) - b.read
}

// Bytes returns the unread bytes. The slice is valid until the next write.
func (b *Buffer) Bytes() []byte {
	return b.data[b.read:]
}

// Total reports the number of bytes ever written.
func (b *Buffer) Total() int64 {
	return b.total
}

// Cap reports the current storage capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Compact moves unread bytes to the front of storage.
func (b *Buffer) Compact() {
	if b.read == 0 {
		return
	}
	n := copy(b.data, b.data[b.read:])
	b.data = b.data[:n]
	b.read = 0
}

// Reset discards all content. Total is preserved.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.read = 0
}

func (b *Buffer) grow(n int) {
	need := len(b.data) + n
	if need <= cap(b.data) {
		return
	}
	if b.read > 0 && need-b.read <= cap(b.data) {
		b.Compact()
		return
	}
	c := cap(b.data)
	if c == 0 {
		c = InitialCapacity
	}
	for c < need-b.read {
		c *= 2
	}
	data := make([]byte, len(b.data)-b.read, c)
	copy(data, b.data[b.read:])
	b.data = data
	b.read = 0
}

// Package mmap maps input files into memory so the runner can read them
// without copying through a read buffer.
package mmap

import (
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// Reader serves a memory-mapped file as an io.Reader. Reads copy out of the
// mapping and advise the kernel to prefetch the pages that follow.
type Reader struct {
	file     *os.File
	data     []byte
	mapped   bool
	offset   int64
	pageSize int

	// Prefetch control
	prefetchDistance int64

	// Stats
	bytesRead int64
	pagesRead int64

	mu sync.Mutex
}

// NewReader maps filename read-only. Empty files yield a reader that is
// immediately at EOF.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file")
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file")
	}
	if !stat.Mode().IsRegular() {
		file.Close()
		return nil, errors.Newf(errors.ErrorTypeFile, "%s is not a regular file", filename)
	}

	pageSize := os.Getpagesize()
	r := &Reader{
		file:             file,
		pageSize:         pageSize,
		prefetchDistance: 16 * int64(pageSize),
	}
	if stat.Size() == 0 {
		return r, nil
	}

	data, mapped, err := mapFile(file, int(stat.Size()))
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to mmap file")
	}
	r.data = data
	r.mapped = mapped
	if mapped {
		_ = madvise(data, MadvSequential)
	}
	return r, nil
}

// Size returns the mapped length.
func (r *Reader) Size() int64 { return int64(len(r.data)) }

// Bytes returns the whole mapping. The slice is invalid after Close.
func (r *Reader) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.offset >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.offset:])
	r.offset += int64(n)
	r.bytesRead += int64(n)
	r.pagesRead += (int64(n) + int64(r.pageSize) - 1) / int64(r.pageSize)

	if r.mapped {
		r.prefetchRange(r.offset, r.offset+r.prefetchDistance)
	}
	return n, nil
}

// ReadRange returns a slice of the mapping without advancing the reader.
func (r *Reader) ReadRange(offset, length int64) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := int64(len(r.data))
	if offset < 0 || offset >= size {
		return nil, errors.Newf(errors.ErrorTypeValidation, "offset %d out of range [0, %d)", offset, size)
	}
	end := offset + length
	if end > size {
		end = size
	}
	return r.data[offset:end], nil
}

// prefetchRange advises the kernel to page in [start, end).
func (r *Reader) prefetchRange(start, end int64) {
	size := int64(len(r.data))
	startPage := (start / int64(r.pageSize)) * int64(r.pageSize)
	endPage := ((end + int64(r.pageSize) - 1) / int64(r.pageSize)) * int64(r.pageSize)
	if endPage > size {
		endPage = size
	}
	if endPage <= startPage {
		return
	}
	_ = madvise(r.data[startPage:endPage], MadvWillneed)
}

// Close unmaps the file and closes it.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.data != nil && r.mapped {
		err = munmap(r.data)
	}
	r.data = nil

	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}

// Stats returns bytes and pages handed out so far.
func (r *Reader) Stats() (bytesRead, pagesRead int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytesRead, r.pagesRead
}

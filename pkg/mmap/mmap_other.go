//go:build !linux && !darwin

package mmap

import (
	"io"
	"os"
)

// mapFile reads the file into memory where mmap is unavailable.
func mapFile(f *os.File, length int) ([]byte, bool, error) {
	data := make([]byte, length)
	_, err := io.ReadFull(f, data)
	return data, false, err
}

func munmap([]byte) error { return nil }

func madvise([]byte, int) error { return nil }

const (
	MadvSequential = 0
	MadvWillneed   = 0
)

package pool

import "unsafe"

const (
	// DefaultArenaBlockSize is the block size used when NewArena is given 0.
	DefaultArenaBlockSize = 64 * 1024

	arenaAlign = 8
)

// Arena is a bump allocator made of linked fixed-size blocks. Allocations are
// zeroed, 8-byte aligned and never straddle two blocks. Memory is released in
// bulk through Reset or Free; there is no per-allocation free.
//
// An Arena is owned by exactly one batch and is not safe for concurrent use.
type Arena struct {
	blockSize int
	blocks    [][]byte
	offset    int // bump offset in blocks[len(blocks)-1]
	oversize  [][]byte
	used      int64
}

// ArenaStats describes the current footprint of an arena.
type ArenaStats struct {
	Blocks   int
	Used     int64
	Reserved int64
}

// NewArena creates an arena whose regular blocks hold blockSize bytes.
func NewArena(blockSize int) *Arena {
	if blockSize <= 0 {
		blockSize = DefaultArenaBlockSize
	}
	return &Arena{blockSize: blockSize}
}

// Alloc returns n zeroed bytes owned by the arena.
// A request larger than the block size gets a dedicated block.
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	a.used += int64(n)

	if n > a.blockSize {
		block := make([]byte, n)
		a.oversize = append(a.oversize, block)
		return block
	}

	start := (a.offset + arenaAlign - 1) &^ (arenaAlign - 1)
	if len(a.blocks) == 0 || start+n > a.blockSize {
		a.blocks = append(a.blocks, make([]byte, a.blockSize))
		start = 0
	}
	a.offset = start + n

	block := a.blocks[len(a.blocks)-1]
	return block[start:a.offset:a.offset]
}

// AllocString copies s into arena memory and returns a string backed by it.
func (a *Arena) AllocString(s string) string {
	if len(s) == 0 {
		return ""
	}
	b := a.Alloc(len(s))
	copy(b, s)
	return unsafe.String(&b[0], len(b))
}

// Reset releases every block except the first and zeroes the first block's
// used region so it can be reused.
func (a *Arena) Reset() {
	if len(a.blocks) > 0 {
		first := a.blocks[0]
		if len(a.blocks) == 1 {
			clear(first[:a.offset])
		} else {
			clear(first)
		}
		for i := 1; i < len(a.blocks); i++ {
			a.blocks[i] = nil
		}
		a.blocks = a.blocks[:1]
	}
	a.offset = 0
	a.oversize = nil
	a.used = 0
}

// Free releases all memory. The arena stays usable and allocates from a
// fresh block on the next Alloc.
func (a *Arena) Free() {
	a.blocks = nil
	a.oversize = nil
	a.offset = 0
	a.used = 0
}

// Stats reports block count, bytes handed out and bytes reserved.
func (a *Arena) Stats() ArenaStats {
	reserved := int64(len(a.blocks)) * int64(a.blockSize)
	for _, b := range a.oversize {
		reserved += int64(len(b))
	}
	return ArenaStats{
		Blocks:   len(a.blocks) + len(a.oversize),
		Used:     a.used,
		Reserved: reserved,
	}
}

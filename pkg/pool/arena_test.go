package pool

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_AllocAligned(t *testing.T) {
	a := NewArena(0)
	defer a.Free()

	first := a.Alloc(3)
	second := a.Alloc(8)
	require.Len(t, first, 3)
	require.Len(t, second, 8)

	base := uintptr(unsafe.Pointer(&a.blocks[0][0]))
	p := uintptr(unsafe.Pointer(&second[0]))
	assert.Zero(t, (p-base)%arenaAlign)
	assert.Equal(t, uintptr(8), p-base)
}

func TestArena_AllocZeroed(t *testing.T) {
	a := NewArena(64)
	b := a.Alloc(16)
	for i := range b {
		b[i] = 0xff
	}
	a.Reset()

	again := a.Alloc(16)
	for _, c := range again {
		require.Zero(t, c)
	}
}

func TestArena_NewBlockWhenExhausted(t *testing.T) {
	a := NewArena(64)
	a.Alloc(60)
	a.Alloc(16)

	stats := a.Stats()
	assert.Equal(t, 2, stats.Blocks)
	assert.Equal(t, int64(76), stats.Used)
	assert.Equal(t, int64(128), stats.Reserved)
}

func TestArena_Oversize(t *testing.T) {
	a := NewArena(64)
	a.Alloc(8)
	big := a.Alloc(1000)
	require.Len(t, big, 1000)

	// regular block is still the bump target
	next := a.Alloc(8)
	assert.Equal(t, uintptr(unsafe.Pointer(&a.blocks[0][8])), uintptr(unsafe.Pointer(&next[0])))
	assert.Equal(t, int64(64+1000), a.Stats().Reserved)
}

func TestArena_ResetKeepsFirstBlock(t *testing.T) {
	a := NewArena(32)
	for i := 0; i < 10; i++ {
		a.Alloc(24)
	}
	a.Alloc(100)
	require.Greater(t, a.Stats().Blocks, 2)

	a.Reset()
	stats := a.Stats()
	assert.Equal(t, 1, stats.Blocks)
	assert.Equal(t, int64(0), stats.Used)
}

func TestArena_AllocString(t *testing.T) {
	a := NewArena(0)
	src := []byte("payload")
	s := a.AllocString(string(src))
	copy(src, "XXXXXXX")

	assert.Equal(t, "payload", s)
	assert.Equal(t, "", a.AllocString(""))
}

func TestArena_UseAfterFree(t *testing.T) {
	a := NewArena(0)
	a.AllocString("x")
	a.Free()

	assert.Equal(t, "y", a.AllocString("y"))
	assert.Equal(t, 1, a.Stats().Blocks)
}

func TestBufferPool_Get(t *testing.T) {
	bp := NewBufferPool()

	small := bp.Get(100)
	assert.Len(t, small, 100)
	assert.Equal(t, 4096, cap(small))

	huge := bp.Get(8 << 20)
	assert.Len(t, huge, 8<<20)
	bp.Put(huge)
	bp.Put(small)
}

func TestPool_Stats(t *testing.T) {
	p := New(func() *int { return new(int) }, func(v *int) { *v = 0 })

	v := p.Get()
	*v = 7
	p.Put(v)

	allocated, inUse, hits := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, int64(0), inUse)
	assert.Equal(t, int64(1), hits)
}

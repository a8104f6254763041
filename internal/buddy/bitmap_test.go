package buddy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_BitIndexMapping(t *testing.T) {
	h := newTestHeap(t, 64, 16)
	require.Equal(t, 3, h.Lists())

	// Root, its halves, and the last leaf.
	require.Equal(t, 1, h.bitIndex(0, 0))
	require.Equal(t, 2, h.bitIndex(0, 1))
	require.Equal(t, 3, h.bitIndex(32, 1))
	require.Equal(t, 4, h.bitIndex(0, 2))
	require.Equal(t, 7, h.bitIndex(48, 2))
}

func Test_BitIndexAsserts(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	require.Panics(t, func() { h.bitIndex(0, -1) })
	require.Panics(t, func() { h.bitIndex(0, h.Lists()) })
	// Offset 16 is not a block boundary at list 1 (width 32).
	require.Panics(t, func() { h.bitIndex(16, 1) })
}

func Test_SetClearAsserts(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	// The seed already set the root present bit.
	require.Panics(t, func() { h.setBit(0, 0, h.bittable) })
	// Clearing a clear bit is a double free in disguise.
	require.Panics(t, func() { h.clearBit(0, 2, h.bittable) })
}

func Test_ListOfWalksUp(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	// Seed: the root block starts at offset 0 and owns the arena.
	require.Equal(t, 0, h.listOf(0))

	off, ok := h.Alloc(16)
	require.True(t, ok)
	require.Equal(t, 0, off)

	// After the split: leaf blocks at list 2, the untouched half at list 1.
	// listOf is defined on block-start offsets only.
	require.Equal(t, 2, h.listOf(0))
	require.Equal(t, 2, h.listOf(16))
	require.Equal(t, 1, h.listOf(32))

	h.Free(off)
	require.Equal(t, 0, h.listOf(0))
}

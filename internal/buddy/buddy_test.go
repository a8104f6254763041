package buddy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// Test_TinyArenaSplitCoalesce walks a two-class heap (32-byte arena, two
// 16-byte leaves) through the full split / exhaust / coalesce cycle.
func Test_TinyArenaSplitCoalesce(t *testing.T) {
	h := newTestHeap(t, 32, 16)

	p, ok := h.Alloc(16)
	require.True(t, ok)
	require.Equal(t, 0, p)
	require.Equal(t, 16, h.ActualSize(p))
	require.True(t, h.testBit(p, 1, h.bitmalloc))
	require.Equal(t, []int{16}, offsets(h, 1))
	require.Equal(t, 16, h.UsedBytes())
	require.NoError(t, h.CheckInvariants())

	q, ok := h.Alloc(16)
	require.True(t, ok)
	require.Equal(t, 16, q)
	require.Equal(t, 32, h.UsedBytes())
	require.Empty(t, offsets(h, 0))
	require.Empty(t, offsets(h, 1))
	require.NoError(t, h.CheckInvariants())

	// Heap full for this width.
	_, ok = h.Alloc(16)
	require.False(t, ok)

	// Freeing p alone cannot coalesce; its buddy is still handed out.
	h.Free(p)
	require.Equal(t, []int{0}, offsets(h, 1))
	require.Empty(t, offsets(h, 0))
	require.NoError(t, h.CheckInvariants())

	// Freeing q merges both halves back into the whole arena.
	h.Free(q)
	require.Equal(t, []int{0}, offsets(h, 0))
	require.Empty(t, offsets(h, 1))
	require.Zero(t, h.UsedBytes())
	require.NoError(t, h.CheckInvariants())
}

// Test_AllocationOrderDeterministic pins the low-half-first discipline:
// sequential allocations come out at increasing addresses.
func Test_AllocationOrderDeterministic(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	a, ok := h.Alloc(16)
	require.True(t, ok)
	b, ok := h.Alloc(16)
	require.True(t, ok)
	c, ok := h.Alloc(32)
	require.True(t, ok)
	require.Equal(t, []int{0, 16, 32}, []int{a, b, c})

	h.Free(c)
	h.Free(b)
	h.Free(a)

	require.Equal(t, []int{0}, offsets(h, 0))
	require.Empty(t, offsets(h, 1))
	require.Empty(t, offsets(h, 2))
	require.NoError(t, h.CheckInvariants())
}

func Test_AllocZeroIsMinWidthRequest(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	off, ok := h.Alloc(0)
	require.True(t, ok)
	require.Equal(t, h.MinSize(), h.ActualSize(off))
	h.Free(off)
}

func Test_AllocWholeArena(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	off, ok := h.Alloc(64)
	require.True(t, ok)
	require.Equal(t, 0, off)
	require.Equal(t, 64, h.ActualSize(off))

	// Nothing left at any width.
	_, ok = h.Alloc(16)
	require.False(t, ok)

	h.Free(off)

	// A pristine heap hands the same block back every time.
	for i := 0; i < 3; i++ {
		off, ok = h.Alloc(64)
		require.True(t, ok)
		require.Equal(t, 0, off)
		h.Free(off)
	}
}

func Test_AllocOversized(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	_, ok := h.Alloc(65)
	require.False(t, ok)
	_, ok = h.Alloc(1 << 20)
	require.False(t, ok)

	// Failed allocations leave no trace.
	require.NoError(t, h.CheckInvariants())
	require.Equal(t, []int{0}, offsets(h, 0))
}

func Test_ActualSizeRoundsToClass(t *testing.T) {
	h := newTestHeap(t, 1024, 16)

	for _, n := range []int{1, 15, 16, 17, 100, 512, 513, 1024} {
		off, ok := h.Alloc(n)
		require.True(t, ok, "alloc %d", n)
		actual := h.ActualSize(off)
		require.GreaterOrEqual(t, actual, n)
		if n > h.MinSize() {
			require.Less(t, actual, 2*n, "class width for %d", n)
		} else {
			require.Equal(t, h.MinSize(), actual)
		}
		h.Free(off)
	}
}

func Test_DoubleFreePanics(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	off, ok := h.Alloc(16)
	require.True(t, ok)
	h.Free(off)
	require.Panics(t, func() { h.Free(off) })
}

func Test_FreeMisalignedPanics(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	off, ok := h.Alloc(16)
	require.True(t, ok)
	require.Equal(t, 0, off)
	require.Panics(t, func() { h.Free(off + 8) })
	h.Free(off)
}

func Test_Stats(t *testing.T) {
	h := newTestHeap(t, 64, 16)

	a, _ := h.Alloc(16) // splits 64->32->16
	b, _ := h.Alloc(32)
	_, full := h.Alloc(64)
	require.False(t, full)
	h.Free(a)
	h.Free(b) // coalesces all the way back up

	s := h.Stats()
	require.Equal(t, uint64(2), s.Allocs)
	require.Equal(t, uint64(1), s.FailedAllocs)
	require.Equal(t, uint64(2), s.Frees)
	require.Equal(t, uint64(2), s.Splits)
	require.Equal(t, uint64(2), s.Coalesces)
}

// Test_RoundTripRandomised churns a small heap and checks the coalescing
// fixpoint: once everything is freed, the heap is back to its seed state.
func Test_RoundTripRandomised(t *testing.T) {
	h := newTestHeap(t, 1024, 16)
	rng := rand.New(rand.NewSource(1))

	live := make(map[int]int) // offset -> size class width
	for i := 0; i < 2000; i++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			n := 1 << rng.Intn(9) // 1..256
			if off, ok := h.Alloc(n); ok {
				require.NotContains(t, live, off)
				live[off] = h.ActualSize(off)
			}
		} else {
			for off := range live { // map order is as good a shuffle as any
				h.Free(off)
				delete(live, off)
				break
			}
		}
		if i%64 == 0 {
			require.NoError(t, h.CheckInvariants())
		}
	}

	for off := range live {
		h.Free(off)
	}
	require.NoError(t, h.CheckInvariants())
	require.Zero(t, h.UsedBytes())
	require.Equal(t, []int{0}, offsets(h, 0))
	for list := 1; list < h.Lists(); list++ {
		require.Empty(t, offsets(h, list))
	}
}

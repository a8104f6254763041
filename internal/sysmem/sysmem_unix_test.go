//go:build unix

package sysmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_PageSize(t *testing.T) {
	page := PageSize()
	require.Positive(t, page)
	require.Zero(t, page&(page-1), "page size should be a power of two")
}

func Test_MapArenaLayout(t *testing.T) {
	const size = 1 << 12
	m, err := MapArena(size)
	require.NoError(t, err)
	defer m.Unmap()

	arena := m.Arena()
	require.Len(t, arena, size)
	require.Equal(t, m.Page()+pageAlign(size, m.Page())+m.Page(), m.Size())

	// Fresh anonymous memory reads zero and is writable end to end.
	for i := 0; i < size; i += 997 {
		require.Zero(t, arena[i])
	}
	arena[0] = 0xAA
	arena[size-1] = 0xBB
	require.Equal(t, byte(0xAA), arena[0])
	require.Equal(t, byte(0xBB), arena[size-1])
}

func Test_MapArenaSubPage(t *testing.T) {
	// Arenas smaller than a page still get both guards; the trailing guard
	// lands on the page-rounded end of the arena.
	m, err := MapArena(32)
	require.NoError(t, err)
	defer m.Unmap()

	require.Len(t, m.Arena(), 32)
	require.Equal(t, 3*m.Page(), m.Size())
	require.NoError(t, m.InstallGuards())

	// The arena window must stay usable after the guards go in.
	arena := m.Arena()
	arena[31] = 0x7F
	require.Equal(t, byte(0x7F), arena[31])
}

func Test_InstallGuards(t *testing.T) {
	m, err := MapArena(1 << 12)
	require.NoError(t, err)
	defer m.Unmap()

	require.NoError(t, m.InstallGuards())
}

func Test_UnmapIdempotent(t *testing.T) {
	m, err := MapArena(1 << 12)
	require.NoError(t, err)

	require.NoError(t, m.Unmap())
	require.NoError(t, m.Unmap())
}

func Test_AdvisoryHardening(t *testing.T) {
	m, err := MapArena(1 << 12)
	require.NoError(t, err)
	defer m.Unmap()
	arena := m.Arena()

	// These may fail under rlimits or old kernels; they must not wedge the
	// mapping either way.
	if err := Lock(arena); err != nil {
		t.Logf("mlock: %v", err)
	}
	if err := ExcludeFromDump(arena); err != nil {
		t.Logf("madvise dontdump: %v", err)
	}
	if err := WipeOnFork(arena); err != nil {
		t.Logf("madvise wipeonfork: %v", err)
	}

	arena[0] = 1
	require.Equal(t, byte(1), arena[0])
}

func Test_Cleanse(t *testing.T) {
	b := make([]byte, 257)
	for i := range b {
		b[i] = byte(i | 1)
	}
	Cleanse(b)
	for i := range b {
		require.Zero(t, b[i])
	}

	Cleanse(nil) // must not panic
}

package secheap

import (
	"sync/atomic"

	"github.com/joshuapare/secheap/internal/sysmem"
)

// Init return codes, matching the contract of the C-era secure heap: many
// existing callers check only for non-zero, so partial hardening must stay
// a distinct truthy value.
const (
	// InitFailed means the heap could not be built (or one already exists).
	InitFailed = 0
	// InitOK means the heap is live with every hardening measure in effect.
	InitOK = 1
	// InitPartial means the heap is live but guards, locking or dump
	// exclusion failed; details are in the Hardening report.
	InitPartial = 2
)

// std is the process-default heap. A one-shot pointer swap keeps
// Initialized and the fallback branches lock-free.
var std atomic.Pointer[Heap]

// Default returns the process-default heap, or nil before Init.
func Default() *Heap {
	return std.Load()
}

// Init installs the process-default heap. Idempotent: a second call while a
// heap is installed is a no-op returning InitFailed, leaving the existing
// heap untouched.
func Init(size, minsize int) int {
	if std.Load() != nil {
		return InitFailed
	}
	h, err := New(size, minsize)
	if err != nil {
		return InitFailed
	}
	if !std.CompareAndSwap(nil, h) {
		// Lost the race to another initialiser; drain the spare.
		_ = h.Close()
		return InitFailed
	}
	if h.Hardening().Partial() {
		return InitPartial
	}
	return InitOK
}

// Initialized reports whether the process-default heap is installed.
func Initialized() bool {
	return std.Load() != nil
}

// Done tears the process-default heap down. It fails, leaving the heap
// live, while allocations are outstanding. With no heap installed there is
// nothing outstanding and Done succeeds trivially.
func Done() bool {
	h := std.Load()
	if h == nil {
		return true
	}
	if h.Close() != nil {
		return false
	}
	std.CompareAndSwap(h, nil)
	return true
}

// Malloc allocates n bytes from the process-default heap, or from the Go
// heap before Init. Returns nil when the secure heap is full.
func Malloc(n int) []byte {
	if h := std.Load(); h != nil {
		return h.Malloc(n)
	}
	if n < 0 {
		return nil
	}
	return make([]byte, n)
}

// Zalloc is Malloc with the returned bytes zeroed.
func Zalloc(n int) []byte {
	buf := Malloc(n)
	if buf != nil {
		clear(buf)
	}
	return buf
}

// Free returns buf to the process-default heap; arena blocks are cleansed
// over their full class width first. Foreign slices are left to the garbage
// collector. Freeing nil is a no-op.
func Free(buf []byte) {
	if h := std.Load(); h != nil {
		h.Free(buf)
	}
}

// ClearFree is Free that also wipes non-arena memory: the first n bytes of
// a foreign slice are cleansed before the reference is dropped.
func ClearFree(buf []byte, n int) {
	if h := std.Load(); h != nil {
		h.ClearFree(buf, n)
		return
	}
	if buf != nil && n >= 0 {
		sysmem.Cleanse(buf[:min(n, cap(buf))])
	}
}

// Allocated reports whether buf points into the process-default arena.
func Allocated(buf []byte) bool {
	h := std.Load()
	return h != nil && h.Allocated(buf)
}

// Used returns the class-width bytes currently handed out from the
// process-default heap.
func Used() uint64 {
	if h := std.Load(); h != nil {
		return h.Used()
	}
	return 0
}

// ActualSize returns the class width backing buf, or 0 for foreign slices.
func ActualSize(buf []byte) int {
	if h := std.Load(); h != nil {
		return h.ActualSize(buf)
	}
	return 0
}

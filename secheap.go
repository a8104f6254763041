package secheap

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/secheap/internal/buddy"
	"github.com/joshuapare/secheap/internal/sysmem"
)

// Runtime trace flag for allocation logging - controlled by SECHEAP_TRACE env var.
var traceAlloc = os.Getenv("SECHEAP_TRACE") != ""

var logger atomic.Pointer[slog.Logger]

// SetLogger replaces the logger used for hardening warnings and allocation
// tracing. The default is slog.Default.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func log() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// Hardening records the outcome of each advisory hardening measure taken
// when the heap was built. A nil field means the measure is in effect.
type Hardening struct {
	Guards     error // guard pages remapped PROT_NONE
	Lock       error // arena locked resident
	NoDump     error // arena excluded from core dumps
	WipeOnFork error // arena zeroed in forked children; informational only
}

// Partial reports whether any measure covered by the 0/1/2 init contract
// failed. WipeOnFork is excluded: older kernels reject it routinely and it
// postdates that contract.
func (hd Hardening) Partial() bool {
	return hd.Guards != nil || hd.Lock != nil || hd.NoDump != nil
}

// Stats counts heap operations since the heap was built.
type Stats struct {
	Allocs       uint64 // successful allocations
	FailedAllocs uint64 // allocations that found the heap full
	Frees        uint64 // blocks returned
	Splits       uint64 // block splits while allocating
	Coalesces    uint64 // buddy merges while freeing
}

// Heap is one secure arena. Handles are independent; a process may hold
// several. The zero value is not usable, build heaps with New.
type Heap struct {
	mu        sync.RWMutex
	eng       *buddy.Heap // nil once drained by Close
	hardening Hardening
	used      atomic.Uint64
}

// New maps and hardens an arena of size bytes with blocks of at least
// minsize bytes. Both must be powers of two; minsize is raised internally
// until a free-list link node fits in a block. Advisory hardening failures
// do not fail construction; they are recorded in the Hardening report and
// logged as warnings.
func New(size, minsize int) (*Heap, error) {
	eng, err := buddy.New(size, minsize)
	if err != nil {
		return nil, err
	}

	hd := eng.Hardening()
	h := &Heap{
		eng: eng,
		hardening: Hardening{
			Guards:     hd.Guards,
			Lock:       hd.Lock,
			NoDump:     hd.NoDump,
			WipeOnFork: hd.WipeOnFork,
		},
	}
	for _, m := range []struct {
		name string
		err  error
	}{
		{"guard-pages", hd.Guards},
		{"mlock", hd.Lock},
		{"no-coredump", hd.NoDump},
		{"wipe-on-fork", hd.WipeOnFork},
	} {
		if m.err != nil {
			log().Warn("secheap: hardening degraded", "measure", m.name, "err", m.err)
		}
	}
	return h, nil
}

// Hardening returns the advisory-hardening report recorded at construction.
func (h *Heap) Hardening() Hardening {
	return h.hardening
}

// Malloc returns a slice of n bytes backed by the arena, or nil when no
// block of sufficient width is free. A request of zero bytes reserves a
// minimum-width block. Once the heap has been drained by Close, Malloc
// serves ordinary Go-heap memory instead.
func (h *Heap) Malloc(n int) []byte {
	if n < 0 {
		return nil
	}

	h.mu.Lock()
	if h.eng == nil {
		h.mu.Unlock()
		return make([]byte, n)
	}
	off, ok := h.eng.Alloc(n)
	if !ok {
		h.mu.Unlock()
		return nil
	}
	actual := h.eng.ActualSize(off)
	h.used.Add(uint64(actual))
	buf := h.eng.Arena()[off : off+n : off+actual]
	h.mu.Unlock()

	if traceAlloc {
		log().Debug("secheap: malloc", "n", n, "actual", actual, "caller", callsite(2))
	}
	return buf
}

// Zalloc is Malloc with the returned bytes zeroed. The zeroing here is a
// convenience for callers; the security-relevant wipe happens on free.
func (h *Heap) Zalloc(n int) []byte {
	buf := h.Malloc(n)
	if buf != nil {
		clear(buf)
	}
	return buf
}

// Free returns buf to the heap. The full class width of the block is
// cleansed before the block rejoins the free pool. Slices that do not point
// into the arena are left to the garbage collector; a nil buf is a no-op.
// buf must be the slice Malloc returned, not a sub-slice of it.
func (h *Heap) Free(buf []byte) {
	h.release(buf, -1)
}

// ClearFree is Free for callers that must also wipe Go-heap fallback
// memory: when buf is not an arena block its first n bytes are cleansed
// before the reference is dropped. Arena blocks are cleansed over their
// full class width exactly as in Free.
func (h *Heap) ClearFree(buf []byte, n int) {
	h.release(buf, n)
}

// release implements Free (wipe < 0) and ClearFree (wipe = caller length).
func (h *Heap) release(buf []byte, wipe int) {
	if buf == nil {
		return
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))

	h.mu.Lock()
	if h.eng == nil || !h.eng.ContainsAddr(addr) {
		h.mu.Unlock()
		if wipe >= 0 {
			sysmem.Cleanse(buf[:min(wipe, cap(buf))])
		}
		return
	}

	off := h.eng.OffsetOfAddr(addr)
	actual := h.eng.ActualSize(off)
	sysmem.Cleanse(h.eng.Arena()[off : off+actual])
	h.used.Add(^uint64(actual - 1))
	h.eng.Free(off)
	h.mu.Unlock()

	if traceAlloc {
		log().Debug("secheap: free", "actual", actual, "caller", callsite(3))
	}
}

// Allocated reports whether buf points into the arena. This is a residency
// predicate - it distinguishes arena blocks from ordinary Go-heap slices,
// not whether the block is currently handed out.
func (h *Heap) Allocated(buf []byte) bool {
	if buf == nil {
		return false
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eng != nil && h.eng.ContainsAddr(addr)
}

// ActualSize returns the width of the size class buf was handed out from,
// always at least the requested length. Returns 0 for slices outside the
// arena.
func (h *Heap) ActualSize(buf []byte) int {
	if buf == nil {
		return 0
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.eng == nil || !h.eng.ContainsAddr(addr) {
		return 0
	}
	return h.eng.ActualSize(h.eng.OffsetOfAddr(addr))
}

// Size returns the arena width in bytes, or 0 once the heap is drained.
func (h *Heap) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.eng == nil {
		return 0
	}
	return h.eng.ArenaSize()
}

// MinSize returns the effective minimum block size, after the internal
// raise that makes room for a free-list link node.
func (h *Heap) MinSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.eng == nil {
		return 0
	}
	return h.eng.MinSize()
}

// Classes returns the number of size classes, from the whole arena down to
// MinSize-wide blocks.
func (h *Heap) Classes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.eng == nil {
		return 0
	}
	return h.eng.Lists()
}

// Used returns the total class-width bytes currently handed out. It reads a
// single counter without the heap lock; under concurrent mutation it is a
// statistics snapshot.
func (h *Heap) Used() uint64 {
	return h.used.Load()
}

// Stats returns a snapshot of the heap's operation counters.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.eng == nil {
		return Stats{}
	}
	s := h.eng.Stats()
	return Stats{
		Allocs:       s.Allocs,
		FailedAllocs: s.FailedAllocs,
		Frees:        s.Frees,
		Splits:       s.Splits,
		Coalesces:    s.Coalesces,
	}
}

// Close tears the heap down: bookkeeping freed, arena unmapped. It refuses
// with ErrHeapBusy while allocations are outstanding. Closing an already
// drained heap is a no-op; a drained heap serves Go-heap memory until a new
// one is built.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.eng == nil {
		return nil
	}
	if h.used.Load() != 0 {
		return ErrHeapBusy
	}
	h.eng.Done()
	h.eng = nil
	return nil
}

// callsite names the caller skip frames above us, for trace parity with
// allocators that take explicit file/line arguments.
func callsite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "?"
	}
	return file + ":" + strconv.Itoa(line)
}

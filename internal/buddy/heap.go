package buddy

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/joshuapare/secheap/internal/sysmem"
)

// Heap is the engine state for one arena. All fields are owned by the engine
// and mutated only through its methods; the façade serialises access.
type Heap struct {
	mapping *sysmem.Mapping
	arena   []byte  // window between the guard pages
	base    uintptr // address of arena[0]

	arenaSize int
	minsize   int

	freelist  []*listNode // head per size class, index 0 = whole arena
	bittable  []byte      // present: block exists at this class
	bitmalloc []byte      // allocated: block is handed out
	bitsTotal int         // bit positions in each table

	hardening Hardening
	stats     Stats
}

// Hardening records the outcome of each advisory hardening measure taken at
// init. A nil field means the measure is in effect.
type Hardening struct {
	Guards     error // guard pages remapped PROT_NONE
	Lock       error // arena locked resident
	NoDump     error // arena excluded from core dumps
	WipeOnFork error // arena zeroed in forked children; informational only
}

// Partial reports whether any measure the 0/1/2 init contract covers failed.
// WipeOnFork is deliberately excluded: it postdates that contract and older
// kernels reject it routinely.
func (hd Hardening) Partial() bool {
	return hd.Guards != nil || hd.Lock != nil || hd.NoDump != nil
}

// Stats counts engine operations since init.
type Stats struct {
	Allocs       uint64 // successful Alloc calls
	FailedAllocs uint64 // Alloc calls that found the heap full
	Frees        uint64 // Free calls
	Splits       uint64 // block splits during Alloc
	Coalesces    uint64 // buddy merges during Free
}

// New maps an arena of size bytes, seeds it as one free block, and applies
// the hardening measures. size and minsize must be powers of two; minsize is
// raised until a free-list link node fits in a block.
func New(size, minsize int) (*Heap, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, ErrBadArenaSize
	}
	if minsize <= 0 || minsize&(minsize-1) != 0 {
		return nil, ErrBadMinSize
	}

	for minsize < linkSize {
		minsize *= 2
	}
	if size < minsize {
		return nil, ErrArenaTooSmall
	}

	h := &Heap{
		arenaSize: size,
		minsize:   minsize,
		bitsTotal: size / minsize * 2,
	}
	h.freelist = make([]*listNode, bits.Len(uint(h.bitsTotal))-1)
	h.bittable = make([]byte, (h.bitsTotal+7)>>3)
	h.bitmalloc = make([]byte, (h.bitsTotal+7)>>3)

	m, err := sysmem.MapArena(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	h.mapping = m
	h.arena = m.Arena()
	h.base = uintptr(unsafe.Pointer(unsafe.SliceData(h.arena)))

	// Seed: the whole arena is one free block at list 0.
	h.setBit(0, 0, h.bittable)
	h.pushFree(0, 0)

	h.hardening = Hardening{
		Guards:     m.InstallGuards(),
		Lock:       sysmem.Lock(h.arena),
		NoDump:     sysmem.ExcludeFromDump(h.arena),
		WipeOnFork: sysmem.WipeOnFork(h.arena),
	}
	return h, nil
}

// Done releases the bookkeeping arrays and the mapping. Idempotent; also
// called from the façade's init error path.
func (h *Heap) Done() {
	h.freelist = nil
	h.bittable = nil
	h.bitmalloc = nil
	if h.mapping != nil {
		_ = h.mapping.Unmap()
	}
	*h = Heap{}
}

// Hardening returns the advisory-hardening outcome recorded at init.
func (h *Heap) Hardening() Hardening {
	return h.hardening
}

// Stats returns a snapshot of the engine counters.
func (h *Heap) Stats() Stats {
	return h.stats
}

// ArenaSize returns the arena width in bytes.
func (h *Heap) ArenaSize() int {
	return h.arenaSize
}

// MinSize returns the effective minimum block size after link-node rounding.
func (h *Heap) MinSize() int {
	return h.minsize
}

// Lists returns the number of size classes, list 0 being the whole arena.
func (h *Heap) Lists() int {
	return len(h.freelist)
}

// Arena exposes the arena window for cleansing and slicing by the façade.
func (h *Heap) Arena() []byte {
	return h.arena
}

// ContainsAddr reports whether addr falls inside the arena. This is the
// residency predicate the façade routes on; it says nothing about whether
// the address is currently handed out.
func (h *Heap) ContainsAddr(addr uintptr) bool {
	return h.arena != nil && addr >= h.base && addr < h.base+uintptr(h.arenaSize)
}

// OffsetOfAddr converts an arena address to its byte offset.
func (h *Heap) OffsetOfAddr(addr uintptr) int {
	assert(h.ContainsAddr(addr), "address %#x outside arena", addr)
	return int(addr - h.base)
}

// assert panics on structural-invariant violations. By the time one fires,
// undefined behaviour (double free, stale pointer write) has already
// happened and no recovery can be trusted.
func assert(cond bool, format string, args ...any) {
	if !cond {
		panic("secheap: corrupt heap: " + fmt.Sprintf(format, args...))
	}
}

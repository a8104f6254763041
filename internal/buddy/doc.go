// Package buddy implements the binary buddy allocator behind the secure heap.
//
// # Overview
//
// The heap manages one contiguous power-of-two arena obtained from sysmem.
// The arena is viewed as a binary tree of potential blocks: list 0 is the
// whole arena, list L partitions it into 2^L blocks of arenaSize>>L bytes,
// down to blocks of minsize bytes. Allocation splits a larger free block
// down to the requested class; freeing pushes the block back and coalesces
// with its buddy for as long as the buddy is also free.
//
// # Bookkeeping
//
// All bookkeeping lives outside the arena so that the arena carries caller
// data only:
//
//   - bittable: one bit per potential block, set iff the block currently
//     exists at that size class (free or handed out)
//   - bitmalloc: set iff the block exists and is handed out
//   - freelist: per-class head pointers of doubly-linked lists threaded
//     through the free blocks themselves
//
// The only in-arena bookkeeping is the {next, pNext} link node occupying the
// first bytes of each free block, which is why minsize is raised until a
// link node fits.
//
// # Failure model
//
// A full heap is a normal condition and reported by Alloc's ok result.
// A violated structural invariant (double free, bitmap/free-list mismatch,
// write through a stale pointer) means undefined behaviour already happened;
// the engine panics rather than compute garbage from corrupt state.
//
// # Thread safety
//
// The engine is not thread-safe. The secheap façade serialises every call
// under its heap lock.
package buddy

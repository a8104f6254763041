// Package secheap is a secure-heap allocator for short-lived secrets such as
// keys and intermediate cryptographic state.
//
// # Overview
//
// The heap is a binary buddy allocator over a single fixed power-of-two
// arena obtained directly from the kernel, hardened three ways beyond an
// ordinary allocator:
//
//   - the arena is locked resident (never paged to swap) and excluded from
//     core dumps
//   - unmapped guard pages flank the arena, so pointer overruns and
//     underruns fault synchronously instead of corrupting neighbours
//   - freed blocks are zeroised before returning to the free pool, so a
//     reader of recycled memory sees zeros rather than stale keys
//
// All bookkeeping (free lists, occupancy bitmaps) lives outside the arena;
// the arena carries caller data only.
//
// # Usage
//
// Most programs use the process-default heap:
//
//	if secheap.Init(1<<16, 64) == 0 {
//	    // heap unavailable, allocations fall back to the Go heap
//	}
//
//	key := secheap.Malloc(32)
//	defer secheap.Free(key)
//
// Init returns 1 on full success, 2 when the heap works but one of the
// advisory hardening measures (guards, locking, dump exclusion) failed, and
// 0 on hard failure. Programs that need several independent arenas build
// their own handles with New.
//
// # Fallback behaviour
//
// Before Init succeeds (and after Done), Malloc serves ordinary Go-heap
// memory so callers never have to special-case an uninitialised heap.
// Free and ClearFree route on the pointer: arena blocks are cleansed over
// their full class width and returned to the buddy engine, foreign slices
// are left to the garbage collector (ClearFree wipes them first).
//
// # Concurrency
//
// Every structural operation runs under a single per-heap write lock.
// Used is a lock-free snapshot. Heap handles are safe for concurrent use.
//
// # Failure model
//
// A full heap returns nil from Malloc; that is a normal condition. A
// structural-invariant violation (double free, write through a dangling
// pointer that crossed the guards) panics: the bookkeeping can no longer be
// trusted and continuing would compute garbage from corrupt state.
package secheap

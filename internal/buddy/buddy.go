package buddy

// Alloc hands out a block of at least size bytes, splitting a larger free
// block down to the target class when needed. ok is false when no free block
// of sufficient width exists; a full heap is a normal condition, not an
// error. A size of zero is a minimum-width request.
func (h *Heap) Alloc(size int) (off int, ok bool) {
	if size > h.arenaSize {
		h.stats.FailedAllocs++
		return 0, false
	}

	// Target class: the largest list whose width still covers size.
	list := len(h.freelist) - 1
	for w := h.minsize; w < size; w <<= 1 {
		list--
	}
	if list < 0 {
		h.stats.FailedAllocs++
		return 0, false
	}

	// Smallest class at or above the target with a free block to split.
	slist := list
	for slist >= 0 && h.freelist[slist] == nil {
		slist--
	}
	if slist < 0 {
		h.stats.FailedAllocs++
		return 0, false
	}

	// Split down. Each round removes the head of the bigger list and pushes
	// its two halves onto the next list, high half before low, which leaves
	// the low half at the head. Allocation order is therefore deterministic:
	// addresses come out lowest-first.
	for slist != list {
		t := h.nodeOffset(h.freelist[slist])

		assert(!h.testBit(t, slist, h.bitmalloc), "splitting an allocated block")
		h.clearBit(t, slist, h.bittable)
		h.unlink(t)

		slist++

		buddy := t + h.arenaSize>>slist
		h.setBit(buddy, slist, h.bittable)
		h.pushFree(slist, buddy)

		h.setBit(t, slist, h.bittable)
		h.pushFree(slist, t)
		h.stats.Splits++
	}

	// Hand back the head: the most recently pushed block, which keeps fresh
	// buddies adjacent for later coalescing.
	off = h.nodeOffset(h.freelist[list])
	assert(h.testBit(off, list, h.bittable), "free list head not present")
	h.setBit(off, list, h.bitmalloc)
	h.unlink(off)

	h.stats.Allocs++
	return off, true
}

// Free returns the block at off to its free list, then walks up the tree
// merging it with its buddy for as long as the buddy is also free.
func (h *Heap) Free(off int) {
	assert(off >= 0 && off < h.arenaSize, "free of offset %#x outside arena", off)

	list := h.listOf(off)
	assert(h.testBit(off, list, h.bittable), "free of absent block at list %d", list)
	h.clearBit(off, list, h.bitmalloc)
	h.pushFree(list, off)

	for {
		buddy, free := h.buddyOf(off, list)
		if !free {
			break
		}
		back, ok := h.buddyOf(buddy, list)
		assert(ok && back == off, "buddy relation not symmetric at list %d", list)

		h.clearBit(off, list, h.bittable)
		h.unlink(off)
		h.clearBit(buddy, list, h.bittable)
		h.unlink(buddy)

		list--
		if buddy < off {
			off = buddy
		}

		h.setBit(off, list, h.bittable)
		h.pushFree(list, off)
		assert(h.freelist[list] == h.node(off), "coalesced block not at list head")
		h.stats.Coalesces++
	}
	h.stats.Frees++
}

// buddyOf locates the sibling of the block at off in class list and reports
// whether it is currently free to merge with.
func (h *Heap) buddyOf(off, list int) (int, bool) {
	bit := 1<<list + off/(h.arenaSize>>list)
	bit ^= 1

	if rawTest(h.bittable, bit) && !rawTest(h.bitmalloc, bit) {
		return (bit & (1<<list - 1)) * (h.arenaSize >> list), true
	}
	return 0, false
}

// ActualSize returns the width of the class the block at off was handed out
// from, always at least the requested size.
func (h *Heap) ActualSize(off int) int {
	assert(off >= 0 && off < h.arenaSize, "actual size of offset %#x outside arena", off)
	list := h.listOf(off)
	assert(h.testBit(off, list, h.bittable), "actual size of absent block")
	return h.arenaSize >> list
}

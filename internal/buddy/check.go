package buddy

import "fmt"

// CheckInvariants sweeps the whole bookkeeping state and reports the first
// violation found. It exists for tests and the selftest command; the engine
// itself guards every mutation with assertions instead.
func (h *Heap) CheckInvariants() error {
	lists := len(h.freelist)

	// Every address is covered by exactly one present block, and a present
	// block never coexists with its children.
	for off := 0; off < h.arenaSize; off += h.minsize {
		covered := 0
		for list := 0; list < lists; list++ {
			width := h.arenaSize >> list
			if rawTest(h.bittable, 1<<list+off/width) {
				covered++
			}
		}
		if covered != 1 {
			return fmt.Errorf("buddy: offset %#x covered by %d present blocks", off, covered)
		}
	}
	for list := 0; list < lists-1; list++ {
		for idx := 0; idx < 1<<list; idx++ {
			bit := 1<<list + idx
			if rawTest(h.bittable, bit) &&
				(rawTest(h.bittable, bit*2) || rawTest(h.bittable, bit*2+1)) {
				return fmt.Errorf("buddy: node %d and one of its children both present", bit)
			}
		}
	}

	// A block can only be handed out if it exists.
	for bit := 1; bit < h.bitsTotal; bit++ {
		if rawTest(h.bitmalloc, bit) && !rawTest(h.bittable, bit) {
			return fmt.Errorf("buddy: bit %d allocated but not present", bit)
		}
	}

	// freelist[L] holds exactly the present, unallocated blocks of class L,
	// with consistent link threading.
	for list := 0; list < lists; list++ {
		width := h.arenaSize >> list
		onList := make(map[int]bool)

		prevSlot := &h.freelist[list]
		for n := h.freelist[list]; n != nil; n = n.next {
			if !h.containsNode(n) {
				return fmt.Errorf("buddy: list %d node outside arena", list)
			}
			off := h.nodeOffset(n)
			if off%width != 0 {
				return fmt.Errorf("buddy: list %d node %#x misaligned", list, off)
			}
			if onList[off] {
				return fmt.Errorf("buddy: list %d node %#x linked twice", list, off)
			}
			onList[off] = true
			if n.pNext != prevSlot {
				return fmt.Errorf("buddy: list %d node %#x back-pointer broken", list, off)
			}
			prevSlot = &n.next
		}

		for idx := 0; idx < 1<<list; idx++ {
			bit := 1<<list + idx
			off := idx * width
			shouldBeFree := rawTest(h.bittable, bit) && !rawTest(h.bitmalloc, bit)
			if shouldBeFree != onList[off] {
				return fmt.Errorf("buddy: list %d block %#x free-list/bitmap disagreement", list, off)
			}
		}
	}
	return nil
}

// UsedBytes sums the widths of all handed-out blocks straight from the
// bitmaps; the façade's tests cross-check its running accumulator against it.
func (h *Heap) UsedBytes() int {
	total := 0
	for list := 0; list < len(h.freelist); list++ {
		width := h.arenaSize >> list
		for idx := 0; idx < 1<<list; idx++ {
			if rawTest(h.bitmalloc, 1<<list+idx) {
				total += width
			}
		}
	}
	return total
}

package buddy

import "unsafe"

// listNode is the intrusive link overlaid on the first bytes of every free
// block. next points at the following free block of the same class; pNext
// points back at whichever slot named this node, either the freelist head
// or the predecessor's next field. Blocks below this size are never handed
// out, so the node never collides with caller data.
type listNode struct {
	next  *listNode
	pNext **listNode
}

const linkSize = int(unsafe.Sizeof(listNode{}))

// node overlays a link node on the free block at off.
func (h *Heap) node(off int) *listNode {
	return (*listNode)(unsafe.Pointer(&h.arena[off]))
}

func (h *Heap) nodeOffset(n *listNode) int {
	return h.OffsetOfAddr(uintptr(unsafe.Pointer(n)))
}

func (h *Heap) containsNode(n *listNode) bool {
	return h.ContainsAddr(uintptr(unsafe.Pointer(n)))
}

// validLinkSlot reports whether p is a place a pNext may legally point: a
// freelist head slot, or a next field inside a free block in the arena.
func (h *Heap) validLinkSlot(p **listNode) bool {
	a := uintptr(unsafe.Pointer(p))
	if h.ContainsAddr(a) {
		return true
	}
	if len(h.freelist) == 0 {
		return false
	}
	heads := uintptr(unsafe.Pointer(&h.freelist[0]))
	return a >= heads && a < heads+uintptr(len(h.freelist))*unsafe.Sizeof((*listNode)(nil))
}

// pushFree inserts the block at off at the head of freelist[list].
func (h *Heap) pushFree(list, off int) {
	head := &h.freelist[list]
	n := h.node(off)

	n.next = *head
	assert(n.next == nil || h.containsNode(n.next), "free list %d head outside arena", list)
	n.pNext = head

	if n.next != nil {
		assert(n.next.pNext == head, "free list %d back-pointer mismatch on push", list)
		n.next.pNext = &n.next
	}
	*head = n
}

// unlink removes the block at off from whichever free list holds it.
func (h *Heap) unlink(off int) {
	n := h.node(off)
	if n.next != nil {
		n.next.pNext = n.pNext
	}
	*n.pNext = n.next
	if n.next == nil {
		return
	}
	assert(h.validLinkSlot(n.next.pNext), "free list back-pointer outside heap after unlink")
}

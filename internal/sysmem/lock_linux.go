//go:build linux

package sysmem

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Lock pins arena pages in physical memory so they never reach swap.
// MLOCK_ONFAULT avoids pre-faulting the whole arena; kernels without
// mlock2 get an unconditional mlock instead. Advisory.
func Lock(arena []byte) error {
	err := unix.Mlock2(arena, unix.MLOCK_ONFAULT)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ENOSYS) {
		return unix.Mlock(arena)
	}
	return err
}

// ExcludeFromDump asks the kernel to omit the arena from core dumps. Advisory.
func ExcludeFromDump(arena []byte) error {
	return unix.Madvise(arena, unix.MADV_DONTDUMP)
}

// WipeOnFork asks the kernel to zero the arena in forked children, so
// fork-based memory dumpers read zeros. Needs kernel 4.14+; older kernels
// reject the advice and the caller carries on without it. Advisory.
func WipeOnFork(arena []byte) error {
	return unix.Madvise(arena, unix.MADV_WIPEONFORK)
}

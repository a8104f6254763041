//go:build unix && !linux

package sysmem

import "golang.org/x/sys/unix"

// Lock pins arena pages in physical memory so they never reach swap. Advisory.
func Lock(arena []byte) error {
	return unix.Mlock(arena)
}

// ExcludeFromDump is a no-op where MADV_DONTDUMP does not exist.
func ExcludeFromDump(arena []byte) error {
	return nil
}

// WipeOnFork is a no-op where MADV_WIPEONFORK does not exist.
func WipeOnFork(arena []byte) error {
	return nil
}

//go:build unix

package sysmem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Mapping is an anonymous private mapping laid out as
//
//	[ guard page | arena (size bytes) | slack to page boundary | guard page ]
//
// The guard pages are part of the mapping but are remapped PROT_NONE by
// InstallGuards, so any linear overrun or underrun out of the arena faults
// synchronously instead of scribbling over neighbouring memory.
type Mapping struct {
	raw  []byte // whole mapping, including both guard pages
	page int
	size int // arena size, power of two
}

// MapArena maps page + size + page bytes of anonymous private memory and
// returns the mapping. size must be a positive power of two. If anonymous
// mapping is unavailable the zero device is mapped privately instead.
func MapArena(size int) (*Mapping, error) {
	page := PageSize()
	mapSize := page + pageAlign(size, page) + page

	raw, err := unix.Mmap(-1, 0, mapSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		raw, err = mapZeroDevice(mapSize)
	}
	if err != nil {
		return nil, fmt.Errorf("sysmem: map %d bytes: %w", mapSize, err)
	}
	return &Mapping{raw: raw, page: page, size: size}, nil
}

func mapZeroDevice(mapSize int) ([]byte, error) {
	fd, err := unix.Open("/dev/zero", unix.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)
	return unix.Mmap(fd, 0, mapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE)
}

// Arena returns the caller-usable window between the guard pages.
func (m *Mapping) Arena() []byte {
	return m.raw[m.page : m.page+m.size]
}

// Size returns the size of the whole mapping, guards included.
func (m *Mapping) Size() int {
	return len(m.raw)
}

// Page returns the page size the mapping was laid out with.
func (m *Mapping) Page() int {
	return m.page
}

// Unmap releases the whole mapping, guards included. Later calls are no-ops.
func (m *Mapping) Unmap() error {
	if m.raw == nil {
		return nil
	}
	err := unix.Munmap(m.raw)
	m.raw = nil
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

// InstallGuards remaps both guard pages PROT_NONE: the leading page, and the
// page that follows the page-rounded end of the arena. Advisory.
func (m *Mapping) InstallGuards() error {
	var errs []error

	// Leading guard is already page aligned from mmap.
	if err := unix.Mprotect(m.raw[:m.page], unix.PROT_NONE); err != nil {
		errs = append(errs, fmt.Errorf("leading guard: %w", err))
	}

	// Trailing guard sits after the arena, rounded up to a page boundary.
	aligned := pageAlign(m.page+m.size, m.page)
	if err := unix.Mprotect(m.raw[aligned:aligned+m.page], unix.PROT_NONE); err != nil {
		errs = append(errs, fmt.Errorf("trailing guard: %w", err))
	}
	return errors.Join(errs...)
}

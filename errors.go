package secheap

import (
	"errors"

	"github.com/joshuapare/secheap/internal/buddy"
)

var (
	// ErrBadArenaSize indicates the arena size is not a positive power of two.
	ErrBadArenaSize = buddy.ErrBadArenaSize

	// ErrBadMinSize indicates the minimum block size is not a positive power of two.
	ErrBadMinSize = buddy.ErrBadMinSize

	// ErrArenaTooSmall indicates the arena cannot hold even one minimum-size block.
	ErrArenaTooSmall = buddy.ErrArenaTooSmall

	// ErrMapFailed indicates the arena mapping could not be obtained.
	ErrMapFailed = buddy.ErrMapFailed

	// ErrHeapBusy indicates a teardown was refused because allocations are
	// still outstanding. The heap stays live.
	ErrHeapBusy = errors.New("secheap: outstanding allocations")
)

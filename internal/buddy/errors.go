package buddy

import "errors"

var (
	// ErrBadArenaSize indicates the arena size is not a positive power of two.
	ErrBadArenaSize = errors.New("buddy: arena size must be a positive power of two")

	// ErrBadMinSize indicates the minimum block size is not a positive power of two.
	ErrBadMinSize = errors.New("buddy: minimum block size must be a positive power of two")

	// ErrArenaTooSmall indicates the arena cannot hold even one minimum-size block.
	ErrArenaTooSmall = errors.New("buddy: arena smaller than one minimum-size block")

	// ErrMapFailed indicates the arena mapping could not be obtained.
	ErrMapFailed = errors.New("buddy: arena mapping failed")
)

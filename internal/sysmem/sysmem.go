// Package sysmem provides the page-level substrate for the secure heap:
// anonymous mappings flanked by guard pages, residency locking, core-dump
// exclusion, and non-elidable zeroisation.
//
// All hardening calls (InstallGuards, Lock, ExcludeFromDump, WipeOnFork) are
// advisory: a failure weakens the heap's guarantees but does not make it
// unusable. Callers decide how loudly to complain.
package sysmem

import "os"

// DefaultPageSize is used when the runtime page-size query yields nothing
// sensible.
const DefaultPageSize = 4096

// PageSize returns the platform page size.
func PageSize() int {
	if n := os.Getpagesize(); n > 0 {
		return n
	}
	return DefaultPageSize
}

// pageAlign rounds n up to the next multiple of page.
func pageAlign(n, page int) int {
	return (n + page - 1) &^ (page - 1)
}

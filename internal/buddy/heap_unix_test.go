//go:build unix

package buddy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_HardeningGuards(t *testing.T) {
	h := newTestHeap(t, 1<<12, 64)

	hd := h.Hardening()
	require.NoError(t, hd.Guards, "mprotect on our own mapping should not fail")

	// mlock and madvise can legitimately fail under rlimits or old
	// kernels; they are advisory, so just record the outcome.
	if hd.Lock != nil {
		t.Logf("mlock degraded: %v", hd.Lock)
	}
	if hd.NoDump != nil {
		t.Logf("dump exclusion degraded: %v", hd.NoDump)
	}
	if hd.WipeOnFork != nil {
		t.Logf("wipe-on-fork degraded: %v", hd.WipeOnFork)
	}
}

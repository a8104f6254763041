package main

import (
	"fmt"

	"github.com/joshuapare/secheap/internal/buddy"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSelftestCmd())
}

func newSelftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run the engine's reference scenarios against a live heap",
		Long: `The selftest command replays the allocator's reference scenarios
(split, exhaustion, coalescing, teardown) on minimal live heaps, sweeping
the full bookkeeping invariants along the way.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest()
		},
	}
}

type scenario struct {
	name string
	run  func() error
}

func runSelftest() error {
	scenarios := []scenario{
		{"two-leaf split and coalesce", scenarioTwoLeaf},
		{"ascending allocation order", scenarioAscending},
		{"whole-arena round trip", scenarioWholeArena},
	}

	failed := 0
	for _, sc := range scenarios {
		if err := sc.run(); err != nil {
			printError("FAIL %s: %v\n", sc.name, err)
			failed++
			continue
		}
		printInfo("ok   %s\n", sc.name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
	}
	return nil
}

// expect wraps a step with the invariant sweep that follows it.
func expect(h *buddy.Heap, cond bool, format string, args ...interface{}) error {
	if !cond {
		return fmt.Errorf(format, args...)
	}
	return h.CheckInvariants()
}

// scenarioTwoLeaf drives the smallest interesting heap: a 32-byte arena with
// two 16-byte leaves. Split on first alloc, full on third, coalesce on the
// second free.
func scenarioTwoLeaf() error {
	h, err := buddy.New(32, 16)
	if err != nil {
		return err
	}
	defer h.Done()

	p, ok := h.Alloc(16)
	if err := expect(h, ok && p == 0, "first alloc: got (%d,%v), want block 0", p, ok); err != nil {
		return err
	}
	if h.ActualSize(p) != 16 {
		return fmt.Errorf("actual size: got %d, want 16", h.ActualSize(p))
	}
	if h.UsedBytes() != 16 {
		return fmt.Errorf("used: got %d, want 16", h.UsedBytes())
	}

	q, ok := h.Alloc(16)
	if err := expect(h, ok && q == 16, "second alloc: got (%d,%v), want block 16", q, ok); err != nil {
		return err
	}

	if _, ok := h.Alloc(16); ok {
		return fmt.Errorf("third alloc succeeded on a full heap")
	}

	h.Free(p)
	if err := expect(h, h.UsedBytes() == 16, "used after first free: got %d", h.UsedBytes()); err != nil {
		return err
	}
	h.Free(q)
	if err := expect(h, h.UsedBytes() == 0, "used after second free: got %d", h.UsedBytes()); err != nil {
		return err
	}

	// Coalescing fixpoint: the whole arena is one free block again.
	off, ok := h.Alloc(32)
	if !ok || off != 0 {
		return fmt.Errorf("arena did not coalesce back to one block")
	}
	h.Free(off)
	return h.CheckInvariants()
}

// scenarioAscending pins the deterministic low-first allocation order on a
// 64-byte arena: 16, 16, 32 land at 0, 16, 32.
func scenarioAscending() error {
	h, err := buddy.New(64, 16)
	if err != nil {
		return err
	}
	defer h.Done()

	want := []struct{ size, off int }{{16, 0}, {16, 16}, {32, 32}}
	var got []int
	for _, w := range want {
		off, ok := h.Alloc(w.size)
		if err := expect(h, ok && off == w.off,
			"alloc %d: got (%d,%v), want offset %d", w.size, off, ok, w.off); err != nil {
			return err
		}
		got = append(got, off)
	}

	// Free in reverse; everything must merge back into the root block.
	for i := len(got) - 1; i >= 0; i-- {
		h.Free(got[i])
		if err := h.CheckInvariants(); err != nil {
			return err
		}
	}
	off, ok := h.Alloc(64)
	if !ok || off != 0 {
		return fmt.Errorf("arena did not coalesce back to one block")
	}
	h.Free(off)
	return nil
}

// scenarioWholeArena checks whole-arena allocation: the block always comes
// back at offset 0 and nothing else fits while it is handed out.
func scenarioWholeArena() error {
	h, err := buddy.New(1<<12, 64)
	if err != nil {
		return err
	}
	defer h.Done()

	for i := 0; i < 3; i++ {
		off, ok := h.Alloc(1 << 12)
		if err := expect(h, ok && off == 0, "whole-arena alloc %d failed", i); err != nil {
			return err
		}
		if _, ok := h.Alloc(64); ok {
			return fmt.Errorf("alloc succeeded while the arena was fully handed out")
		}
		h.Free(off)
	}
	return h.CheckInvariants()
}

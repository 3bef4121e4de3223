package kheap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/kheap"
)

func TestAllocZeroReturnsFalse(t *testing.T) {
	h := kheap.New(4096)
	_, ok := h.Alloc(0)
	require.False(t, ok)
}

func TestAllocFreeRoundTrip(t *testing.T) {
	h := kheap.New(4096)

	a, ok := h.Alloc(32)
	require.True(t, ok)
	require.GreaterOrEqual(t, h.UsableSize(a), uint32(32))

	h.Free(a)

	b, ok := h.Alloc(32)
	require.True(t, ok)
	require.Equal(t, a, b)
}

func TestFreeNilIsNoop(t *testing.T) {
	h := kheap.New(4096)
	h.Free(0)
}

func TestAllocExhaustsHeap(t *testing.T) {
	h := kheap.New(128)

	_, ok := h.Alloc(256)
	require.False(t, ok)
}

func TestForwardCoalesceMergesAdjacentFreeBlocks(t *testing.T) {
	h := kheap.New(256)

	a, ok := h.Alloc(32)
	require.True(t, ok)
	b, ok := h.Alloc(32)
	require.True(t, ok)

	sizeBeforeFree := h.UsableSize(a)
	// Free b (the trailing free remainder's neighbor) first, then a:
	// freeing a triggers coalesce(a), which only merges forward into b
	// if b is already marked free at that point.
	h.Free(b)
	h.Free(a)

	big, ok := h.Alloc(64)
	require.True(t, ok)
	require.Greater(t, h.UsableSize(big), sizeBeforeFree)
}

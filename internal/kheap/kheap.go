// Package kheap is the early kernel heap: a first-fit allocator over a
// single static buffer, in the doubly-threaded segment-header style of
// the teacher kernel's heap.go, simplified to the singly-linked,
// forward-only-coalescing contract spec.md section 4.4 describes.
package kheap

import (
	"kestrel/internal/kconfig"
	"kestrel/internal/klog"
)

var log = klog.Get("kheap")

const headerSize = 16 // rounded up to the 16-byte alignment, like the data it precedes.

// segment is the in-band header preceding every block, allocated or free.
// It lives at the start of its own block.
type segment struct {
	size uint32 // total size of this block, header included
	free uint32 // 1 if free, 0 if allocated
	next uint32 // offset of the next segment, or 0 if this is the last
}

// Heap is a first-fit allocator over a fixed-size backing buffer.
type Heap struct {
	buf  []byte
	head uint32 // offset of the first segment
}

func alignUp16(v uint32) uint32 {
	return (v + kconfig.HeapAlignment - 1) &^ (kconfig.HeapAlignment - 1)
}

// New creates a heap over a freshly allocated buffer of the given size.
// The whole buffer starts as a single free segment.
func New(size uint32) *Heap {
	h := &Heap{buf: make([]byte, size)}
	h.putSegment(0, segment{size: size, free: 1, next: 0})
	log.Infof("init: %d bytes", size)
	return h
}

func (h *Heap) getSegment(off uint32) segment {
	b := h.buf[off : off+headerSize]
	return segment{
		size: le32(b[0:4]),
		free: le32(b[4:8]),
		next: le32(b[8:12]),
	}
}

func (h *Heap) putSegment(off uint32, s segment) {
	b := h.buf[off : off+headerSize]
	putLe32(b[0:4], s.size)
	putLe32(b[4:8], s.free)
	putLe32(b[8:12], s.next)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLe32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Alloc returns the buffer offset of a block of at least n usable bytes,
// or (0, false) if n is 0 or no free block is large enough.
func (h *Heap) Alloc(n uint32) (uint32, bool) {
	if n == 0 {
		return 0, false
	}
	need := headerSize + alignUp16(n)

	off := h.head
	for {
		seg := h.getSegment(off)
		if seg.free != 0 && seg.size >= need {
			h.split(off, seg, need)
			seg = h.getSegment(off)
			seg.free = 0
			h.putSegment(off, seg)
			return off + headerSize, true
		}
		if seg.next == 0 {
			return 0, false
		}
		off = seg.next
	}
}

// split turns the tail of the free segment at off into a new free
// segment, when doing so would leave at least header+16 bytes in the
// remainder.
func (h *Heap) split(off uint32, seg segment, need uint32) {
	remainder := seg.size - need
	if remainder < headerSize+kconfig.HeapAlignment {
		return
	}
	newOff := off + need
	h.putSegment(newOff, segment{size: remainder, free: 1, next: seg.next})
	h.putSegment(off, segment{size: need, free: seg.free, next: newOff})
}

// Free marks the block at dataOff (an offset previously returned by
// Alloc) as free and coalesces it with its immediate next-adjacent
// segment if that one is also free. A zero dataOff is a no-op, matching
// free(null). Freeing an already-free block is undefined behavior the
// caller must avoid.
func (h *Heap) Free(dataOff uint32) {
	if dataOff == 0 {
		return
	}
	off := dataOff - headerSize
	seg := h.getSegment(off)
	seg.free = 1
	h.putSegment(off, seg)
	h.coalesce(off)
}

func (h *Heap) coalesce(off uint32) {
	seg := h.getSegment(off)
	if seg.next == 0 {
		return
	}
	next := h.getSegment(seg.next)
	if next.free == 0 {
		return
	}
	seg.size += next.size
	seg.next = next.next
	h.putSegment(off, seg)
}

// UsableSize returns the header's size field for the block at dataOff,
// i.e. the full block size including its header.
func (h *Heap) UsableSize(dataOff uint32) uint32 {
	if dataOff == 0 {
		return 0
	}
	return h.getSegment(dataOff - headerSize).size
}

// Bytes exposes the backing buffer so callers can read/write the data
// area directly (e.g. a filesystem driver using the heap as scratch
// space).
func (h *Heap) Bytes() []byte {
	return h.buf
}

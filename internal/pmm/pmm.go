// Package pmm implements the physical frame allocator: a flat bitmap over
// the usable physical address range the boot loader reported, in the
// style of gopher-os's kernel/mem/pmm/allocator.BitmapAllocator, but
// sized and bounded the way spec.md section 4.2 requires rather than
// covering every region the memory map names.
package pmm

import (
	"kestrel/internal/kconfig"
	"kestrel/internal/kernerr"
	"kestrel/internal/klog"
	"kestrel/internal/multiboot"
)

var log = klog.Get("pmm")

const frameSize = uint64(kconfig.FrameSize)

// Manager is the frame bitmap allocator. The zero value is not usable;
// construct one with Init.
type Manager struct {
	// bitmapBase is the physical address frame index 0 of the bitmap
	// corresponds to.
	bitmapBase uint64
	// frameCount is the number of frames the bitmap covers.
	frameCount uint64
	// bits holds one bit per frame; a set bit means reserved/allocated.
	bits []uint64

	totalPhysicalBytes uint64
	totalUsableBytes   uint64
	freeBytes          uint64
}

func alignDown(v, align uint64) uint64 { return v &^ (align - 1) }
func alignUp(v, align uint64) uint64   { return alignDown(v+align-1, align) }

// Init builds the bitmap from the boot-supplied memory map, preferring the
// EFI map when fromUEFI is set (spec.md section 4.1). It clamps coverage
// to kconfig.PMMAddressCap and always reserves frame 0 plus the low 1 MiB.
func Init(info *multiboot.Info, fromUEFI bool) *Manager {
	regions := info.LegacyRegions
	if fromUEFI && len(info.EFIRegions) > 0 {
		regions = info.EFIRegions
	}

	m := &Manager{}

	var minBase, maxEnd uint64
	haveUsable := false
	for _, r := range regions {
		if r.Type != multiboot.RegionAvailable {
			continue
		}
		start := alignUp(r.Base, frameSize)
		end := alignDown(r.Base+r.Len, frameSize)
		if end <= start {
			continue
		}
		if end > kconfig.PMMAddressCap {
			end = kconfig.PMMAddressCap
		}
		if start >= kconfig.PMMAddressCap || end <= start {
			continue
		}
		if !haveUsable || start < minBase {
			minBase = start
		}
		if !haveUsable || end > maxEnd {
			maxEnd = end
		}
		haveUsable = true
		m.totalUsableBytes += end - start
	}

	if !haveUsable {
		log.Warnf("no usable memory regions found in boot info")
		return m
	}

	m.bitmapBase = minBase
	m.frameCount = (maxEnd - minBase) / frameSize
	if m.frameCount > kconfig.PMMMaxFrames {
		m.frameCount = kconfig.PMMMaxFrames
	}
	m.totalPhysicalBytes = maxEnd - minBase

	words := (m.frameCount + 63) / 64
	m.bits = make([]uint64, words)
	for i := range m.bits {
		m.bits[i] = ^uint64(0)
	}

	for _, r := range regions {
		if r.Type != multiboot.RegionAvailable {
			continue
		}
		start := alignUp(r.Base, frameSize)
		end := alignDown(r.Base+r.Len, frameSize)
		m.clearRange(start, end)
	}

	m.freeBytes = m.countFree() * frameSize

	m.Reserve(0, frameSize)
	m.Reserve(0, kconfig.LowMemoryReserveBytes)

	log.Infof("init: base=%#x frames=%d usable=%d free=%d", m.bitmapBase, m.frameCount, m.totalUsableBytes, m.freeBytes)
	return m
}

// frameIndex returns the bitmap index for paddr, and whether it is within
// range.
func (m *Manager) frameIndex(paddr uint64) (uint64, bool) {
	if paddr < m.bitmapBase {
		return 0, false
	}
	idx := (paddr - m.bitmapBase) / frameSize
	if idx >= m.frameCount {
		return 0, false
	}
	return idx, true
}

func (m *Manager) testBit(idx uint64) bool {
	return m.bits[idx/64]&(1<<(idx%64)) != 0
}

func (m *Manager) setBit(idx uint64) {
	m.bits[idx/64] |= 1 << (idx % 64)
}

func (m *Manager) clearBit(idx uint64) {
	m.bits[idx/64] &^= 1 << (idx % 64)
}

// clearRange clears bits for the frames fully inside [start,end), used
// only during Init before free-byte accounting is live.
func (m *Manager) clearRange(start, end uint64) {
	for addr := start; addr < end; addr += frameSize {
		if idx, ok := m.frameIndex(addr); ok {
			m.clearBit(idx)
		}
	}
}

func (m *Manager) countFree() uint64 {
	var free uint64
	for i := uint64(0); i < m.frameCount; i++ {
		if !m.testBit(i) {
			free++
		}
	}
	return free
}

// Reserve marks [paddr, paddr+size) as reserved, rounding outward to frame
// boundaries and intersecting with the bitmap's range. Already-reserved
// frames are left untouched, so repeated calls are idempotent (spec.md
// section 4.2).
func (m *Manager) Reserve(paddr, size uint64) {
	if size == 0 {
		return
	}
	start := alignDown(paddr, frameSize)
	end := alignUp(paddr+size, frameSize)
	for addr := start; addr < end; addr += frameSize {
		idx, ok := m.frameIndex(addr)
		if !ok {
			continue
		}
		if !m.testBit(idx) {
			m.setBit(idx)
			m.freeBytes -= frameSize
		}
	}
}

// AllocFrames finds the first run of n contiguous free frames, marks them
// reserved, and returns the physical address of the first frame.
func (m *Manager) AllocFrames(n uint64) (uint64, error) {
	return m.allocFramesBelow(n, ^uint64(0))
}

// AllocFramesBelow behaves like AllocFrames but only considers runs whose
// last frame ends at or before maxExclusive, for callers that need
// addresses inside an identity-mapped window.
func (m *Manager) AllocFramesBelow(n uint64, maxExclusive uint64) (uint64, error) {
	return m.allocFramesBelow(n, maxExclusive)
}

func (m *Manager) allocFramesBelow(n uint64, maxExclusive uint64) (uint64, error) {
	if n == 0 {
		return 0, kernerr.New("pmm", kernerr.InvalidArgument, "alloc_frames: n must be > 0")
	}
	need := n * frameSize
	if m.freeBytes < need {
		return 0, kernerr.New("pmm", kernerr.OutOfMemory, "alloc_frames: need %d bytes, %d free", need, m.freeBytes)
	}

	var run uint64
	for i := uint64(0); i < m.frameCount; i++ {
		addr := m.bitmapBase + i*frameSize
		if addr+frameSize > maxExclusive {
			run = 0
			continue
		}
		if m.testBit(i) {
			run = 0
			continue
		}
		run++
		if run == n {
			first := i - n + 1
			for j := first; j <= i; j++ {
				m.setBit(j)
			}
			m.freeBytes -= need
			return m.bitmapBase + first*frameSize, nil
		}
	}
	return 0, kernerr.New("pmm", kernerr.OutOfMemory, "alloc_frames: no contiguous run of %d frames below %#x", n, maxExclusive)
}

// FreeFrames clears n frames starting at paddr. Frames that were already
// free, or fall outside the bitmap's range, are silently ignored.
func (m *Manager) FreeFrames(paddr uint64, n uint64) {
	addr := alignDown(paddr, frameSize)
	for i := uint64(0); i < n; i++ {
		idx, ok := m.frameIndex(addr)
		addr += frameSize
		if !ok {
			continue
		}
		if m.testBit(idx) {
			m.clearBit(idx)
			m.freeBytes += frameSize
		}
	}
}

func (m *Manager) TotalPhysicalBytes() uint64 { return m.totalPhysicalBytes }
func (m *Manager) TotalUsableBytes() uint64   { return m.totalUsableBytes }
func (m *Manager) FreeBytes() uint64          { return m.freeBytes }

package pmm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/kconfig"
	"kestrel/internal/multiboot"
	"kestrel/internal/pmm"
)

func twoRegionInfo() *multiboot.Info {
	return &multiboot.Info{
		LegacyRegions: []multiboot.MemoryRegion{
			{Base: 0x0, Len: 0x100000, Type: multiboot.RegionReserved},
			{Base: 0x100000, Len: 0x7EF0000, Type: multiboot.RegionAvailable},
		},
	}
}

func TestInitReservesLowMemoryAndFrameZero(t *testing.T) {
	m := pmm.Init(twoRegionInfo(), false)

	require.Greater(t, m.TotalUsableBytes(), uint64(0))

	_, err := m.AllocFramesBelow(1, kconfig.LowMemoryReserveBytes)
	require.Error(t, err)
}

func TestAllocFreeRoundTrip(t *testing.T) {
	m := pmm.Init(twoRegionInfo(), false)
	freeBefore := m.FreeBytes()

	addr, err := m.AllocFrames(4)
	require.NoError(t, err)
	require.GreaterOrEqual(t, addr, uint64(0x100000))
	require.Equal(t, freeBefore-4*kconfig.FrameSize, m.FreeBytes())

	m.FreeFrames(addr, 4)
	require.Equal(t, freeBefore, m.FreeBytes())
}

func TestReserveIsIdempotent(t *testing.T) {
	m := pmm.Init(twoRegionInfo(), false)
	freeBefore := m.FreeBytes()

	m.Reserve(0x200000, kconfig.FrameSize)
	afterFirst := m.FreeBytes()
	require.Equal(t, freeBefore-kconfig.FrameSize, afterFirst)

	m.Reserve(0x200000, kconfig.FrameSize)
	require.Equal(t, afterFirst, m.FreeBytes())
}

func TestAllocFramesOutOfMemory(t *testing.T) {
	m := pmm.Init(twoRegionInfo(), false)
	hugely := m.TotalUsableBytes()/kconfig.FrameSize + 1000
	_, err := m.AllocFrames(hugely)
	require.Error(t, err)
}

func TestAllocFramesZeroIsInvalid(t *testing.T) {
	m := pmm.Init(twoRegionInfo(), false)
	_, err := m.AllocFrames(0)
	require.Error(t, err)
}

func TestPreferEFIRegionsWhenFromUEFI(t *testing.T) {
	info := &multiboot.Info{
		LegacyRegions: []multiboot.MemoryRegion{
			{Base: 0x100000, Len: 0x1000000, Type: multiboot.RegionAvailable},
		},
		EFIRegions: []multiboot.MemoryRegion{
			{Base: 0x100000, Len: 0x2000000, Type: multiboot.RegionAvailable},
		},
	}

	m := pmm.Init(info, true)
	require.Equal(t, uint64(0x2000000), m.TotalUsableBytes())
}

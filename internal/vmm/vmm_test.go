package vmm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/multiboot"
	"kestrel/internal/physmem"
	"kestrel/internal/pmm"
	"kestrel/internal/vmm"
)

func newManager(t *testing.T) (*vmm.Manager, *physmem.Arena) {
	t.Helper()
	info := &multiboot.Info{
		LegacyRegions: []multiboot.MemoryRegion{
			{Base: 0x100000, Len: 0x4000000, Type: multiboot.RegionAvailable},
		},
	}
	frames := pmm.Init(info, false)
	arena := physmem.NewArena(0x4100000)
	return vmm.New(arena, frames), arena
}

func TestInitIdentityMapsLowGiB(t *testing.T) {
	m, _ := newManager(t)
	require.NoError(t, m.InitIdentity())

	pa, err := m.Translate(0x200000)
	require.NoError(t, err)
	require.Equal(t, uint64(0x200000), pa)
}

func TestMapAndUnmapPage(t *testing.T) {
	m, _ := newManager(t)
	require.NoError(t, m.InitIdentity())

	va := uint64(0x300000) + 0x42
	require.NoError(t, m.MapPage(0x300000, 0x310000, vmm.FlagPresent|vmm.FlagWritable))

	pa, err := m.Translate(va)
	require.NoError(t, err)
	require.Equal(t, uint64(0x310042), pa)

	require.NoError(t, m.UnmapPage(0x300000))
	_, err = m.Translate(va)
	require.Error(t, err)
}

func TestTranslateWithoutCreateFails(t *testing.T) {
	m, _ := newManager(t)
	rootFrame, err := func() (uint64, error) {
		require.NoError(t, m.InitIdentity())
		return m.Root(), nil
	}()
	require.NoError(t, err)
	require.NotZero(t, rootFrame)

	_, err = m.Translate(0x40000000)
	require.Error(t, err)
}

func TestUnmapAbsentPageIsNoop(t *testing.T) {
	m, _ := newManager(t)
	require.NoError(t, m.InitIdentity())
	require.NoError(t, m.UnmapPage(0x40000000))
}

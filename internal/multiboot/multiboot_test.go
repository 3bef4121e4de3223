package multiboot_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/multiboot"
)

// buildLegacyMapBlob constructs a minimal Multiboot2 info blob containing a
// single memory-map tag with the two entries from spec.md scenario S1.
func buildLegacyMapBlob() []byte {
	const entrySize = 24
	entries := []multiboot.MemoryRegion{
		{Base: 0x0, Len: 0x100000, Type: multiboot.RegionReserved},
		{Base: 0x100000, Len: 0x7EF0000, Type: multiboot.RegionAvailable},
	}

	payload := make([]byte, 8+entrySize*len(entries))
	binary.LittleEndian.PutUint32(payload[0:4], entrySize)
	binary.LittleEndian.PutUint32(payload[4:8], 0)
	for i, e := range entries {
		off := 8 + i*entrySize
		binary.LittleEndian.PutUint64(payload[off:off+8], e.Base)
		binary.LittleEndian.PutUint64(payload[off+8:off+16], e.Len)
		typ := uint32(2)
		if e.Type == multiboot.RegionAvailable {
			typ = 1
		}
		binary.LittleEndian.PutUint32(payload[off+16:off+20], typ)
	}

	tagSize := uint32(8 + len(payload))
	tag := make([]byte, tagSize)
	binary.LittleEndian.PutUint32(tag[0:4], multiboot.TagMemoryMap)
	binary.LittleEndian.PutUint32(tag[4:8], tagSize)
	copy(tag[8:], payload)

	total := 8 + len(tag)
	blob := make([]byte, total)
	binary.LittleEndian.PutUint32(blob[0:4], uint32(total))
	copy(blob[8:], tag)
	return blob
}

func TestParseLegacyMemoryMap(t *testing.T) {
	blob := buildLegacyMapBlob()
	info := multiboot.Parse(blob)

	require.False(t, info.FromUEFI)
	require.Len(t, info.LegacyRegions, 2)
	require.Equal(t, multiboot.RegionReserved, info.LegacyRegions[0].Type)
	require.Equal(t, multiboot.RegionAvailable, info.LegacyRegions[1].Type)
	require.EqualValues(t, 0x7EF0000, info.LegacyRegions[1].Len)
}

func TestParseEmptyBlob(t *testing.T) {
	info := multiboot.Parse(nil)
	require.Nil(t, info.LegacyRegions)
	require.Nil(t, info.EFIRegions)
	require.Nil(t, info.Meminfo)
}

func TestParseBasicMeminfo(t *testing.T) {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[0:4], 640)
	binary.LittleEndian.PutUint32(payload[4:8], 130048)

	tagSize := uint32(8 + len(payload))
	tag := make([]byte, tagSize)
	binary.LittleEndian.PutUint32(tag[0:4], multiboot.TagBasicMeminfo)
	binary.LittleEndian.PutUint32(tag[4:8], tagSize)
	copy(tag[8:], payload)

	total := 8 + len(tag)
	blob := make([]byte, total)
	binary.LittleEndian.PutUint32(blob[0:4], uint32(total))
	copy(blob[8:], tag)

	info := multiboot.Parse(blob)
	require.NotNil(t, info.Meminfo)
	require.EqualValues(t, 130048, info.Meminfo.UpperKiB)
}

package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/block"
)

func TestRegisterFindFirstNext(t *testing.T) {
	r := block.NewRegistry()
	require.Nil(t, r.First())

	a := block.NewRAMDisk(r, "ram0", 16)
	b := block.NewRAMDisk(r, "ram1", 16)

	require.Equal(t, b, r.First())
	require.Equal(t, a, r.Next(b))
	require.Nil(t, r.Next(a))

	require.Equal(t, a, r.Find("ram0"))
	require.Equal(t, b, r.Find("ram1"))
	require.Nil(t, r.Find("nope"))
}

func TestRAMDiskReadWriteRoundTrip(t *testing.T) {
	r := block.NewRegistry()
	dev := block.NewRAMDisk(r, "ram0", 4)

	payload := make([]byte, block.DefaultSectorSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, dev.WriteSectors(1, 1, payload))

	out := make([]byte, block.DefaultSectorSize)
	require.NoError(t, dev.ReadSectors(1, 1, out))
	require.Equal(t, payload, out)
}

func TestReadWritePastEndIsInvalidArgument(t *testing.T) {
	r := block.NewRegistry()
	dev := block.NewRAMDisk(r, "ram0", 2)

	buf := make([]byte, block.DefaultSectorSize)
	err := dev.ReadSectors(2, 1, buf)
	require.Error(t, err)
}

func buildMBRSector(entries [4][16]byte) []byte {
	sector := make([]byte, block.DefaultSectorSize)
	for i, e := range entries {
		copy(sector[446+i*16:446+i*16+16], e[:])
	}
	sector[510] = 0x55
	sector[511] = 0xAA
	return sector
}

func le32(v uint32) [4]byte {
	return [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func TestScanMBRRegistersPartitions(t *testing.T) {
	r := block.NewRegistry()
	dev := block.NewRAMDisk(r, "ram0", 100)

	var e1, e2 [16]byte
	e1[4] = 0x83 // Linux
	copy(e1[8:12], le32(10)[:])
	copy(e1[12:16], le32(20)[:])

	e2[4] = 0x07 // NTFS/exFAT
	copy(e2[8:12], le32(30)[:])
	copy(e2[12:16], le32(40)[:])

	sector := buildMBRSector([4][16]byte{e1, e2, {}, {}})
	require.NoError(t, dev.WriteSectors(0, 1, sector))

	require.NoError(t, block.ScanMBR(r, dev))

	p1 := r.Find("ram0p1")
	require.NotNil(t, p1)
	require.Equal(t, uint64(20), p1.SectorCount)

	p2 := r.Find("ram0p2")
	require.NotNil(t, p2)
	require.Equal(t, uint64(40), p2.SectorCount)

	require.Nil(t, r.Find("ram0p3"))
	require.Nil(t, r.Find("ram0p4"))
}

func TestScanMBRSkipsZeroTypeAndZeroCount(t *testing.T) {
	r := block.NewRegistry()
	dev := block.NewRAMDisk(r, "ram0", 100)

	var zeroType, zeroCount [16]byte
	zeroType[4] = 0
	copy(zeroType[8:12], le32(5)[:])
	copy(zeroType[12:16], le32(5)[:])

	zeroCount[4] = 0x83
	copy(zeroCount[8:12], le32(5)[:])
	copy(zeroCount[12:16], le32(0)[:])

	sector := buildMBRSector([4][16]byte{zeroType, zeroCount, {}, {}})
	require.NoError(t, dev.WriteSectors(0, 1, sector))

	require.NoError(t, block.ScanMBR(r, dev))

	require.Nil(t, r.Find("ram0p1"))
	require.Nil(t, r.Find("ram0p2"))
}

func TestScanMBRNoSignatureRegistersNothing(t *testing.T) {
	r := block.NewRegistry()
	dev := block.NewRAMDisk(r, "ram0", 10)

	require.NoError(t, block.ScanMBR(r, dev))
	require.Equal(t, dev, r.First())
}

func TestPartitionSubDeviceTranslatesLBAs(t *testing.T) {
	r := block.NewRegistry()
	dev := block.NewRAMDisk(r, "ram0", 100)

	var e1 [16]byte
	e1[4] = 0x83
	copy(e1[8:12], le32(10)[:])
	copy(e1[12:16], le32(20)[:])
	sector := buildMBRSector([4][16]byte{e1, {}, {}, {}})
	require.NoError(t, dev.WriteSectors(0, 1, sector))
	require.NoError(t, block.ScanMBR(r, dev))

	part := r.Find("ram0p1")
	payload := make([]byte, block.DefaultSectorSize)
	payload[0] = 0xAB
	require.NoError(t, part.WriteSectors(2, 1, payload))

	direct := make([]byte, block.DefaultSectorSize)
	require.NoError(t, dev.ReadSectors(12, 1, direct))
	require.Equal(t, byte(0xAB), direct[0])
}

//go:build linux

package hostdisk_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/block"
	"kestrel/internal/hostdisk"
)

func TestCreateThenOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")

	disk, err := hostdisk.Create(path, "image", 16*block.DefaultSectorSize, block.DefaultSectorSize)
	require.NoError(t, err)
	require.EqualValues(t, 16, disk.SectorCount)

	payload := make([]byte, block.DefaultSectorSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, disk.WriteSectors(2, 1, payload))
	require.NoError(t, disk.Close())

	reopened, err := hostdisk.Open(path, "image", block.DefaultSectorSize)
	require.NoError(t, err)
	defer reopened.Close()

	got := make([]byte, block.DefaultSectorSize)
	require.NoError(t, reopened.ReadSectors(2, 1, got))
	require.Equal(t, payload, got)
}

func TestCreateLeavesImageZeroFilled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")

	disk, err := hostdisk.Create(path, "image", 4096*block.DefaultSectorSize, block.DefaultSectorSize)
	require.NoError(t, err)
	defer disk.Close()

	sector := make([]byte, block.DefaultSectorSize)
	require.NoError(t, disk.ReadSectors(0, 1, sector))
	require.True(t, allZero(sector))
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

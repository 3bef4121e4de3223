package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteEntrySetThenParseDirectoryRoundTrips(t *testing.T) {
	data := make([]byte, 4096)
	n, err := writeEntrySet(data, 0, "a.txt", 7, 13)
	require.NoError(t, err)
	require.Equal(t, 3, n) // primary + stream + 1 name slot

	entries, err := parseDirectory(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a.txt", entries[0].name)
	require.Equal(t, uint32(7), entries[0].firstCluster)
	require.Equal(t, uint64(13), entries[0].size)
}

func TestParseDirectoryStopsAtEndMarker(t *testing.T) {
	data := make([]byte, 4096)
	_, err := writeEntrySet(data, 0, "one.txt", 2, 0)
	require.NoError(t, err)
	_, err = writeEntrySet(data, 3*direntSize, "two.txt", 3, 0)
	require.NoError(t, err)

	// Sever the scan after the first entry set by placing an end marker.
	data[3*direntSize] = entryTypeEnd

	entries, err := parseDirectory(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "one.txt", entries[0].name)
}

func TestDecodeNameReplacesNonASCII(t *testing.T) {
	units := []uint16{'a', 0x00E9, 'b'} // 'a', e-acute, 'b'
	require.Equal(t, "a?b", decodeName(units))
}

func TestClearEntrySetZeroesWholeSet(t *testing.T) {
	data := make([]byte, 4096)
	_, err := writeEntrySet(data, 0, "x.txt", 2, 0)
	require.NoError(t, err)

	entries, err := parseDirectory(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	clearEntrySet(data, entries[0].setOffset, entries[0].secondaryCount)
	entries, err = parseDirectory(data)
	require.NoError(t, err)
	require.Len(t, entries, 0)
}

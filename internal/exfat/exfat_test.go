package exfat_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/block"
	"kestrel/internal/exfat"
	"kestrel/internal/vfs"
)

func setup(t *testing.T) (*vfs.VFS, *block.Device) {
	reg := block.NewRegistry()
	dev := block.NewRAMDisk(reg, "ram0", 4096) // 2 MiB
	require.NoError(t, exfat.Format(dev))

	v := vfs.New()
	v.RegisterDriver("exfat", exfat.Bind())
	require.NoError(t, v.Mount(reg, "exfat", "root", "ram0"))
	return v, dev
}

func TestFormatThenMount(t *testing.T) {
	setup(t)
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	v, _ := setup(t)

	n, err := v.Create("root:/hello.txt")
	require.NoError(t, err)

	text := []byte("Hello, world!")
	written, err := v.Write(n, 0, text)
	require.NoError(t, err)
	require.Equal(t, len(text), written)

	st, err := v.Stat(n)
	require.NoError(t, err)
	require.Equal(t, uint64(len(text)), st.Size)

	n2, err := v.Open("root:/hello.txt")
	require.NoError(t, err)
	out := make([]byte, len(text))
	readN, err := v.Read(n2, 0, out)
	require.NoError(t, err)
	require.Equal(t, len(text), readN)
	require.Equal(t, text, out)
}

func TestWriteAcrossClusterBoundary(t *testing.T) {
	v, _ := setup(t)
	n, err := v.Create("root:/big.bin")
	require.NoError(t, err)

	payload := make([]byte, 4096*3+123) // spans multiple 4096-byte clusters
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	written, err := v.Write(n, 0, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), written)

	n2, err := v.Open("root:/big.bin")
	require.NoError(t, err)
	out := make([]byte, len(payload))
	readN, err := v.Read(n2, 0, out)
	require.NoError(t, err)
	require.Equal(t, len(payload), readN)
	require.Equal(t, payload, out)
}

func TestOpenMissingFileIsNotFound(t *testing.T) {
	v, _ := setup(t)
	_, err := v.Open("root:/missing")
	require.Error(t, err)
}

func TestUnlinkRemovesFile(t *testing.T) {
	v, _ := setup(t)
	_, err := v.Create("root:/gone.txt")
	require.NoError(t, err)

	require.NoError(t, v.Unlink("root:/gone.txt"))

	_, err = v.Open("root:/gone.txt")
	require.Error(t, err)
}

func TestFillThenReadRepeatsChar(t *testing.T) {
	v, _ := setup(t)
	n, err := v.Create("root:/filled.bin")
	require.NoError(t, err)

	size := 5000
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = 'x'
	}
	_, err = v.Write(n, 0, payload)
	require.NoError(t, err)

	n2, err := v.Open("root:/filled.bin")
	require.NoError(t, err)
	out := make([]byte, size)
	_, err = v.Read(n2, 0, out)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestCreateDuplicateNameFails(t *testing.T) {
	v, _ := setup(t)
	_, err := v.Create("root:/dup.txt")
	require.NoError(t, err)
	_, err = v.Create("root:/dup.txt")
	require.Error(t, err)
}

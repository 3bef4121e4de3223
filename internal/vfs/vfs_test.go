package vfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/block"
	"kestrel/internal/vfs"
)

// memFS is a minimal in-memory write-capable filesystem driver used to
// exercise vfs.VFS's dispatch without pulling in devfs or exfat.
func memFSOps(store map[string][]byte) vfs.FilesystemOps {
	return vfs.FilesystemOps{
		Mount: func(dev *block.Device) (any, error) {
			return store, nil
		},
		Open: func(fsPrivate any, subpath string) (*vfs.Node, error) {
			m := fsPrivate.(map[string][]byte)
			if _, ok := m[subpath]; !ok {
				m[subpath] = nil
			}
			return &vfs.Node{Private: subpath, Kind: vfs.KindFile}, nil
		},
		Read: func(n *vfs.Node, off uint64, buf []byte) (int, error) {
			return 0, nil
		},
		Write: func(n *vfs.Node, off uint64, buf []byte) (int, error) {
			return len(buf), nil
		},
	}
}

func TestMountAndOpenDispatch(t *testing.T) {
	v := vfs.New()
	store := map[string][]byte{}
	v.RegisterDriver("mem", memFSOps(store))

	reg := block.NewRegistry()
	require.NoError(t, v.Mount(reg, "mem", "root", ""))

	n, err := v.Open("root:/hello")
	require.NoError(t, err)
	require.NotNil(t, n)

	_, err = v.Write(n, 0, []byte("hi"))
	require.NoError(t, err)
}

func TestMountUnknownDriverIsNotFound(t *testing.T) {
	v := vfs.New()
	reg := block.NewRegistry()
	err := v.Mount(reg, "xfs", "root", "")
	require.Error(t, err)
}

func TestMountUnknownDeviceIsNotFound(t *testing.T) {
	v := vfs.New()
	v.RegisterDriver("mem", memFSOps(map[string][]byte{}))
	reg := block.NewRegistry()
	err := v.Mount(reg, "mem", "root", "ram0")
	require.Error(t, err)
}

func TestOpenOnMissingMountFails(t *testing.T) {
	v := vfs.New()
	_, err := v.Open("root:/x")
	require.Error(t, err)
}

func TestSplitPathGrammar(t *testing.T) {
	mount, sub, err := vfs.SplitPath("root:/a/b")
	require.NoError(t, err)
	require.Equal(t, "root", mount)
	require.Equal(t, "/a/b", sub)

	mount, sub, err = vfs.SplitPath("root:")
	require.NoError(t, err)
	require.Equal(t, "root", mount)
	require.Equal(t, "/", sub)

	_, _, err = vfs.SplitPath("noprefix")
	require.Error(t, err)
}

func TestWriteOnReadOnlyFSIsPermissionDenied(t *testing.T) {
	v := vfs.New()
	ops := memFSOps(map[string][]byte{})
	ops.Write = nil
	v.RegisterDriver("ro", ops)

	reg := block.NewRegistry()
	require.NoError(t, v.Mount(reg, "ro", "root", ""))

	n, err := v.Open("root:/x")
	require.NoError(t, err)

	_, err = v.Write(n, 0, []byte("x"))
	require.Error(t, err)
}

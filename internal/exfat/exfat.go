package exfat

import (
	"strings"

	"github.com/pkg/errors"

	"kestrel/internal/block"
	"kestrel/internal/kernerr"
	"kestrel/internal/vfs"
)

// nodePrivate is the per-node state vfs.Node.Private carries for an
// exfat node: either the root directory (isRoot) or a bound file.
type nodePrivate struct {
	fs           *FS
	isRoot       bool
	name         string
	firstCluster uint32
	size         uint64
	setOffset    int
}

// Bind returns the FilesystemOps exfat registers under a driver name
// (conventionally "exfat"). Mount reads and validates the device's VBR;
// the resulting *FS becomes the filesystem-private state threaded
// through every other op.
func Bind() vfs.FilesystemOps {
	return vfs.FilesystemOps{
		Mount: func(dev *block.Device) (any, error) {
			if dev == nil {
				return nil, kernerr.New("exfat", kernerr.InvalidArgument, "exfat mount requires a block device")
			}
			return Mount(dev)
		},
		Open:   openFn,
		Read:   readFn,
		Write:  writeFn,
		Create: createFn,
		Unlink: unlinkFn,
		Stat:   statFn,
	}
}

func (fs *FS) readRootCluster() ([]byte, error) {
	data := make([]byte, fs.geo.clusterSize)
	lba := fs.geo.clusterLBA(fs.geo.firstRootCluster)
	if err := fs.dev.ReadSectors(lba, uint64(fs.geo.sectorsPerCluster), data); err != nil {
		return nil, errors.Wrap(err, "exfat: reading root directory cluster")
	}
	return data, nil
}

func (fs *FS) writeRootCluster(data []byte) error {
	lba := fs.geo.clusterLBA(fs.geo.firstRootCluster)
	if err := fs.dev.WriteSectors(lba, uint64(fs.geo.sectorsPerCluster), data); err != nil {
		return errors.Wrap(err, "exfat: writing root directory cluster")
	}
	return nil
}

func openFn(fsPrivate any, subpath string) (*vfs.Node, error) {
	fs := fsPrivate.(*FS)
	if subpath == "/" {
		return &vfs.Node{Private: &nodePrivate{fs: fs, isRoot: true}, Kind: vfs.KindDir}, nil
	}

	name := strings.TrimPrefix(subpath, "/")
	if strings.Contains(name, "/") {
		return nil, kernerr.New("exfat", kernerr.NotFound, "subpaths are one level deep in this core")
	}

	data, err := fs.readRootCluster()
	if err != nil {
		return nil, err
	}
	entries, err := parseDirectory(data)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.name == name {
			return &vfs.Node{
				Private: &nodePrivate{
					fs:           fs,
					name:         e.name,
					firstCluster: e.firstCluster,
					size:         e.size,
					setOffset:    e.setOffset,
				},
				Kind: vfs.KindFile,
			}, nil
		}
	}
	return nil, kernerr.New("exfat", kernerr.NotFound, "no such file: "+name)
}

func statFn(n *vfs.Node) (vfs.Stat, error) {
	np := n.Private.(*nodePrivate)
	if np.isRoot {
		return vfs.Stat{Kind: vfs.KindDir}, nil
	}
	return vfs.Stat{Kind: vfs.KindFile, Size: np.size}, nil
}

func readFn(n *vfs.Node, off uint64, buf []byte) (int, error) {
	np := n.Private.(*nodePrivate)
	if np.isRoot {
		return 0, kernerr.New("exfat", kernerr.InvalidArgument, "read on directory node")
	}
	fs := np.fs
	if off >= np.size {
		return 0, nil
	}
	want := uint64(len(buf))
	if off+want > np.size {
		want = np.size - off
	}
	return fs.readChain(np.firstCluster, off, buf[:want])
}

func writeFn(n *vfs.Node, off uint64, buf []byte) (int, error) {
	np := n.Private.(*nodePrivate)
	if np.isRoot {
		return 0, kernerr.New("exfat", kernerr.InvalidArgument, "write on directory node")
	}
	fs := np.fs

	written, newFirst, err := fs.writeChain(np.firstCluster, off, buf)
	if err != nil {
		return written, err
	}

	end := off + uint64(written)
	if end > np.size {
		np.size = end
		np.firstCluster = newFirst
		data, err := fs.readRootCluster()
		if err != nil {
			return written, err
		}
		rewriteStreamSize(data, np.setOffset, np.firstCluster, np.size)
		if err := fs.writeRootCluster(data); err != nil {
			return written, err
		}
	}
	return written, nil
}

func createFn(fsPrivate any, subpath string) (*vfs.Node, error) {
	fs := fsPrivate.(*FS)
	name := strings.TrimPrefix(subpath, "/")
	if strings.Contains(name, "/") {
		return nil, kernerr.New("exfat", kernerr.InvalidArgument, "subpaths are one level deep in this core")
	}

	data, err := fs.readRootCluster()
	if err != nil {
		return nil, err
	}
	entries, err := parseDirectory(data)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.name == name {
			return nil, kernerr.New("exfat", kernerr.InvalidArgument, "already exists: "+name)
		}
	}

	cluster, err := fs.allocChain(1)
	if err != nil {
		return nil, err
	}

	insertOffset := lastUsedOffset(entries)
	_, err = writeEntrySet(data, insertOffset, name, cluster, 0)
	if err != nil {
		return nil, err
	}
	if err := fs.writeRootCluster(data); err != nil {
		return nil, err
	}

	return &vfs.Node{
		Private: &nodePrivate{fs: fs, name: name, firstCluster: cluster, setOffset: insertOffset},
		Kind:    vfs.KindFile,
	}, nil
}

// lastUsedOffset finds the byte offset immediately after the last entry
// set in entries, i.e. where a new entry set should be appended.
func lastUsedOffset(entries []dirEntry) int {
	max := 0
	for _, e := range entries {
		end := e.setOffset + (int(e.secondaryCount)+1)*direntSize
		if end > max {
			max = end
		}
	}
	return max
}

func unlinkFn(fsPrivate any, subpath string) error {
	fs := fsPrivate.(*FS)
	name := strings.TrimPrefix(subpath, "/")

	data, err := fs.readRootCluster()
	if err != nil {
		return err
	}
	entries, err := parseDirectory(data)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.name != name {
			continue
		}
		if err := fs.freeChain(e.firstCluster); err != nil {
			return err
		}
		clearEntrySet(data, e.setOffset, e.secondaryCount)
		return fs.writeRootCluster(data)
	}
	return kernerr.New("exfat", kernerr.NotFound, "no such file: "+name)
}

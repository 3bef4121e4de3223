//go:build linux

package cmd

import (
	"context"
	"os"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"

	"kestrel/internal/vfs"
)

// vfsFS projects a mounted kestrel VFS root read-only into a FUSE tree,
// for inspecting an exFAT image's contents with ordinary host tools
// (ls, cat) instead of the kernel shell. One level deep only, matching
// internal/exfat's own flat root-directory model.
type vfsFS struct {
	root *vfs.VFS
}

func (f *vfsFS) Root() (fusefs.Node, error) {
	return &vfsDir{root: f.root}, nil
}

type vfsDir struct {
	root *vfs.VFS
}

func (*vfsDir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *vfsDir) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	n, err := d.root.Open("root:/" + name)
	if err != nil {
		return nil, fuse.ENOENT
	}
	st, err := d.root.Stat(n)
	if err != nil {
		return nil, fuse.ENOENT
	}
	return &vfsFile{root: d.root, node: n, size: st.Size}, nil
}

func (d *vfsDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	n, err := d.root.Open("root:/")
	if err != nil {
		return nil, err
	}
	var entries []fuse.Dirent
	for i := 0; ; i++ {
		name, ok, err := d.root.Readdir(n, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		entries = append(entries, fuse.Dirent{Inode: uint64(i + 1), Name: name, Type: fuse.DT_File})
	}
	return entries, nil
}

type vfsFile struct {
	root *vfs.VFS
	node *vfs.Node
	size uint64
}

func (f *vfsFile) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = f.size
	return nil
}

func (f *vfsFile) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	off := uint64(req.Offset)
	if off >= f.size {
		resp.Data = []byte{}
		return nil
	}
	size := req.Size
	if off+uint64(size) > f.size {
		size = int(f.size - off)
	}
	buf := make([]byte, size)
	n, err := f.root.Read(f.node, off, buf)
	if err != nil {
		return err
	}
	resp.Data = buf[:n]
	return nil
}

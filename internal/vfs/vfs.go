// Package vfs implements the virtual filesystem layer: a registry of
// filesystem drivers (no capacity limit), a mount table capped at
// kconfig.VFSMaxMounts, path parsing over the
// "mount:subpath" grammar, and dispatch to a filesystem's FilesystemOps.
package vfs

import (
	"strings"

	"kestrel/internal/block"
	"kestrel/internal/kconfig"
	"kestrel/internal/kernerr"
	"kestrel/internal/klog"
)

var log = klog.Get("vfs")

// NodeKind distinguishes a file node from a directory node.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindDir
)

// Stat describes a node's metadata, returned by FilesystemOps.Stat.
type Stat struct {
	Size uint64
	Kind NodeKind
}

// Node is a heap-allocated open handle into a mounted filesystem. It
// carries the owning filesystem instance and a filesystem-private handle
// opaque to the VFS.
type Node struct {
	FS      *Mount
	Private any
	Kind    NodeKind
}

// FilesystemOps is the capability vtable a concrete filesystem driver
// implements. Write is optional: a read-only filesystem leaves it nil and
// vfs.Write returns PermissionDenied.
type FilesystemOps struct {
	Mount   func(dev *block.Device) (fsPrivate any, err error)
	Open    func(fsPrivate any, subpath string) (*Node, error)
	Read    func(n *Node, off uint64, buf []byte) (int, error)
	Write   func(n *Node, off uint64, buf []byte) (int, error)
	Readdir func(n *Node, index int) (name string, ok bool, err error)
	Stat    func(n *Node) (Stat, error)
	Create  func(fsPrivate any, subpath string) (*Node, error)
	Unlink  func(fsPrivate any, subpath string) error
}

// driver is a registered filesystem driver: a name and the ops it
// implements mounts of that type with.
type driver struct {
	name string
	ops  FilesystemOps
}

// Mount is one active mount: a name routing path prefixes to a
// filesystem instance.
type Mount struct {
	Name    string
	ops     FilesystemOps
	private any
}

// VFS owns the driver and mount registries.
type VFS struct {
	drivers []driver
	mounts  []*Mount
}

// New constructs an empty VFS.
func New() *VFS {
	return &VFS{}
}

// RegisterDriver registers a filesystem driver under name. Re-registering
// the same name overwrites the previous entry.
func (v *VFS) RegisterDriver(name string, ops FilesystemOps) {
	for i := range v.drivers {
		if v.drivers[i].name == name {
			v.drivers[i].ops = ops
			return
		}
	}
	v.drivers = append(v.drivers, driver{name: name, ops: ops})
}

func (v *VFS) findDriver(name string) (FilesystemOps, bool) {
	for _, d := range v.drivers {
		if d.name == name {
			return d.ops, true
		}
	}
	return FilesystemOps{}, false
}

// FindMount returns the mount registered under name, or nil.
func (v *VFS) FindMount(name string) *Mount {
	for _, m := range v.mounts {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Mounts returns the currently registered mounts in registration order.
func (v *VFS) Mounts() []*Mount {
	return v.mounts
}

// Mount looks up the fsName driver and, if devName is non-empty, the
// named block device, calls the driver's Mount to obtain its private
// state, and registers the result under mountName.
func (v *VFS) Mount(registry *block.Registry, fsName, mountName, devName string) error {
	if len(mountName) == 0 || len(mountName) > kconfig.MountNameMaxLen {
		return kernerr.New("vfs", kernerr.InvalidArgument, "mount name length out of range: "+mountName)
	}
	if v.FindMount(mountName) != nil {
		return kernerr.New("vfs", kernerr.InvalidArgument, "mount name already in use: "+mountName)
	}
	if len(v.mounts) >= kconfig.VFSMaxMounts {
		return kernerr.New("vfs", kernerr.OutOfMemory, "mount table full")
	}

	ops, ok := v.findDriver(fsName)
	if !ok {
		return kernerr.New("vfs", kernerr.NotFound, "no filesystem driver named "+fsName)
	}

	var dev *block.Device
	if devName != "" {
		dev = registry.Find(devName)
		if dev == nil {
			return kernerr.New("vfs", kernerr.NotFound, "no block device named "+devName)
		}
	}

	priv, err := ops.Mount(dev)
	if err != nil {
		return err
	}

	m := &Mount{Name: mountName, ops: ops, private: priv}
	v.mounts = append(v.mounts, m)
	log.Debugf("mounted %s as %s (dev=%s)", fsName, mountName, devName)
	return nil
}

// SplitPath parses "mount:subpath" into its mount name and subpath. The
// subpath always begins with "/"; "mount:" alone resolves to "mount:/".
func SplitPath(path string) (mountName, subpath string, err error) {
	idx := strings.IndexByte(path, ':')
	if idx < 0 {
		return "", "", kernerr.New("vfs", kernerr.InvalidArgument, "path missing mount prefix: "+path)
	}
	mountName = path[:idx]
	subpath = path[idx+1:]
	if subpath == "" {
		subpath = "/"
	}
	if subpath[0] != '/' {
		return "", "", kernerr.New("vfs", kernerr.InvalidArgument, "subpath must begin with /: "+path)
	}
	return mountName, subpath, nil
}

func (v *VFS) resolve(path string) (*Mount, string, error) {
	mountName, subpath, err := SplitPath(path)
	if err != nil {
		return nil, "", err
	}
	m := v.FindMount(mountName)
	if m == nil {
		return nil, "", kernerr.New("vfs", kernerr.NotFound, "no mount named "+mountName)
	}
	return m, subpath, nil
}

// Open parses path, dispatches to the owning filesystem's Open, and
// returns the resulting node handle.
func (v *VFS) Open(path string) (*Node, error) {
	m, subpath, err := v.resolve(path)
	if err != nil {
		return nil, err
	}
	if m.ops.Open == nil {
		return nil, kernerr.New("vfs", kernerr.PermissionDenied, "open not supported on "+m.Name)
	}
	n, err := m.ops.Open(m.private, subpath)
	if err != nil {
		return nil, err
	}
	n.FS = m
	return n, nil
}

// Read reads into buf at off from an already-open node.
func (v *VFS) Read(n *Node, off uint64, buf []byte) (int, error) {
	if n.FS.ops.Read == nil {
		return 0, kernerr.New("vfs", kernerr.PermissionDenied, "read not supported on "+n.FS.Name)
	}
	return n.FS.ops.Read(n, off, buf)
}

// Write writes buf at off to an already-open node.
func (v *VFS) Write(n *Node, off uint64, buf []byte) (int, error) {
	if n.FS.ops.Write == nil {
		return 0, kernerr.New("vfs", kernerr.PermissionDenied, "write not supported on "+n.FS.Name)
	}
	return n.FS.ops.Write(n, off, buf)
}

// Readdir returns the index-th directory entry of an already-open
// directory node.
func (v *VFS) Readdir(n *Node, index int) (string, bool, error) {
	if n.FS.ops.Readdir == nil {
		return "", false, kernerr.New("vfs", kernerr.PermissionDenied, "readdir not supported on "+n.FS.Name)
	}
	return n.FS.ops.Readdir(n, index)
}

// Stat returns metadata for an already-open node.
func (v *VFS) Stat(n *Node) (Stat, error) {
	if n.FS.ops.Stat == nil {
		return Stat{}, kernerr.New("vfs", kernerr.PermissionDenied, "stat not supported on "+n.FS.Name)
	}
	return n.FS.ops.Stat(n)
}

// Create creates subpath within the filesystem mounted at path's mount
// and returns the new node.
func (v *VFS) Create(path string) (*Node, error) {
	m, subpath, err := v.resolve(path)
	if err != nil {
		return nil, err
	}
	if m.ops.Create == nil {
		return nil, kernerr.New("vfs", kernerr.PermissionDenied, "create not supported on "+m.Name)
	}
	n, err := m.ops.Create(m.private, subpath)
	if err != nil {
		return nil, err
	}
	n.FS = m
	return n, nil
}

// Unlink removes the node named by path.
func (v *VFS) Unlink(path string) error {
	m, subpath, err := v.resolve(path)
	if err != nil {
		return err
	}
	if m.ops.Unlink == nil {
		return kernerr.New("vfs", kernerr.PermissionDenied, "unlink not supported on "+m.Name)
	}
	return m.ops.Unlink(m.private, subpath)
}

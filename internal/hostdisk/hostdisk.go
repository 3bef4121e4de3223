//go:build linux

// Package hostdisk backs a block.Device with a memory-mapped regular
// file, the way cmd/mkdisk needs to turn a disk image on the host
// filesystem into something internal/block, internal/exfat, and
// internal/vfs can operate on unmodified.
//
// Grounded on the mmap-a-file-as-a-byte-slice pattern other_examples'
// uffd_linux.go and kvm.go.go use for similar host-side raw memory
// access, via golang.org/x/sys/unix rather than the syscall package.
package hostdisk

import (
	"os"

	"golang.org/x/sys/unix"

	"kestrel/internal/block"
)

type hostdiskOps struct{}

type hostdiskPrivate struct {
	sectorSize uint32
	data       []byte
}

func (hostdiskOps) ReadAt(priv any, lba uint64, buf []byte) error {
	p := priv.(*hostdiskPrivate)
	off := lba * uint64(p.sectorSize)
	copy(buf, p.data[off:off+uint64(len(buf))])
	return nil
}

func (hostdiskOps) WriteAt(priv any, lba uint64, buf []byte) error {
	p := priv.(*hostdiskPrivate)
	off := lba * uint64(p.sectorSize)
	copy(p.data[off:off+uint64(len(buf))], buf)
	return nil
}

// Disk is an open mmap-backed image file. Close unmaps and closes it.
type Disk struct {
	*block.Device
	file *os.File
	priv *hostdiskPrivate
}

// Close unmaps the image and closes the underlying file.
func (d *Disk) Close() error {
	err := unix.Munmap(d.priv.data)
	if cerr := d.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func open(f *os.File, name string, sectorSize uint32) (*Disk, error) {
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	priv := &hostdiskPrivate{sectorSize: sectorSize, data: data}
	dev := &block.Device{
		Name:        name,
		SectorSize:  sectorSize,
		SectorCount: uint64(size) / uint64(sectorSize),
		Ops:         hostdiskOps{},
		Private:     priv,
	}
	return &Disk{Device: dev, file: f, priv: priv}, nil
}

// Open mmaps an existing image file at path as a block device named name.
func Open(path string, name string, sectorSize uint32) (*Disk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return open(f, name, sectorSize)
}

// Create truncates path to sizeBytes (creating it if necessary) and mmaps
// it as a block device named name.
func Create(path string, name string, sizeBytes uint64, sectorSize uint32) (*Disk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(sizeBytes)); err != nil {
		f.Close()
		return nil, err
	}
	return open(f, name, sectorSize)
}

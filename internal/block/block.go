// Package block implements the block device layer: a global registry of
// named devices and an MBR partition scanner that registers partition
// sub-devices translating LBAs onto their parent.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"kestrel/internal/kernerr"
	"kestrel/internal/klog"
)

var log = klog.Get("block")

// DefaultSectorSize is the sector size assumed where a device does not
// otherwise specify one.
const DefaultSectorSize = 512

// Ops is the operation vtable a concrete device backend supplies.
type Ops interface {
	ReadAt(priv any, lba uint64, buf []byte) error
	WriteAt(priv any, lba uint64, buf []byte) error
}

// Device is one registered block device: a fixed-geometry, named sector
// range backed by an Ops implementation and an opaque private handle.
type Device struct {
	Name        string
	SectorSize  uint32
	SectorCount uint64
	Ops         Ops
	Private     any

	next *Device
}

// ReadSectors reads count sectors starting at lba into buf, which must be
// at least count*SectorSize bytes.
func (d *Device) ReadSectors(lba uint64, count uint64, buf []byte) error {
	if lba+count > d.SectorCount {
		return kernerr.New("block", kernerr.InvalidArgument, "read past end of device "+d.Name)
	}
	need := count * uint64(d.SectorSize)
	if uint64(len(buf)) < need {
		return kernerr.New("block", kernerr.ShortIO, "buffer too small for "+d.Name)
	}
	return d.Ops.ReadAt(d.Private, lba, buf[:need])
}

// WriteSectors writes count sectors starting at lba from buf.
func (d *Device) WriteSectors(lba uint64, count uint64, buf []byte) error {
	if lba+count > d.SectorCount {
		return kernerr.New("block", kernerr.InvalidArgument, "write past end of device "+d.Name)
	}
	need := count * uint64(d.SectorSize)
	if uint64(len(buf)) < need {
		return kernerr.New("block", kernerr.ShortIO, "buffer too small for "+d.Name)
	}
	return d.Ops.WriteAt(d.Private, lba, buf[:need])
}

// Registry is a singly linked list of registered devices, newest first.
type Registry struct {
	head *Device
}

// NewRegistry constructs an empty device registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register prepends dev to the registry.
func (r *Registry) Register(dev *Device) {
	dev.next = r.head
	r.head = dev
	log.Debugf("registered device %s (%d sectors x %d)", dev.Name, dev.SectorCount, dev.SectorSize)
}

// Find returns the device with the given name, or nil if none matches.
func (r *Registry) Find(name string) *Device {
	for d := r.head; d != nil; d = d.next {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// First returns the most recently registered device, or nil if the
// registry is empty.
func (r *Registry) First() *Device {
	return r.head
}

// Next returns the device registered immediately before dev, or nil if
// dev is the last in the chain.
func (r *Registry) Next(dev *Device) *Device {
	if dev == nil {
		return nil
	}
	return dev.next
}

// mbrPartitionEntry is one 16-byte MBR partition table entry.
type mbrPartitionEntry struct {
	status      uint8
	chsFirst    [3]byte
	partType    uint8
	chsLast     [3]byte
	startLBA    uint32
	sectorCount uint32
}

func parseMBRPartitionEntry(b []byte) mbrPartitionEntry {
	return mbrPartitionEntry{
		status:      b[0],
		chsFirst:    [3]byte{b[1], b[2], b[3]},
		partType:    b[4],
		chsLast:     [3]byte{b[5], b[6], b[7]},
		startLBA:    binary.LittleEndian.Uint32(b[8:12]),
		sectorCount: binary.LittleEndian.Uint32(b[12:16]),
	}
}

// partitionOps translates LBAs onto a fixed offset within a parent
// device; it never recurses, so extended partitions are inert.
type partitionOps struct{}

type partitionPrivate struct {
	parent *Device
	start  uint64
}

func (partitionOps) ReadAt(priv any, lba uint64, buf []byte) error {
	p := priv.(*partitionPrivate)
	return p.parent.ReadSectors(p.start+lba, uint64(len(buf))/uint64(p.parent.SectorSize), buf)
}

func (partitionOps) WriteAt(priv any, lba uint64, buf []byte) error {
	p := priv.(*partitionPrivate)
	return p.parent.WriteSectors(p.start+lba, uint64(len(buf))/uint64(p.parent.SectorSize), buf)
}

const (
	mbrSignatureOffset = 510
	mbrTableOffset     = 446
	mbrEntrySize       = 16
	mbrEntryCount      = 4
)

// ScanMBR reads dev's LBA 0 and, if it carries a valid 0x55AA MBR
// signature, registers a partition sub-device named "<dev.Name>p<1..4>"
// for each non-empty table entry (type != 0, sector count > 0). Entries
// with type 0 or a zero sector count are skipped; extended partitions
// are registered as a plain sub-device like any other and are not
// recursed into.
func ScanMBR(r *Registry, dev *Device) error {
	if dev.SectorSize != DefaultSectorSize {
		return nil
	}
	sector := make([]byte, dev.SectorSize)
	if err := dev.ReadSectors(0, 1, sector); err != nil {
		return errors.Wrapf(err, "block: reading MBR sector of %s", dev.Name)
	}
	if sector[mbrSignatureOffset] != 0x55 || sector[mbrSignatureOffset+1] != 0xAA {
		return nil
	}

	for i := 0; i < mbrEntryCount; i++ {
		off := mbrTableOffset + i*mbrEntrySize
		entry := parseMBRPartitionEntry(sector[off : off+mbrEntrySize])
		if entry.partType == 0 || entry.sectorCount == 0 {
			continue
		}
		part := &Device{
			Name:        fmt.Sprintf("%sp%d", dev.Name, i+1),
			SectorSize:  dev.SectorSize,
			SectorCount: uint64(entry.sectorCount),
			Ops:         partitionOps{},
			Private: &partitionPrivate{
				parent: dev,
				start:  uint64(entry.startLBA),
			},
		}
		r.Register(part)
	}
	return nil
}

// Package exfat implements the minimal exFAT subset this kernel core
// mounts and writes: VBR geometry parsing, 32-bit FAT chains, a single-
// cluster root directory, and flat (one level deep) file open/read/
// write/create/unlink.
package exfat

import (
	"encoding/binary"

	"github.com/go-restruct/restruct"
	"github.com/pkg/errors"

	"kestrel/internal/block"
	"kestrel/internal/kernerr"
	"kestrel/internal/klog"
)

var log = klog.Get("exfat")

var signature = [8]byte{'E', 'X', 'F', 'A', 'T', ' ', ' ', ' '}

const vbrSize = 512

// vbr mirrors the on-disk VBR layout, sized and offset exactly as this
// core's subset requires: the reserved spans stand in for fields real
// exFAT defines there that this core never reads.
type vbr struct {
	JumpBoot               [3]byte
	FileSystemName         [8]byte
	Reserved0              [97]byte
	BytesPerSectorShift    uint8
	SectorsPerClusterShift uint8
	Reserved1              [18]byte
	FatOffset              uint32
	FatLength              uint32
	ClusterHeapOffset      uint32
	Reserved2              [20]byte
	FirstRootCluster       uint32
	Reserved3              [346]byte
	BootSignature          uint16
}

// geometry is the derived, working form of a mounted volume's layout.
type geometry struct {
	bytesPerSector    uint32
	sectorsPerCluster uint32
	clusterSize       uint32
	fatOffset         uint32 // sectors
	fatLength         uint32 // sectors
	clusterHeapOffset uint32 // sectors
	firstRootCluster  uint32
}

func parseVBR(sector []byte) (*vbr, error) {
	var v vbr
	if err := restruct.Unpack(sector, binary.LittleEndian, &v); err != nil {
		return nil, errors.Wrap(err, "exfat: unpacking VBR")
	}
	if v.FileSystemName != signature {
		return nil, kernerr.New("exfat", kernerr.BadFormat, "missing EXFAT signature")
	}
	return &v, nil
}

func geometryFromVBR(v *vbr) geometry {
	bps := uint32(1) << v.BytesPerSectorShift
	spc := uint32(1) << v.SectorsPerClusterShift
	return geometry{
		bytesPerSector:    bps,
		sectorsPerCluster: spc,
		clusterSize:       bps * spc,
		fatOffset:         v.FatOffset,
		fatLength:         v.FatLength,
		clusterHeapOffset: v.ClusterHeapOffset,
		firstRootCluster:  v.FirstRootCluster,
	}
}

// clusterLBA returns the sector address of the first sector of cluster,
// which must be >= 2 (the first two FAT-chain values are reserved).
func (g geometry) clusterLBA(cluster uint32) uint64 {
	return uint64(g.clusterHeapOffset) + uint64(cluster-2)*uint64(g.sectorsPerCluster)
}

// FS is a mounted exFAT volume.
type FS struct {
	dev *block.Device
	geo geometry
}

// Geometry is a read-only snapshot of a mounted volume's layout, for
// tools that report on a volume without driving its file operations
// (cmd/exfatinfo, cmd/mkdisk inspect).
type Geometry struct {
	BytesPerSector    uint32
	SectorsPerCluster uint32
	ClusterSize       uint32
	FatOffsetSectors  uint32
	FatLengthSectors  uint32
	ClusterHeapOffset uint32
	FirstRootCluster  uint32
}

// Geometry returns fs's layout.
func (fs *FS) Geometry() Geometry {
	return Geometry{
		BytesPerSector:    fs.geo.bytesPerSector,
		SectorsPerCluster: fs.geo.sectorsPerCluster,
		ClusterSize:       fs.geo.clusterSize,
		FatOffsetSectors:  fs.geo.fatOffset,
		FatLengthSectors:  fs.geo.fatLength,
		ClusterHeapOffset: fs.geo.clusterHeapOffset,
		FirstRootCluster:  fs.geo.firstRootCluster,
	}
}

// Mount reads and validates dev's VBR at LBA 0 and returns a ready FS.
func Mount(dev *block.Device) (*FS, error) {
	sector := make([]byte, vbrSize)
	if err := dev.ReadSectors(0, 1, sector); err != nil {
		return nil, errors.Wrap(err, "exfat: reading VBR")
	}
	v, err := parseVBR(sector)
	if err != nil {
		return nil, err
	}
	geo := geometryFromVBR(v)

	log.Debugf("mounted exfat: bps=%d spc=%d fatOffset=%d fatLength=%d heapOffset=%d rootCluster=%d",
		geo.bytesPerSector, geo.sectorsPerCluster, geo.fatOffset, geo.fatLength, geo.clusterHeapOffset, geo.firstRootCluster)

	return &FS{dev: dev, geo: geo}, nil
}

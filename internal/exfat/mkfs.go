package exfat

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"kestrel/internal/block"
	"kestrel/internal/kconfig"
)

// Format writes a minimal VBR to dev sufficient for a subsequent Mount:
// a 512-byte sector, 4096-byte clusters, a FAT sized for the whole
// device, and a one-cluster root directory at cluster 2, the start of a
// cluster heap that follows the FAT rounded up to a cluster boundary.
// This does not allocate a real allocation-bitmap or up-case table
// region; neither is read by this core's Mount (spec.md section 4.9's
// Non-goal).
func Format(dev *block.Device) error {
	const bytesPerSectorShift = 9 // 512
	const sectorsPerClusterShift = 3 // 4096-byte clusters at 512B sectors
	sectorsPerCluster := uint32(1) << sectorsPerClusterShift

	fatOffsetSectors := uint32(32) // leave room for VBR + backup + reserved
	totalClusters := uint32(dev.SectorCount) / sectorsPerCluster
	fatBytes := uint64(totalClusters) * fatEntrySize
	fatLengthSectors := uint32((fatBytes + kconfig.DefaultSectorSize - 1) / kconfig.DefaultSectorSize)
	if fatLengthSectors == 0 {
		fatLengthSectors = 1
	}

	clusterHeapOffsetSectors := fatOffsetSectors + fatLengthSectors
	// Round the cluster heap start up to a whole cluster boundary.
	rem := clusterHeapOffsetSectors % sectorsPerCluster
	if rem != 0 {
		clusterHeapOffsetSectors += sectorsPerCluster - rem
	}

	rootCluster := uint32(2)

	sector := make([]byte, kconfig.DefaultSectorSize)
	copy(sector[3:11], signature[:])
	sector[0x6C] = bytesPerSectorShift
	sector[0x6D] = sectorsPerClusterShift
	binary.LittleEndian.PutUint32(sector[0x80:0x84], fatOffsetSectors)
	binary.LittleEndian.PutUint32(sector[0x84:0x88], fatLengthSectors)
	binary.LittleEndian.PutUint32(sector[0x88:0x8C], clusterHeapOffsetSectors)
	binary.LittleEndian.PutUint32(sector[0xA0:0xA4], rootCluster)
	sector[0x1FE] = 0x55
	sector[0x1FF] = 0xAA

	if err := dev.WriteSectors(0, 1, sector); err != nil {
		return errors.Wrap(err, "exfat: writing VBR")
	}

	fs := &FS{
		dev: dev,
		geo: geometry{
			bytesPerSector:    kconfig.DefaultSectorSize,
			sectorsPerCluster: sectorsPerCluster,
			clusterSize:       kconfig.DefaultSectorSize * sectorsPerCluster,
			fatOffset:         fatOffsetSectors,
			fatLength:         fatLengthSectors,
			clusterHeapOffset: clusterHeapOffsetSectors,
			firstRootCluster:  rootCluster,
		},
	}

	if err := fs.fatSet(rootCluster, fatEOC); err != nil {
		return err
	}

	empty := make([]byte, fs.geo.clusterSize)
	return fs.writeRootCluster(empty)
}

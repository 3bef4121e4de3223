package exfat

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"kestrel/internal/kernerr"
)

const (
	fatEntrySize = 4
	fatFree      = uint32(0)
	fatEOC       = uint32(0xFFFFFFFF)
)

// fatGet reads the 32-bit FAT entry for cluster.
func (fs *FS) fatGet(cluster uint32) (uint32, error) {
	byteOff := uint64(cluster) * fatEntrySize
	lba := uint64(fs.geo.fatOffset) + byteOff/uint64(fs.geo.bytesPerSector)
	within := byteOff % uint64(fs.geo.bytesPerSector)

	sector := make([]byte, fs.geo.bytesPerSector)
	if err := fs.dev.ReadSectors(lba, 1, sector); err != nil {
		return 0, errors.Wrap(err, "exfat: reading FAT sector")
	}
	return binary.LittleEndian.Uint32(sector[within : within+4]), nil
}

// fatSet writes the 32-bit FAT entry for cluster via read-modify-write.
func (fs *FS) fatSet(cluster uint32, value uint32) error {
	byteOff := uint64(cluster) * fatEntrySize
	lba := uint64(fs.geo.fatOffset) + byteOff/uint64(fs.geo.bytesPerSector)
	within := byteOff % uint64(fs.geo.bytesPerSector)

	sector := make([]byte, fs.geo.bytesPerSector)
	if err := fs.dev.ReadSectors(lba, 1, sector); err != nil {
		return errors.Wrap(err, "exfat: reading FAT sector")
	}
	binary.LittleEndian.PutUint32(sector[within:within+4], value)
	if err := fs.dev.WriteSectors(lba, 1, sector); err != nil {
		return errors.Wrap(err, "exfat: writing FAT sector")
	}
	return nil
}

// allocChain walks the free-cluster scan (FAT entries equal to fatFree),
// linking count new clusters into a chain terminated by fatEOC, and
// returns the first cluster of the new chain.
func (fs *FS) allocChain(count int) (uint32, error) {
	if count <= 0 {
		return 0, kernerr.New("exfat", kernerr.InvalidArgument, "allocChain requires count > 0")
	}

	found := make([]uint32, 0, count)
	totalClusters := fs.totalClusters()
	for c := uint32(2); c < totalClusters && len(found) < count; c++ {
		v, err := fs.fatGet(c)
		if err != nil {
			return 0, err
		}
		if v == fatFree {
			found = append(found, c)
		}
	}
	if len(found) < count {
		return 0, kernerr.New("exfat", kernerr.OutOfMemory, "no free clusters available")
	}

	for i, c := range found {
		if i == len(found)-1 {
			if err := fs.fatSet(c, fatEOC); err != nil {
				return 0, err
			}
		} else if err := fs.fatSet(c, found[i+1]); err != nil {
			return 0, err
		}
	}
	return found[0], nil
}

// extendChain walks from the last cluster of an existing chain (found by
// walking from first) and appends enough new clusters to bring the chain
// length up to targetCount.
func (fs *FS) extendChain(first uint32, targetCount int) error {
	clusters, err := fs.chainClusters(first)
	if err != nil {
		return err
	}
	need := targetCount - len(clusters)
	if need <= 0 {
		return nil
	}
	newFirst, err := fs.allocChain(need)
	if err != nil {
		return err
	}
	last := clusters[len(clusters)-1]
	return fs.fatSet(last, newFirst)
}

// chainClusters walks the chain starting at first, returning every
// cluster index up to and including the one whose FAT entry is fatEOC.
func (fs *FS) chainClusters(first uint32) ([]uint32, error) {
	var out []uint32
	c := first
	for {
		out = append(out, c)
		v, err := fs.fatGet(c)
		if err != nil {
			return nil, err
		}
		if v == fatEOC || v == fatFree {
			break
		}
		c = v
	}
	return out, nil
}

// freeChain walks the chain starting at first, setting each entry to
// fatFree.
func (fs *FS) freeChain(first uint32) error {
	c := first
	for {
		v, err := fs.fatGet(c)
		if err != nil {
			return err
		}
		if err := fs.fatSet(c, fatFree); err != nil {
			return err
		}
		if v == fatEOC || v == fatFree {
			break
		}
		c = v
	}
	return nil
}

func (fs *FS) totalClusters() uint32 {
	spc := uint64(max(1, fs.geo.sectorsPerCluster))
	return uint32(fs.dev.SectorCount / spc)
}

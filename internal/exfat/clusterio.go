package exfat

import (
	"github.com/pkg/errors"

	"kestrel/internal/kernerr"
)

// readChain copies up to len(buf) bytes starting at byte offset off
// within the cluster chain beginning at first, skipping off/clusterSize
// whole clusters, then reading within the current cluster from
// off%clusterSize onward and advancing cluster-by-cluster until len(buf)
// bytes are copied or a free/EOC link is reached.
func (fs *FS) readChain(first uint32, off uint64, buf []byte) (int, error) {
	clusterSize := uint64(fs.geo.clusterSize)
	skip := off / clusterSize
	within := off % clusterSize

	cluster := first
	for i := uint64(0); i < skip; i++ {
		v, err := fs.fatGet(cluster)
		if err != nil {
			return 0, err
		}
		if v == fatFree || v == fatEOC {
			return 0, nil
		}
		cluster = v
	}

	done := 0
	for done < len(buf) {
		data, err := fs.readClusterBytes(cluster)
		if err != nil {
			return done, err
		}
		n := copy(buf[done:], data[within:])
		done += n
		within = 0

		if done >= len(buf) {
			break
		}
		v, err := fs.fatGet(cluster)
		if err != nil {
			return done, err
		}
		if v == fatFree || v == fatEOC {
			break
		}
		cluster = v
	}
	return done, nil
}

// writeChain ensures the chain beginning at first has enough clusters to
// cover off+len(buf) bytes, extending it via allocChain/extendChain if
// needed, then performs a read-modify-write per cluster along the chain.
// It returns the number of bytes written and the (possibly unchanged)
// first cluster of the chain.
func (fs *FS) writeChain(first uint32, off uint64, buf []byte) (int, uint32, error) {
	clusterSize := uint64(fs.geo.clusterSize)
	end := off + uint64(len(buf))
	neededClusters := int((end + clusterSize - 1) / clusterSize)
	if neededClusters < 1 {
		neededClusters = 1
	}

	if first == 0 {
		newFirst, err := fs.allocChain(neededClusters)
		if err != nil {
			return 0, 0, err
		}
		first = newFirst
	} else if err := fs.extendChain(first, neededClusters); err != nil {
		return 0, first, err
	}

	skip := off / clusterSize
	within := off % clusterSize

	cluster := first
	for i := uint64(0); i < skip; i++ {
		v, err := fs.fatGet(cluster)
		if err != nil {
			return 0, first, err
		}
		if v == fatFree || v == fatEOC {
			return 0, first, kernerr.New("exfat", kernerr.ShortIO, "chain shorter than expected during write")
		}
		cluster = v
	}

	done := 0
	for done < len(buf) {
		data, err := fs.readClusterBytes(cluster)
		if err != nil {
			return done, first, err
		}
		n := copy(data[within:], buf[done:])
		if err := fs.writeClusterBytes(cluster, data); err != nil {
			return done, first, err
		}
		done += n
		within = 0

		if done >= len(buf) {
			break
		}
		v, err := fs.fatGet(cluster)
		if err != nil {
			return done, first, errors.Wrap(err, "exfat: walking chain during write")
		}
		if v == fatFree || v == fatEOC {
			break
		}
		cluster = v
	}
	return done, first, nil
}

func (fs *FS) readClusterBytes(cluster uint32) ([]byte, error) {
	data := make([]byte, fs.geo.clusterSize)
	lba := fs.geo.clusterLBA(cluster)
	if err := fs.dev.ReadSectors(lba, uint64(fs.geo.sectorsPerCluster), data); err != nil {
		return nil, errors.Wrap(err, "exfat: reading cluster")
	}
	return data, nil
}

func (fs *FS) writeClusterBytes(cluster uint32, data []byte) error {
	lba := fs.geo.clusterLBA(cluster)
	if err := fs.dev.WriteSectors(lba, uint64(fs.geo.sectorsPerCluster), data); err != nil {
		return errors.Wrap(err, "exfat: writing cluster")
	}
	return nil
}

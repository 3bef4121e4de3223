// Package devfs presents each registered block device as a file under a
// single mount, handling partial-sector head/tail I/O and capping middle
// batches the way spec.md section 4.8 requires.
package devfs

import (
	"kestrel/internal/block"
	"kestrel/internal/kconfig"
	"kestrel/internal/kernerr"
	"kestrel/internal/vfs"
)

// nodePrivate is devfs's per-node state: dev is nil for the root
// directory node, set for a node bound to one device. registry is
// carried on every node so Readdir can enumerate without a second
// lookup through the VFS mount.
type nodePrivate struct {
	registry *block.Registry
	dev      *block.Device
}

// Bind returns the FilesystemOps devfs registers under a driver name
// (conventionally "devfs"). The returned Mount closure ignores the
// block.Device argument vfs.VFS.Mount passes — devfs reflects the whole
// registry, not one backing device — and returns registry itself as the
// filesystem-private state.
func Bind(registry *block.Registry) vfs.FilesystemOps {
	return vfs.FilesystemOps{
		Mount: func(dev *block.Device) (any, error) {
			return registry, nil
		},
		Open:    openFn,
		Read:    readFn,
		Write:   writeFn,
		Readdir: readdirFn,
		Stat:    statFn,
	}
}

func openFn(fsPrivate any, subpath string) (*vfs.Node, error) {
	registry := fsPrivate.(*block.Registry)
	if subpath == "/" {
		return &vfs.Node{Private: &nodePrivate{registry: registry}, Kind: vfs.KindDir}, nil
	}
	name := subpath[1:]
	dev := registry.Find(name)
	if dev == nil {
		return nil, kernerr.New("devfs", kernerr.NotFound, "no device named "+name)
	}
	return &vfs.Node{Private: &nodePrivate{registry: registry, dev: dev}, Kind: vfs.KindFile}, nil
}

func statFn(n *vfs.Node) (vfs.Stat, error) {
	np := n.Private.(*nodePrivate)
	if np.dev == nil {
		return vfs.Stat{Kind: vfs.KindDir}, nil
	}
	return vfs.Stat{
		Kind: vfs.KindFile,
		Size: np.dev.SectorCount * uint64(np.dev.SectorSize),
	}, nil
}

// registrationOrder walks the registry's most-recent-first chain into a
// slice and reverses it, so index 0 is the first device ever registered.
func registrationOrder(r *block.Registry) []*block.Device {
	var devs []*block.Device
	for d := r.First(); d != nil; d = r.Next(d) {
		devs = append(devs, d)
	}
	for i, j := 0, len(devs)-1; i < j; i, j = i+1, j-1 {
		devs[i], devs[j] = devs[j], devs[i]
	}
	return devs
}

func readdirFn(n *vfs.Node, index int) (string, bool, error) {
	np := n.Private.(*nodePrivate)
	if np.dev != nil {
		return "", false, kernerr.New("devfs", kernerr.InvalidArgument, "readdir on non-directory node")
	}
	devs := registrationOrder(np.registry)
	if index < 0 || index >= len(devs) {
		return "", false, nil
	}
	return devs[index].Name, true, nil
}

func readFn(n *vfs.Node, off uint64, buf []byte) (int, error) {
	np := n.Private.(*nodePrivate)
	if np.dev == nil {
		return 0, kernerr.New("devfs", kernerr.InvalidArgument, "read on directory node")
	}
	return transfer(np.dev, off, buf, false)
}

func writeFn(n *vfs.Node, off uint64, buf []byte) (int, error) {
	np := n.Private.(*nodePrivate)
	if np.dev == nil {
		return 0, kernerr.New("devfs", kernerr.InvalidArgument, "write on directory node")
	}
	return transfer(np.dev, off, buf, true)
}

// transfer handles an arbitrary byte-range I/O against dev, truncating
// short at device end: a partial head sector via read-modify-copy, a
// batch of full middle sectors capped at kconfig.DevfsMaxBatchSectors per
// underlying op call, and a partial tail sector.
func transfer(dev *block.Device, off uint64, buf []byte, write bool) (int, error) {
	size := dev.SectorCount * uint64(dev.SectorSize)
	if off >= size {
		return 0, nil
	}
	if off+uint64(len(buf)) > size {
		buf = buf[:size-off]
	}

	sectorSize := uint64(dev.SectorSize)
	done := 0
	remaining := buf
	lba := off / sectorSize
	inSector := off % sectorSize

	if inSector != 0 {
		sector := make([]byte, sectorSize)
		if err := dev.ReadSectors(lba, 1, sector); err != nil {
			return done, err
		}
		n := sectorSize - inSector
		if uint64(len(remaining)) < n {
			n = uint64(len(remaining))
		}
		if write {
			copy(sector[inSector:], remaining[:n])
			if err := dev.WriteSectors(lba, 1, sector); err != nil {
				return done, err
			}
		} else {
			copy(remaining[:n], sector[inSector:inSector+n])
		}
		done += int(n)
		remaining = remaining[n:]
		lba++
	}

	for len(remaining) >= int(sectorSize) {
		batchSectors := uint64(len(remaining)) / sectorSize
		if batchSectors > kconfig.DevfsMaxBatchSectors {
			batchSectors = kconfig.DevfsMaxBatchSectors
		}
		batchBytes := batchSectors * sectorSize
		var err error
		if write {
			err = dev.WriteSectors(lba, batchSectors, remaining[:batchBytes])
		} else {
			err = dev.ReadSectors(lba, batchSectors, remaining[:batchBytes])
		}
		if err != nil {
			return done, err
		}
		done += int(batchBytes)
		remaining = remaining[batchBytes:]
		lba += batchSectors
	}

	if len(remaining) > 0 {
		sector := make([]byte, sectorSize)
		if err := dev.ReadSectors(lba, 1, sector); err != nil {
			return done, err
		}
		n := len(remaining)
		if write {
			copy(sector[:n], remaining)
			if err := dev.WriteSectors(lba, 1, sector); err != nil {
				return done, err
			}
		} else {
			copy(remaining, sector[:n])
		}
		done += n
	}

	return done, nil
}

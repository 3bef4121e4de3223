package block

// ramdiskOps backs a Device entirely with an in-memory byte slice. It
// exists for tests and for the shell's mkram command, which has no real
// disk to format.
type ramdiskOps struct{}

type ramdiskPrivate struct {
	sectorSize uint32
	data       []byte
}

func (ramdiskOps) ReadAt(priv any, lba uint64, buf []byte) error {
	p := priv.(*ramdiskPrivate)
	off := lba * uint64(p.sectorSize)
	copy(buf, p.data[off:off+uint64(len(buf))])
	return nil
}

func (ramdiskOps) WriteAt(priv any, lba uint64, buf []byte) error {
	p := priv.(*ramdiskPrivate)
	off := lba * uint64(p.sectorSize)
	copy(p.data[off:off+uint64(len(buf))], buf)
	return nil
}

// NewRAMDisk allocates a zero-filled in-memory device of sectorCount
// sectors at DefaultSectorSize and registers it under name.
func NewRAMDisk(r *Registry, name string, sectorCount uint64) *Device {
	priv := &ramdiskPrivate{
		sectorSize: DefaultSectorSize,
		data:       make([]byte, sectorCount*DefaultSectorSize),
	}
	dev := &Device{
		Name:        name,
		SectorSize:  DefaultSectorSize,
		SectorCount: sectorCount,
		Ops:         ramdiskOps{},
		Private:     priv,
	}
	r.Register(dev)
	return dev
}

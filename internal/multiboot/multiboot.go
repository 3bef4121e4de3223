// Package multiboot decodes the subset of the Multiboot2 information blob
// spec.md section 4.1 and 6 require: the legacy and EFI memory maps, basic
// meminfo, the framebuffer tag, and module tags.
//
// Unlike the teacher kernel's tag walkers, which dereference unsafe
// pointers straight into physical memory, this parser reads from a []byte
// snapshot of the info blob. The kernel entrypoint is the only place that
// turns the loader-supplied pointer into that slice (via unsafe.Slice over
// the blob's reported total size); everything below this boundary is
// ordinary, testable byte-buffer decoding, matching the "decode by offset,
// not by struct punning" design note in spec.md section 9.
package multiboot

import "encoding/binary"

// Tag type values (spec.md section 6).
const (
	TagMemoryMap     uint32 = 6
	TagBasicMeminfo  uint32 = 4
	TagEFIMemoryMap  uint32 = 17
	TagFramebuffer   uint32 = 8
	TagModule        uint32 = 3
	tagTerminator    uint32 = 0
)

// MemoryRegionType mirrors the legacy memory map entry's type field.
type MemoryRegionType uint32

const (
	// RegionAvailable is the legacy entry type 1, "usable".
	RegionAvailable MemoryRegionType = 1
	// RegionReserved covers every other legacy type.
	RegionReserved MemoryRegionType = 2
)

// MemoryRegion is one entry of either the legacy or the EFI memory map,
// normalized to a common shape.
type MemoryRegion struct {
	Base uint64
	Len  uint64
	Type MemoryRegionType
}

// BasicMeminfo is the Multiboot2 "basic meminfo" tag payload.
type BasicMeminfo struct {
	LowerKiB uint32
	UpperKiB uint32
}

// Framebuffer is the Multiboot2 framebuffer tag payload.
type Framebuffer struct {
	Addr   uint64
	Pitch  uint32
	Width  uint32
	Height uint32
	BPP    uint8
	Type   uint8
}

// Module is one Multiboot2 module tag: a physical address range plus the
// command-line string that followed it.
type Module struct {
	Start uint64
	End   uint64
	Cmd   string
}

// Info is the fully decoded result of parsing a Multiboot2 info blob. A
// missing tag leaves its corresponding field at its zero value / nil.
type Info struct {
	// FromUEFI records whether an EFI memory map tag was present, so the
	// PMM can prefer it over the legacy map per spec.md section 4.1.
	FromUEFI bool

	LegacyRegions []MemoryRegion
	EFIRegions    []MemoryRegion
	Meminfo       *BasicMeminfo
	Framebuffer   *Framebuffer
	Modules       []Module
}

// Parse decodes blob, a byte-exact copy of the Multiboot2 info structure
// (an 8-byte header — total size and a reserved dword — followed by a
// sequence of 8-byte-aligned tags). A nil or too-short blob yields a zero
// Info with no regions; the PMM then reports zero memory, matching spec.md
// section 4.1's "fails silently" contract.
func Parse(blob []byte) *Info {
	info := &Info{}
	if len(blob) < 8 {
		return info
	}

	totalSize := binary.LittleEndian.Uint32(blob[0:4])
	if uint64(totalSize) > uint64(len(blob)) {
		totalSize = uint32(len(blob))
	}

	offset := uint32(8)
	for offset+8 <= totalSize {
		tagType := binary.LittleEndian.Uint32(blob[offset : offset+4])
		tagSize := binary.LittleEndian.Uint32(blob[offset+4 : offset+8])
		if tagType == tagTerminator || tagSize < 8 {
			break
		}
		payloadStart := offset + 8
		payloadEnd := offset + tagSize
		if payloadEnd > totalSize || payloadEnd < payloadStart {
			break
		}
		payload := blob[payloadStart:payloadEnd]

		switch tagType {
		case TagMemoryMap:
			info.LegacyRegions = parseLegacyMemoryMap(payload)
		case TagEFIMemoryMap:
			info.EFIRegions = parseEFIMemoryMap(payload)
			info.FromUEFI = true
		case TagBasicMeminfo:
			if len(payload) >= 8 {
				info.Meminfo = &BasicMeminfo{
					LowerKiB: binary.LittleEndian.Uint32(payload[0:4]),
					UpperKiB: binary.LittleEndian.Uint32(payload[4:8]),
				}
			}
		case TagFramebuffer:
			if len(payload) >= 15 {
				info.Framebuffer = &Framebuffer{
					Addr:   binary.LittleEndian.Uint64(payload[0:8]),
					Pitch:  binary.LittleEndian.Uint32(payload[8:12]),
					Width:  binary.LittleEndian.Uint32(payload[12:16]),
					Height: binary.LittleEndian.Uint32(payload[16:20]),
					BPP:    payload[20],
					Type:   payload[21],
				}
			}
		case TagModule:
			if len(payload) >= 8 {
				start := binary.LittleEndian.Uint32(payload[0:4])
				end := binary.LittleEndian.Uint32(payload[4:8])
				cmd := cString(payload[8:])
				info.Modules = append(info.Modules, Module{Start: uint64(start), End: uint64(end), Cmd: cmd})
			}
		}

		// Next tag starts at the current offset plus this tag's size,
		// rounded up to an 8-byte boundary (spec.md section 4.1/6).
		offset = (offset + tagSize + 7) &^ 7
	}

	return info
}

func parseLegacyMemoryMap(payload []byte) []MemoryRegion {
	if len(payload) < 8 {
		return nil
	}
	entrySize := binary.LittleEndian.Uint32(payload[0:4])
	if entrySize < 24 {
		return nil
	}
	var regions []MemoryRegion
	for off := uint32(8); off+entrySize <= uint32(len(payload)); off += entrySize {
		entry := payload[off : off+entrySize]
		base := binary.LittleEndian.Uint64(entry[0:8])
		length := binary.LittleEndian.Uint64(entry[8:16])
		typ := binary.LittleEndian.Uint32(entry[16:20])

		rtype := RegionReserved
		if typ == 1 {
			rtype = RegionAvailable
		}
		regions = append(regions, MemoryRegion{Base: base, Len: length, Type: rtype})
	}
	return regions
}

// efiConventionalMemory is the EFI descriptor Type value that denotes
// usable memory (spec.md section 6).
const efiConventionalMemory = 7

func parseEFIMemoryMap(payload []byte) []MemoryRegion {
	if len(payload) < 8 {
		return nil
	}
	descSize := binary.LittleEndian.Uint32(payload[0:4])
	// descVersion := binary.LittleEndian.Uint32(payload[4:8])
	if descSize < 40 {
		return nil
	}
	var regions []MemoryRegion
	for off := uint32(8); off+descSize <= uint32(len(payload)); off += descSize {
		desc := payload[off : off+descSize]
		typ := binary.LittleEndian.Uint32(desc[0:4])
		physStart := binary.LittleEndian.Uint64(desc[8:16])
		numPages := binary.LittleEndian.Uint64(desc[16:24])

		rtype := RegionReserved
		if typ == efiConventionalMemory {
			rtype = RegionAvailable
		}
		regions = append(regions, MemoryRegion{
			Base: physStart,
			Len:  numPages * 4096,
			Type: rtype,
		})
	}
	return regions
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

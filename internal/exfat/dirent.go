package exfat

import (
	"encoding/binary"
	"unicode/utf16"

	"kestrel/internal/kernerr"
)

const (
	entryTypePrimary = 0x85
	entryTypeStream  = 0xC0
	entryTypeName    = 0xC1
	entryTypeEnd     = 0x00

	direntSize       = 32
	nameUnitsPerSlot = 15
)

// dirEntry is one reconstructed file entry from a directory entry set.
type dirEntry struct {
	name           string
	firstCluster   uint32
	size           uint64
	secondaryCount uint8
	setOffset      int // byte offset of the primary entry within the directory cluster
}

// parseDescState tracks progress through the {None -> Primary -> Stream
// -> Name*} sequence spec.md's design notes call for.
type parseDescState int

const (
	stateNone parseDescState = iota
	stateWantStream
	stateWantNameOrEmit
)

// parseDirectory scans a directory cluster's raw bytes into a slice of
// file entries. Scanning stops at the first entry whose type byte is
// 0x00, or at the end of the buffer.
func parseDirectory(data []byte) ([]dirEntry, error) {
	var entries []dirEntry
	state := stateNone
	var cur dirEntry
	var nameUnits []uint16
	var wantNameUnits int

	for off := 0; off+direntSize <= len(data); off += direntSize {
		slot := data[off : off+direntSize]
		entryType := slot[0]

		if entryType == entryTypeEnd {
			break
		}

		switch state {
		case stateNone:
			if entryType != entryTypePrimary {
				continue
			}
			cur = dirEntry{secondaryCount: slot[1], setOffset: off}
			state = stateWantStream

		case stateWantStream:
			if entryType != entryTypeStream {
				state = stateNone
				continue
			}
			nameLen := int(slot[3])
			cur.firstCluster = binary.LittleEndian.Uint32(slot[20:24])
			cur.size = binary.LittleEndian.Uint64(slot[24:32])
			wantNameUnits = nameLen
			nameUnits = nameUnits[:0]
			state = stateWantNameOrEmit

		case stateWantNameOrEmit:
			if entryType != entryTypeName {
				state = stateNone
				continue
			}
			for i := 0; i < nameUnitsPerSlot; i++ {
				u := binary.LittleEndian.Uint16(slot[2+i*2 : 4+i*2])
				nameUnits = append(nameUnits, u)
			}
			if len(nameUnits) >= wantNameUnits {
				cur.name = decodeName(nameUnits[:wantNameUnits])
				entries = append(entries, cur)
				state = stateNone
			}
		}
	}

	return entries, nil
}

// decodeName renders UTF-16LE code units as a string, lossily replacing
// non-ASCII characters with '?' per spec.md's "this core" rendering rule.
func decodeName(units []uint16) string {
	runes := utf16.Decode(units)
	out := make([]rune, len(runes))
	for i, r := range runes {
		if r > 0x7F {
			out[i] = '?'
		} else {
			out[i] = r
		}
	}
	return string(out)
}

// encodeName renders an ASCII name into the UTF-16LE code units the
// on-disk file-name entries carry.
func encodeName(name string) []uint16 {
	units := make([]uint16, len(name))
	for i := 0; i < len(name); i++ {
		units[i] = uint16(name[i])
	}
	return units
}

// writeEntrySet renders a primary+stream+name entry set for name at
// firstCluster with the given size into dst starting at off, returning
// the number of 32-byte slots used.
func writeEntrySet(dst []byte, off int, name string, firstCluster uint32, size uint64) (int, error) {
	units := encodeName(name)
	nameSlots := (len(units) + nameUnitsPerSlot - 1) / nameUnitsPerSlot
	if nameSlots == 0 {
		nameSlots = 1
	}
	totalSlots := 2 + nameSlots
	if off+totalSlots*direntSize+direntSize > len(dst) {
		return 0, kernerr.New("exfat", kernerr.OutOfMemory, "root directory full")
	}

	primary := dst[off : off+direntSize]
	primary[0] = entryTypePrimary
	primary[1] = uint8(1 + nameSlots)

	stream := dst[off+direntSize : off+2*direntSize]
	stream[0] = entryTypeStream
	stream[3] = uint8(len(units))
	binary.LittleEndian.PutUint32(stream[20:24], firstCluster)
	binary.LittleEndian.PutUint64(stream[24:32], size)

	for s := 0; s < nameSlots; s++ {
		slot := dst[off+(2+s)*direntSize : off+(3+s)*direntSize]
		slot[0] = entryTypeName
		for i := 0; i < nameUnitsPerSlot; i++ {
			idx := s*nameUnitsPerSlot + i
			var u uint16
			if idx < len(units) {
				u = units[idx]
			}
			binary.LittleEndian.PutUint16(slot[2+i*2:4+i*2], u)
		}
	}

	return totalSlots, nil
}

// rewriteStreamSize patches the stream-extension entry of the set
// beginning at setOffset with a new size and first cluster.
func rewriteStreamSize(data []byte, setOffset int, firstCluster uint32, size uint64) {
	stream := data[setOffset+direntSize : setOffset+2*direntSize]
	binary.LittleEndian.PutUint32(stream[20:24], firstCluster)
	binary.LittleEndian.PutUint64(stream[24:32], size)
}

// clearEntrySet zeroes every slot of the entry set beginning at
// setOffset, spanning secondaryCount+1 total entries, and leaves the
// first slot's type byte as the 0x00 end marker it already is after
// zeroing.
func clearEntrySet(data []byte, setOffset int, secondaryCount uint8) {
	span := (int(secondaryCount) + 1) * direntSize
	for i := 0; i < span && setOffset+i < len(data); i++ {
		data[setOffset+i] = 0
	}
}

// Package vmm implements x86_64 4-level paging (PML4/PDPT/PD/PT) over an
// internal/physmem Arena, in the style of the teacher kernel's mmu.go
// (lazy table creation, explicit shift/mask index extraction, an
// identity-mapping bootstrap) generalized from ARM64's 4-level
// descriptor format to Intel's.
package vmm

import (
	"kestrel/internal/kernerr"
	"kestrel/internal/klog"
	"kestrel/internal/pmm"
	"kestrel/internal/physmem"
)

var log = klog.Get("vmm")

// Entry flag bits, matching the PTE layout spec.md section 4.3 describes.
const (
	FlagPresent   uint64 = 1 << 0
	FlagWritable  uint64 = 1 << 1
	FlagUser      uint64 = 1 << 2
	FlagNoExecute uint64 = 1 << 63

	addrMask = ^uint64(0xFFF)
	pageSize = 4096
)

// Manager owns a root page table (PML4) and the PMM it asks for fresh
// table frames.
type Manager struct {
	arena *physmem.Arena
	pmm   *pmm.Manager
	root  uint64
}

// New constructs a Manager bound to arena and frames. Call InitIdentity
// or load an existing root before translating/mapping.
func New(arena *physmem.Arena, frames *pmm.Manager) *Manager {
	return &Manager{arena: arena, pmm: frames}
}

// Root returns the physical address of the current root table (PML4),
// the value that would be loaded into CR3 on real hardware.
func (m *Manager) Root() uint64 { return m.root }

func index(va uint64, shift uint) uint64 {
	return (va >> shift) & 0x1FF
}

// getEntry walks root down to the requested page table level for va,
// creating absent intermediate tables (zeroed, Present|Writable) when
// create is true. It returns the physical address of the final-level
// entry slot (the PTE, not its target).
//
// Level shifts, in descending order: PML4 (39), PDPT (30), PD (21),
// PT (12) (spec.md section 4.3).
func (m *Manager) getEntry(va uint64, create bool) (uint64, error) {
	shifts := [4]uint{39, 30, 21, 12}
	table := m.root

	for level, shift := range shifts {
		idx := index(va, shift)
		entryAddr := table + idx*8

		entry, err := m.arena.ReadUint64(entryAddr)
		if err != nil {
			return 0, err
		}

		if level == len(shifts)-1 {
			return entryAddr, nil
		}

		if entry&FlagPresent == 0 {
			if !create {
				return 0, kernerr.New("vmm", kernerr.NotMapped, "no mapping for va %#x at level %d", va, level)
			}

			childFrame, err := m.pmm.AllocFrames(1)
			if err != nil {
				return 0, err
			}
			if err := m.arena.Zero(childFrame, pageSize); err != nil {
				return 0, err
			}
			entry = (childFrame &^ 0xFFF) | FlagPresent | FlagWritable
			if err := m.arena.WriteUint64(entryAddr, entry); err != nil {
				return 0, err
			}
		}

		table = entry & addrMask
	}

	// Unreachable: the loop always returns at the final level.
	return 0, kernerr.New("vmm", kernerr.NotMapped, "no mapping for va %#x", va)
}

// InitIdentity allocates a fresh root table and identity-maps [0, 1 GiB)
// with 4 KiB pages, Present|Writable (spec.md section 4.3).
func (m *Manager) InitIdentity() error {
	rootFrame, err := m.pmm.AllocFrames(1)
	if err != nil {
		return err
	}
	if err := m.arena.Zero(rootFrame, pageSize); err != nil {
		return err
	}
	m.root = rootFrame

	const oneGiB = 1 << 30
	for addr := uint64(0); addr < oneGiB; addr += pageSize {
		if err := m.MapPage(addr, addr, FlagPresent|FlagWritable); err != nil {
			return err
		}
	}

	log.Infof("init_identity: root=%#x mapped [0, %#x)", m.root, uint64(oneGiB))
	return nil
}

// MapPage ensures the intermediate tables for va exist, then writes the
// final PTE as (pa &^ 0xFFF) | (flags &^ pageSizeBit), followed by a
// single-page TLB invalidation.
func (m *Manager) MapPage(va, pa uint64, flags uint64) error {
	entryAddr, err := m.getEntry(va, true)
	if err != nil {
		return err
	}
	const pageSizeBit uint64 = 1 << 7
	pte := (pa &^ 0xFFF) | (flags &^ pageSizeBit)
	if err := m.arena.WriteUint64(entryAddr, pte); err != nil {
		return err
	}
	m.invalidate(va)
	return nil
}

// UnmapPage zeroes the PTE for va if present, then invalidates the TLB
// entry for va. Unmapping an already-absent page is a no-op.
func (m *Manager) UnmapPage(va uint64) error {
	entryAddr, err := m.getEntry(va, false)
	if err != nil {
		if ke, ok := err.(*kernerr.Error); ok && kernerr.Is(ke, kernerr.NotMapped) {
			return nil
		}
		return err
	}
	if err := m.arena.WriteUint64(entryAddr, 0); err != nil {
		return err
	}
	m.invalidate(va)
	return nil
}

// Translate walks the tables without creating any, returning the
// physical address for va if a present mapping exists.
func (m *Manager) Translate(va uint64) (uint64, error) {
	entryAddr, err := m.getEntry(va, false)
	if err != nil {
		return 0, err
	}
	pte, err := m.arena.ReadUint64(entryAddr)
	if err != nil {
		return 0, err
	}
	if pte&FlagPresent == 0 {
		return 0, kernerr.New("vmm", kernerr.NotMapped, "va %#x not mapped", va)
	}
	return (pte & addrMask) | (va & 0xFFF), nil
}

// invalidate is a single-page TLB shootdown stub. A hosted build has no
// TLB to flush; on real hardware this becomes an INVLPG instruction.
func (m *Manager) invalidate(va uint64) {
	log.Debugf("invlpg %#x", va)
}

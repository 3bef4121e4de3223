// Command kestrel is the hosted entrypoint: it stands in for the
// Multiboot2 loader handoff and the real-hardware boot sequence, wiring
// the memory manager, scheduler, block layer, VFS, and shell together the
// way a bare-metal _start would, then runs the shell over stdin/stdout.
package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"kestrel/internal/block"
	"kestrel/internal/console"
	"kestrel/internal/exfat"
	"kestrel/internal/kheap"
	"kestrel/internal/klog"
	"kestrel/internal/multiboot"
	"kestrel/internal/physmem"
	"kestrel/internal/pmm"
	"kestrel/internal/sched"
	"kestrel/internal/shell"
	"kestrel/internal/vfs"
	"kestrel/internal/vfs/devfs"
	"kestrel/internal/vmm"
)

var log = klog.Get("boot")

// hostedRAMBase and hostedRAMSize describe the memory a hosted run
// simulates: the low 1 MiB reserved, and 64 MiB of usable RAM above it.
// A real loader hands the kernel a blob shaped exactly like the one
// hostedMemoryMap builds, at a fixed physical address; this entrypoint
// is the only place that ever needs to know that shape.
const (
	hostedRAMBase = 0x100000
	hostedRAMSize = 64 << 20
)

func hostedMemoryMap() []byte {
	const entrySize = 24
	regions := []multiboot.MemoryRegion{
		{Base: 0x0, Len: hostedRAMBase, Type: multiboot.RegionReserved},
		{Base: hostedRAMBase, Len: hostedRAMSize, Type: multiboot.RegionAvailable},
	}

	payload := make([]byte, 8+entrySize*len(regions))
	binary.LittleEndian.PutUint32(payload[0:4], entrySize)
	for i, r := range regions {
		off := 8 + i*entrySize
		binary.LittleEndian.PutUint64(payload[off:off+8], r.Base)
		binary.LittleEndian.PutUint64(payload[off+8:off+16], r.Len)
		typ := uint32(2)
		if r.Type == multiboot.RegionAvailable {
			typ = 1
		}
		binary.LittleEndian.PutUint32(payload[off+16:off+20], typ)
	}

	tagSize := uint32(8 + len(payload))
	tag := make([]byte, tagSize)
	binary.LittleEndian.PutUint32(tag[0:4], multiboot.TagMemoryMap)
	binary.LittleEndian.PutUint32(tag[4:8], tagSize)
	copy(tag[8:], payload)

	blob := make([]byte, 8+len(tag))
	binary.LittleEndian.PutUint32(blob[0:4], uint32(len(blob)))
	copy(blob[8:], tag)
	return blob
}

func boot() (*shell.Shell, error) {
	info := multiboot.Parse(hostedMemoryMap())
	frames := pmm.Init(info, info.FromUEFI)
	log.Infof("pmm: %d bytes usable, %d bytes free", frames.TotalUsableBytes(), frames.FreeBytes())

	arena := physmem.NewArena(hostedRAMBase + hostedRAMSize)
	pager := vmm.New(arena, frames)
	if err := pager.InitIdentity(); err != nil {
		return nil, fmt.Errorf("vmm init: %w", err)
	}
	log.Infof("vmm: identity-mapped root at %#x", pager.Root())

	heap := kheap.New(1 << 20)
	scheduler := sched.New()

	registry := block.NewRegistry()
	root := vfs.New()
	root.RegisterDriver("devfs", devfs.Bind(registry))
	root.RegisterDriver("exfat", exfat.Bind())
	if err := root.Mount(registry, "devfs", "dev", ""); err != nil {
		return nil, fmt.Errorf("mounting devfs: %w", err)
	}

	con := console.New(os.Stdout)
	sh := shell.New(con, registry, root, frames, heap, scheduler)
	sh.BootInfo = fmt.Sprintf("kestrel boot: %d bytes usable, %d bytes free, heap %d bytes",
		frames.TotalUsableBytes(), frames.FreeBytes(), len(heap.Bytes()))
	return sh, nil
}

func repl(sh *shell.Shell, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, sh.Pwd()+"> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if err := sh.Dispatch(line); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}

func main() {
	sh, err := boot()
	if err != nil {
		fmt.Fprintln(os.Stderr, "boot failed:", err)
		os.Exit(1)
	}
	repl(sh, os.Stdin, os.Stdout)
}

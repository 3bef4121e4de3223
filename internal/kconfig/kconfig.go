// Package kconfig collects the build-time tunables the rest of the kernel
// core references, the way the teacher kernel centralizes PAGE_SIZE,
// KERNEL_HEAP_SIZE, and HEAP_ALIGNMENT in heap.go. There is no runtime
// config file: a kernel core has no filesystem to read one from until long
// after these values are needed.
package kconfig

const (
	// FrameSize is the physical memory allocation unit (spec.md section 3).
	FrameSize = 4096

	// PMMAddressCap bounds the physical memory this core's PMM will ever
	// track, regardless of what a larger memory map reports (spec.md
	// section 4.2).
	PMMAddressCap = 4 << 30 // 4 GiB

	// PMMMaxFrames bounds the bitmap's compile-time capacity.
	PMMMaxFrames = PMMAddressCap / FrameSize

	// LowMemoryReserveBytes is the always-reserved low memory region
	// (frame 0 plus the full low 1 MiB, spec.md section 4.2).
	LowMemoryReserveBytes = 1 << 20

	// HeapAlignment is the byte alignment the early heap guarantees for
	// every allocation (spec.md section 4.4).
	HeapAlignment = 16

	// SchedulerMaxThreads is the fixed-capacity static thread table size
	// (spec.md section 4.5).
	SchedulerMaxThreads = 8

	// SchedulerStackSize is the fixed per-thread stack size, 16-byte
	// aligned (spec.md section 4.5).
	SchedulerStackSize = 16 * 1024

	// DefaultSectorSize is the block layer's default sector size
	// (spec.md section 4.6).
	DefaultSectorSize = 512

	// DevfsMaxBatchSectors bounds a single middle-batch transfer in
	// devfs's read/write path (spec.md section 4.8).
	DevfsMaxBatchSectors = 128

	// MountNameMaxLen is the maximum length of a mount name (spec.md
	// section 3, Mount invariant).
	MountNameMaxLen = 7

	// VFSMaxMounts bounds the VFS mount table (spec.md section 4.7).
	// VFSMaxFilesystems is not enforced: vfs.RegisterDriver accepts any
	// number of drivers.
	VFSMaxFilesystems = 16
	VFSMaxMounts      = 8

	// BlockMaxPartitionsPerDevice is the number of primary partition
	// slots the MBR scan inspects (spec.md section 4.6).
	BlockMaxPartitionsPerDevice = 4
)

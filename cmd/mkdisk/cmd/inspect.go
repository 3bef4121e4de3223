//go:build linux

package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kestrel/internal/block"
	"kestrel/internal/exfat"
	"kestrel/internal/hostdisk"
	"kestrel/internal/vfs"
)

func defineInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "inspect <image-path>",
		Short:        "Print MBR partitions and exFAT geometry for a disk image",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runInspect,
	}
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	disk, err := hostdisk.Open(path, "image", block.DefaultSectorSize)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer disk.Close()

	fmt.Printf("%s: %s (%d sectors x %d)\n", path, humanize.Bytes(disk.SectorCount*uint64(disk.SectorSize)), disk.SectorCount, disk.SectorSize)

	registry := block.NewRegistry()
	registry.Register(disk.Device)
	if err := block.ScanMBR(registry, disk.Device); err != nil {
		return fmt.Errorf("scanning MBR: %w", err)
	}
	for d := registry.First(); d != nil; d = registry.Next(d) {
		if d != disk.Device {
			fmt.Printf("  partition %s: %d sectors\n", d.Name, d.SectorCount)
		}
	}

	fs, err := exfat.Mount(disk.Device)
	if err != nil {
		fmt.Println("no exfat volume found:", err)
		return nil
	}
	geo := fs.Geometry()
	fmt.Printf("exfat: bytes/sector=%d sectors/cluster=%d fat=[%d,+%d) heap@%d root-cluster=%d\n",
		geo.BytesPerSector, geo.SectorsPerCluster, geo.FatOffsetSectors, geo.FatLengthSectors,
		geo.ClusterHeapOffset, geo.FirstRootCluster)

	root := vfs.New()
	root.RegisterDriver("exfat", exfat.Bind())
	if err := root.Mount(registry, "exfat", "root", disk.Name); err != nil {
		return fmt.Errorf("mounting exfat: %w", err)
	}
	return printRootDirectory(root)
}

func printRootDirectory(root *vfs.VFS) error {
	n, err := root.Open("root:/")
	if err != nil {
		return err
	}
	fmt.Println("root directory entries:")
	for i := 0; ; i++ {
		name, ok, err := root.Readdir(n, i)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		fmt.Println(" ", name)
	}
	return nil
}

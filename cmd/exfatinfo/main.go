//go:build linux

// Command exfatinfo prints a kestrel exFAT volume's VBR geometry and,
// with -l, its root directory listing. Grounded on
// dsoprea-go-exfat's cmd/exfat_print_boot_sector_header, translated from
// that tool's flags.NewParser/log.PanicIf/recover idiom to plain error
// returns, matching this core's own propagation policy.
package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"kestrel/internal/block"
	"kestrel/internal/exfat"
	"kestrel/internal/hostdisk"
	"kestrel/internal/vfs"
)

type options struct {
	Filepath string `short:"f" long:"filepath" description:"Path to the disk image" required:"true"`
	List     bool   `short:"l" long:"list" description:"List the root directory"`
}

func run(opts options) error {
	disk, err := hostdisk.Open(opts.Filepath, "image", block.DefaultSectorSize)
	if err != nil {
		return fmt.Errorf("opening %s: %w", opts.Filepath, err)
	}
	defer disk.Close()

	fs, err := exfat.Mount(disk.Device)
	if err != nil {
		return fmt.Errorf("mounting: %w", err)
	}
	geo := fs.Geometry()
	fmt.Printf("bytes/sector:      %d\n", geo.BytesPerSector)
	fmt.Printf("sectors/cluster:   %d\n", geo.SectorsPerCluster)
	fmt.Printf("cluster size:      %d\n", geo.ClusterSize)
	fmt.Printf("fat offset:        %d sectors\n", geo.FatOffsetSectors)
	fmt.Printf("fat length:        %d sectors\n", geo.FatLengthSectors)
	fmt.Printf("cluster heap:      sector %d\n", geo.ClusterHeapOffset)
	fmt.Printf("root cluster:      %d\n", geo.FirstRootCluster)

	if !opts.List {
		return nil
	}

	registry := block.NewRegistry()
	registry.Register(disk.Device)
	root := vfs.New()
	root.RegisterDriver("exfat", exfat.Bind())
	if err := root.Mount(registry, "exfat", "root", disk.Name); err != nil {
		return fmt.Errorf("mounting for listing: %w", err)
	}
	n, err := root.Open("root:/")
	if err != nil {
		return err
	}
	fmt.Println("root directory:")
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

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

//go:build linux

package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kestrel/internal/block"
	"kestrel/internal/exfat"
	"kestrel/internal/hostdisk"
)

func defineFormatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "format <image-path> <size>",
		Short:        "Create a disk image and lay out a minimal exFAT volume on it",
		Long:         "size accepts a byte count or a humanized size such as 64MiB.",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         runFormat,
	}
	return cmd
}

func runFormat(cmd *cobra.Command, args []string) error {
	path, sizeArg := args[0], args[1]
	size, err := humanize.ParseBytes(sizeArg)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", sizeArg, err)
	}

	disk, err := hostdisk.Create(path, "image", size, block.DefaultSectorSize)
	if err != nil {
		return fmt.Errorf("creating image: %w", err)
	}
	defer disk.Close()

	if err := exfat.Format(disk.Device); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}

	fmt.Printf("formatted %s: %s (%d sectors)\n", path, humanize.Bytes(size), disk.SectorCount)
	return nil
}

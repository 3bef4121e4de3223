//go:build linux

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/spf13/cobra"

	"kestrel/internal/block"
	"kestrel/internal/exfat"
	"kestrel/internal/hostdisk"
	"kestrel/internal/vfs"
)

func defineMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mount <image-path> <mountpoint>",
		Short:        "Debug-mount an exFAT image's root directory read-only via FUSE",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         runMount,
	}
	return cmd
}

func runMount(cmd *cobra.Command, args []string) error {
	imagePath, mountpoint := args[0], args[1]

	disk, err := hostdisk.Open(imagePath, "image", block.DefaultSectorSize)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer disk.Close()

	registry := block.NewRegistry()
	registry.Register(disk.Device)

	root := vfs.New()
	root.RegisterDriver("exfat", exfat.Bind())
	if err := root.Mount(registry, "exfat", "root", disk.Name); err != nil {
		return fmt.Errorf("mounting exfat: %w", err)
	}

	conn, err := fuse.Mount(mountpoint)
	if err != nil {
		return fmt.Errorf("fuse mount: %w", err)
	}
	defer conn.Close()

	go func() {
		if err := fusefs.New(conn, nil).Serve(&vfsFS{root: root}); err != nil {
			fmt.Fprintln(os.Stderr, "fuse serve:", err)
		}
	}()

	return waitForUnmount(mountpoint)
}

func waitForUnmount(mountpoint string) error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc
	return fuse.Unmount(mountpoint)
}

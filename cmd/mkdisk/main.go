//go:build linux

// Command mkdisk is a host-side tool for creating, inspecting, and
// debug-mounting the disk images this kernel core's block/exfat layers
// read, grounded on ostafen-digler's cmd/ cobra CLI.
package main

import (
	"fmt"
	"os"

	"kestrel/cmd/mkdisk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

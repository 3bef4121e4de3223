//go:build linux

// Package cmd implements mkdisk's cobra command tree. The whole tool is
// Linux-only: its format/inspect subcommands mmap a host file via
// golang.org/x/sys/unix, and its mount subcommand serves a FUSE
// projection, neither of which has a portable equivalent here.
package cmd

import (
	"github.com/spf13/cobra"
)

const appName = "mkdisk"

// Execute runs the mkdisk root command.
func Execute() error {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: appName + " - create, inspect, and mount kestrel disk images",
	}

	rootCmd.AddCommand(defineFormatCommand())
	rootCmd.AddCommand(defineInspectCommand())
	rootCmd.AddCommand(defineMountCommand())

	return rootCmd.Execute()
}

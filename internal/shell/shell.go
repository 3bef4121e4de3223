// Package shell implements the interactive command loop: a dispatch
// table of named commands operating on the kernel's PMM, scheduler,
// block registry, and VFS, reachable through either path grammar
// spec.md's external interface names.
package shell

import (
	"strings"

	"kestrel/internal/block"
	"kestrel/internal/kheap"
	"kestrel/internal/klog"
	"kestrel/internal/pmm"
	"kestrel/internal/sched"
	"kestrel/internal/vfs"
)

var log = klog.Get("shell")

// Console is the minimal output surface the shell writes to. Real
// VGA/serial consoles are out of this core's scope; tests and the host
// build supply a trivial implementation.
type Console interface {
	Write(s string)
}

// CommandFunc implements one shell command. args excludes the command
// name itself.
type CommandFunc func(sh *Shell, args []string) error

// Shell owns the command dispatch table and the kernel subsystem
// handles commands operate on, plus the working-directory state `cd`
// and `pwd` track.
type Shell struct {
	Console  Console
	Block    *block.Registry
	VFS      *vfs.VFS
	PMM      *pmm.Manager
	Heap     *kheap.Heap
	Sched    *sched.Scheduler
	BootInfo string // one-line boot summary for `info`

	cwdMount string
	cwdPath  string

	commands map[string]CommandFunc
}

// New constructs a shell wired to the given subsystem handles and
// registers the builtin command table.
func New(console Console, blk *block.Registry, v *vfs.VFS, frames *pmm.Manager, heap *kheap.Heap, scheduler *sched.Scheduler) *Shell {
	sh := &Shell{
		Console:  console,
		Block:    blk,
		VFS:      v,
		PMM:      frames,
		Heap:     heap,
		Sched:    scheduler,
		cwdMount: "",
		cwdPath:  "/",
		commands: make(map[string]CommandFunc),
	}
	registerBuiltins(sh)
	return sh
}

func (sh *Shell) println(s string) {
	sh.Console.Write(s + "\n")
}

// Dispatch tokenizes line on whitespace and runs the matching command.
// An empty line is a no-op; an unknown command returns InvalidArgument.
func (sh *Shell) Dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	cmd, ok := sh.commands[name]
	if !ok {
		return unknownCommandError(name)
	}
	return cmd(sh, args)
}

// Register adds or overwrites a command in the dispatch table.
func (sh *Shell) Register(name string, fn CommandFunc) {
	sh.commands[name] = fn
}

// CommandNames returns the registered command names, for `help`.
func (sh *Shell) CommandNames() []string {
	names := make([]string, 0, len(sh.commands))
	for name := range sh.commands {
		names = append(names, name)
	}
	return names
}

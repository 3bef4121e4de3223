// Package klog provides the kernel's leveled, module-scoped logging on top
// of github.com/dsoprea/go-logging. It plays the role the teacher kernel's
// uartPuts call sites play — a trace left at nearly every step of bring-up
// — but keeps the messages structured and routable instead of being free
// strings written straight to a UART register.
//
// Before the console is attached, records accumulate in an in-memory ring
// so that PMM/VMM/heap bring-up tracing survives to be inspected later by
// the shell's "info" command, the same way a real machine's early boot log
// would otherwise be lost the moment the UART is reconfigured for the
// shell.
package klog

import (
	"context"
	"fmt"
	"io"
	"sync"

	log "github.com/dsoprea/go-logging"
)

const ringCapacity = 512

// Logger is a module-scoped leveled logger.
type Logger struct {
	module string
}

var (
	mu      sync.Mutex
	ring    [ringCapacity]string
	ringLen int
	ringPos int
	console io.Writer
)

// Get returns the logger for the named module (e.g. "pmm", "vmm",
// "exfat"). Loggers are cheap to create; callers typically keep one as a
// package-level var.
func Get(module string) *Logger {
	return &Logger{module: module}
}

// SetConsole redirects all future records to w in addition to the ring
// buffer. Until it is called, records go only to the ring buffer and the
// go-logging backend; the hosted entrypoint (cmd/kestrel) does not call it.
func SetConsole(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	console = w
}

func record(level, module, msg string) {
	line := fmt.Sprintf("[%s] %s: %s", level, module, msg)

	mu.Lock()
	ring[ringPos] = line
	ringPos = (ringPos + 1) % ringCapacity
	if ringLen < ringCapacity {
		ringLen++
	}
	w := console
	mu.Unlock()

	if w != nil {
		fmt.Fprintln(w, line)
	}
}

// History returns the buffered trace records, oldest first. It is used by
// the shell's "info" command to show boot-time tracing that predates
// console bring-up.
func History() []string {
	mu.Lock()
	defer mu.Unlock()

	out := make([]string, ringLen)
	start := ringPos - ringLen
	if start < 0 {
		start += ringCapacity
	}
	for i := 0; i < ringLen; i++ {
		out[i] = ring[(start+i)%ringCapacity]
	}
	return out
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Debugf(context.TODO(), "%s", msg)
	record("DEBUG", l.module, msg)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Infof(context.TODO(), "%s", msg)
	record("INFO", l.module, msg)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Warningf(context.TODO(), "%s", msg)
	record("WARN", l.module, msg)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Errorf(context.TODO(), "%s", msg)
	record("ERROR", l.module, msg)
}

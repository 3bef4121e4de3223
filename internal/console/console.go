// Package console implements the shell.Console surface the VGA/serial
// hardware this core's Non-goals exclude would otherwise back. In place
// of the teacher's uartPutc-per-byte loop (kernel.go's uartPutsBytes), it
// writes whole lines to an io.Writer, which in the hosted build is the
// host process's stdout.
package console

import "io"

// Writer adapts an io.Writer to shell.Console.
type Writer struct {
	w io.Writer
}

// New wraps w as a shell console.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write sends s to the underlying writer, ignoring any write error the
// way a UART with a full FIFO would simply drop characters rather than
// block the kernel.
func (c *Writer) Write(s string) {
	io.WriteString(c.w, s)
}

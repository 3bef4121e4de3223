// Package kernerr defines the error kinds the kernel core surfaces to its
// callers. None of them are fatal: a failure propagates as a negative
// return to the caller, which reports through the shell and continues.
package kernerr

import "fmt"

// Kind is one of the error kinds enumerated in spec.md section 7.
type Kind int

const (
	// OutOfMemory is returned when the PMM or the early heap is exhausted.
	OutOfMemory Kind = iota
	// NotMapped is returned by the VMM when translate/unmap targets an
	// absent page-table entry.
	NotMapped
	// NotFound covers a missing mount, fs driver, path component, or
	// partition slot.
	NotFound
	// BadFormat covers a missing MBR signature, a wrong exFAT signature,
	// or an otherwise impossible on-disk layout.
	BadFormat
	// PermissionDenied is returned when an operation the filesystem does
	// not implement (e.g. write on a read-only fs) is attempted.
	PermissionDenied
	// ShortIO is returned when the underlying block op returns fewer
	// sectors than requested.
	ShortIO
	// InvalidArgument covers zero-length requests, disallowed nil
	// pointers, and unknown shell commands.
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "out of memory"
	case NotMapped:
		return "not mapped"
	case NotFound:
		return "not found"
	case BadFormat:
		return "bad format"
	case PermissionDenied:
		return "permission denied"
	case ShortIO:
		return "short i/o"
	case InvalidArgument:
		return "invalid argument"
	default:
		return "unknown error"
	}
}

// Error is the error type the kernel core raises for its own failures.
// It names the module that raised it so the shell and the early log
// buffer can report failures without unwinding a stack trace.
type Error struct {
	Kind    Kind
	Module  string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Module, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Module, e.Kind, e.Message)
}

// New builds an *Error for module with the given kind and message.
func New(module string, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Module: module, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a *Error of the given kind. It does not use
// errors.As/Unwrap chains. exfat and block annotate some lower-level
// failures (including *Error values) with pkg/errors and return the
// wrapped value as-is, so such an error is not a *Error and cannot be
// checked with Is.
func Is(err *Error, kind Kind) bool {
	return err != nil && err.Kind == kind
}

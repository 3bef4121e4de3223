package shell

import (
	"strings"

	"kestrel/internal/kernerr"
)

func unknownCommandError(name string) error {
	return kernerr.New("shell", kernerr.InvalidArgument, "unknown command: "+name)
}

// resolvePath implements the dual path grammar spec.md's external
// interfaces section describes: a "mount:subpath" form is used as-is;
// a Unix-style form's first component is treated as a mount name if it
// names a known mount, otherwise the whole path is resolved relative to
// the current working mount and directory.
func (sh *Shell) resolvePath(input string) string {
	if idx := strings.IndexByte(input, ':'); idx >= 0 {
		return input
	}

	if strings.HasPrefix(input, "/") {
		rest := strings.TrimPrefix(input, "/")
		first, remainder, hasMore := strings.Cut(rest, "/")
		if sh.VFS.FindMount(first) != nil {
			if !hasMore || remainder == "" {
				return first + ":/"
			}
			return first + ":/" + remainder
		}
	}

	base := sh.cwdPath
	var joined string
	switch {
	case strings.HasPrefix(input, "/"):
		joined = input
	case base == "/":
		joined = "/" + input
	default:
		joined = base + "/" + input
	}
	mount := sh.cwdMount
	if mount == "" {
		mount = "root"
	}
	return mount + ":" + joined
}

// Pwd returns the current working path in mount-colon form.
func (sh *Shell) Pwd() string {
	mount := sh.cwdMount
	if mount == "" {
		mount = "root"
	}
	return mount + ":" + sh.cwdPath
}

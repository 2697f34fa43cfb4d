// Package pathutil checks slash-separated archive entry names.
package pathutil

import (
	"fmt"
	"strings"

	"github.com/meigma/apkrepack/internal/ziptype"
)

// IsDir reports whether name is a directory entry.
func IsDir(name string) bool {
	return strings.HasSuffix(name, "/")
}

// Check returns ErrInvalidPath unless name is a relative, clean,
// slash-separated path. A single trailing slash marks a directory.
func Check(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ziptype.ErrInvalidPath)
	case strings.HasPrefix(name, "/"):
		return fmt.Errorf("%w: %q is absolute", ziptype.ErrInvalidPath, name)
	case strings.ContainsAny(name, "\\\x00"):
		return fmt.Errorf("%w: %q contains a backslash or NUL", ziptype.ErrInvalidPath, name)
	case strings.ContainsAny(name, "\r\n"):
		// Names are written verbatim into manifest "Name:" lines.
		return fmt.Errorf("%w: %q contains a line break", ziptype.ErrInvalidPath, name)
	}

	for seg := range strings.SplitSeq(strings.TrimSuffix(name, "/"), "/") {
		switch seg {
		case "":
			return fmt.Errorf("%w: %q has an empty element", ziptype.ErrInvalidPath, name)
		case ".", "..":
			return fmt.Errorf("%w: %q has a %q element", ziptype.ErrInvalidPath, name, seg)
		}
	}
	return nil
}

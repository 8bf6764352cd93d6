package archive

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultContainmentPrefix is carried by the mount point of every pak built
// with the stock cooker.
const DefaultContainmentPrefix = "../../.."

var (
	// ErrPrefixMismatch means the joined path does not start with the containment prefix.
	ErrPrefixMismatch = errors.New("path does not start with containment prefix")
	// ErrNonRepresentablePath means the normalized path is not valid UTF-8.
	ErrNonRepresentablePath = errors.New("path is not representable as text")
)

// PathError reports a record that could not be normalized.
type PathError struct {
	MountPoint string
	RecordPath string
	Err        error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%v: mount point: %q asset path: %q", e.Err, e.MountPoint, e.RecordPath)
}

func (e *PathError) Unwrap() error { return e.Err }

// Normalize joins mountPoint and recordPath and strips prefix from the front.
// Both the join and the strip work on whole path components, so "../../..x"
// does not match a "../../.." prefix.
func Normalize(mountPoint, recordPath, prefix string) (string, error) {
	var joined []string
	if strings.HasPrefix(recordPath, "/") {
		// an absolute record replaces the mount point
		joined = components(recordPath)
	} else {
		joined = append(components(mountPoint), components(recordPath)...)
	}

	want := components(prefix)
	if !hasPrefix(joined, want) {
		return "", &PathError{MountPoint: mountPoint, RecordPath: recordPath, Err: ErrPrefixMismatch}
	}
	// Mount points that climb further than the prefix still resolve to the
	// root, so the result never starts with the prefix itself.
	for len(want) > 0 && hasPrefix(joined, want) {
		joined = joined[len(want):]
	}

	out := strings.Join(joined, "/")
	if len(joined) > 0 && joined[0] == "/" {
		out = "/" + strings.Join(joined[1:], "/")
	}
	if !utf8.ValidString(out) {
		return "", &PathError{MountPoint: mountPoint, RecordPath: recordPath, Err: ErrNonRepresentablePath}
	}
	return out, nil
}

func hasPrefix(p, prefix []string) bool {
	if len(p) < len(prefix) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// components splits p on "/" and drops empty and "." elements. A leading "/"
// is kept as its own component so absolute paths never match a relative prefix.
func components(p string) []string {
	var out []string
	if strings.HasPrefix(p, "/") {
		out = append(out, "/")
	}
	for _, c := range strings.Split(p, "/") {
		if c == "" || c == "." {
			continue
		}
		out = append(out, c)
	}
	return out
}

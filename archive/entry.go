package archive

import "strings"

// PathParts is the derived form of a normalized path stored in the index.
type PathParts struct {
	Path            string
	PathNoExtension string
	Extension       *string
	Stem            *string
}

// SplitPath derives the extension and stem of the last element of p.
// A name without a dot, or whose only dot is leading, has no extension.
// The stem is nil only when p has no file name at all.
func SplitPath(p string) PathParts {
	parts := PathParts{Path: p, PathNoExtension: p}

	name := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		name = p[i+1:]
	}
	if name == "" || name == ".." {
		return parts
	}

	stem := name
	if i := strings.LastIndex(name, "."); i > 0 {
		ext := name[i+1:]
		stem = name[:i]
		parts.Extension = &ext
		parts.PathNoExtension = strings.TrimSuffix(p, "."+ext)
	}
	parts.Stem = &stem
	return parts
}

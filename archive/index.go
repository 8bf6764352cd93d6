// Package archive lists the asset paths packed inside a mod archive.
//
// An archive is a zip container holding one pak file. The pak index declares
// a mount point and a list of records; each record path is joined with the
// mount point and made root-relative by stripping the containment prefix.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"modio-mod-indexer/pak"
)

// DefaultPackageExtension is the suffix of the embedded package entry.
const DefaultPackageExtension = ".pak"

// ErrMissingPackageEntry is returned when an archive holds no package entry.
var ErrMissingPackageEntry = errors.New("missing pak file")

// Kind classifies an indexing failure.
type Kind int

const (
	KindContainerCorrupt Kind = iota + 1
	KindMissingPackageEntry
	KindPackageFormat
	KindPath
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindContainerCorrupt:
		return "ContainerCorrupt"
	case KindMissingPackageEntry:
		return "MissingPackageEntry"
	case KindPackageFormat:
		return "PackageFormatError"
	case KindPath:
		return "PathError"
	case KindIO:
		return "IoError"
	default:
		return "Unknown"
	}
}

// IndexError is returned by Indexer for any archive that cannot be indexed.
type IndexError struct {
	Kind Kind
	Err  error
}

func (e *IndexError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

func (e *IndexError) Unwrap() error { return e.Err }

// Indexer lists the normalized paths of archives.
// The zero value uses the default package extension and containment prefix.
type Indexer struct {
	PackageExtension  string
	ContainmentPrefix string
}

// NewIndexer returns an Indexer, falling back to defaults for empty values.
func NewIndexer(packageExt, prefix string) Indexer {
	if packageExt == "" {
		packageExt = DefaultPackageExtension
	}
	if prefix == "" {
		prefix = DefaultContainmentPrefix
	}
	return Indexer{PackageExtension: packageExt, ContainmentPrefix: prefix}
}

// IndexFile opens the archive at path and indexes it.
func (ix Indexer) IndexFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IndexError{Kind: KindIO, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &IndexError{Kind: KindIO, Err: err}
	}
	return ix.Index(f, info.Size())
}

// Index reads the zip container in r and returns the normalized path of every
// record of its package entry, in index order. One bad record fails the whole
// archive.
func (ix Indexer) Index(r io.ReaderAt, size int64) ([]string, error) {
	ix = NewIndexer(ix.PackageExtension, ix.ContainmentPrefix)

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &IndexError{Kind: KindContainerCorrupt, Err: err}
	}

	entry := ix.packageEntry(zr)
	if entry == nil {
		return nil, &IndexError{Kind: KindMissingPackageEntry, Err: ErrMissingPackageEntry}
	}

	data, err := readEntry(entry)
	if err != nil {
		return nil, &IndexError{Kind: KindContainerCorrupt, Err: fmt.Errorf("read %s: %w", entry.Name, err)}
	}

	p, err := pak.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &IndexError{Kind: KindPackageFormat, Err: fmt.Errorf("%s: %w", entry.Name, err)}
	}

	mount := p.MountPoint()
	paths := make([]string, 0, len(p.Files()))
	for _, record := range p.Files() {
		normalized, err := Normalize(mount, record, ix.ContainmentPrefix)
		if err != nil {
			return nil, &IndexError{Kind: KindPath, Err: err}
		}
		paths = append(paths, normalized)
	}
	return paths, nil
}

func (ix Indexer) packageEntry(zr *zip.Reader) *zip.File {
	ext := strings.ToLower(ix.PackageExtension)
	for _, f := range zr.File {
		if f.Mode().IsRegular() && strings.HasSuffix(strings.ToLower(f.Name), ext) {
			return f
		}
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Package storage keeps downloaded mod archives, keyed by content hash.
package storage

import (
	"context"
	"io"
)

// DefaultExtension is appended to the content hash to form an archive name.
const DefaultExtension = "zip"

// Archive is an opened archive. Indexers read it at random offsets.
type Archive interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// ArchiveStore is a flat namespace of archives keyed by content hash.
type ArchiveStore interface {
	// Exists reports whether an archive for hash is stored.
	Exists(ctx context.Context, hash string) (bool, error)
	// Put stores the content of r under hash. A failed Put leaves no archive behind.
	Put(ctx context.Context, hash string, r io.Reader, size int64) error
	// Open returns the stored archive for hash.
	Open(ctx context.Context, hash string) (Archive, error)
	// Location describes where the archive for hash lives, for diagnostics.
	Location(hash string) string
}

func objectName(hash, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	return hash + "." + ext
}

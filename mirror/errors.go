package mirror

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksumMismatch is returned when a download does not hash to the
	// md5 announced by the catalog.
	ErrChecksumMismatch = errors.New("md5 checksum mismatch")
	// ErrArchiveMissing is returned when a stored modfile has no archive.
	ErrArchiveMissing = errors.New("archive not found")
)

// Kind classifies a SyncError.
type Kind int

const (
	// KindTransport covers catalog listing and download failures.
	KindTransport Kind = iota + 1
	// KindStorage covers failures of the relational store.
	KindStorage
	// KindIndex covers archives that could not be indexed.
	KindIndex
	// KindIO covers archive storage failures.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "TransportError"
	case KindStorage:
		return "StorageError"
	case KindIndex:
		return "IndexError"
	case KindIO:
		return "IoError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// SyncError is the failure of one mod or modfile. ModID or FileID is zero
// when it does not apply.
type SyncError struct {
	Kind   Kind
	ModID  uint32
	FileID uint32
	Err    error
}

func (e *SyncError) Error() string {
	switch {
	case e.ModID != 0 && e.FileID != 0:
		return fmt.Sprintf("%s: mod %d modfile %d: %v", e.Kind, e.ModID, e.FileID, e.Err)
	case e.ModID != 0:
		return fmt.Sprintf("%s: mod %d: %v", e.Kind, e.ModID, e.Err)
	case e.FileID != 0:
		return fmt.Sprintf("%s: modfile %d: %v", e.Kind, e.FileID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *SyncError) Unwrap() error { return e.Err }

// KindOf returns the kind of the SyncError in err's chain, or zero.
func KindOf(err error) Kind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

package db

import (
	"context"
	"errors"
	"fmt"

	"modio-mod-indexer/archive"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// insertBatchSize bounds the number of rows per INSERT when replacing a path index.
const insertBatchSize = 500

// Store wraps the index tables. A Store returned by Transaction is bound to
// that transaction.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open connection.
func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Prepared returns a Store that caches prepared statements, for callers
// issuing the same delete and insert many times.
func (s *Store) Prepared() *Store {
	return &Store{db: s.db.Session(&gorm.Session{PrepareStmt: true})}
}

// Transaction runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CurrentFileID returns the stored current file of a mod, or nil when the mod
// has none or is not stored yet.
func (s *Store) CurrentFileID(ctx context.Context, modID uint32) (*uint32, error) {
	var m Mod
	err := s.db.WithContext(ctx).Select("id", "file_id").Where("id = ?", modID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current file of mod %d: %w", modID, err)
	}
	return m.FileID, nil
}

// UpsertMod inserts m or overwrites the mutable fields of an existing row.
// The current file is left untouched; see SetCurrentFile.
func (s *Store) UpsertMod(ctx context.Context, m *Mod) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "name_id", "summary", "description"}),
	}).Omit("file_id").Create(m).Error
	if err != nil {
		return fmt.Errorf("upsert mod %d: %w", m.ID, err)
	}
	return nil
}

// UpsertFile inserts f or overwrites the existing row with the same id.
func (s *Store) UpsertFile(ctx context.Context, f *File) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mod_id", "date_added", "hash_md5", "filename", "version", "changelog"}),
	}).Create(f).Error
	if err != nil {
		return fmt.Errorf("upsert modfile %d: %w", f.ID, err)
	}
	return nil
}

// SetCurrentFile points a mod at fileID, or clears it when fileID is nil.
func (s *Store) SetCurrentFile(ctx context.Context, modID uint32, fileID *uint32) error {
	var value any = gorm.Expr("NULL")
	if fileID != nil {
		value = *fileID
	}
	err := s.db.WithContext(ctx).Model(&Mod{}).Where("id = ?", modID).Update("file_id", value).Error
	if err != nil {
		return fmt.Errorf("set current file of mod %d: %w", modID, err)
	}
	return nil
}

// DeletePathEntries removes the path index of a file.
func (s *Store) DeletePathEntries(ctx context.Context, fileID uint32) error {
	err := s.db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&PathEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete pack files of modfile %d: %w", fileID, err)
	}
	return nil
}

// InsertPathEntries stores paths as the index of a file.
func (s *Store) InsertPathEntries(ctx context.Context, fileID uint32, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	rows := make([]PathEntry, 0, len(paths))
	for _, p := range paths {
		parts := archive.SplitPath(p)
		rows = append(rows, PathEntry{
			FileID:          fileID,
			Path:            parts.Path,
			PathNoExtension: parts.PathNoExtension,
			Extension:       parts.Extension,
			Name:            parts.Stem,
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("insert pack files of modfile %d: %w", fileID, err)
	}
	return nil
}

// ReplacePathEntries swaps the whole path index of a file. Call it inside a
// transaction so readers never observe a partial index.
func (s *Store) ReplacePathEntries(ctx context.Context, fileID uint32, paths []string) error {
	if err := s.DeletePathEntries(ctx, fileID); err != nil {
		return err
	}
	return s.InsertPathEntries(ctx, fileID, paths)
}

// Files lists every stored modfile ordered by id.
func (s *Store) Files(ctx context.Context) ([]File, error) {
	var files []File
	if err := s.db.WithContext(ctx).Order("id").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list modfiles: %w", err)
	}
	return files, nil
}

// PathEntries lists the stored index of a file in insertion order.
func (s *Store) PathEntries(ctx context.Context, fileID uint32) ([]PathEntry, error) {
	var rows []PathEntry
	if err := s.db.WithContext(ctx).Where("file_id = ?", fileID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list pack files of modfile %d: %w", fileID, err)
	}
	return rows, nil
}

// GetMod loads a mod row.
func (s *Store) GetMod(ctx context.Context, id uint32) (*Mod, error) {
	var m Mod
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, fmt.Errorf("get mod %d: %w", id, err)
	}
	return &m, nil
}

// GetFile loads a modfile row.
func (s *Store) GetFile(ctx context.Context, id uint32) (*File, error) {
	var f File
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&f).Error; err != nil {
		return nil, fmt.Errorf("get modfile %d: %w", id, err)
	}
	return &f, nil
}

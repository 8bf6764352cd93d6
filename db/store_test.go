package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewStore(gdb)
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}
	return gormDB, mock
}

func u32(v uint32) *uint32 { return &v }

func TestUpsertModIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	m := &Mod{ID: 1, Name: "Mod", NameID: "mod", Summary: "s", Description: "d"}
	require.NoError(t, s.UpsertMod(ctx, m))
	require.NoError(t, s.UpsertMod(ctx, &Mod{ID: 1, Name: "Renamed", NameID: "renamed", Summary: "s2", Description: "d2"}))

	got, err := s.GetMod(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "renamed", got.NameID)
	assert.Equal(t, "s2", got.Summary)
	assert.Equal(t, "d2", got.Description)
	assert.Nil(t, got.FileID)
}

func TestUpsertModKeepsCurrentFile(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertMod(ctx, &Mod{ID: 1, Name: "Mod"}))
	require.NoError(t, s.UpsertFile(ctx, &File{ID: 10, ModID: 1, HashMD5: "abc"}))
	require.NoError(t, s.SetCurrentFile(ctx, 1, u32(10)))
	require.NoError(t, s.UpsertMod(ctx, &Mod{ID: 1, Name: "Mod v2"}))

	current, err := s.CurrentFileID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, uint32(10), *current)

	require.NoError(t, s.SetCurrentFile(ctx, 1, nil))
	current, err = s.CurrentFileID(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestCurrentFileIDUnknownMod(t *testing.T) {
	s := openTestStore(t)
	current, err := s.CurrentFileID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestUpsertFile(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	added := time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)

	require.NoError(t, s.UpsertFile(ctx, &File{ID: 10, ModID: 1, DateAdded: added, HashMD5: "abc", Filename: "a.zip", Version: "1"}))
	require.NoError(t, s.UpsertFile(ctx, &File{ID: 10, ModID: 1, DateAdded: added, HashMD5: "abc", Filename: "a.zip", Version: "1.1", Changelog: "fix"}))

	files, err := s.Files(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "1.1", files[0].Version)
	assert.Equal(t, "fix", files[0].Changelog)
	assert.True(t, added.Equal(files[0].DateAdded))
}

func TestReplacePathEntries(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.ReplacePathEntries(ctx, 10, []string{"FSD/A.uasset", "FSD/B.uexp"}))
	require.NoError(t, s.ReplacePathEntries(ctx, 11, []string{"FSD/Other.uasset"}))
	require.NoError(t, s.ReplacePathEntries(ctx, 10, []string{"FSD/C.umap", "FSD/README"}))

	rows, err := s.PathEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "FSD/C.umap", rows[0].Path)
	assert.Equal(t, "FSD/C", rows[0].PathNoExtension)
	require.NotNil(t, rows[0].Extension)
	assert.Equal(t, "umap", *rows[0].Extension)
	require.NotNil(t, rows[0].Name)
	assert.Equal(t, "C", *rows[0].Name)
	assert.Equal(t, "FSD/README", rows[1].Path)
	assert.Nil(t, rows[1].Extension)

	other, err := s.PathEntries(ctx, 11)
	require.NoError(t, err)
	assert.Len(t, other, 1)

	require.NoError(t, s.ReplacePathEntries(ctx, 10, nil))
	rows, err = s.PathEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.ReplacePathEntries(ctx, 10, []string{"FSD/A.uasset"}))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.ReplacePathEntries(ctx, 10, []string{"FSD/B.uasset", "FSD/C.uasset"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rows, err := s.PathEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "FSD/A.uasset", rows[0].Path)
}

func TestPreparedStore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t).Prepared()

	for i := 0; i < 3; i++ {
		err := s.Transaction(ctx, func(tx *Store) error {
			return tx.ReplacePathEntries(ctx, 10, []string{"FSD/A.uasset", "FSD/B.uasset"})
		})
		require.NoError(t, err)
	}
	rows, err := s.PathEntries(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestUpsertModStorageError(t *testing.T) {
	gdb, mock := setupMockDB(t)
	s := NewStore(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `mod`").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Transaction(context.Background(), func(tx *Store) error {
		return tx.UpsertMod(context.Background(), &Mod{ID: 1, Name: "Mod"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert mod 1")
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	assert.Error(t, err)
}

func TestGormLoggerWritesToZap(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	gdb, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb = gdb.Session(&gorm.Session{Logger: newGormLogger(zap.New(core))})
	require.Error(t, gdb.Exec("SELECT * FROM missing_table").Error)

	entries := logs.All()
	require.NotEmpty(t, entries)
	assert.Equal(t, "gorm", entries[0].LoggerName)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "missing_table")
}

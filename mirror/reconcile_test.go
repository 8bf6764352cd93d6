package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"modio-mod-indexer/db"
	"modio-mod-indexer/modio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (f *fixture) reconciler(workers int) *Reconciler {
	return &Reconciler{
		Store:    f.store,
		Archives: f.archives,
		Indexer:  f.engine.Indexer,
		Workers:  workers,
		Reporter: f.reporter,
		Log:      zap.NewNop().Sugar(),
	}
}

// storeFile records a modfile row and, when body is non-nil, its archive.
func (f *fixture) storeFile(t *testing.T, file *modio.File, body []byte) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.UpsertFile(ctx, &db.File{
		ID:        file.ID,
		ModID:     file.ModID,
		DateAdded: file.Added(),
		HashMD5:   file.Filehash.MD5,
		Filename:  file.Filename,
	}))
	if body != nil {
		require.NoError(t, f.archives.Put(ctx, file.Filehash.MD5, bytes.NewReader(body), int64(len(body))))
	}
}

func TestRebuildAllIsolatesBrokenArchives(t *testing.T) {
	for _, workers := range []int{0, 1, 3} {
		ctx := context.Background()
		f := newFixture(t)

		goodBody := modArchive("Content/A.uasset", "Content/B.uexp")
		good := f.catalog.publish(10, 1, goodBody)
		f.storeFile(t, good, goodBody)

		corruptBody := []byte("definitely not a zip")
		corrupt := f.catalog.publish(11, 2, corruptBody)
		f.storeFile(t, corrupt, corruptBody)
		require.NoError(t, f.store.ReplacePathEntries(ctx, 11, []string{"FSD/Stale.uasset"}))

		missing := f.catalog.publish(12, 3, modArchive("Content/C.uasset"))
		f.storeFile(t, missing, nil)

		// Stale rows for the good file are replaced, not appended to.
		require.NoError(t, f.store.ReplacePathEntries(ctx, 10, []string{"FSD/Old.uasset"}))

		report, err := f.reconciler(workers).RebuildAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Total)
		assert.Equal(t, 1, report.Succeeded)
		assert.Equal(t, 2, report.Failed)

		kinds := map[uint32]Kind{}
		for _, failure := range report.Failures {
			kinds[failure.FileID] = KindOf(failure.Err)
		}
		assert.Equal(t, map[uint32]Kind{11: KindIndex, 12: KindIO}, kinds)
		for _, failure := range report.Failures {
			if failure.FileID == 12 {
				assert.ErrorIs(t, failure.Err, ErrArchiveMissing)
			}
		}

		assert.Equal(t, []string{"FSD/Content/A.uasset", "FSD/Content/B.uexp"}, paths(t, f.store, 10))
		assert.Equal(t, []string{"FSD/Stale.uasset"}, paths(t, f.store, 11))
		assert.Empty(t, paths(t, f.store, 12))
		assert.Equal(t, 3, f.reporter.started)
		assert.Len(t, f.reporter.completed, 1)
		assert.Len(t, f.reporter.failed, 2)
	}
}

func TestRebuildAllMatchesSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var mods []modio.Mod
	for i := uint32(1); i <= 8; i++ {
		body := modArchive(fmt.Sprintf("Content/Mod%d/A.uasset", i), "Content/Sub/B.uexp", "Config/DefaultGame.ini")
		file := f.catalog.publish(100+i, i, body)
		mods = append(mods, modio.Mod{ID: i, Name: "Mod", Modfile: file})
	}
	f.catalog.mods = mods
	_, err := f.engine.SyncAll(ctx)
	require.NoError(t, err)

	before := map[uint32][]string{}
	for i := uint32(1); i <= 8; i++ {
		before[100+i] = paths(t, f.store, 100+i)
	}

	report, err := f.reconciler(4).RebuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, report.Succeeded)
	for id, want := range before {
		assert.Equal(t, want, paths(t, f.store, id))
	}
	assert.Len(t, f.catalog.downloads, 8)
}

func TestRebuildAllStopsOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	body := modArchive("Content/A.uasset")
	f.storeFile(t, f.catalog.publish(10, 1, body), body)

	require.NoError(t, f.store.DB().Migrator().DropTable(&db.PathEntry{}))

	report, err := f.reconciler(1).RebuildAll(ctx)
	require.Error(t, err)
	assert.Equal(t, KindStorage, KindOf(err))
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Failed)
}

func TestRebuildAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t)
	for i := uint32(1); i <= 4; i++ {
		body := modArchive("Content/A.uasset")
		f.storeFile(t, f.catalog.publish(i, i, body), body)
	}
	cancel()

	_, err := f.reconciler(1).RebuildAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

// Package mirror keeps the relational index in step with the catalog and with
// the archives already stored.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"

	"modio-mod-indexer/archive"
	"modio-mod-indexer/db"
	"modio-mod-indexer/modio"
	"modio-mod-indexer/storage"

	"go.uber.org/zap"
)

// Catalog is the remote mod repository.
type Catalog interface {
	ListVisibleMods(ctx context.Context) ([]modio.Mod, error)
	GetMod(ctx context.Context, id uint32) (*modio.Mod, error)
	Download(ctx context.Context, f modio.File) (io.ReadCloser, error)
}

// Engine mirrors catalog mods into the store, one mod at a time.
type Engine struct {
	Catalog  Catalog
	Store    *db.Store
	Archives storage.ArchiveStore
	Indexer  archive.Indexer
	Reporter Reporter
	Log      *zap.SugaredLogger
}

type syncResult struct {
	changed    bool
	downloaded bool
}

// SyncAll lists the visible mods and syncs each of them. Per-mod failures are
// collected in the report; only a failed listing or a cancelled context is
// returned as an error.
func (e *Engine) SyncAll(ctx context.Context) (*Report, error) {
	log := e.logger()
	log.Info("Grabbing mod list...")
	mods, err := e.Catalog.ListVisibleMods(ctx)
	if err != nil {
		return nil, &SyncError{Kind: KindTransport, Err: fmt.Errorf("list mods: %w", err)}
	}
	log.Infow("Mod list obtained", zap.Int("count", len(mods)))

	return e.syncEach(ctx, len(mods), func(i int) (modio.Mod, error) {
		return mods[i], nil
	})
}

// SyncMods fetches and syncs the given mods. A mod that cannot be fetched is
// recorded as a KindTransport failure and the run continues.
func (e *Engine) SyncMods(ctx context.Context, ids []uint32) (*Report, error) {
	return e.syncEach(ctx, len(ids), func(i int) (modio.Mod, error) {
		m, err := e.Catalog.GetMod(ctx, ids[i])
		if err != nil {
			return modio.Mod{ID: ids[i]}, &SyncError{Kind: KindTransport, ModID: ids[i], Err: err}
		}
		return *m, nil
	})
}

func (e *Engine) syncEach(ctx context.Context, total int, next func(i int) (modio.Mod, error)) (*Report, error) {
	log := e.logger()
	rep := e.reporter()
	rep.Start(total)
	defer rep.Finish()

	report := &Report{Total: total}
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		m, err := next(i)
		var res syncResult
		if err == nil {
			res, err = e.syncOne(ctx, m)
		}
		unit := fmt.Sprintf("mod %d (%s)", m.ID, m.NameID)
		if res.downloaded {
			report.Downloaded++
		}
		if err != nil {
			var fileID uint32
			if f := m.CurrentFile(); f != nil {
				fileID = f.ID
			}
			report.fail(m.ID, fileID, err)
			rep.Failed(unit, err)
			log.Errorw("Failed to sync mod", zap.Uint32("mod_id", m.ID), zap.Error(err))
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			continue
		}
		if res.changed {
			report.Updated++
		}
		report.Succeeded++
		rep.Completed(unit)
	}
	return report, nil
}

// SyncOne mirrors a single mod. When the current file changed, its archive
// is fetched and indexed before the transaction that records it, so no
// transaction is held across a download. An archive that cannot be indexed
// still has its metadata committed; the failure is returned with KindIndex.
func (e *Engine) SyncOne(ctx context.Context, m modio.Mod) error {
	_, err := e.syncOne(ctx, m)
	return err
}

func (e *Engine) syncOne(ctx context.Context, m modio.Mod) (syncResult, error) {
	var res syncResult
	log := e.logger().With(zap.Uint32("mod_id", m.ID), zap.String("name_id", m.NameID))

	stored, err := e.Store.CurrentFileID(ctx, m.ID)
	if err != nil {
		return res, &SyncError{Kind: KindStorage, ModID: m.ID, Err: err}
	}

	remote := m.CurrentFile()
	res.changed = !sameFile(stored, remote)

	var paths []string
	var indexErr error
	if res.changed && remote != nil {
		res.downloaded, err = e.ensureArchive(ctx, m.ID, *remote)
		if err != nil {
			return res, err
		}
		a, err := e.openArchive(ctx, m.ID, *remote)
		if err != nil {
			return res, err
		}
		paths, indexErr = e.Indexer.Index(a, a.Size())
		a.Close()
		if indexErr != nil {
			log.Warnw("Failed to index archive", zap.Uint32("file_id", remote.ID), zap.Error(indexErr))
		}
	}

	err = e.Store.Transaction(ctx, func(tx *db.Store) error {
		if err := tx.UpsertMod(ctx, &db.Mod{
			ID:          m.ID,
			Name:        m.Name,
			NameID:      m.NameID,
			Summary:     m.Summary,
			Description: m.Description,
		}); err != nil {
			return err
		}
		if !res.changed {
			return nil
		}
		if remote == nil {
			return tx.SetCurrentFile(ctx, m.ID, nil)
		}

		if err := tx.UpsertFile(ctx, &db.File{
			ID:        remote.ID,
			ModID:     m.ID,
			DateAdded: remote.Added(),
			HashMD5:   remote.Filehash.MD5,
			Filename:  remote.Filename,
			Version:   remote.Version,
			Changelog: remote.Changelog,
		}); err != nil {
			return err
		}
		if err := tx.SetCurrentFile(ctx, m.ID, &remote.ID); err != nil {
			return err
		}
		if err := tx.DeletePathEntries(ctx, remote.ID); err != nil {
			return err
		}
		if indexErr != nil {
			return nil
		}
		return tx.InsertPathEntries(ctx, remote.ID, paths)
	})
	if err != nil {
		return res, &SyncError{Kind: KindStorage, ModID: m.ID, Err: err}
	}

	if res.changed {
		if remote == nil {
			log.Info("Mod has no current file anymore")
		} else {
			log.Infow("Mod file updated", zap.Uint32("file_id", remote.ID), zap.Int("paths", len(paths)))
		}
	}
	if indexErr != nil {
		return res, &SyncError{Kind: KindIndex, ModID: m.ID, FileID: remote.ID, Err: indexErr}
	}
	return res, nil
}

// ensureArchive downloads f unless an archive with its hash is already
// stored. It reports whether a download happened.
func (e *Engine) ensureArchive(ctx context.Context, modID uint32, f modio.File) (bool, error) {
	hash := f.Filehash.MD5
	if hash == "" {
		return false, &SyncError{Kind: KindTransport, ModID: modID, FileID: f.ID, Err: errors.New("modfile has no md5 hash")}
	}

	exists, err := e.Archives.Exists(ctx, hash)
	if err != nil {
		return false, &SyncError{Kind: KindIO, ModID: modID, FileID: f.ID, Err: err}
	}
	if exists {
		return false, nil
	}

	rep := e.reporter()
	name := f.Filename
	if name == "" {
		name = fmt.Sprintf("modfile %d", f.ID)
	}
	e.logger().Infow("Downloading mod", zap.Uint32("mod_id", modID), zap.Uint32("file_id", f.ID), zap.String("to", e.Archives.Location(hash)))

	body, err := e.Catalog.Download(ctx, f)
	if err != nil {
		return false, &SyncError{Kind: KindTransport, ModID: modID, FileID: f.ID, Err: err}
	}
	defer body.Close()

	rep.DownloadStarted(name, f.Filesize)
	defer rep.DownloadFinished(name)

	vr := newVerifyingReader(body, hash, f.Filesize, func(n int64) { rep.DownloadProgress(name, n) })
	if err := e.Archives.Put(ctx, hash, vr, f.Filesize); err != nil {
		kind := KindIO
		if vr.err != nil {
			kind = KindTransport
		}
		return false, &SyncError{Kind: kind, ModID: modID, FileID: f.ID, Err: err}
	}
	return true, nil
}

func (e *Engine) openArchive(ctx context.Context, modID uint32, f modio.File) (storage.Archive, error) {
	a, err := e.Archives.Open(ctx, f.Filehash.MD5)
	if err != nil {
		return nil, &SyncError{Kind: KindIO, ModID: modID, FileID: f.ID, Err: err}
	}
	return a, nil
}

func sameFile(stored *uint32, remote *modio.File) bool {
	switch {
	case stored == nil && remote == nil:
		return true
	case stored == nil || remote == nil:
		return false
	default:
		return *stored == remote.ID
	}
}

func (e *Engine) reporter() Reporter {
	if e.Reporter == nil {
		return NopReporter{}
	}
	return e.Reporter
}

func (e *Engine) logger() *zap.SugaredLogger {
	if e.Log == nil {
		return zap.NewNop().Sugar()
	}
	return e.Log
}

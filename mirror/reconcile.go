package mirror

import (
	"context"
	"fmt"
	"runtime"

	"modio-mod-indexer/archive"
	"modio-mod-indexer/db"
	"modio-mod-indexer/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reconciler rebuilds the path index of every stored modfile from the
// archives already in storage.
type Reconciler struct {
	Store    *db.Store
	Archives storage.ArchiveStore
	Indexer  archive.Indexer
	// Workers bounds parallel indexing; zero uses GOMAXPROCS.
	Workers  int
	Reporter Reporter
	Log      *zap.SugaredLogger
}

type indexResult struct {
	file  db.File
	paths []string
	err   error
}

// RebuildAll indexes archives in parallel and writes the results serially,
// one transaction per modfile. Missing or broken archives are reported and
// skipped. A store failure stops the run.
func (r *Reconciler) RebuildAll(ctx context.Context) (*Report, error) {
	log := r.logger()
	files, err := r.Store.Files(ctx)
	if err != nil {
		return nil, &SyncError{Kind: KindStorage, Err: err}
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log.Infow("Rebuilding pack file index", zap.Int("files", len(files)), zap.Int("workers", workers))

	rep := r.reporter()
	rep.Start(len(files))
	defer rep.Finish()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	results := make(chan indexResult)
	var waitErr error
	go func() {
		for _, f := range files {
			g.Go(func() error {
				paths, err := r.index(gctx, f)
				select {
				case results <- indexResult{file: f, paths: paths, err: err}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		waitErr = g.Wait()
		close(results)
	}()

	report := &Report{Total: len(files)}
	prepared := r.Store.Prepared()
	var stopErr error
	for res := range results {
		if stopErr != nil {
			continue
		}
		unit := fmt.Sprintf("modfile %d", res.file.ID)
		if res.err != nil {
			report.fail(res.file.ModID, res.file.ID, res.err)
			rep.Failed(unit, res.err)
			log.Errorw("Error analyzing modfile", zap.Uint32("file_id", res.file.ID), zap.Error(res.err))
			continue
		}

		err := prepared.Transaction(ctx, func(tx *db.Store) error {
			return tx.ReplacePathEntries(ctx, res.file.ID, res.paths)
		})
		if err != nil {
			storeErr := &SyncError{Kind: KindStorage, ModID: res.file.ModID, FileID: res.file.ID, Err: err}
			report.fail(res.file.ModID, res.file.ID, storeErr)
			rep.Failed(unit, storeErr)
			stopErr = storeErr
			cancel()
			continue
		}
		report.Succeeded++
		rep.Completed(unit)
		log.Debugw("Rebuilt pack file index", zap.Uint32("file_id", res.file.ID), zap.Int("paths", len(res.paths)))
	}

	if stopErr != nil {
		return report, stopErr
	}
	if waitErr != nil {
		return report, waitErr
	}
	log.Infow("Pack file index rebuilt", zap.Int("succeeded", report.Succeeded), zap.Int("failed", report.Failed))
	return report, nil
}

func (r *Reconciler) index(ctx context.Context, f db.File) ([]string, error) {
	exists, err := r.Archives.Exists(ctx, f.HashMD5)
	if err != nil {
		return nil, &SyncError{Kind: KindIO, ModID: f.ModID, FileID: f.ID, Err: err}
	}
	if !exists {
		return nil, &SyncError{Kind: KindIO, ModID: f.ModID, FileID: f.ID,
			Err: fmt.Errorf("%w: %s", ErrArchiveMissing, r.Archives.Location(f.HashMD5))}
	}

	a, err := r.Archives.Open(ctx, f.HashMD5)
	if err != nil {
		return nil, &SyncError{Kind: KindIO, ModID: f.ModID, FileID: f.ID, Err: err}
	}
	defer a.Close()

	paths, err := r.Indexer.Index(a, a.Size())
	if err != nil {
		return nil, &SyncError{Kind: KindIndex, ModID: f.ModID, FileID: f.ID, Err: err}
	}
	return paths, nil
}

func (r *Reconciler) reporter() Reporter {
	if r.Reporter == nil {
		return NopReporter{}
	}
	return r.Reporter
}

func (r *Reconciler) logger() *zap.SugaredLogger {
	if r.Log == nil {
		return zap.NewNop().Sugar()
	}
	return r.Log
}

package cmd

import (
	"context"
	"fmt"
	"io"

	"modio-mod-indexer/archive"
	"modio-mod-indexer/config"
	"modio-mod-indexer/db"
	"modio-mod-indexer/logger"
	"modio-mod-indexer/mirror"
	"modio-mod-indexer/storage"
	"modio-mod-indexer/ui"

	"go.uber.org/zap"
)

// env bundles what the store-backed commands share.
type env struct {
	store    *db.Store
	archives storage.ArchiveStore
	indexer  archive.Indexer
	close    func()
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(ctx context.Context, cfg config.Config) (*env, error) {
	gdb, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Log.Infow("Database initialized", zap.String("driver", cfg.DatabaseDriver))

	archives, err := openArchives(ctx, cfg)
	if err != nil {
		if sqlDB, dbErr := gdb.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}

	return &env{
		store:    db.NewStore(gdb),
		archives: archives,
		indexer:  newIndexer(cfg),
		close: func() {
			if sqlDB, err := gdb.DB(); err == nil {
				sqlDB.Close()
			}
		},
	}, nil
}

func openArchives(ctx context.Context, cfg config.Config) (storage.ArchiveStore, error) {
	switch cfg.StorageBackend {
	case "s3":
		client, err := storage.NewObjectClient(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3(ctx, client, cfg.S3Bucket, cfg.ArchiveExtension)
	case "fs", "":
		return storage.NewFS(cfg.ModsDir, cfg.ArchiveExtension)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

func newIndexer(cfg config.Config) archive.Indexer {
	return archive.NewIndexer(cfg.PackageExtension, cfg.ContainmentPrefix)
}

// newReporter returns the TUI reporter when requested, or a log reporter.
// The returned func releases the terminal; call it once the run is over.
func newReporter(tui bool, title string, cancel context.CancelFunc) (mirror.Reporter, func()) {
	if !tui {
		return mirror.NewLogReporter(logger.Log), func() {}
	}
	r := ui.NewProgressReporter(title, cancel)
	return r, func() {
		if err := r.Close(); err != nil {
			logger.Log.Warnw("Progress display failed", zap.Error(err))
		}
	}
}

// printReport writes a human readable summary of a run.
func printReport(w io.Writer, what string, report *mirror.Report) {
	if report == nil {
		return
	}
	summary := fmt.Sprintf("%s: %d total, %d succeeded, %d failed", what, report.Total, report.Succeeded, report.Failed)
	if report.Downloaded > 0 || report.Updated > 0 {
		summary += fmt.Sprintf(", %d updated, %d downloaded", report.Updated, report.Downloaded)
	}
	fmt.Fprintln(w, summary)
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  %s %v\n", ui.Colorize("✗", 0xff5f5f), f.Err)
	}
}

// failureError turns failures of a finished run into the command's error.
func failureError(what string, report *mirror.Report) error {
	if report == nil || report.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d %s failed", report.Failed, report.Total, what)
}

package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"modio-mod-indexer/config"
	"modio-mod-indexer/logger"
	"modio-mod-indexer/mirror"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// updateModFilesLocalCmd represents the update-mod-files-local command
var updateModFilesLocalCmd = &cobra.Command{
	Use:   "update-mod-files-local",
	Short: "Rebuilds the pack file index from the archives already downloaded",
	Long: `Indexes the stored archive of every known modfile in parallel and
replaces its pack file rows. Missing or broken archives are reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Log.Info("Running update-mod-files-local command...")
		workers, _ := cmd.Flags().GetInt("workers")
		if workers > 0 {
			cfg.Workers = workers
		}
		return runUpdateModFilesLocal(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(updateModFilesLocalCmd)

	updateModFilesLocalCmd.Flags().IntP("workers", "w", 0, "Number of archives indexed in parallel (default GOMAXPROCS)")
}

func runUpdateModFilesLocal(ctx context.Context, cfg config.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.close()

	reporter, release := newReporter(useTUI, "Rebuilding pack file index", cancel)
	reconciler := &mirror.Reconciler{
		Store:    e.store,
		Archives: e.archives,
		Indexer:  e.indexer,
		Workers:  cfg.Workers,
		Reporter: reporter,
		Log:      logger.Log,
	}
	report, err := reconciler.RebuildAll(ctx)
	release()

	printReport(out, "Modfiles", report)
	if err != nil {
		logger.Log.Errorw("Rebuild aborted", zap.Error(err))
		return err
	}
	return failureError("modfiles", report)
}

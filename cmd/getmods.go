package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"modio-mod-indexer/config"
	"modio-mod-indexer/logger"
	"modio-mod-indexer/mirror"
	"modio-mod-indexer/modio"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// getModsCmd represents the get-mods command
var getModsCmd = &cobra.Command{
	Use:   "get-mods [mod-id...]",
	Short: "Mirrors mod metadata and changed archives from mod.io",
	Long: `Lists every public or hidden mod of the configured game, stores its
metadata, downloads archives whose current file changed and indexes the asset
paths packed inside them. Given mod ids, only those mods are fetched and synced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Log.Info("Running get-mods command...")
		ids, err := parseModIDs(args)
		if err != nil {
			return err
		}
		return runGetMods(cmd.Context(), cfg, ids, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(getModsCmd)
}

func parseModIDs(args []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid mod id %q", arg)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

// runGetMods syncs every visible mod, or only ids when any are given.
func runGetMods(ctx context.Context, cfg config.Config, ids []uint32, out io.Writer) error {
	if cfg.ModioAccessToken == "" && cfg.ModioAPIKey == "" {
		return fmt.Errorf("MODIO_ACCESS_TOKEN or MODIO_API_KEY must be set")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := modio.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mod.io client: %w", err)
	}

	e, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.close()

	reporter, release := newReporter(useTUI, "Syncing mods", cancel)
	engine := &mirror.Engine{
		Catalog:  client,
		Store:    e.store,
		Archives: e.archives,
		Indexer:  e.indexer,
		Reporter: reporter,
		Log:      logger.Log,
	}
	var report *mirror.Report
	if len(ids) > 0 {
		report, err = engine.SyncMods(ctx, ids)
	} else {
		report, err = engine.SyncAll(ctx)
	}
	release()

	printReport(out, "Mods", report)
	if err != nil {
		logger.Log.Errorw("Sync aborted", zap.Error(err))
		return err
	}
	return failureError("mods", report)
}

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"modio-mod-indexer/archive"
	"modio-mod-indexer/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// listFilesCmd represents the list-files command
var listFilesCmd = &cobra.Command{
	Use:   "list-files [zip]",
	Short: "Prints the asset paths packed in an archive",
	Long: `Prints "<archive> <path>" for every asset path packed in the given zip
archive, or in every archive of MODS_DIR when no archive is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix := newIndexer(cfg)
		if len(args) == 1 {
			return listArchive(cmd.OutOrStdout(), ix, args[0])
		}
		if cfg.StorageBackend != "fs" {
			return fmt.Errorf("listing every archive needs the fs storage backend, got %q", cfg.StorageBackend)
		}
		return listArchives(cmd.OutOrStdout(), ix, cfg.ModsDir, cfg.ArchiveExtension)
	},
}

func init() {
	rootCmd.AddCommand(listFilesCmd)
}

func listArchive(w io.Writer, ix archive.Indexer, path string) error {
	paths, err := ix.IndexFile(path)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(w, "%s %s\n", path, p)
	}
	return nil
}

// listArchives lists every archive of dir. Failures are printed in place of
// the archive's paths and do not stop the listing.
func listArchives(w io.Writer, ix archive.Indexer, dir, ext string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read archive directory '%s': %w", dir, err)
	}

	suffix := "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(strings.ToLower(entry.Name()), suffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := listArchive(w, ix, path); err != nil {
			logger.Log.Warnw("Failed to list archive", zap.String("archive", path), zap.Error(err))
			fmt.Fprintf(w, "%s %v\n", path, err)
		}
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/see-the-code/internal/storage"
)

var cleanQuietFlag bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the incremental cache to force a full regeneration",
	Long: `Clean removes the incremental cache directory (generate.cache_dir,
default .see-the-code). The next 'see-the-code generate' re-extracts every
component file.

The configuration file and the code map are preserved.

Examples:
  see-the-code clean
  see-the-code clean --quiet
`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanQuietFlag, "quiet", "q", false, "Suppress output messages")
}

func runClean(cmd *cobra.Command, args []string) error {
	rootDir, err := workingDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cleanQuietFlag {
		out = io.Discard
	}
	return executeClean(resolvePath(rootDir, cfg.Generate.CacheDir), out)
}

func executeClean(cacheDir string, out io.Writer) error {
	info, err := os.Stat(cacheDir)
	if os.IsNotExist(err) {
		fmt.Fprintln(out, "No cache found for this project")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat cache: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache path %s is not a directory", cacheDir)
	}

	files, sizeMB := cacheStats(cacheDir)

	if err := os.RemoveAll(cacheDir); err != nil {
		return fmt.Errorf("failed to remove cache: %w", err)
	}

	if files > 0 {
		fmt.Fprintf(out, "✓ Cleaned cache (%s files, ~%.1f MB)\n", formatNumber(files), sizeMB)
	} else {
		fmt.Fprintln(out, "✓ Cleaned cache")
	}
	fmt.Fprintln(out, "Next 'see-the-code generate' will extract every file")
	return nil
}

// cacheStats reports how many component files the cache holds and the
// database size. Errors yield zeros.
func cacheStats(cacheDir string) (files int, sizeMB float64) {
	store, err := storage.OpenDir(cacheDir)
	if err != nil {
		return 0, 0
	}
	defer store.Close()

	if paths, err := store.Files(context.Background()); err == nil {
		files = len(paths)
	}
	if info, err := os.Stat(store.Path()); err == nil {
		sizeMB = float64(info.Size()) / (1024 * 1024)
	}
	return files, sizeMB
}

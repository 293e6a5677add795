package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/config"
	"github.com/mvp-joe/see-the-code/internal/generator"
	"github.com/mvp-joe/see-the-code/internal/storage"
)

// generateOptions holds the generate command flags.
type generateOptions struct {
	inputs []string
	output string
	hash   bool
	dryRun bool
	watch  bool
	quiet  bool
}

var genOpts generateOptions

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Extract selectors from component files and write the code map",
	Long: `Generate scans JSX/TSX component files and writes code-map.json, a map
from every class, id, data attribute and element type to the file and line
where it is first written.

Unchanged files are served from the incremental cache in
.see-the-code/cache.db unless generate.incremental is false.

Examples:
  # Scan the configured inputs (default: src)
  see-the-code generate

  # Scan two directories and include content hashes
  see-the-code generate -i src/components,src/pages --hash

  # Print the code map instead of writing it
  see-the-code generate --dry-run

  # Regenerate whenever a component file changes
  see-the-code generate --watch
`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringSliceVarP(&genOpts.inputs, "input", "i", nil, "Directories or files to scan (comma separated or repeated)")
	generateCmd.Flags().StringVarP(&genOpts.output, "output", "o", "", "Output path for the code map")
	generateCmd.Flags().BoolVar(&genOpts.hash, "hash", false, "Include content hashes")
	generateCmd.Flags().BoolVar(&genOpts.dryRun, "dry-run", false, "Print the code map to stdout instead of writing it")
	generateCmd.Flags().BoolVarP(&genOpts.watch, "watch", "w", false, "Watch component files and regenerate on change")
	generateCmd.Flags().BoolVarP(&genOpts.quiet, "quiet", "q", false, "Disable progress bars and summary output")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootDir, err := workingDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}

	return executeGenerate(ctx, rootDir, cfg, genOpts, cmd.OutOrStdout(), cmd.ErrOrStderr(), slog.Default())
}

// applyGenerateFlags lets command line flags override the configuration.
func applyGenerateFlags(cfg *config.Config, opts generateOptions) {
	if len(opts.inputs) > 0 {
		cfg.Paths.Input = opts.inputs
	}
	if opts.output != "" {
		cfg.Output = opts.output
	}
	if opts.hash {
		cfg.Options.IncludeHashes = true
	}
}

// resolvePath anchors a relative path at rootDir.
func resolvePath(rootDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

// generateSession is one configured generator plus the caches it owns.
type generateSession struct {
	gen    *generator.Generator
	mem    *generator.MemoryCache
	store  *storage.Store
	output string
	logger *slog.Logger
}

func newGenerateSession(rootDir string, cfg *config.Config, progress generator.ProgressReporter, logger *slog.Logger) (*generateSession, error) {
	s := &generateSession{
		output: resolvePath(rootDir, cfg.Output),
		logger: logger,
	}

	opts := []generator.Option{
		generator.WithLogger(logger),
		generator.WithProgress(progress),
	}

	if cfg.Generate.Incremental {
		mem, err := generator.NewMemoryCache(generator.DefaultMemoryCacheSize)
		if err != nil {
			return nil, err
		}
		s.mem = mem

		store, err := storage.OpenDir(resolvePath(rootDir, cfg.Generate.CacheDir))
		if err != nil {
			// The cache is an optimisation; run without it
			logger.Warn("incremental cache unavailable", "error", err)
			opts = append(opts, generator.WithCache(mem))
		} else {
			s.store = store
			opts = append(opts, generator.WithCache(generator.Tiered{mem, &generator.StoreCache{Backend: store}}))
		}
	}

	gen, err := generator.New(generator.Config{
		RootDir:          rootDir,
		WorkspaceRoot:    cfg.WorkspaceRoot,
		Inputs:           cfg.Paths.Input,
		Include:          cfg.Paths.Include,
		Ignore:           cfg.Paths.Ignore,
		Extract:          cfg.ExtractOptions(),
		Workers:          cfg.Workers(),
		WarnOnDuplicates: cfg.Options.WarnOnDuplicates,
	}, opts...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	s.gen = gen
	return s, nil
}

// run generates once and either writes the code map or prints it to out.
func (s *generateSession) run(ctx context.Context, dryRun bool, out io.Writer) (*generator.Result, error) {
	result, err := s.gen.Generate(ctx)
	if err != nil {
		return nil, err
	}

	if dryRun {
		if err := codemap.Encode(out, result.CodeMap); err != nil {
			return nil, fmt.Errorf("failed to print code map: %w", err)
		}
	} else if err := generator.Write(s.output, result); err != nil {
		return nil, err
	}

	if s.store != nil {
		if n, err := s.store.Prune(ctx, result.Files); err != nil {
			s.logger.Warn("failed to prune incremental cache", "error", err)
		} else if n > 0 {
			s.logger.Debug("pruned incremental cache", "files", n)
		}
		if err := s.store.MarkGenerated(time.Now()); err != nil {
			s.logger.Warn("failed to record generation time", "error", err)
		}
	}
	return result, nil
}

func (s *generateSession) Close() {
	if s.mem != nil {
		s.mem.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("failed to close incremental cache", "error", err)
		}
	}
}

func executeGenerate(ctx context.Context, rootDir string, cfg *config.Config, opts generateOptions, out, status io.Writer, logger *slog.Logger) error {
	applyGenerateFlags(cfg, opts)

	var progress generator.ProgressReporter = &generator.NoOpProgressReporter{}
	if !opts.quiet && !opts.watch {
		progress = NewCLIProgressReporter(status, false)
	}

	session, err := newGenerateSession(rootDir, cfg, progress, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	result, err := session.run(ctx, opts.dryRun, out)
	if err != nil {
		return err
	}
	if !opts.quiet {
		printSummary(status, result, session.output, opts.dryRun)
	}

	if !opts.watch {
		return nil
	}
	return watchAndRegenerate(ctx, session, opts, out, status)
}

// watchAndRegenerate blocks until ctx is done, regenerating after every
// debounced batch of component file changes.
func watchAndRegenerate(ctx context.Context, session *generateSession, opts generateOptions, out, status io.Writer) error {
	watcher, err := generator.NewWatcher(session.gen, func(ctx context.Context, changed []string) {
		session.logger.Info("component files changed", "files", changed)
		result, err := session.run(ctx, opts.dryRun, out)
		if err != nil {
			session.logger.Error("regeneration failed", "error", err)
			return
		}
		if !opts.quiet {
			printSummary(status, result, session.output, opts.dryRun)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	watcher.Start(ctx)
	defer watcher.Stop()

	if !opts.quiet {
		fmt.Fprintln(status, "Watching for changes (Ctrl+C to stop)...")
	}
	<-ctx.Done()
	return nil
}

// printSummary reports files processed, selectors found and errors.
func printSummary(w io.Writer, result *generator.Result, output string, dryRun bool) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "✓ Code map: %s selectors from %s files in %.1fs\n",
		formatNumber(result.CodeMap.Len()),
		formatNumber(result.Processed),
		result.Duration.Seconds())
	if result.Cached > 0 {
		fmt.Fprintf(w, "  Cached:     %s files\n", formatNumber(result.Cached))
	}
	if len(result.Duplicates) > 0 {
		fmt.Fprintf(w, "  Duplicates: %s\n", formatNumber(len(result.Duplicates)))
	}
	if len(result.Failures) > 0 {
		fmt.Fprintf(w, "  Errors:     %s\n", formatNumber(len(result.Failures)))
		for _, f := range result.Failures {
			fmt.Fprintf(w, "    %s: %v\n", f.Path, f.Err)
		}
	}
	if !dryRun {
		fmt.Fprintf(w, "  Written to: %s\n", output)
	}
}

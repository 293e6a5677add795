// Package generator turns a project's component files into a code map.
//
// Implementation Plan:
// 1. Discover component files under the configured inputs (sorted)
// 2. Extract each file in parallel, reusing cached results for unchanged content
// 3. Merge per-file selector lists in canonical file order (first occurrence wins)
// 4. Report parse failures per file without aborting the run
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/extract"
)

// Config describes one generation run.
type Config struct {
	RootDir       string   // project root; relative inputs resolve against it
	WorkspaceRoot string   // record paths are relative to this; defaults to RootDir
	Inputs        []string // directories or files
	Include       []string
	Ignore        []string

	Extract          extract.Options
	Workers          int // 0 means GOMAXPROCS
	WarnOnDuplicates bool
}

// Failure is a file that could not be processed.
type Failure struct {
	Path string
	Err  error
}

// Result summarises a generation run.
type Result struct {
	CodeMap    *codemap.CodeMap
	Files      []string // record paths of every discovered file, sorted
	Processed  int      // files that produced a selector list
	Cached     int      // of which served from a cache
	Failures   []Failure
	Duplicates []codemap.Duplicate
	Duration   time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithCache enables reuse of extraction results for unchanged files.
func WithCache(c Cache) Option {
	return func(g *Generator) { g.cache = c }
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(g *Generator) { g.progress = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// Generator produces code maps. A Generator may be reused for repeated runs
// (watch mode) but runs must not overlap.
type Generator struct {
	cfg       Config
	engine    *extract.Engine
	discovery *FileDiscovery
	cache     Cache
	progress  ProgressReporter
	logger    *slog.Logger
}

// New creates a generator.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	cfg.RootDir = root

	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = root
	} else if !filepath.IsAbs(cfg.WorkspaceRoot) {
		cfg.WorkspaceRoot = filepath.Join(root, cfg.WorkspaceRoot)
	}

	g := &Generator{
		cfg:      cfg,
		engine:   extract.NewEngine(cfg.Extract),
		progress: &NoOpProgressReporter{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.discovery, err = NewFileDiscovery(root, cfg.Inputs, cfg.Include, cfg.Ignore, g.logger)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Discovery returns the generator's file discovery.
func (g *Generator) Discovery() *FileDiscovery {
	return g.discovery
}

// RelPath converts an absolute file path into the record path: workspace
// relative with forward slashes.
func (g *Generator) RelPath(path string) string {
	rel, err := filepath.Rel(g.cfg.WorkspaceRoot, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Generate runs discovery, extraction and aggregation.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	start := time.Now()

	g.progress.OnDiscoveryStart()
	files, err := g.discovery.DiscoverFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	g.progress.OnDiscoveryComplete(len(files))
	g.logger.Debug("discovered component files", "count", len(files))

	if len(files) == 0 {
		g.logger.Warn("no files found matching the criteria")
	}

	result, err := g.process(ctx, files)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)

	g.progress.OnComplete(result)
	return result, nil
}

type fileOutcome struct {
	selectors *extract.FileSelectors
	cached    bool
	err       error
}

func (g *Generator) process(ctx context.Context, files []string) (*Result, error) {
	outcomes := make([]fileOutcome, len(files))

	workers := g.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g.progress.OnFileProcessingStart(len(files))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, path := range files {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			rel := g.RelPath(path)
			fs, cached, err := g.extractFile(egCtx, path, rel)
			if err != nil && isCancellation(err) {
				return err
			}
			outcomes[i] = fileOutcome{selectors: fs, cached: cached, err: err}
			g.progress.OnFileProcessed(rel)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Files: make([]string, 0, len(files))}
	var perFile []codemap.FileEntries

	for i, path := range files {
		rel := g.RelPath(path)
		result.Files = append(result.Files, rel)

		o := outcomes[i]
		if o.err != nil {
			result.Failures = append(result.Failures, Failure{Path: rel, Err: o.err})
			g.logger.Error("failed to process file", "file", rel, "error", o.err)
			continue
		}

		result.Processed++
		if o.cached {
			result.Cached++
		}
		perFile = append(perFile, o.selectors.FileEntries())
		g.logger.Debug("processed file", "file", rel, "selectors", len(o.selectors.Entries), "cached", o.cached)
	}

	var aggOpts []codemap.AggregatorOption
	if g.cfg.WarnOnDuplicates {
		aggOpts = append(aggOpts, codemap.WithDuplicateHandler(func(d codemap.Duplicate) {
			g.logger.Warn("duplicate selector",
				"selector", d.Key,
				"kept", d.Kept.String(),
				"dropped", d.Record.String(),
			)
		}))
	}
	result.CodeMap, result.Duplicates = codemap.Aggregate(perFile, aggOpts...)
	sort.Strings(result.Files)

	return result, nil
}

// extractFile reads and extracts one file, consulting the cache first.
func (g *Generator) extractFile(ctx context.Context, absPath, relPath string) (*extract.FileSelectors, bool, error) {
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	var key string
	if g.cache != nil {
		key = contentKey(source, g.cfg.Extract)
		fs, ok, err := g.cache.Lookup(ctx, relPath, key)
		if err != nil {
			g.logger.Warn("cache lookup failed", "file", relPath, "error", err)
		} else if ok {
			return fs, true, nil
		}
	}

	fs, err := g.engine.Extract(ctx, relPath, source)
	if err != nil {
		return nil, false, err
	}

	if g.cache != nil {
		if err := g.cache.Store(ctx, relPath, key, fs); err != nil {
			g.logger.Warn("cache store failed", "file", relPath, "error", err)
		}
	}
	return fs, false, nil
}

// Write saves the result's code map to path.
func Write(path string, result *Result) error {
	if err := codemap.Save(path, result.CodeMap); err != nil {
		return fmt.Errorf("failed to write code map: %w", err)
	}
	return nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

package generator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// cacheDirName is never scanned.
const cacheDirName = ".see-the-code"

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// FileDiscovery finds component files under the configured inputs.
//
// Include patterns match paths relative to the input directory being walked.
// Ignore patterns match paths relative to the project root or to the input
// directory.
type FileDiscovery struct {
	rootDir        string
	inputs         []string
	includePattern []compiledPattern
	ignorePattern  []compiledPattern
	logger         *slog.Logger
}

// NewFileDiscovery creates a new file discovery instance. Relative inputs are
// resolved against rootDir.
func NewFileDiscovery(rootDir string, inputs, include, ignore []string, logger *slog.Logger) (*FileDiscovery, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fd := &FileDiscovery{rootDir: rootDir, logger: logger}

	for _, in := range inputs {
		if !filepath.IsAbs(in) {
			in = filepath.Join(rootDir, in)
		}
		fd.inputs = append(fd.inputs, filepath.Clean(in))
	}

	var err error
	if fd.includePattern, err = compilePatterns(include); err != nil {
		return nil, err
	}
	if fd.ignorePattern, err = compilePatterns(ignore); err != nil {
		return nil, err
	}

	return fd, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, compiledPattern{pattern: pattern, glob: g})
	}
	return compiled, nil
}

// Inputs returns the resolved absolute inputs.
func (fd *FileDiscovery) Inputs() []string {
	return fd.inputs
}

// DiscoverFiles returns the absolute paths of every component file, sorted
// lexicographically and without duplicates. Missing inputs are logged and
// skipped. Explicit file inputs are always included.
func (fd *FileDiscovery) DiscoverFiles() ([]string, error) {
	seen := make(map[string]bool)

	for _, input := range fd.inputs {
		info, err := os.Stat(input)
		if os.IsNotExist(err) {
			fd.logger.Warn("input path does not exist", "path", input)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat input %s: %w", input, err)
		}

		if !info.IsDir() {
			seen[input] = true
			continue
		}

		err = filepath.Walk(input, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if info.IsDir() {
				if path != input && !fd.ShouldWatchDirectory(path) {
					return filepath.SkipDir
				}
				return nil
			}

			if fd.matchesInput(input, path) {
				seen[path] = true
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", input, err)
		}
	}

	files := make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// Matches reports whether path (absolute) is a component file under one of
// the inputs.
func (fd *FileDiscovery) Matches(path string) bool {
	path = filepath.Clean(path)
	for _, input := range fd.inputs {
		if path == input {
			return true
		}
		if isWithin(input, path) && fd.matchesInput(input, path) {
			return true
		}
	}
	return false
}

// ShouldWatchDirectory reports whether a directory should be walked or
// watched.
func (fd *FileDiscovery) ShouldWatchDirectory(path string) bool {
	relPath, err := filepath.Rel(fd.rootDir, path)
	if err != nil {
		return false
	}
	return !fd.shouldIgnore(filepath.ToSlash(relPath))
}

func (fd *FileDiscovery) matchesInput(input, path string) bool {
	if relRoot, err := filepath.Rel(fd.rootDir, path); err == nil {
		if fd.shouldIgnore(filepath.ToSlash(relRoot)) {
			return false
		}
	}

	relInput, err := filepath.Rel(input, path)
	if err != nil {
		return false
	}
	relInput = filepath.ToSlash(relInput)

	if matchesAnyPattern(relInput, fd.ignorePattern) {
		return false
	}
	return matchesAnyPattern(relInput, fd.includePattern)
}

// shouldIgnore checks if a path matches any ignore pattern.
func (fd *FileDiscovery) shouldIgnore(relPath string) bool {
	// Always ignore the generator's own cache directory
	if strings.HasPrefix(relPath, cacheDirName+"/") || relPath == cacheDirName {
		return true
	}

	if matchesAnyPattern(relPath, fd.ignorePattern) {
		return true
	}

	// Also check if this is a directory that would match with /** suffix
	// For example, "node_modules" should match pattern "node_modules/**"
	return matchesAnyPattern(relPath+"/**", fd.ignorePattern)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// Paths in the root (no slash) also match patterns with the **/ prefix
	// removed, so "**/*.tsx" matches "App.tsx" as well as "ui/Card.tsx".
	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if simplifiedGlob, err := glob.Compile(simplified, '/'); err == nil {
					if simplifiedGlob.Match(path) {
						return true
					}
				}
			}
		}
	}

	return false
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

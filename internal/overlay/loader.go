package overlay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/mvp-joe/see-the-code/internal/codemap"
)

// Loader fetches a code map from a location.
type Loader interface {
	Load(ctx context.Context, location string) (*codemap.CodeMap, error)
}

// HTTPLoader fetches code maps over HTTP. Non-2xx responses are errors.
type HTTPLoader struct {
	Client *http.Client
}

func (l HTTPLoader) Load(ctx context.Context, location string) (*codemap.CodeMap, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch code map: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to load code map: %s", resp.Status)
	}

	return codemap.Decode(resp.Body)
}

// FileLoader reads code maps from disk. Relative paths are resolved against
// Root.
type FileLoader struct {
	Root string
}

func (l FileLoader) Load(ctx context.Context, location string) (*codemap.CodeMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(location, "file://")
	if !filepath.IsAbs(path) && l.Root != "" {
		path = filepath.Join(l.Root, path)
	}
	return codemap.Load(path)
}

// AutoLoader dispatches on the location: http and https URLs go to HTTP,
// everything else to File.
type AutoLoader struct {
	HTTP HTTPLoader
	File FileLoader
}

// DefaultLoader returns an AutoLoader resolving relative paths against root.
func DefaultLoader(root string) *AutoLoader {
	return &AutoLoader{File: FileLoader{Root: root}}
}

func (l *AutoLoader) Load(ctx context.Context, location string) (*codemap.CodeMap, error) {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.HTTP.Load(ctx, location)
	}
	return l.File.Load(ctx, location)
}

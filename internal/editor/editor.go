// Package editor turns a source location into an editor deep link and opens
// it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

// DefaultScheme is the URI scheme used when none is configured.
const DefaultScheme = "vscode"

// ErrUnresolved is returned by Resolve when a relative path cannot be
// anchored because no workspace root is set.
var ErrUnresolved = errors.New("workspace root not set")

var absolutePathRe = regexp.MustCompile(`^([A-Za-z]:|\\|/)`)

// IsAbsolute reports whether path is absolute on any platform the overlay may
// be served from (POSIX root, Windows drive or UNC prefix).
func IsAbsolute(path string) bool {
	return absolutePathRe.MatchString(path)
}

// Resolve anchors a code-map file path at the workspace root and normalizes
// separators to forward slashes. A relative path with no workspace root is
// returned as-is together with ErrUnresolved.
func Resolve(workspaceRoot, file string) (string, error) {
	if IsAbsolute(file) {
		return toSlash(file), nil
	}
	if workspaceRoot == "" {
		return toSlash(file), ErrUnresolved
	}
	root := strings.TrimSuffix(toSlash(workspaceRoot), "/")
	return root + "/" + strings.TrimPrefix(toSlash(file), "/"), nil
}

// URI builds "<scheme>://file/<path>:<line>". The path is resolved the same
// way as Resolve; an unresolved relative path still produces a URI.
func URI(scheme, workspaceRoot, file string, line int) (string, error) {
	if scheme == "" {
		scheme = DefaultScheme
	}
	path, err := Resolve(workspaceRoot, file)
	return fmt.Sprintf("%s://file/%s:%d", scheme, strings.TrimPrefix(path, "/"), line), err
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Opener hands a URI to whatever is registered to handle it.
type Opener interface {
	Open(ctx context.Context, uri string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, uri string) error

func (f OpenerFunc) Open(ctx context.Context, uri string) error {
	return f(ctx, uri)
}

// SystemOpener opens URIs with the platform URL handler.
type SystemOpener struct{}

// Open runs the platform handler and waits for it to hand off the URI.
func (SystemOpener) Open(ctx context.Context, uri string) error {
	name, args := systemCommand(uri)
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to open %s with %s: %w (%s)", uri, name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func systemCommand(uri string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{uri}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", uri}
	default:
		return "xdg-open", []string{uri}
	}
}

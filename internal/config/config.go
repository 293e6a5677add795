// Package config loads the see-the-code project configuration.
//
// Configuration hierarchy (highest to lowest priority):
//  1. Environment variables (SEE_THE_CODE_*)
//  2. Project config file (.see-the-code.yml, .see-the-code.yaml or .see-the-code.json)
//  3. Built-in defaults
//
// Nested keys map to environment variables with underscores, e.g.
// SEE_THE_CODE_OPTIONS_INCLUDE_HASHES or SEE_THE_CODE_OVERLAY_MIN_SIZE.
package config

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/mvp-joe/see-the-code/internal/extract"
	"github.com/mvp-joe/see-the-code/internal/match"
	"github.com/mvp-joe/see-the-code/internal/overlay"
)

// FileName is the config file base name, without extension.
const FileName = ".see-the-code"

// Config represents the complete see-the-code configuration.
type Config struct {
	Paths         PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Output        string         `yaml:"output" mapstructure:"output"`                 // code map path, relative to the project root
	WorkspaceRoot string         `yaml:"workspace_root" mapstructure:"workspace_root"` // root that code map paths are relative to
	Options       OptionsConfig  `yaml:"options" mapstructure:"options"`
	Generate      GenerateConfig `yaml:"generate" mapstructure:"generate"`
	Overlay       OverlayConfig  `yaml:"overlay" mapstructure:"overlay"`
	Server        ServerConfig   `yaml:"server" mapstructure:"server"`
}

// PathsConfig defines which component files are scanned.
type PathsConfig struct {
	Input   []string `yaml:"input" mapstructure:"input"`     // directories or files to scan
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for component files
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// OptionsConfig toggles extraction passes.
type OptionsConfig struct {
	ExtractElementTypes   bool `yaml:"extract_element_types" mapstructure:"extract_element_types"`
	ExtractDataAttributes bool `yaml:"extract_data_attributes" mapstructure:"extract_data_attributes"`
	HandleDynamicClasses  bool `yaml:"handle_dynamic_classes" mapstructure:"handle_dynamic_classes"` // styles.button and template literals, off by default
	WarnOnDuplicates      bool `yaml:"warn_on_duplicates" mapstructure:"warn_on_duplicates"`
	IncludeHashes         bool `yaml:"include_hashes" mapstructure:"include_hashes"`
	IncludeInnerText      bool `yaml:"include_inner_text" mapstructure:"include_inner_text"`
	TolerateSyntaxErrors  bool `yaml:"tolerate_syntax_errors" mapstructure:"tolerate_syntax_errors"`
}

// GenerateConfig controls the generator.
type GenerateConfig struct {
	Workers     int    `yaml:"workers" mapstructure:"workers"`         // 0 means GOMAXPROCS
	CacheDir    string `yaml:"cache_dir" mapstructure:"cache_dir"`     // incremental cache directory
	Incremental bool   `yaml:"incremental" mapstructure:"incremental"` // reuse cached results for unchanged files
}

// OverlayConfig configures the overlay controller.
type OverlayConfig struct {
	CodeMapURL      string        `yaml:"code_map_url" mapstructure:"code_map_url"`
	InteractionMode string        `yaml:"interaction_mode" mapstructure:"interaction_mode"` // click, hover or always
	MinSize         float64       `yaml:"min_size" mapstructure:"min_size"`
	Debounce        time.Duration `yaml:"debounce" mapstructure:"debounce"`
	TextFallback    bool          `yaml:"text_fallback" mapstructure:"text_fallback"`
	Fuzzy           bool          `yaml:"fuzzy" mapstructure:"fuzzy"`
	FuzzyMinLength  int           `yaml:"fuzzy_min_length" mapstructure:"fuzzy_min_length"`
	Debug           bool          `yaml:"debug" mapstructure:"debug"`
	OpenInEditor    bool          `yaml:"open_in_editor" mapstructure:"open_in_editor"`
	EditorScheme    string        `yaml:"editor_scheme" mapstructure:"editor_scheme"`
}

// ServerConfig configures `see-the-code serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	overlayDefaults := overlay.DefaultConfig()
	return &Config{
		Paths: PathsConfig{
			Input: []string{"src"},
			Include: []string{
				"**/*.tsx",
				"**/*.jsx",
			},
			Ignore: []string{
				"node_modules/**",
				"dist/**",
				"build/**",
				".next/**",
				".git/**",
				"**/*.test.*",
				"**/*.spec.*",
			},
		},
		Output:        "code-map.json",
		WorkspaceRoot: ".",
		Options: OptionsConfig{
			ExtractElementTypes:   true,
			ExtractDataAttributes: true,
			HandleDynamicClasses:  false,
			WarnOnDuplicates:      true,
			IncludeHashes:         false,
			IncludeInnerText:      true,
		},
		Generate: GenerateConfig{
			Workers:     0,
			CacheDir:    ".see-the-code",
			Incremental: true,
		},
		Overlay: OverlayConfig{
			CodeMapURL:      overlayDefaults.CodeMapURL,
			InteractionMode: string(overlayDefaults.InteractionMode),
			MinSize:         overlayDefaults.MinSize,
			Debounce:        overlayDefaults.Debounce,
			TextFallback:    overlayDefaults.TextFallback,
			Fuzzy:           overlayDefaults.Fuzzy,
			OpenInEditor:    overlayDefaults.OpenInEditor,
			EditorScheme:    overlayDefaults.EditorScheme,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7331",
		},
	}
}

// ExtractOptions converts the extraction toggles.
func (c *Config) ExtractOptions() extract.Options {
	return extract.Options{
		ExtractElementTypes:   c.Options.ExtractElementTypes,
		ExtractDataAttributes: c.Options.ExtractDataAttributes,
		HandleDynamicClasses:  c.Options.HandleDynamicClasses,
		IncludeHashes:         c.Options.IncludeHashes,
		IncludeInnerText:      c.Options.IncludeInnerText,
		TolerateSyntaxErrors:  c.Options.TolerateSyntaxErrors,
	}
}

// OverlayConfig converts the overlay section. rootDir anchors a relative
// workspace root.
func (c *Config) OverlayConfig(rootDir string) overlay.Config {
	return overlay.Config{
		CodeMapURL:      c.Overlay.CodeMapURL,
		InteractionMode: overlay.Mode(c.Overlay.InteractionMode),
		MinSize:         c.Overlay.MinSize,
		Debounce:        c.Overlay.Debounce,
		TextFallback:    c.Overlay.TextFallback,
		Fuzzy:           c.Overlay.Fuzzy,
		FuzzyMinLength:  c.Overlay.FuzzyMinLength,
		Debug:           c.Overlay.Debug,
		OpenInEditor:    c.Overlay.OpenInEditor,
		EditorScheme:    c.Overlay.EditorScheme,
		WorkspaceRoot:   c.ResolveWorkspaceRoot(rootDir),
	}
}

// MatchOptions returns the matcher tiers for matching outside the overlay
// (HTTP and MCP servers). Overlay classes never take part in fuzzy matching.
func (c *Config) MatchOptions() match.Options {
	return match.Options{
		TextFallback:      c.Overlay.TextFallback,
		Fuzzy:             c.Overlay.Fuzzy,
		FuzzyMinLength:    c.Overlay.FuzzyMinLength,
		IgnoreClassPrefix: overlay.Namespace + "-",
	}
}

// ResolveWorkspaceRoot returns the absolute workspace root.
func (c *Config) ResolveWorkspaceRoot(rootDir string) string {
	root := c.WorkspaceRoot
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(rootDir, root)
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

// Workers returns the effective generator parallelism.
func (c *Config) Workers() int {
	if c.Generate.Workers > 0 {
		return c.Generate.Workers
	}
	return runtime.GOMAXPROCS(0)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEE_THE_CODE"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a loader that looks for .see-the-code.{yml,yaml,json}
// in rootDir.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// NewFileLoader creates a loader for an explicit config file. The file must
// exist.
func NewFileLoader(rootDir, configFile string) Loader {
	return &loader{rootDir: rootDir, configFile: configFile}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (SEE_THE_CODE_*)
// 2. Config file
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(l.rootDir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., SEE_THE_CODE_OVERLAY_MIN_SIZE)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// bindEnvVars binds every scalar key so AutomaticEnv sees it on Unmarshal.
func bindEnvVars(v *viper.Viper) {
	keys := []string{
		"output",
		"workspace_root",

		"options.extract_element_types",
		"options.extract_data_attributes",
		"options.handle_dynamic_classes",
		"options.warn_on_duplicates",
		"options.include_hashes",
		"options.include_inner_text",
		"options.tolerate_syntax_errors",

		"generate.workers",
		"generate.cache_dir",
		"generate.incremental",

		"overlay.code_map_url",
		"overlay.interaction_mode",
		"overlay.min_size",
		"overlay.debounce",
		"overlay.text_fallback",
		"overlay.fuzzy",
		"overlay.fuzzy_min_length",
		"overlay.debug",
		"overlay.open_in_editor",
		"overlay.editor_scheme",

		"server.addr",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	// Paths defaults
	v.SetDefault("paths.input", defaults.Paths.Input)
	v.SetDefault("paths.include", defaults.Paths.Include)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("workspace_root", defaults.WorkspaceRoot)

	// Extraction defaults
	v.SetDefault("options.extract_element_types", defaults.Options.ExtractElementTypes)
	v.SetDefault("options.extract_data_attributes", defaults.Options.ExtractDataAttributes)
	v.SetDefault("options.handle_dynamic_classes", defaults.Options.HandleDynamicClasses)
	v.SetDefault("options.warn_on_duplicates", defaults.Options.WarnOnDuplicates)
	v.SetDefault("options.include_hashes", defaults.Options.IncludeHashes)
	v.SetDefault("options.include_inner_text", defaults.Options.IncludeInnerText)
	v.SetDefault("options.tolerate_syntax_errors", defaults.Options.TolerateSyntaxErrors)

	// Generator defaults
	v.SetDefault("generate.workers", defaults.Generate.Workers)
	v.SetDefault("generate.cache_dir", defaults.Generate.CacheDir)
	v.SetDefault("generate.incremental", defaults.Generate.Incremental)

	// Overlay defaults
	v.SetDefault("overlay.code_map_url", defaults.Overlay.CodeMapURL)
	v.SetDefault("overlay.interaction_mode", defaults.Overlay.InteractionMode)
	v.SetDefault("overlay.min_size", defaults.Overlay.MinSize)
	v.SetDefault("overlay.debounce", defaults.Overlay.Debounce)
	v.SetDefault("overlay.text_fallback", defaults.Overlay.TextFallback)
	v.SetDefault("overlay.fuzzy", defaults.Overlay.Fuzzy)
	v.SetDefault("overlay.fuzzy_min_length", defaults.Overlay.FuzzyMinLength)
	v.SetDefault("overlay.debug", defaults.Overlay.Debug)
	v.SetDefault("overlay.open_in_editor", defaults.Overlay.OpenInEditor)
	v.SetDefault("overlay.editor_scheme", defaults.Overlay.EditorScheme)

	// Server defaults
	v.SetDefault("server.addr", defaults.Server.Addr)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/mvp-joe/see-the-code/internal/overlay"
)

var (
	// ErrEmptyInput indicates no input paths were configured
	ErrEmptyInput = errors.New("empty input paths")

	// ErrEmptyInclude indicates no include patterns were configured
	ErrEmptyInclude = errors.New("empty include patterns")

	// ErrInvalidPattern indicates a glob pattern that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrEmptyOutput indicates a missing code map output path
	ErrEmptyOutput = errors.New("empty output path")

	// ErrInvalidWorkers indicates a negative worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidMode indicates an unknown overlay interaction mode
	ErrInvalidMode = errors.New("invalid interaction mode")

	// ErrInvalidOverlay indicates invalid overlay sizing or timing settings
	ErrInvalidOverlay = errors.New("invalid overlay settings")

	// ErrEmptyScheme indicates a missing editor URI scheme
	ErrEmptyScheme = errors.New("empty editor scheme")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(cfg); err != nil {
		errs = append(errs, err)
	}

	if cfg.Generate.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidWorkers, cfg.Generate.Workers))
	}

	if err := validateOverlay(&cfg.Overlay); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validatePaths(cfg *Config) error {
	var errs []error

	if len(cfg.Paths.Input) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one input path required", ErrEmptyInput))
	}

	if len(cfg.Paths.Include) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one include pattern required", ErrEmptyInclude))
	}

	for _, pattern := range append(append([]string{}, cfg.Paths.Include...), cfg.Paths.Ignore...) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
		}
	}

	if strings.TrimSpace(cfg.Output) == "" {
		errs = append(errs, fmt.Errorf("%w: output is required", ErrEmptyOutput))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateOverlay(cfg *OverlayConfig) error {
	var errs []error

	if _, err := overlay.ParseMode(cfg.InteractionMode); err != nil {
		errs = append(errs, fmt.Errorf("%w: must be 'click', 'hover' or 'always', got '%s'", ErrInvalidMode, cfg.InteractionMode))
	}

	if cfg.MinSize < 0 {
		errs = append(errs, fmt.Errorf("%w: min_size cannot be negative, got %.1f", ErrInvalidOverlay, cfg.MinSize))
	}

	if cfg.Debounce < 0 {
		errs = append(errs, fmt.Errorf("%w: debounce cannot be negative, got %s", ErrInvalidOverlay, cfg.Debounce))
	}

	if cfg.FuzzyMinLength < 0 {
		errs = append(errs, fmt.Errorf("%w: fuzzy_min_length cannot be negative, got %d", ErrInvalidOverlay, cfg.FuzzyMinLength))
	}

	if strings.TrimSpace(cfg.EditorScheme) == "" {
		errs = append(errs, fmt.Errorf("%w: editor_scheme is required", ErrEmptyScheme))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

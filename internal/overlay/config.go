package overlay

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Namespace prefixes every class, id and attribute the overlay adds to a
// document.
const Namespace = "see-the-code"

const (
	DefaultCodeMapURL = "./code-map.json"
	DefaultMinSize    = 10
	DefaultDebounce   = 500 * time.Millisecond
)

// Mode controls when markers are visible. Activation toggles a marker in
// every mode.
type Mode string

const (
	ModeClick  Mode = "click"
	ModeHover  Mode = "hover"
	ModeAlways Mode = "always"
)

// ParseMode validates an interaction mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeClick, ModeHover, ModeAlways:
		return m, nil
	}
	return "", fmt.Errorf("invalid interaction mode %q (must be click, hover or always)", s)
}

// Config configures a Controller.
type Config struct {
	// CodeMapURL is an http(s) URL, a file:// URL or a filesystem path.
	CodeMapURL string `validate:"required"`

	InteractionMode Mode `validate:"oneof=click hover always"`

	// MinSize is the minimum rendered width and height of a marked element.
	MinSize float64 `validate:"gte=0"`

	// Debounce is the quiet period after a mutation before a pass runs.
	Debounce time.Duration `validate:"gte=0"`

	TextFallback   bool
	Fuzzy          bool
	FuzzyMinLength int `validate:"gte=0"`

	Debug bool

	OpenInEditor  bool
	EditorScheme  string `validate:"required,printascii,excludesall=:/"`
	WorkspaceRoot string
}

// DefaultConfig returns the overlay defaults.
func DefaultConfig() Config {
	return Config{
		CodeMapURL:      DefaultCodeMapURL,
		InteractionMode: ModeClick,
		MinSize:         DefaultMinSize,
		Debounce:        DefaultDebounce,
		TextFallback:    true,
		Fuzzy:           true,
		OpenInEditor:    true,
		EditorScheme:    "vscode",
	}
}

var validate = validator.New()

// Validate checks the struct constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid overlay config: %w", err)
	}
	return nil
}

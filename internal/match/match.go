// Package match resolves a live DOM element to the source location that
// rendered it. Strategies are tried in tier order and the first one that
// succeeds wins.
package match

import (
	"log/slog"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"golang.org/x/net/html"
)

// MaxTextLength bounds the visible text considered by the text tier. Longer
// text belongs to containers that would match by coincidence.
const MaxTextLength = 100

// Tier identifies the strategy that produced a match.
type Tier int

const (
	TierNone Tier = iota
	TierStructural
	TierText
	TierFuzzy
)

func (t Tier) String() string {
	switch t {
	case TierStructural:
		return "structural"
	case TierText:
		return "text"
	case TierFuzzy:
		return "fuzzy"
	}
	return "none"
}

// Result is a successful match.
type Result struct {
	Key    string         `json:"selector"`
	Record codemap.Record `json:"record"`
	Tier   Tier           `json:"-"`
}

// Strategy is one matching tier.
type Strategy interface {
	Tier() Tier
	Match(el *html.Node) (Result, bool)
}

// Options toggles the fallback tiers. The structural tier is always on.
type Options struct {
	// TextFallback enables matching by recorded innerText.
	TextFallback bool

	// Fuzzy enables substring matching of class and id tokens.
	Fuzzy bool

	// FuzzyMinLength skips key tokens shorter than this in the fuzzy tier.
	// Zero only skips empty tokens.
	FuzzyMinLength int

	// IgnoreClassPrefix hides classes the overlay adds to the page from the
	// fuzzy tier.
	IgnoreClassPrefix string

	// Skip excludes subtrees (overlay markers) from visible text.
	Skip func(*html.Node) bool

	Logger *slog.Logger
}

// DefaultOptions enables every tier.
func DefaultOptions() Options {
	return Options{TextFallback: true, Fuzzy: true}
}

// Matcher runs the tiers in order against a loaded code map. A Matcher is
// read-only after construction and safe for concurrent use.
type Matcher struct {
	codeMap    *codemap.CodeMap
	strategies []Strategy
	logger     *slog.Logger
}

// New builds a matcher over cm. Keys that are not valid structural queries
// are skipped by the structural tier and logged at debug level.
func New(cm *codemap.CodeMap, opts Options) *Matcher {
	if cm == nil {
		cm = codemap.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	strategies := []Strategy{newStructural(cm, logger)}
	if opts.TextFallback {
		strategies = append(strategies, newText(cm, opts.Skip))
	}
	if opts.Fuzzy {
		strategies = append(strategies, newFuzzy(cm, opts.FuzzyMinLength, opts.IgnoreClassPrefix))
	}

	return &Matcher{codeMap: cm, strategies: strategies, logger: logger}
}

// CodeMap returns the map the matcher was built over.
func (m *Matcher) CodeMap() *codemap.CodeMap {
	return m.codeMap
}

// Strategies returns the enabled tiers in the order they are tried.
func (m *Matcher) Strategies() []Strategy {
	return m.strategies
}

// Match returns the best record for el. No match is a normal outcome.
func (m *Matcher) Match(el *html.Node) (Result, bool) {
	if el == nil || el.Type != html.ElementNode {
		return Result{}, false
	}
	for _, s := range m.strategies {
		if res, ok := s.Match(el); ok {
			res.Tier = s.Tier()
			if res.Tier != TierStructural {
				m.logger.Debug("matched by fallback", "tier", res.Tier.String(), "tag", el.Data, "selector", res.Key)
			}
			return res, true
		}
	}
	return Result{}, false
}

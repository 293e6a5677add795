package match

import (
	"strings"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/selector"
	"golang.org/x/net/html"
)

type fuzzyEntry struct {
	key    string
	bare   string
	record codemap.Record
}

// fuzzy matches when a key's bare token and one of the element's class or
// id tokens contain each other. Classes are tried before the id; within a
// token, keys are tried in map order.
type fuzzy struct {
	entries      []fuzzyEntry
	ignorePrefix string
}

func newFuzzy(cm *codemap.CodeMap, minLength int, ignorePrefix string) *fuzzy {
	f := &fuzzy{ignorePrefix: ignorePrefix}
	cm.Each(func(key string, rec codemap.Record) bool {
		bare := selector.BareToken(key)
		if bare == "" || len(bare) < minLength {
			return true
		}
		f.entries = append(f.entries, fuzzyEntry{key: key, bare: bare, record: rec})
		return true
	})
	return f
}

func (f *fuzzy) Tier() Tier { return TierFuzzy }

func (f *fuzzy) Match(el *html.Node) (Result, bool) {
	for _, token := range ClassList(el) {
		if f.ignorePrefix != "" && strings.HasPrefix(token, f.ignorePrefix) {
			continue
		}
		if res, ok := f.matchToken(token); ok {
			return res, true
		}
	}
	if id := strings.TrimSpace(Attr(el, "id")); id != "" {
		return f.matchToken(id)
	}
	return Result{}, false
}

func (f *fuzzy) matchToken(token string) (Result, bool) {
	for _, e := range f.entries {
		if strings.Contains(token, e.bare) || strings.Contains(e.bare, token) {
			return Result{Key: e.key, Record: e.record}, true
		}
	}
	return Result{}, false
}

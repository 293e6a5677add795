package match

import (
	"fmt"
	"log/slog"

	"github.com/andybalholm/cascadia"
	"github.com/mvp-joe/see-the-code/internal/codemap"
	"golang.org/x/net/html"
)

type compiledKey struct {
	key    string
	record codemap.Record
	sel    cascadia.Sel
}

// structural tests the element against every key as a CSS selector. Keys
// are compiled once; a key that fails to compile or to evaluate is skipped
// without affecting the others.
type structural struct {
	keys   []compiledKey
	logger *slog.Logger
}

func newStructural(cm *codemap.CodeMap, logger *slog.Logger) *structural {
	s := &structural{logger: logger}
	cm.Each(func(key string, rec codemap.Record) bool {
		sel, err := cascadia.Parse(key)
		if err != nil {
			logger.Debug("invalid selector skipped", "selector", key, "error", err)
			return true
		}
		s.keys = append(s.keys, compiledKey{key: key, record: rec, sel: sel})
		return true
	})
	return s
}

func (s *structural) Tier() Tier { return TierStructural }

// Match returns the first key in map order that matches el.
func (s *structural) Match(el *html.Node) (Result, bool) {
	for _, ck := range s.keys {
		ok, err := matches(ck.sel, el)
		if err != nil {
			s.logger.Debug("selector evaluation failed", "selector", ck.key, "error", err)
			continue
		}
		if ok {
			return Result{Key: ck.key, Record: ck.record}, true
		}
	}
	return Result{}, false
}

func matches(sel cascadia.Sel, el *html.Node) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("selector panicked: %v", r)
		}
	}()
	return sel.Match(el), nil
}

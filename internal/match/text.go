package match

import (
	"strings"
	"unicode/utf8"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"golang.org/x/net/html"
)

type textEntry struct {
	key    string
	record codemap.Record
}

// text matches an element whose visible text equals a recorded innerText,
// ignoring case.
type text struct {
	entries []textEntry
	skip    func(*html.Node) bool
}

func newText(cm *codemap.CodeMap, skip func(*html.Node) bool) *text {
	t := &text{skip: skip}
	cm.Each(func(key string, rec codemap.Record) bool {
		if rec.InnerText != "" {
			t.entries = append(t.entries, textEntry{key: key, record: rec})
		}
		return true
	})
	return t
}

func (t *text) Tier() Tier { return TierText }

func (t *text) Match(el *html.Node) (Result, bool) {
	if len(t.entries) == 0 {
		return Result{}, false
	}
	visible := VisibleText(el, t.skip)
	if visible == "" || utf8.RuneCountInString(visible) > MaxTextLength {
		return Result{}, false
	}
	for _, e := range t.entries {
		if strings.EqualFold(e.record.InnerText, visible) {
			return Result{Key: e.key, Record: e.record}, true
		}
	}
	return Result{}, false
}

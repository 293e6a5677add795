package match

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrNoElement is returned when a snippet contains no element.
var ErrNoElement = errors.New("snippet contains no element")

// ElementFromHTML parses an HTML snippet and returns its first element in
// document order, the way a caller outside a browser hands the matcher one
// element.
func ElementFromHTML(snippet string) (*html.Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	first := doc.Find("body *").First()
	if first.Length() == 0 {
		return nil, ErrNoElement
	}
	return first.Get(0), nil
}

// MatchHTML parses snippet and matches its first element.
func (m *Matcher) MatchHTML(snippet string) (Result, bool, error) {
	el, err := ElementFromHTML(snippet)
	if err != nil {
		return Result{}, false, err
	}
	res, ok := m.Match(el)
	return res, ok, nil
}

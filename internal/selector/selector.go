// Package selector defines the key space of the code map: class, id,
// data-attribute and element-type selectors, plus the canonical form used
// to detect duplicates that are spelled differently.
package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Kind identifies which of the four disjoint key grammars a key belongs to.
type Kind int

const (
	KindInvalid Kind = iota
	KindClass
	KindID
	KindData
	KindElement
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindID:
		return "id"
	case KindData:
		return "data"
	case KindElement:
		return "element"
	default:
		return "invalid"
	}
}

// Prefix returns the leading character of keys of this kind, or "" for
// element types which carry no prefix.
func (k Kind) Prefix() string {
	switch k {
	case KindClass:
		return "."
	case KindID:
		return "#"
	case KindData:
		return "["
	default:
		return ""
	}
}

var (
	// ErrEmptyKey is returned when parsing an empty key.
	ErrEmptyKey = errors.New("empty selector key")

	// ErrMalformedKey is returned when a key fits none of the grammars.
	ErrMalformedKey = errors.New("malformed selector key")
)

var (
	dataKeyRe   = regexp.MustCompile(`^\[(data-[^\s=\]]+)="([^"]*)"\]$`)
	camelHumpRe = regexp.MustCompile(`([a-z])([A-Z])`)
)

// Key is a parsed selector key.
type Key struct {
	Kind Kind
	// Token is the key without its type prefix. For data attributes it is the
	// attribute name; Value holds the attribute value.
	Token string
	Value string
}

// String renders the key back to its selector form.
func (k Key) String() string {
	switch k.Kind {
	case KindClass:
		return "." + k.Token
	case KindID:
		return "#" + k.Token
	case KindData:
		return Data(k.Token, k.Value)
	case KindElement:
		return k.Token
	default:
		return ""
	}
}

// Class returns the key for a class token.
func Class(token string) string { return "." + token }

// ID returns the key for an id token.
func ID(token string) string { return "#" + token }

// Data returns the key for a data-* attribute with a literal value.
func Data(name, value string) string {
	return fmt.Sprintf(`[%s="%s"]`, name, value)
}

// Element returns the key for an element type. Tag names are lowercased.
func Element(tag string) string { return strings.ToLower(tag) }

// Parse classifies a raw key string.
func Parse(raw string) (Key, error) {
	if raw == "" {
		return Key{}, ErrEmptyKey
	}

	switch raw[0] {
	case '.', '#':
		token := raw[1:]
		if token == "" || strings.IndexFunc(token, unicode.IsSpace) >= 0 {
			return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, raw)
		}
		kind := KindClass
		if raw[0] == '#' {
			kind = KindID
		}
		return Key{Kind: kind, Token: token}, nil

	case '[':
		m := dataKeyRe.FindStringSubmatch(raw)
		if m == nil {
			return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, raw)
		}
		return Key{Kind: KindData, Token: m[1], Value: m[2]}, nil
	}

	for _, r := range raw {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == ':') {
			return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, raw)
		}
	}
	return Key{Kind: KindElement, Token: raw}, nil
}

// KindOf returns the kind of a raw key without validating the rest of it.
func KindOf(raw string) Kind {
	if raw == "" {
		return KindInvalid
	}
	switch raw[0] {
	case '.':
		return KindClass
	case '#':
		return KindID
	case '[':
		return KindData
	}
	return KindElement
}

// BareToken strips the type prefix of a key: ".btn" -> "btn",
// "#main" -> "main", `[data-id="x"]` -> `data-id="x"`, "button" -> "button".
func BareToken(raw string) string {
	switch KindOf(raw) {
	case KindClass, KindID:
		return raw[1:]
	case KindData:
		return strings.TrimSuffix(raw[1:], "]")
	}
	return raw
}

// Canonical returns the duplicate-detection form of a key: the type prefix is
// stripped, camelCase humps become kebab-case and the result is lowercased.
// It is never stored as a key.
func Canonical(raw string) string {
	bare := BareToken(raw)
	return strings.ToLower(camelHumpRe.ReplaceAllString(bare, "$1-$2"))
}

// Identity pairs a key's kind with its canonical form. Two keys with the same
// identity are the same selector for deduplication.
type Identity struct {
	Kind      Kind
	Canonical string
}

// IdentityOf returns the deduplication identity of a raw key.
func IdentityOf(raw string) Identity {
	return Identity{Kind: KindOf(raw), Canonical: Canonical(raw)}
}

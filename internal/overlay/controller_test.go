package overlay

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/editor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the Overlay Controller:
// - Init matches elements, wraps each once and attaches exactly one badge
// - Re-processing never duplicates markers
// - Skipped tags and elements below the minimum size get no marker
// - A failed load leaves the controller inert and the document unmarked
// - HTTP loading: success and non-2xx status
// - Activation toggles collapsed <-> expanded and opens the editor on expand only
// - Editor failures do not change marker state
// - Mutations schedule one debounced pass that picks up new elements
// - Reset restores the original markup; Reload re-attaches markers
// - Debug mode flags unmatched elements and clears the flag when disabled
// - Interaction mode and code map URL changes re-init the overlay

type mapLoader struct {
	mu    sync.Mutex
	maps  map[string]*codemap.CodeMap
	calls []string
}

func (l *mapLoader) Load(_ context.Context, location string) (*codemap.CodeMap, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, location)
	cm, ok := l.maps[location]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return cm, nil
}

const testBody = `<div class="card"><button class="btn">Save</button></div><p class="zzz">nothing</p>`

func testMap() *codemap.CodeMap {
	return codemap.FromEntries([]codemap.Entry{
		{Key: ".card", Record: codemap.Record{File: "src/Card.tsx", Line: 10}},
		{Key: ".btn", Record: codemap.Record{File: "src/Button.tsx", Line: 4}},
	})
}

func newDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head><title>t</title></head><body>" + body + "</body></html>"))
	require.NoError(t, err)
	return doc
}

func newController(t *testing.T, doc *goquery.Document, cfg Config, opts ...Option) (*Controller, *mapLoader) {
	t.Helper()
	loader := &mapLoader{maps: map[string]*codemap.CodeMap{DefaultCodeMapURL: testMap()}}
	opts = append([]Option{WithLoader(loader), WithOpener(editor.OpenerFunc(func(context.Context, string) error { return nil }))}, opts...)
	c, err := New(doc, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, loader
}

func TestInit_AttachesMarkers(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	c, _ := newController(t, doc, DefaultConfig())
	require.NoError(t, c.Init(context.Background()))

	markers := c.Markers()
	require.Len(t, markers, 2)
	assert.Equal(t, ".card", markers[0].Key)
	assert.Equal(t, "src/Card.tsx", markers[0].Record.File)
	assert.Equal(t, Collapsed, markers[0].State)

	assert.Equal(t, 2, doc.Find("."+ClassBadge).Length())
	assert.Equal(t, 2, doc.Find("."+ClassWrapper).Length())
	assert.Equal(t, 1, doc.Find("#"+StylesID).Length())

	btn := doc.Find("button.btn")
	assert.True(t, btn.Parent().HasClass(ClassWrapper))
	assert.Equal(t, "src/Button.tsx:4", btn.Parent().Find("."+ClassFileInfo).Text())

	assert.Equal(t, Stats{TotalSelectors: 2, MatchedElements: 2, UnmatchedElements: 1}, c.Stats())
}

func TestProcess_NoDuplicateMarkers(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	c, _ := newController(t, doc, DefaultConfig())
	require.NoError(t, c.Init(context.Background()))

	assert.Equal(t, 0, c.Process())
	assert.Equal(t, 0, c.Process())

	assert.Len(t, c.Markers(), 2)
	assert.Equal(t, 2, doc.Find("."+ClassBadge).Length())
	assert.Equal(t, 2, doc.Find("."+ClassWrapper).Length())
}

func TestProcess_SkipsTagsAndSmallElements(t *testing.T) {
	t.Parallel()

	body := `<div class="card" data-see-the-code-width="5" data-see-the-code-height="40">tiny</div>` +
		`<span class="btn" data-see-the-code-width="120" data-see-the-code-height="20">ok</span>` +
		`<script class="card"></script>`
	doc := newDoc(t, body)
	c, _ := newController(t, doc, DefaultConfig())
	require.NoError(t, c.Init(context.Background()))

	markers := c.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, ".btn", markers[0].Key)
	assert.Equal(t, 0, c.Stats().UnmatchedElements)
}

func TestInit_LoadFailureIsInert(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	before, err := doc.Find("body").Html()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.CodeMapURL = "missing.json"
	c, _ := newController(t, doc, cfg)

	err = c.Init(context.Background())
	require.ErrorIs(t, err, ErrInert)

	assert.True(t, c.Stats().Inert)
	assert.Equal(t, 0, c.Process())
	c.NotifyMutation(Mutation{AddedNodes: 3})
	assert.False(t, c.debounce.pending())

	_, err = c.Activate("anything")
	assert.ErrorIs(t, err, ErrInert)

	after, err := doc.Find("body").Html()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestHTTPLoader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/code-map.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{".card":{"file":"src/Card.tsx","line":10}}`))
	}))
	defer srv.Close()

	loader := DefaultLoader(".")

	cm, err := loader.Load(context.Background(), srv.URL+"/code-map.json")
	require.NoError(t, err)
	rec, ok := cm.Get(".card")
	require.True(t, ok)
	assert.Equal(t, 10, rec.Line)

	_, err = loader.Load(context.Background(), srv.URL+"/nope.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	doc := newDoc(t, testBody)
	cfg := DefaultConfig()
	cfg.CodeMapURL = srv.URL + "/nope.json"
	c, err := New(doc, cfg, WithLoader(loader))
	require.NoError(t, err)
	assert.ErrorIs(t, c.Init(context.Background()), ErrInert)
}

func TestActivate_StateMachine(t *testing.T) {
	t.Parallel()

	opened := make(chan string, 4)
	doc := newDoc(t, testBody)
	cfg := DefaultConfig()
	cfg.WorkspaceRoot = "/ws/app"
	c, _ := newController(t, doc, cfg, WithOpener(editor.OpenerFunc(func(_ context.Context, uri string) error {
		opened <- uri
		return nil
	})))
	require.NoError(t, c.Init(context.Background()))

	id := c.Markers()[0].ID
	assert.Equal(t, "vscode://file/ws/app/src/Card.tsx:10", doc.Find("["+MarkerAttr+"='"+id+"']").AttrOr(HrefAttr, ""))

	state, err := c.Activate(id)
	require.NoError(t, err)
	assert.Equal(t, Expanded, state)
	assert.True(t, doc.Find("["+MarkerAttr+"='"+id+"']").HasClass(ClassExpanded))

	select {
	case uri := <-opened:
		assert.Equal(t, "vscode://file/ws/app/src/Card.tsx:10", uri)
	case <-time.After(time.Second):
		t.Fatal("editor was not opened")
	}

	state, err = c.Activate(id)
	require.NoError(t, err)
	assert.Equal(t, Collapsed, state)
	assert.False(t, doc.Find("["+MarkerAttr+"='"+id+"']").HasClass(ClassExpanded))

	select {
	case uri := <-opened:
		t.Fatalf("collapsing opened %s", uri)
	case <-time.After(50 * time.Millisecond):
	}

	_, err = c.Activate("not-a-marker")
	assert.ErrorIs(t, err, ErrUnknownMarker)
}

func TestActivate_EditorFailureIgnored(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	c, _ := newController(t, doc, DefaultConfig(), WithOpener(editor.OpenerFunc(func(context.Context, string) error {
		return errors.New("editor not installed")
	})))
	require.NoError(t, c.Init(context.Background()))

	id := c.Markers()[1].ID
	state, err := c.Activate(id)
	require.NoError(t, err)
	assert.Equal(t, Expanded, state)
	assert.Equal(t, Expanded, c.Markers()[1].State)
}

func TestNotifyMutation_DebouncedPass(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	cfg := DefaultConfig()
	cfg.Debounce = 20 * time.Millisecond
	c, _ := newController(t, doc, cfg)
	require.NoError(t, c.Init(context.Background()))

	c.NotifyMutation(Mutation{})
	assert.False(t, c.debounce.pending())

	for i := 0; i < 3; i++ {
		c.Mutate(func(doc *goquery.Document) Mutation {
			doc.Find("body").AppendHtml(`<span class="btn">New</span>`)
			return Mutation{AddedNodes: 1}
		})
	}

	require.Eventually(t, func() bool {
		return len(c.Markers()) == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5, doc.Find("."+ClassBadge).Length())
}

func TestReload(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	original, err := doc.Find("body").Html()
	require.NoError(t, err)

	c, loader := newController(t, doc, DefaultConfig())
	require.NoError(t, c.Init(context.Background()))
	first := c.Markers()

	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	reset, err := doc.Find("body").Html()
	require.NoError(t, err)
	assert.Equal(t, original, reset)

	require.NoError(t, c.Reload(context.Background()))
	second := c.Markers()
	require.Len(t, second, 2)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, doc.Find("."+ClassBadge).Length())
	assert.Equal(t, 2, doc.Find("."+ClassWrapper).Length())
	assert.Equal(t, 1, doc.Find("#"+StylesID).Length())
	assert.Len(t, loader.calls, 2)
}

func TestSetDebug(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	cfg := DefaultConfig()
	cfg.Debug = true
	c, _ := newController(t, doc, cfg)
	require.NoError(t, c.Init(context.Background()))

	assert.True(t, doc.Find("p.zzz").HasClass(ClassDebugUnmatched))
	assert.False(t, doc.Find(".card").HasClass(ClassDebugUnmatched))

	c.SetDebug(false)
	assert.Equal(t, 0, doc.Find("."+ClassDebugUnmatched).Length())

	c.SetDebug(true)
	assert.Equal(t, 1, doc.Find("."+ClassDebugUnmatched).Length())
}

func TestSetInteractionMode(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	c, _ := newController(t, doc, DefaultConfig())
	require.NoError(t, c.Init(context.Background()))

	require.Error(t, c.SetInteractionMode(context.Background(), "sideways"))

	require.NoError(t, c.SetInteractionMode(context.Background(), "hover"))
	assert.Equal(t, 2, doc.Find("."+ClassHoverMode).Length())
	assert.Equal(t, 2, doc.Find("."+ClassBadge).Length())

	require.NoError(t, c.SetInteractionMode(context.Background(), "always"))
	assert.Equal(t, 0, doc.Find("."+ClassHoverMode).Length())
	assert.Equal(t, 2, doc.Find("."+ClassAlwaysVisible).Length())
}

func TestSetCodeMapURL(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	cfg := DefaultConfig()
	cfg.CodeMapURL = "missing.json"
	c, loader := newController(t, doc, cfg)
	require.ErrorIs(t, c.Init(context.Background()), ErrInert)

	loader.maps["alt.json"] = codemap.FromEntries([]codemap.Entry{
		{Key: ".zzz", Record: codemap.Record{File: "src/P.tsx", Line: 2}},
	})
	require.NoError(t, c.SetCodeMapURL(context.Background(), "alt.json"))

	stats := c.Stats()
	assert.False(t, stats.Inert)
	assert.Equal(t, 1, stats.TotalSelectors)
	assert.Equal(t, 1, stats.MatchedElements)
	assert.Equal(t, []string{"missing.json", "alt.json"}, loader.calls)
}

func TestRender(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, testBody)
	c, _ := newController(t, doc, DefaultConfig())
	require.NoError(t, c.Init(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, c.Render(&buf))
	out := buf.String()
	assert.Contains(t, out, `id="see-the-code-styles"`)
	assert.Contains(t, out, "src/Card.tsx:10")
	assert.Equal(t, 2, strings.Count(out, MarkerAttr+"="))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.CodeMapURL = "" }},
		{"bad mode", func(c *Config) { c.InteractionMode = "sideways" }},
		{"negative size", func(c *Config) { c.MinSize = -1 }},
		{"scheme with colon", func(c *Config) { c.EditorScheme = "vscode:" }},
		{"empty scheme", func(c *Config) { c.EditorScheme = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())

			_, err := New(newDoc(t, ""), cfg)
			assert.Error(t, err)
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"click", "hover", "always"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("Click")
	assert.Error(t, err)
}

// Package overlay attaches source-location markers to the elements of a
// rendered document. A Controller owns the document's overlay state: the
// loaded code map, the registry of matched elements and the pending
// reprocessing timer.
package overlay

// Implementation Plan:
// 1. Init: inject styles, load the code map, run a full pass
// 2. A failed load leaves the controller inert until the next Reload
// 3. A pass visits every element, skipping overlay nodes, skipped tags,
//    small elements and elements already in the registry
// 4. Matched elements are wrapped once and get exactly one badge
// 5. Mutations adding nodes schedule a debounced pass (cancel-and-reschedule)
// 6. Reload removes badges and wrappers, clears the registry and re-inits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/editor"
	"github.com/mvp-joe/see-the-code/internal/match"
	"golang.org/x/net/html"
)

var (
	// ErrInert is returned when the code map could not be loaded. Every
	// operation except Reload and the setters that re-init is a no-op
	// until the next successful load.
	ErrInert = errors.New("overlay inert: code map not loaded")

	// ErrUnknownMarker is returned by Activate for ids it never issued.
	ErrUnknownMarker = errors.New("unknown marker")
)

const openTimeout = 10 * time.Second

// Stats summarizes the overlay state.
type Stats struct {
	TotalSelectors    int  `json:"totalSelectors"`
	MatchedElements   int  `json:"matchedElements"`
	UnmatchedElements int  `json:"unmatchedElements"`
	Inert             bool `json:"inert"`
}

// Mutation describes a change made to the document.
type Mutation struct {
	AddedNodes int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLoader sets the code map loader. The default is DefaultLoader(".").
func WithLoader(l Loader) Option {
	return func(c *Controller) { c.loader = l }
}

// WithGeometry sets the element size source. The default is AttrGeometry.
func WithGeometry(g Geometry) Option {
	return func(c *Controller) { c.geometry = g }
}

// WithOpener sets how editor links are opened. The default is
// editor.SystemOpener.
func WithOpener(o editor.Opener) Option {
	return func(c *Controller) { c.opener = o }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller manages the overlay on one document. All methods are safe for
// concurrent use; passes are serialized.
type Controller struct {
	mu  sync.Mutex
	doc *goquery.Document
	cfg Config

	loader   Loader
	geometry Geometry
	opener   editor.Opener
	logger   *slog.Logger

	codeMap     *codemap.CodeMap
	matcher     *match.Matcher
	initialized bool
	inert       bool

	matched   map[*html.Node]*Marker
	byID      map[string]*Marker
	order     []*Marker
	unmatched map[*html.Node]struct{}

	debounce *debouncer
}

// New creates a controller for doc. Nothing happens to the document until
// Init.
func New(doc *goquery.Document, cfg Config, opts ...Option) (*Controller, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil, errors.New("overlay: nil document")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		doc:       doc,
		cfg:       cfg,
		loader:    DefaultLoader("."),
		geometry:  AttrGeometry{},
		opener:    editor.SystemOpener{},
		logger:    slog.Default(),
		matched:   make(map[*html.Node]*Marker),
		byID:      make(map[string]*Marker),
		unmatched: make(map[*html.Node]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.debounce = newDebouncer(cfg.Debounce, func() { c.Process() })
	return c, nil
}

// Init injects the stylesheet, loads the code map and runs the first pass.
// A load failure is logged once and returned wrapped in ErrInert; the
// document is left untouched apart from the stylesheet.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked(ctx)
}

func (c *Controller) initLocked(ctx context.Context) error {
	c.logger.Debug("initializing overlay", "url", c.cfg.CodeMapURL)
	injectStyles(c.doc)

	cm, err := c.loader.Load(ctx, c.cfg.CodeMapURL)
	if err != nil {
		c.inert = true
		c.initialized = false
		c.codeMap = nil
		c.matcher = nil
		c.logger.Warn("code map not loaded, overlay disabled", "url", c.cfg.CodeMapURL, "error", err)
		return fmt.Errorf("%w: %w", ErrInert, err)
	}

	c.codeMap = cm
	c.matcher = match.New(cm, match.Options{
		TextFallback:      c.cfg.TextFallback,
		Fuzzy:             c.cfg.Fuzzy,
		FuzzyMinLength:    c.cfg.FuzzyMinLength,
		IgnoreClassPrefix: Namespace + "-",
		Skip:              isOverlayNode,
		Logger:            c.logger,
	})
	c.inert = false
	c.initialized = true
	c.logger.Debug("code map loaded", "selectors", cm.Len())

	c.processLocked()
	return nil
}

// Process runs a full pass and returns the number of new markers. Elements
// already in the registry are skipped.
func (c *Controller) Process() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processLocked()
}

func (c *Controller) processLocked() int {
	if !c.initialized {
		return 0
	}

	elements := c.doc.Find("*").Nodes
	added := 0
	for _, el := range elements {
		if c.processElement(el) {
			added++
		}
	}

	c.logger.Debug("processed document", "elements", len(elements), "new", added, "matched", len(c.matched))
	if c.cfg.Debug && len(c.unmatched) > 0 {
		c.logger.Warn("unmatched elements", "count", len(c.unmatched))
	}
	return added
}

// processElement matches one element and attaches a marker. It reports
// whether a marker was added.
func (c *Controller) processElement(el *html.Node) bool {
	if _, ok := c.matched[el]; ok {
		return false
	}
	if el.Parent == nil || skippedTags[el.Data] || isOverlayNode(el) {
		return false
	}
	if w, h, ok := c.geometry.Size(el); ok && (w < c.cfg.MinSize || h < c.cfg.MinSize) {
		return false
	}

	res, ok := c.matcher.Match(el)
	if !ok {
		c.unmatched[el] = struct{}{}
		if c.cfg.Debug {
			addClass(el, ClassDebugUnmatched)
		}
		return false
	}

	if _, was := c.unmatched[el]; was {
		delete(c.unmatched, el)
		removeClass(el, ClassDebugUnmatched)
	}

	m := newMarker(res, el)
	m.wrapper = wrap(el)
	m.badge = badgeNode(m, c.cfg.InteractionMode, c.editorHref(m.Record))
	m.wrapper.AppendChild(m.badge)

	c.matched[el] = m
	c.byID[m.ID] = m
	c.order = append(c.order, m)
	c.logger.Debug("matched element", "tag", el.Data, "selector", m.Key, "location", m.Record.String(), "tier", m.Tier.String())
	return true
}

func (c *Controller) editorHref(rec codemap.Record) string {
	if !c.cfg.OpenInEditor {
		return ""
	}
	uri, _ := editor.URI(c.cfg.EditorScheme, c.cfg.WorkspaceRoot, rec.File, rec.Line)
	return uri
}

// Activate toggles a marker. Expanding it opens the location in the editor
// without waiting for the editor; a failure to open is only logged.
func (c *Controller) Activate(id string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inert {
		return Collapsed, ErrInert
	}
	m, ok := c.byID[id]
	if !ok {
		return Collapsed, fmt.Errorf("%w: %s", ErrUnknownMarker, id)
	}

	state := m.toggle()
	if state == Expanded && c.cfg.OpenInEditor {
		c.openInEditor(m.Record)
	}
	return state, nil
}

func (c *Controller) openInEditor(rec codemap.Record) {
	uri, err := editor.URI(c.cfg.EditorScheme, c.cfg.WorkspaceRoot, rec.File, rec.Line)
	if errors.Is(err, editor.ErrUnresolved) {
		c.logger.Warn("workspace root not set, opening unresolved path", "file", rec.File)
	}
	c.logger.Debug("opening editor", "uri", uri)

	opener, logger := c.opener, c.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		if err := opener.Open(ctx, uri); err != nil {
			logger.Warn("failed to open editor", "uri", uri, "error", err)
		}
	}()
}

// NotifyMutation schedules a pass when nodes were added. Notifications
// within the debounce window coalesce into one pass.
func (c *Controller) NotifyMutation(m Mutation) {
	if m.AddedNodes == 0 {
		return
	}
	c.mu.Lock()
	active := c.initialized
	c.mu.Unlock()
	if !active {
		return
	}
	c.debounce.trigger()
}

// Mutate applies fn to the document under the controller's lock and
// notifies the resulting mutation.
func (c *Controller) Mutate(fn func(doc *goquery.Document) Mutation) {
	c.mu.Lock()
	m := fn(c.doc)
	c.mu.Unlock()
	c.NotifyMutation(m)
}

// Reload removes every badge and wrapper, clears the registry and runs Init
// again.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return c.initLocked(ctx)
}

func (c *Controller) resetLocked() {
	c.debounce.cancel()

	c.doc.Find("." + ClassBadge).Remove()
	c.doc.Find("." + ClassWrapper).Each(func(_ int, w *goquery.Selection) {
		w.ReplaceWithSelection(w.Contents())
	})
	for el := range c.unmatched {
		removeClass(el, ClassDebugUnmatched)
	}

	c.matched = make(map[*html.Node]*Marker)
	c.byID = make(map[string]*Marker)
	c.order = nil
	c.unmatched = make(map[*html.Node]struct{})
	c.initialized = false
}

// SetDebug toggles highlighting of unmatched elements.
func (c *Controller) SetDebug(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.Debug = enabled
	for el := range c.unmatched {
		if enabled {
			addClass(el, ClassDebugUnmatched)
		} else {
			removeClass(el, ClassDebugUnmatched)
		}
	}
	c.logger.Debug("debug mode changed", "enabled", enabled)
}

// SetInteractionMode changes the marker mode and re-inits so existing
// markers pick it up.
func (c *Controller) SetInteractionMode(ctx context.Context, mode string) error {
	m, err := ParseMode(mode)
	if err != nil {
		c.logger.Warn("invalid interaction mode", "mode", mode)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.InteractionMode = m
	if !c.initialized && !c.inert {
		return nil
	}
	c.resetLocked()
	return c.initLocked(ctx)
}

// SetCodeMapURL changes the code map location and re-inits when the
// controller was already initialized.
func (c *Controller) SetCodeMapURL(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.CodeMapURL = url
	c.logger.Debug("code map url changed", "url", url)
	if !c.initialized && !c.inert {
		return nil
	}
	c.resetLocked()
	return c.initLocked(ctx)
}

// SetWorkspaceRoot sets the directory relative code map paths resolve
// against. Existing badge links are not rewritten.
func (c *Controller) SetWorkspaceRoot(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.WorkspaceRoot = root
}

// Stats returns the current counts.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		MatchedElements:   len(c.matched),
		UnmatchedElements: len(c.unmatched),
		Inert:             c.inert,
	}
	if c.codeMap != nil {
		s.TotalSelectors = c.codeMap.Len()
	}
	return s
}

// Markers returns a snapshot of the markers in the order they were attached.
func (c *Controller) Markers() []Marker {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Marker, 0, len(c.order))
	for _, m := range c.order {
		out = append(out, *m)
	}
	return out
}

// Render writes the document, including the overlay, as HTML.
func (c *Controller) Render(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return html.Render(w, c.doc.Nodes[0])
}

// Close cancels any pending pass.
func (c *Controller) Close() {
	c.debounce.cancel()
}

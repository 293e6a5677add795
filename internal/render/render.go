// Package render produces documents for the overlay: live pages rendered in
// a headless browser with element sizes stamped on, or static HTML files.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/mvp-joe/see-the-code/internal/overlay"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultSettle  = 2 * time.Second
)

// Options configures browser rendering.
type Options struct {
	// Timeout bounds the whole browser session.
	Timeout time.Duration

	// Settle is how long to wait after the body is ready for client-side
	// rendering to finish.
	Settle time.Duration

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// stampScript records each element's rendered size as attributes so the
// overlay can apply its minimum size rule outside the browser.
var stampScript = fmt.Sprintf(`(() => {
  let n = 0;
  document.querySelectorAll('*').forEach((el) => {
    const r = el.getBoundingClientRect();
    el.setAttribute('%s', String(Math.round(r.width)));
    el.setAttribute('%s', String(Math.round(r.height)));
    n++;
  });
  return n;
})()`, overlay.WidthAttr, overlay.HeightAttr)

// IsURL reports whether source is an http(s) URL.
func IsURL(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Page renders url in headless Chrome and returns the resulting HTML with
// element sizes stamped. Requires Chrome or Chromium to be installed.
func Page(ctx context.Context, pageURL string, opts Options) (string, error) {
	opts = opts.withDefaults()
	opts.Logger.Debug("starting headless browser", "url", pageURL)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, opts.Timeout)
	defer cancel()

	var (
		html    string
		stamped int
	)
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(opts.Settle),
		chromedp.Evaluate(stampScript, &stamped),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	opts.Logger.Debug("rendered page", "url", pageURL, "bytes", len(html), "elements", stamped)
	return html, nil
}

// Document loads source as a goquery document. URLs are rendered in the
// browser; anything else is read as a local HTML file without sizes.
func Document(ctx context.Context, source string, opts Options) (*goquery.Document, error) {
	if IsURL(source) {
		html, err := Page(ctx, source, opts)
		if err != nil {
			return nil, err
		}
		return goquery.NewDocumentFromReader(strings.NewReader(html))
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	return doc, nil
}

// StripSizes removes the size attributes stamped by Page.
func StripSizes(doc *goquery.Document) {
	doc.Find("[" + overlay.WidthAttr + "]").RemoveAttr(overlay.WidthAttr)
	doc.Find("[" + overlay.HeightAttr + "]").RemoveAttr(overlay.HeightAttr)
}

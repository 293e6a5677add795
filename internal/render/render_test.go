package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mvp-joe/see-the-code/internal/overlay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for render:
// - IsURL accepts only http(s) URLs with a host
// - Document reads local HTML files and fails on missing ones
// - StripSizes removes stamped size attributes
// - Page stamps element sizes (skipped when no Chrome is installed)

func TestIsURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsURL("http://localhost:3000/"))
	assert.True(t, IsURL("https://example.com/app"))
	assert.False(t, IsURL("pages/todo.html"))
	assert.False(t, IsURL("file:///tmp/x.html"))
	assert.False(t, IsURL("http://"))
}

func TestDocument_LocalFile(t *testing.T) {
	t.Parallel()

	doc, err := Document(context.Background(), filepath.Join("..", "..", "testdata", "pages", "todo.html"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("#todo-root").Length())
	assert.Equal(t, "Todos", doc.Find("h1.todo-title").Text())

	_, err = Document(context.Background(), "does-not-exist.html", Options{})
	assert.Error(t, err)
}

func TestStripSizes(t *testing.T) {
	t.Parallel()

	src := `<div ` + overlay.WidthAttr + `="10" ` + overlay.HeightAttr + `="20" class="a"><span ` + overlay.WidthAttr + `="1"></span></div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)

	StripSizes(doc)
	out, err := doc.Find("body").Html()
	require.NoError(t, err)
	assert.Equal(t, `<div class="a"><span></span></div>`, out)
}

func TestPage_StampsSizes(t *testing.T) {
	if testing.Short() {
		t.Skip("browser test")
	}
	found := false
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("no Chrome installation found")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><div class="box" style="width:120px;height:40px">x</div></body></html>`))
	}))
	defer srv.Close()

	html, err := Page(context.Background(), srv.URL, Options{Timeout: 20 * time.Second, Settle: 100 * time.Millisecond})
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	box := doc.Find("div.box")
	assert.Equal(t, "120", box.AttrOr(overlay.WidthAttr, ""))
	assert.Equal(t, "40", box.AttrOr(overlay.HeightAttr, ""))
}

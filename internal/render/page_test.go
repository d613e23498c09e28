package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/scheduler"
)

func testSources() []collector.SourceDescriptor {
	return []collector.SourceDescriptor{
		{Tag: "lanacion", Name: "La Nación"},
		{Tag: "clarin", Name: "Clarín"},
	}
}

func testResult() scheduler.Result {
	return scheduler.Result{
		"clarin": {
			Source: "clarin",
			Items: []collector.NewsItem{
				{Title: "Suba del <dólar>", Summary: "Resumen & más", Link: "https://www.clarin.com/nota", Source: "clarin"},
				{Title: "Sin enlace", Source: "clarin"},
			},
		},
		"lanacion": {
			Source: "lanacion",
			Items:  []collector.NewsItem{},
			Diagnostics: []collector.Diagnostic{
				{Source: "lanacion", Kind: collector.DiagFetchError, Container: -1, Message: "timeout"},
			},
		},
		"extra": {Source: "extra", Items: []collector.NewsItem{}},
	}
}

func newTestRenderer(output string) *Renderer {
	r := NewRenderer(testSources(), output)
	r.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
	return r
}

func TestRenderGroupsBySourceInOrder(t *testing.T) {
	page, err := newTestRenderer("").Render(testResult())
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	html := string(page)

	ln := strings.Index(html, "La Nación")
	cl := strings.Index(html, "Clarín")
	ex := strings.Index(html, `id="extra"`)
	if ln < 0 || cl < 0 || ex < 0 || !(ln < cl && cl < ex) {
		t.Fatalf("sections out of order (lanacion=%d clarin=%d extra=%d)", ln, cl, ex)
	}
	if !strings.Contains(html, "01/03/2024 12:30") {
		t.Fatalf("generation time missing")
	}
	if !strings.Contains(html, `href="https://www.clarin.com/nota"`) {
		t.Fatalf("link missing")
	}
	if !strings.Contains(html, "No se pudo obtener la página") {
		t.Fatalf("failed source should show a notice")
	}
	if !strings.Contains(html, "Sin noticias.") {
		t.Fatalf("empty source should show a placeholder")
	}
}

func TestRenderEscapesText(t *testing.T) {
	page, err := newTestRenderer("").Render(testResult())
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	html := string(page)
	if strings.Contains(html, "<dólar>") {
		t.Fatalf("title should be escaped")
	}
	if !strings.Contains(html, "Suba del &lt;dólar&gt;") || !strings.Contains(html, "Resumen &amp; más") {
		t.Fatalf("escaped text missing:\n%s", html)
	}
}

func TestConsumeWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "index.html")
	r := newTestRenderer(out)

	if err := r.Consume(context.Background(), testResult()); err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "Sin enlace") {
		t.Fatalf("page content missing")
	}

	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Fatalf("temp files should not be left behind, got %d entries", len(entries))
	}
}

func TestConsumeWithoutOutputIsNoop(t *testing.T) {
	if err := newTestRenderer("").Consume(context.Background(), testResult()); err != nil {
		t.Fatalf("Consume error: %v", err)
	}
}

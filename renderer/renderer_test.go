package renderer

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/importer"
	"github.com/etnz/tradebook/resolver"
)

// TestTemplates checks that every embedded template parses.
func TestTemplates(t *testing.T) {
	entries, err := fs.ReadDir(templates, ".")
	if err != nil {
		t.Fatalf("failed to read embedded templates: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded templates")
	}
	for _, e := range entries {
		content, err := fs.ReadFile(templates, e.Name())
		if err != nil {
			t.Fatalf("ReadFile(%q) error = %v", e.Name(), err)
		}
		if _, err := template.New(e.Name()).Funcs(funcs).Parse(string(content)); err != nil {
			t.Errorf("template %q: %v", e.Name(), err)
		}
	}
}

func importResult(t *testing.T) *importer.Result {
	t.Helper()
	data := `Date,Symbol,Side,Quantity,Price,Commission
2025-01-02 09:30:00,AAPL,BUY,100,10,1
2025-01-02 10:00:00,AAPL,SELL,100,12,1
2025-01-02 10:00:00,MSFT,BUY,10,400,0
2025-01-02 10:05:00,88160R101,BUY,1,250,0
2025-01-02 10:06:00,MSFT,BUY,10,abc,0
`
	res, err := importer.New().Import(context.Background(), []byte(data), importer.Options{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	return res
}

func TestImportMarkdown(t *testing.T) {
	res := importResult(t)
	res.UnresolvedCusips = []string{"88160R101"}
	md := ImportMarkdown(res, time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"# Import of 2025-01-03 08:00",
		"| generic | 5 | 4 |",
		"## Closed Trades",
		"| AAPL | long | 2025-01-02 09:30 | 2025-01-02 10:00 | 100 |",
		"+19.80%",
		"## Open Positions",
		"| MSFT | long |",
		"## Skipped Rows",
		"| 6 | MSFT |",
		"## Unresolved Identifiers",
		"- `88160R101`",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report does not contain %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "error executing") || strings.Contains(md, "error parsing") {
		t.Errorf("report contains a template error:\n%s", md)
	}
}

func TestImportMarkdown_Empty(t *testing.T) {
	md := ImportMarkdown(&importer.Result{Format: tradebook.Generic}, time.Now())
	for _, unexpected := range []string{"## Closed Trades", "## Open Positions", "## Skipped Rows", "## Unresolved"} {
		if strings.Contains(md, unexpected) {
			t.Errorf("empty report contains %q", unexpected)
		}
	}
}

func TestRenderQueue(t *testing.T) {
	md := RenderQueue([]resolver.Item{{
		CUSIP: "88160R101", Status: resolver.Failed, Attempts: 5, Users: []string{"u1", "u2"}, LastError: "no match",
	}})
	if want := "| 88160R101 | failed | 0 | 5 | u1, u2 |"; !strings.Contains(md, want) {
		t.Errorf("RenderQueue() = %s, want %q", md, want)
	}
	if md := RenderQueue(nil); !strings.Contains(md, "The queue is empty.") {
		t.Errorf("RenderQueue(nil) = %s", md)
	}
}

func TestHTML(t *testing.T) {
	html, err := HTML(ImportMarkdown(importResult(t), time.Now()))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if !strings.Contains(html, "<table>") || !strings.Contains(html, "<h1>") {
		t.Errorf("HTML() = %s, want headings and tables", html)
	}
}

func TestTerminal(t *testing.T) {
	out, err := Terminal("# Title\n\nsome text", 80)
	if err != nil {
		t.Fatalf("Terminal() error = %v", err)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "text") {
		t.Errorf("Terminal() = %q", out)
	}
}


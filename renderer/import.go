package renderer

import (
	"maps"
	"slices"
	"time"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/importer"
)

// ImportReport is the content of the import report.
type ImportReport struct {
	Title      string
	Format     tradebook.Format
	Rows       int
	Executions int
	Closed     []TradeLine
	Open       []TradeLine
	Updates    bool // some trades update stored ones
	Totals     []string
	Failures   []FailureLine
	Unresolved []string
}

// TradeLine is a trade, formatted.
type TradeLine struct {
	Symbol     string
	Side       tradebook.Direction
	Entry      string
	Exit       string
	Quantity   string
	EntryPrice string
	ExitPrice  string
	PnL        string
	Return     string
	Commission string
	Update     bool
}

// FailureLine is a skipped row.
type FailureLine struct {
	Line   int
	Symbol string
	Error  string
}

const stamp = "2006-01-02 15:04"

// NewImportReport prepares the report of 'res'.
func NewImportReport(title string, res *importer.Result) *ImportReport {
	r := &ImportReport{
		Title:      title,
		Format:     res.Format,
		Rows:       res.Rows,
		Executions: res.Executions,
		Unresolved: res.UnresolvedCusips,
	}
	totals := make(map[string]tradebook.Money)
	for _, t := range res.Trades {
		line := TradeLine{
			Symbol:     t.Symbol,
			Side:       t.Side,
			Entry:      t.EntryTime.UTC().Format(stamp),
			Quantity:   t.Quantity.String(),
			EntryPrice: t.EntryPrice.String(),
			PnL:        t.PnL.SignedString(),
			Commission: t.Commission.String(),
			Update:     t.IsUpdate,
		}
		r.Updates = r.Updates || t.IsUpdate
		if t.IsOpen() {
			r.Open = append(r.Open, line)
			continue
		}
		line.Exit = t.ExitTime.UTC().Format(stamp)
		line.ExitPrice = t.ExitPrice.String()
		line.Return = t.PnLPercent.SignedString()
		r.Closed = append(r.Closed, line)

		cur := t.Currency()
		totals[cur] = totals[cur].Add(t.PnL)
	}
	for _, cur := range slices.Sorted(maps.Keys(totals)) {
		r.Totals = append(r.Totals, totals[cur].SignedString())
	}
	for _, f := range res.Failures {
		r.Failures = append(r.Failures, FailureLine{Line: f.Line, Symbol: f.Symbol, Error: f.Err.Error()})
	}
	return r
}

// RenderImport renders the import report to a markdown string.
func RenderImport(r *ImportReport) string {
	partials := map[string]string{
		"import_title":      "import_title.md",
		"import_trades":     "import_trades.md",
		"import_failures":   "import_failures.md",
		"import_unresolved": "import_unresolved.md",
	}
	return renderTemplate("import", "import.md", partials, r)
}

// ImportMarkdown renders the report of 'res' for the import done at 'now'.
func ImportMarkdown(res *importer.Result, now time.Time) string {
	return RenderImport(NewImportReport("Import of "+now.Format(stamp), res))
}

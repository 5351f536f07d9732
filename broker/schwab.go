package broker

import (
	"strings"
	"time"

	"github.com/etnz/tradebook"
)

// schwab reads the "Transactions" export of Charles Schwab:
//
//	"Date","Action","Symbol","Description","Quantity","Price","Fees & Comm","Amount"
//
// Dates have no time of day, and rows are listed newest first.
type schwab struct {
	loc *time.Location
}

func (*schwab) NewestFirst() bool { return true }

func (s *schwab) Normalize(r tradebook.Row) (*tradebook.Execution, error) {
	action := r.Get("action")
	if _, ok := tradebook.ParseSide(action); !ok {
		// dividends, journals, transfers, interests...
		return nil, nil
	}
	// "01/02/2025 as of 12/31/2024": the trade date comes first.
	day, _, _ := strings.Cut(r.Get("date"), " ")
	t, err := parseTime(r, day, s.loc, "01/02/2006", "2006-01-02")
	if err != nil {
		return nil, err
	}
	return execution(r, cells{
		symbol:     r.Get("symbol"),
		side:       tradebook.SideHints{Explicit: action, Quantity: r.Get("quantity"), Text: r.Get("description")},
		price:      r.Get("price"),
		commission: []string{r.Get("fees & comm")},
		time:       t,
	})
}

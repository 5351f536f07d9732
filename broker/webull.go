package broker

import (
	"strings"
	"time"

	"github.com/etnz/tradebook"
)

// webull reads the Webull orders export:
//
//	Name,Symbol,Side,Status,Filled,Total Qty,Price,Avg Price,Time-in-Force,Placed Time,Filled Time
//
// Only filled orders are executions. Times end with a US timezone
// abbreviation.
type webull struct {
	loc *time.Location
}

// usZones are the abbreviations found at the end of Webull timestamps.
var usZones = map[string]string{
	"EST": "America/New_York", "EDT": "America/New_York",
	"CST": "America/Chicago", "CDT": "America/Chicago",
	"PST": "America/Los_Angeles", "PDT": "America/Los_Angeles",
}

func (w *webull) Normalize(r tradebook.Row) (*tradebook.Execution, error) {
	if status := strings.ToLower(r.Get("status")); status != "" && status != "filled" {
		return nil, nil
	}
	t, err := w.time(r, r.Get("filled time"))
	if err != nil {
		return nil, err
	}
	return execution(r, cells{
		symbol: r.Get("symbol"),
		side:   tradebook.SideHints{Explicit: r.Get("side"), Quantity: r.Get("filled", "total qty")},
		price:  r.Get("avg price", "price"),
		time:   t,
	})
}

// time parses "01/02/2025 09:30:01 EST" in the zone named by its suffix.
func (w *webull) time(r tradebook.Row, s string) (time.Time, error) {
	loc := w.loc
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, ' '); i > 0 {
		if name, ok := usZones[strings.ToUpper(s[i+1:])]; ok {
			if l, err := time.LoadLocation(name); err == nil {
				loc = l
			}
			s = s[:i]
		}
	}
	return parseTime(r, s, loc, "01/02/2006 15:04:05", "01/02/2006 15:04", "2006-01-02 15:04:05")
}

package broker

import (
	"strings"
	"time"

	"github.com/etnz/tradebook"
)

// generic reads any CSV with recognizable column names. Each field is looked
// up through a list of aliases.
type generic struct {
	loc *time.Location
}

var (
	genericSymbol     = []string{"symbol", "ticker", "instrument", "security", "cusip", "contract"}
	genericSide       = []string{"side", "action", "buy/sell", "b/s", "transaction type", "trans type"}
	genericQuantity   = []string{"quantity", "qty", "shares", "filled", "filled qty", "size", "units"}
	genericPrice      = []string{"price", "fill price", "avg price", "execution price", "trade price"}
	genericTime       = []string{"datetime", "date/time", "timestamp", "time", "executed at", "execution time", "date"}
	genericDate       = []string{"trade date", "date"}
	genericCommission = []string{"commission", "commissions", "comm", "fees & comm"}
	genericFees       = []string{"fees", "fee", "regulatory fees"}
	genericID         = []string{"execution id", "exec id", "fill id", "trade id", "id"}
	genericText       = []string{"description", "notes", "memo"}
	genericCurrency   = []string{"currency", "ccy"}
	genericStatus     = []string{"status"}
)

var genericLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/06 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

func (g *generic) Normalize(r tradebook.Row) (*tradebook.Execution, error) {
	if status := strings.ToLower(r.Get(genericStatus...)); status == "cancelled" || status == "canceled" || status == "rejected" {
		return nil, nil
	}
	side := r.Get(genericSide...)
	if side != "" {
		if _, ok := tradebook.ParseSide(side); !ok {
			// an action column that is not a trade: dividend, deposit...
			return nil, nil
		}
	}

	stamp := r.Get(genericTime...)
	// separate date and time columns
	if d := r.Get(genericDate...); d != "" && stamp != d && !strings.Contains(stamp, d) && r.Get("time") != "" {
		stamp = d + " " + r.Get("time")
	}
	t, err := parseTime(r, stamp, g.loc, genericLayouts...)
	if err != nil {
		return nil, err
	}
	return execution(r, cells{
		symbol:     r.Get(genericSymbol...),
		side:       tradebook.SideHints{Explicit: side, Quantity: r.Get(genericQuantity...), Text: r.Get(genericText...)},
		price:      r.Get(genericPrice...),
		commission: []string{r.Get(genericCommission...)},
		fees:       []string{r.Get(genericFees...)},
		currency:   r.Get(genericCurrency...),
		id:         r.Get(genericID...),
		time:       t,
	})
}

package broker

import (
	"time"

	"github.com/etnz/tradebook"
)

// lightspeed reads Lightspeed trade confirmations:
//
//	Trade Number,Account,Trade Date,Execution Time,Symbol,Side,Qty,Price,Commission,ECN Fee,SEC Fee,TAF Fee,NSCC Fee,Clearing Fee
//
// Sides are the B, S, SS and BC codes. The trade number is unique per fill.
type lightspeed struct {
	loc *time.Location
}

var lightspeedFees = []string{"ecn fee", "sec fee", "taf fee", "nscc fee", "clearing fee", "misc fee", "cat fee"}

func (l *lightspeed) Normalize(r tradebook.Row) (*tradebook.Execution, error) {
	t, err := parseTime(r, r.Get("trade date")+" "+r.Get("execution time"), l.loc,
		"01/02/2006 15:04:05", "1/2/2006 15:04:05", "2006-01-02 15:04:05", "01/02/2006 15:04:05.000")
	if err != nil {
		return nil, err
	}
	fees := make([]string, 0, len(lightspeedFees))
	for _, f := range lightspeedFees {
		fees = append(fees, r.Get(f))
	}
	return execution(r, cells{
		symbol:     r.Get("symbol"),
		side:       tradebook.SideHints{Explicit: r.Get("side"), Quantity: r.Get("qty", "quantity")},
		price:      r.Get("price"),
		commission: []string{r.Get("commission")},
		fees:       fees,
		id:         r.Get("trade number"),
		time:       t,
	})
}

package broker

import (
	"strings"
	"time"

	"github.com/etnz/tradebook"
)

// tradovate reads the Tradovate orders export:
//
//	orderId,Account,Order ID,B/S,Contract,Product,avgPrice,filledQty,Fill Time,Status,...
//
// Only filled orders are executions, contracts are futures codes (ESZ4).
type tradovate struct {
	loc *time.Location
}

func (tv *tradovate) Normalize(r tradebook.Row) (*tradebook.Execution, error) {
	if status := strings.ToLower(r.Get("status")); status != "" && status != "filled" {
		return nil, nil
	}
	t, err := parseTime(r, r.Get("fill time", "timestamp"), tv.loc,
		"01/02/2006 15:04:05", "1/2/2006 15:04:05", "2006-01-02 15:04:05", "01/02/2006 15:04")
	if err != nil {
		return nil, err
	}
	return execution(r, cells{
		symbol:     r.Get("contract"),
		side:       tradebook.SideHints{Explicit: r.Get("b/s"), Quantity: r.Get("filledqty", "filled qty")},
		price:      r.Get("avgprice", "avg fill price"),
		commission: []string{r.Get("commission")},
		id:         r.Get("orderid", "order id"),
		time:       t,
	})
}

package broker

import (
	"strings"
	"time"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/date"
	"github.com/shopspring/decimal"
)

// ibkr reads Interactive Brokers Flex Query trade reports (and the trades
// section of activity statements):
//
//	Symbol,AssetClass,DateTime,Buy/Sell,Quantity,TradePrice,IBCommission,CurrencyPrimary,IBExecID,...
//
// Quantities are signed and commissions negative.
type ibkr struct {
	loc *time.Location
}

var ibkrLayouts = []string{
	"20060102;150405",
	"2006-01-02, 15:04:05",
	"2006-01-02 15:04:05",
	"20060102 150405",
	"2006-01-02;15:04:05",
	"20060102",
}

func (b *ibkr) Normalize(r tradebook.Row) (*tradebook.Execution, error) {
	// summary lines of flex queries with the "orders" level of detail.
	if lod := strings.ToUpper(r.Get("levelofdetail")); lod != "" && lod != "EXECUTION" {
		return nil, nil
	}
	if asset := strings.ToUpper(r.Get("assetclass", "asset category")); asset == "CASH" || asset == "FOREX" {
		return nil, nil
	}

	t, err := parseTime(r, r.Get("datetime", "date/time", "tradedate"), b.loc, ibkrLayouts...)
	if err != nil {
		return nil, err
	}
	symbol := r.Get("symbol")
	c := cells{
		symbol:     symbol,
		side:       tradebook.SideHints{Explicit: r.Get("buy/sell"), Quantity: r.Get("quantity"), Signed: true},
		price:      r.Get("tradeprice", "t. price"),
		commission: []string{r.Get("ibcommission", "comm/fee", "comm in usd")},
		fees:       []string{r.Get("taxes")},
		currency:   r.Get("currencyprimary", "currency"),
		id:         r.Get("ibexecid", "tradeid"),
		time:       t,
	}
	switch strings.ToUpper(r.Get("assetclass", "asset category")) {
	case "OPT", "FOP", "EQUITY AND INDEX OPTIONS":
		if i, ok := ibkrOption(r); ok {
			c.instrument = &i
		}
	case "FUT", "FUTURES":
		i := tradebook.DecodeInstrument(symbol, t)
		if m, err := decimal.NewFromString(r.Get("multiplier")); err == nil && m.IsPositive() {
			i.Multiplier = m
		}
		c.instrument = &i
	}
	return execution(r, c)
}

// ibkrOption builds an option out of the dedicated flex query columns.
func ibkrOption(r tradebook.Row) (tradebook.Instrument, bool) {
	exp, err := time.Parse("20060102", r.Get("expiry"))
	if err != nil {
		return tradebook.Instrument{}, false
	}
	strike, err := decimal.NewFromString(r.Get("strike"))
	if err != nil {
		return tradebook.Instrument{}, false
	}
	ot := tradebook.Call
	switch strings.ToUpper(r.Get("put/call")) {
	case "P", "PUT":
		ot = tradebook.Put
	case "C", "CALL":
	default:
		return tradebook.Instrument{}, false
	}
	mult, err := decimal.NewFromString(r.Get("multiplier"))
	if err != nil || !mult.IsPositive() {
		mult = decimal.NewFromInt(100)
	}
	underlying := r.Get("underlyingsymbol")
	if underlying == "" {
		underlying, _, _ = strings.Cut(r.Get("symbol"), " ")
	}
	return tradebook.Instrument{
		Type:       tradebook.Option,
		Underlying: strings.ToUpper(underlying),
		Strike:     strike,
		Expiration: date.Of(exp),
		OptionType: ot,
		Multiplier: mult,
	}, true
}

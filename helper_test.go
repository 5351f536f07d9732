package tradebook

import "time"

// USD is a helper for test to create usd money from const
func USD(v float64) Money { return M(v, "USD") }

// t0 is the time of the first execution in tests.
var t0 = time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC)

// at returns t0 plus 'i' minutes.
func at(i int) time.Time { return t0.Add(time.Duration(i) * time.Minute) }

// buy is a helper for test to create a stock buy execution without fees.
func buy(qty, price float64, i int) Execution { return fill(Buy, qty, price, i) }

// sell is a helper for test to create a stock sell execution without fees.
func sell(qty, price float64, i int) Execution { return fill(Sell, qty, price, i) }

func fill(side Side, qty, price float64, i int) Execution {
	return Execution{
		Symbol:     "AAPL",
		Side:       side,
		Quantity:   Q(qty),
		Price:      USD(price),
		Time:       at(i),
		Commission: USD(0),
		Fees:       USD(0),
		Broker:     Generic,
		Instrument: Instrument{Type: Stock, Underlying: "AAPL"},
	}
}

// withFees sets the commission of e.
func withFees(e Execution, fees float64) Execution {
	e.Commission = USD(fees)
	return e
}

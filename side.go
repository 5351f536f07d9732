package tradebook

import "strings"

// ParseSide reads an explicit side or action cell: "BUY", "Sell Short",
// "Buy to Cover", "BOT", "SLD", "B", "S", "STO" ...
func ParseSide(s string) (Side, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "":
		return "", false
	case "B", "BOT", "BUY", "BOUGHT", "BTO", "BTC", "BUY TO OPEN", "BUY TO CLOSE", "BUY TO COVER", "BC", "COVER", "REINVEST SHARES":
		return Buy, true
	case "S", "SLD", "SELL", "SOLD", "STO", "STC", "SS", "SELL SHORT", "SHORT", "SELL TO OPEN", "SELL TO CLOSE":
		return Sell, true
	}
	// "Buy to Open (BTO)", "SELL_SHORT", etc.
	s = strings.ReplaceAll(s, "_", " ")
	switch {
	case strings.HasPrefix(s, "BUY"), strings.HasPrefix(s, "BOUGHT"):
		return Buy, true
	case strings.HasPrefix(s, "SELL"), strings.HasPrefix(s, "SOLD"), strings.HasPrefix(s, "SHORT"):
		return Sell, true
	}
	return "", false
}

// sideFromText searches a free text description for a buy or sell word.
func sideFromText(s string) (Side, bool) {
	for _, word := range strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !(r >= 'A' && r <= 'Z')
	}) {
		switch word {
		case "BUY", "BOUGHT", "BOT":
			return Buy, true
		case "SELL", "SOLD", "SLD":
			return Sell, true
		}
	}
	return "", false
}

// SideHints are the cells of a row that can tell the side of an execution.
type SideHints struct {
	Explicit string // side or action column
	Quantity string // quantity column
	Signed   bool   // the quantity column carries the side in its sign
	Text     string // free text description column
}

// InferSide determines the side of an execution and its absolute quantity.
//
// The priority is fixed, whatever the broker:
//  1. the explicit side or action column,
//  2. the sign of the quantity (a positive quantity only counts when the
//     column is known to be signed),
//  3. a descriptive text column mentioning buy or sell,
//  4. buy.
//
// An unparseable quantity is an error.
func InferSide(h SideHints) (Side, Quantity, error) {
	q, err := ParseDecimal(h.Quantity)
	if err != nil {
		return "", Quantity{}, err
	}
	abs := Q(q.Abs())

	if side, ok := ParseSide(h.Explicit); ok {
		return side, abs, nil
	}
	switch {
	case q.IsNegative():
		return Sell, abs, nil
	case h.Signed && q.IsPositive():
		return Buy, abs, nil
	}
	if side, ok := sideFromText(h.Text); ok {
		return side, abs, nil
	}
	return Buy, abs, nil
}

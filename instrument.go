package tradebook

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/tradebook/date"
	"github.com/shopspring/decimal"
)

// InstrumentType is the kind of security an execution is about.
type InstrumentType string

const (
	Stock  InstrumentType = "stock"
	Option InstrumentType = "option"
	Future InstrumentType = "future"
)

// OptionType is the right of an option contract.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Instrument describes what a composite symbol code stands for.
type Instrument struct {
	Type       InstrumentType
	Underlying string
	Strike     decimal.Decimal
	Expiration date.Date
	OptionType OptionType
	Multiplier decimal.Decimal
}

// multiplier returns the contract multiplier as a Quantity, 1 when unknown.
func (i Instrument) multiplier() Quantity {
	if i.Multiplier.IsPositive() {
		return Q(i.Multiplier)
	}
	return Q(1)
}

const optionMultiplier = 100

// Code returns the canonical symbol of the instrument: the underlying for
// stocks, the OCC code (without padding) for options and root, month code and
// two digit year for futures.
func (i Instrument) Code() string {
	switch i.Type {
	case Option:
		right := "C"
		if i.OptionType == Put {
			right = "P"
		}
		strike := i.Strike.Shift(3).IntPart()
		return fmt.Sprintf("%s%s%s%08d", i.Underlying, i.Expiration.Time().Format("060102"), right, strike)
	case Future:
		for code, m := range futureMonths {
			if m == i.Expiration.Month() {
				return fmt.Sprintf("%s%c%02d", i.Underlying, code, i.Expiration.Year()%100)
			}
		}
	}
	return i.Underlying
}

// futureMonths maps futures month codes to months.
var futureMonths = map[byte]time.Month{
	'F': time.January, 'G': time.February, 'H': time.March, 'J': time.April,
	'K': time.May, 'M': time.June, 'N': time.July, 'Q': time.August,
	'U': time.September, 'V': time.October, 'X': time.November, 'Z': time.December,
}

// futureMultipliers are the point values of the usual US futures roots.
var futureMultipliers = map[string]decimal.Decimal{
	"ES":  decimal.NewFromInt(50),
	"MES": decimal.NewFromInt(5),
	"NQ":  decimal.NewFromInt(20),
	"MNQ": decimal.NewFromInt(2),
	"YM":  decimal.NewFromInt(5),
	"MYM": decimal.RequireFromString("0.5"),
	"RTY": decimal.NewFromInt(50),
	"M2K": decimal.NewFromInt(5),
	"CL":  decimal.NewFromInt(1000),
	"MCL": decimal.NewFromInt(100),
	"GC":  decimal.NewFromInt(100),
	"MGC": decimal.NewFromInt(10),
	"SI":  decimal.NewFromInt(5000),
	"NG":  decimal.NewFromInt(10000),
	"ZB":  decimal.NewFromInt(1000),
	"ZN":  decimal.NewFromInt(1000),
	"6E":  decimal.NewFromInt(125000),
}

var (
	// OCC symbology: root padded to 6, yymmdd, C|P, strike × 1000 on 8 digits.
	occRegex = regexp.MustCompile(`^([A-Z][A-Z0-9.]{0,5})\s*(\d{6})([CP])(\d{8})$`)
	// thinkorswim style: .AAPL250117C150 or .SPXW250117P5000.5
	tosRegex = regexp.MustCompile(`^\.([A-Z][A-Z0-9]{0,5})(\d{6})([CP])(\d+(?:\.\d+)?)$`)
	// human readable: AAPL 01/17/2025 150.00 C
	humanRegex = regexp.MustCompile(`^([A-Z][A-Z0-9.]{0,5})\s+(\d{2}/\d{2}/\d{4})\s+(\d+(?:\.\d+)?)\s+([CP])$`)
	// futures: ESZ4, ESZ24, /MNQH25
	futureRegex = regexp.MustCompile(`^/?([A-Z0-9][A-Z0-9]{0,2}?)([FGHJKMNQUVXZ])(\d{1,2})$`)
)

// DecodeInstrument decodes a composite symbol code into an Instrument.
//
// 'ref' is the execution time, it disambiguates single digit futures years.
// Unrecognized codes are stocks whose underlying is the code itself.
func DecodeInstrument(code string, ref time.Time) Instrument {
	code = strings.ToUpper(strings.TrimSpace(code))

	if m := occRegex.FindStringSubmatch(code); m != nil {
		exp, err := time.Parse("060102", m[2])
		strike, serr := decimal.NewFromString(m[4])
		if err == nil && serr == nil {
			return newOption(m[1], date.Of(exp), strike.Shift(-3), m[3])
		}
	}
	if m := tosRegex.FindStringSubmatch(code); m != nil {
		exp, err := time.Parse("060102", m[2])
		strike, serr := decimal.NewFromString(m[4])
		if err == nil && serr == nil {
			return newOption(m[1], date.Of(exp), strike, m[3])
		}
	}
	if m := humanRegex.FindStringSubmatch(code); m != nil {
		exp, err := time.Parse("01/02/2006", m[2])
		strike, serr := decimal.NewFromString(m[3])
		if err == nil && serr == nil {
			return newOption(m[1], date.Of(exp), strike, m[4])
		}
	}
	if m := futureRegex.FindStringSubmatch(code); m != nil {
		if mult, ok := futureMultipliers[m[1]]; ok {
			year := futureYear(m[3], ref)
			return Instrument{
				Type:       Future,
				Underlying: m[1],
				Expiration: date.ThirdFriday(year, futureMonths[m[2][0]]),
				Multiplier: mult,
			}
		}
	}
	return Instrument{Type: Stock, Underlying: code, Multiplier: decimal.NewFromInt(1)}
}

func newOption(underlying string, exp date.Date, strike decimal.Decimal, right string) Instrument {
	ot := Call
	if right == "P" {
		ot = Put
	}
	return Instrument{
		Type:       Option,
		Underlying: strings.TrimSpace(underlying),
		Strike:     strike,
		Expiration: exp,
		OptionType: ot,
		Multiplier: decimal.NewFromInt(optionMultiplier),
	}
}

// futureYear expands a one or two digit contract year. A single digit is
// placed in the decade of 'ref', or the next one when that would be more than
// a year in the past.
func futureYear(digits string, ref time.Time) int {
	n, _ := strconv.Atoi(digits)
	if ref.IsZero() {
		ref = time.Now()
	}
	if len(digits) == 2 {
		return 2000 + n
	}
	year := ref.Year()/10*10 + n
	if year < ref.Year()-1 {
		year += 10
	}
	return year
}

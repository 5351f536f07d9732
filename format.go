package tradebook

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Format identifies the layout of a broker export.
type Format string

const (
	Auto        Format = "auto" // not a format, asks for detection
	Generic     Format = "generic"
	Schwab      Format = "schwab"
	ThinkOrSwim Format = "thinkorswim"
	IBKR        Format = "ibkr"
	Webull      Format = "webull"
	Lightspeed  Format = "lightspeed"
	Tradovate   Format = "tradovate"
)

// Formats lists all the known formats.
var Formats = []Format{Generic, Schwab, ThinkOrSwim, IBKR, Webull, Lightspeed, Tradovate}

// ParseFormat parses a format tag, "auto" included.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" || f == Auto {
		return Auto, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// signature is a combination of column names that identifies a format.
type signature struct {
	format  Format
	columns []string
}

// signatures in priority order, the most specific first.
var signatures = []signature{
	{ThinkOrSwim, []string{"exec time", "spread", "pos effect"}},
	{IBKR, []string{"buy/sell", "ibcommission"}},
	{IBKR, []string{"ibexecid"}},
	{Tradovate, []string{"b/s", "contract", "filledqty"}},
	{Webull, []string{"filled time", "avg price", "side"}},
	{Lightspeed, []string{"trade number", "execution time"}},
	{Schwab, []string{"action", "fees & comm"}},
}

// maxHeaderLines is how many non-empty lines are inspected for a header.
const maxHeaderLines = 10

// DetectFormat sniffs the header line(s) of an export and returns its
// format, or Generic. It is case-insensitive and never fails.
func DetectFormat(data []byte) Format {
	f, _ := detectHeader(data)
	return f
}

// detectHeader returns the detected format and the 0-based index of the
// header line among all lines, -1 if no signature matched.
func detectHeader(data []byte) (Format, int) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	seen := 0
	for i := 0; scanner.Scan() && seen < maxHeaderLines; i++ {
		line := strings.TrimSpace(trimBOM(scanner.Text()))
		if line == "" {
			continue
		}
		seen++
		cells := headerCells(line)
		for _, sig := range signatures {
			if hasAll(cells, sig.columns) {
				return sig.format, i
			}
		}
	}
	return Generic, -1
}

// headerCells splits a header line into normalized, lowercase cell names.
func headerCells(line string) map[string]struct{} {
	sep := ","
	switch {
	case strings.Count(line, "\t") > strings.Count(line, sep):
		sep = "\t"
	case strings.Count(line, ";") > strings.Count(line, sep):
		sep = ";"
	}
	cells := make(map[string]struct{})
	for _, c := range strings.Split(line, sep) {
		cells[normalizeHeader(c)] = struct{}{}
	}
	return cells
}

func hasAll(cells map[string]struct{}, columns []string) bool {
	for _, c := range columns {
		if _, ok := cells[c]; !ok {
			return false
		}
	}
	return true
}

// normalizeHeader lowercases a column name and strips quotes and spaces.
func normalizeHeader(s string) string {
	s = strings.TrimSpace(trimBOM(s))
	s = strings.Trim(s, `"'`)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func trimBOM(s string) string { return strings.TrimPrefix(s, "\ufeff") }

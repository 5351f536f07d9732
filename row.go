package tradebook

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Row is one record of a broker export, its cells indexed by normalized
// header name.
type Row struct {
	Line   int // 1-based line number in the file
	Format Format
	cells  map[string]string
}

// NewRow builds a Row from a header and a record.
func NewRow(line int, format Format, header, record []string) Row {
	cells := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(record) {
			cells[normalizeHeader(h)] = strings.TrimSpace(record[i])
		}
	}
	return Row{Line: line, Format: format, cells: cells}
}

// Get returns the first non empty cell among 'names'.
func (r Row) Get(names ...string) string {
	for _, n := range names {
		if v := r.cells[n]; v != "" {
			return v
		}
	}
	return ""
}

// Has reports whether the row has a column named 'name', empty or not.
func (r Row) Has(name string) bool {
	_, ok := r.cells[name]
	return ok
}

// IsBlank reports whether all cells are empty.
func (r Row) IsBlank() bool {
	for _, v := range r.cells {
		if v != "" {
			return false
		}
	}
	return true
}

// Normalizer maps a row of one broker format into an Execution.
//
// It returns a nil Execution for rows that are not trades (dividends,
// cancelled orders, totals...), and an error for malformed rows.
type Normalizer interface {
	Normalize(Row) (*Execution, error)
}

// NewestFirst is implemented by normalizers of exports listing rows in
// reverse chronological order. Rows sharing a timestamp are then replayed
// bottom up.
type NewestFirst interface {
	NewestFirst() bool
}

// NormalizerFunc is a function implementing Normalizer.
type NormalizerFunc func(Row) (*Execution, error)

func (f NormalizerFunc) Normalize(r Row) (*Execution, error) { return f(r) }

// ReadRows locates the header of a 'format' export and returns its rows.
//
// For sectioned exports (thinkorswim) only the section under the header is
// read. A file without a recognizable header is a FormatError.
func ReadRows(data []byte, format Format) ([]Row, error) {
	detected, index := detectHeader(data)
	if detected != format {
		index = -1
	}

	lines := splitLines(data)
	if index < 0 {
		// No signature for that format: the header is the first non empty line.
		for i, l := range lines {
			if strings.TrimSpace(l) != "" {
				index = i
				break
			}
		}
	}
	if index < 0 {
		return nil, &FormatError{Format: format, Err: errors.New("empty file")}
	}

	end := len(lines)
	if format == ThinkOrSwim {
		for i := index + 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "" {
				end = i
				break
			}
		}
	}

	header := lines[index]
	r := csv.NewReader(strings.NewReader(strings.Join(lines[index:end], "\n")))
	r.Comma = separator(header)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	columns, err := r.Read()
	if err != nil {
		return nil, &FormatError{Format: format, Err: err}
	}
	if len(columns) < 2 {
		return nil, &FormatError{Format: format, Err: errors.New("header has less than two columns")}
	}

	var rows []Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line, _ := r.FieldPos(0)
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// keep a blank row, the normalizer will reject it as malformed
				rows = append(rows, Row{Line: index + perr.StartLine, Format: format})
				continue
			}
			return nil, &FormatError{Format: format, Err: err}
		}
		row := NewRow(index+line, format, columns, record)
		if row.IsBlank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// separator guesses the field separator of a header line.
func separator(header string) rune {
	switch {
	case strings.Count(header, "\t") > strings.Count(header, ","):
		return '\t'
	case strings.Count(header, ";") > strings.Count(header, ","):
		return ';'
	}
	return ','
}

// splitLines splits data in lines, without their line terminator.
func splitLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, trimBOM(scanner.Text()))
	}
	return lines
}

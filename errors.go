package tradebook

import (
	"errors"
	"fmt"
)

// ErrUnknownFormat is returned when a format tag is not one of Formats.
var ErrUnknownFormat = errors.New("unknown format")

// FormatError reports a file whose structure cannot be parsed at all. It
// aborts the whole import.
type FormatError struct {
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot read %s export: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// RowError reports a single malformed row. The row is skipped and the import
// continues.
type RowError struct {
	Line   int // 1-based line in the file
	Format Format
	Symbol string // if it could be read
	Err    error
}

func (e *RowError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s line %d (%s): %v", e.Format, e.Line, e.Symbol, e.Err)
	}
	return fmt.Sprintf("%s line %d: %v", e.Format, e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

package resolver

import "fmt"

// ResolutionError reports a failed lookup of an identifier. It is never
// fatal: the identifier is queued and its raw value kept as placeholder.
type ResolutionError struct {
	CUSIP string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %v", e.CUSIP, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ExhaustedRetryError reports an identifier that failed all its attempts.
type ExhaustedRetryError struct {
	CUSIP    string
	Attempts int
	Last     error
}

func (e *ExhaustedRetryError) Error() string {
	return fmt.Sprintf("%s still unresolved after %d attempts: %v", e.CUSIP, e.Attempts, e.Last)
}

func (e *ExhaustedRetryError) Unwrap() error { return e.Last }

package portfolio

import "fmt"

// IndexError is returned when the portfolio table or the vector index cannot be used.
type IndexError struct {
	Op    string
	Cause error
}

func (e *IndexError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("index error: %s", e.Op)
	}
	return fmt.Sprintf("index error: %s: %v", e.Op, e.Cause)
}

func (e *IndexError) Unwrap() error {
	return e.Cause
}

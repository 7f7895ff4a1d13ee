package extraction

import (
	"errors"
	"fmt"
)

// ErrEmptyPage is returned when there is no page text to extract from.
var ErrEmptyPage = errors.New("page text must not be empty")

// ParseError reports model output that is not a valid list of job postings.
type ParseError struct {
	Message string
	// Index is the 0-based array element at fault, -1 for the document as a whole.
	Index int
	Cause error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if e.Index >= 0 {
		msg = fmt.Sprintf("posting %d: %s", e.Index, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

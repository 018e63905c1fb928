package dataset

import (
	"fmt"
	"strings"
)

// MalformedInputError reports a dataset that cannot be turned into
// impressions. Line is 1-based and counts the header; it is 0 when the
// problem is not tied to a single line.
type MalformedInputError struct {
	Path   string
	Line   int
	Column string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	var b strings.Builder
	b.WriteString("malformed input")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

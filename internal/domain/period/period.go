// Package period models rental date ranges as half-open intervals [Start, End).
package period

import (
	"time"

	"github.com/go-faster/errors"
)

// ErrInvalidRange is returned for zero-length or inverted ranges.
var ErrInvalidRange = errors.New("rental end must be after rental start")

// Day is the billing day length.
const Day = 24 * time.Hour

// Range is a half-open interval [Start, End). A rental ending at X and
// another starting at X do not overlap.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New returns a validated Range with both bounds normalized to UTC.
func New(start, end time.Time) (Range, error) {
	r := Range{Start: start.UTC(), End: end.UTC()}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate reports ErrInvalidRange when End is not after Start.
func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() || !r.End.After(r.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Overlaps reports whether [a,b) and [c,d) intersect: a < d && c < b.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Days returns the number of started billing days in the range.
func (r Range) Days() int {
	d := r.End.Sub(r.Start)
	if d <= 0 {
		return 0
	}
	days := int(d / Day)
	if d%Day != 0 {
		days++
	}
	return days
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

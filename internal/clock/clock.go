// Package clock abstracts "now" so horizon eligibility and status
// transitions can be tested against arbitrary wall-clock dates.
package clock

import "time"

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// Real is the wall clock
type Real struct{}

// Now implements Clock
func (Real) Now() time.Time { return time.Now() }

// Fixed always reports the same instant
type Fixed struct {
	Instant time.Time
}

// Now implements Clock
func (f Fixed) Now() time.Time { return f.Instant }

// NewFixed creates a fixed clock pinned at the given instant
func NewFixed(instant time.Time) Fixed {
	return Fixed{Instant: instant}
}

// Package clock abstracts "now" so billing math is deterministic in tests.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System is the wall clock used in production wiring.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always returns the instant it was pinned to. Tests advance it
// explicitly.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }

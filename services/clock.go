package services

import "time"

// Clock supplies "now". Day boundaries are evaluated in Location().
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock.
type SystemClock struct {
	Loc *time.Location
}

func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.Local
	}
	return SystemClock{Loc: loc}
}

func (c SystemClock) Now() time.Time { return time.Now().In(c.Location()) }

func (c SystemClock) Location() *time.Location {
	if c.Loc == nil {
		return time.Local
	}
	return c.Loc
}

// FixedClock always returns T. Set T to move time in tests.
type FixedClock struct {
	T   time.Time
	Loc *time.Location
}

func (c *FixedClock) Now() time.Time { return c.T.In(c.Location()) }

func (c *FixedClock) Location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// SameCalendarDay reports whether a and b fall on the same date in loc.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns midnight of t's date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Package clock gives the evaluator's date/time natives a seam to
// stand on, stamping with time.Now() and a timezone offset rather than
// reaching for a calendar library: wall-clock
// time is cheap enough that the standard library is the right tool,
// but a native shouldn't call time.Now() directly or it can never be
// tested deterministically.
package clock

import "time"

// Stamp is the decomposed form a DATE!/TIME! value is built from:
// seconds and microseconds since the Unix epoch, plus the zone offset
// in minutes east of UTC that was in effect when it was taken.
type Stamp struct {
	Sec     int64
	Usec    int64
	ZoneMin int
}

// Clock supplies the current time. The default is System; tests
// substitute a Fixed clock so natives that embed a timestamp (e.g. a
// logged error's creation time) produce reproducible output.
type Clock interface {
	Now() Stamp
}

// System reads the host's wall clock and local timezone.
type System struct{}

// Now implements Clock.
func (System) Now() Stamp {
	t := time.Now()
	_, offsetSec := t.Zone()
	return Stamp{
		Sec:     t.Unix(),
		Usec:    int64(t.Nanosecond() / 1000),
		ZoneMin: offsetSec / 60,
	}
}

// Fixed is a Clock that always returns the same Stamp, for tests.
type Fixed struct{ Stamp Stamp }

// Now implements Clock.
func (f Fixed) Now() Stamp { return f.Stamp }

// FromTime decomposes an already-constructed time.Time into a Stamp,
// the inverse of Stamp.ToTime.
func FromTime(t time.Time) Stamp {
	_, offsetSec := t.Zone()
	return Stamp{
		Sec:     t.Unix(),
		Usec:    int64(t.Nanosecond() / 1000),
		ZoneMin: offsetSec / 60,
	}
}

// ToTime reconstructs a time.Time from a Stamp, in a fixed-offset
// location matching ZoneMin (not a named IANA zone, since only the
// offset survives round-tripping through a DATE! value).
func (s Stamp) ToTime() time.Time {
	loc := time.FixedZone("", s.ZoneMin*60)
	return time.Unix(s.Sec, s.Usec*1000).In(loc)
}

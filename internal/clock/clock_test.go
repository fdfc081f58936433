package clock

import (
	"testing"
	"time"
)

func TestFixedClockIsStable(t *testing.T) {
	want := Stamp{Sec: 1700000000, Usec: 250000, ZoneMin: -300}
	c := Fixed{Stamp: want}
	if got := c.Now(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if got := c.Now(); got != want {
		t.Fatalf("second call diverged: %+v", got)
	}
}

func TestStampRoundTripsThroughTime(t *testing.T) {
	loc := time.FixedZone("", -4*3600)
	orig := time.Date(2026, time.July, 30, 9, 15, 0, 125000000, loc)

	s := FromTime(orig)
	if s.ZoneMin != -240 {
		t.Fatalf("expected zone offset -240, got %d", s.ZoneMin)
	}

	back := s.ToTime()
	if !back.Equal(orig) {
		t.Fatalf("expected %v, got %v", orig, back)
	}
}

func TestSystemClockAdvances(t *testing.T) {
	var sys System
	first := sys.Now()
	time.Sleep(time.Millisecond)
	second := sys.Now()
	if second.Sec < first.Sec || (second.Sec == first.Sec && second.Usec < first.Usec) {
		t.Fatalf("expected the system clock to move forward, got %+v then %+v", first, second)
	}
}

package conflict

import (
	"testing"
	"time"
)

var now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return time.Date(2026, 2, 2, hour, min, 0, 0, time.UTC)
}

func TestOverlaps_HalfOpen(t *testing.T) {
	// Abutting intervals do not overlap.
	if Overlaps(at(9, 0), at(10, 0), at(10, 0), at(11, 0)) {
		t.Fatal("back-to-back intervals must not overlap")
	}
	if !Overlaps(at(9, 0), at(10, 1), at(10, 0), at(11, 0)) {
		t.Fatal("one-minute intrusion must overlap")
	}
	if !Overlaps(at(9, 0), at(12, 0), at(10, 0), at(11, 0)) {
		t.Fatal("containment must overlap")
	}
}

func TestCheck_OK(t *testing.T) {
	existing := []BookingSummary{{ID: "b1", Start: at(9, 0), End: at(10, 0)}}
	res := Check(at(10, 0), at(11, 0), 0, existing, now)
	if !res.OK {
		t.Fatalf("expected OK, got %s", res.Code)
	}
}

func TestCheck_Conflict(t *testing.T) {
	existing := []BookingSummary{{ID: "b1", Start: at(9, 0), End: at(10, 30)}}
	res := Check(at(10, 0), at(11, 0), 0, existing, now)
	if res.OK || res.Code != CodeSlotConflict {
		t.Fatalf("expected SLOT_CONFLICT, got %+v", res)
	}
	if res.Conflicting == nil || res.Conflicting.ID != "b1" {
		t.Fatalf("expected conflicting booking b1, got %+v", res.Conflicting)
	}
}

func TestCheck_BufferBeforeWidensCandidate(t *testing.T) {
	// Existing booking ends exactly at the candidate start; without a
	// buffer that is fine, with a 15m buffer-before it collides.
	existing := []BookingSummary{{ID: "b1", Start: at(9, 0), End: at(10, 0)}}
	if res := Check(at(10, 0), at(11, 0), 0, existing, now); !res.OK {
		t.Fatalf("expected OK without buffer, got %s", res.Code)
	}
	res := Check(at(10, 0), at(11, 0), 15*time.Minute, existing, now)
	if res.OK || res.Code != CodeSlotConflict {
		t.Fatalf("expected SLOT_CONFLICT with buffer, got %+v", res)
	}
}

func TestCheck_PastTime(t *testing.T) {
	start := now.Add(-time.Hour)
	res := Check(start, start.Add(time.Hour), 0, nil, now)
	if res.OK || res.Code != CodePastTime {
		t.Fatalf("expected PAST_TIME, got %+v", res)
	}
}

func TestCheck_Horizon(t *testing.T) {
	// Exactly +3 calendar months is allowed, one second past it is not.
	edge := now.AddDate(0, BookingHorizonMonths, 0)
	if res := Check(edge, edge.Add(time.Hour), 0, nil, now); !res.OK {
		t.Fatalf("expected OK at horizon edge, got %s", res.Code)
	}
	over := edge.Add(time.Second)
	res := Check(over, over.Add(time.Hour), 0, nil, now)
	if res.OK || res.Code != CodeTooFarFuture {
		t.Fatalf("expected TOO_FAR_FUTURE, got %+v", res)
	}
}

func TestCheck_OverlapWinsOverPast(t *testing.T) {
	// A past-dated request that also collides reports the collision.
	existing := []BookingSummary{{ID: "b1", Start: now.Add(-2 * time.Hour), End: now.Add(2 * time.Hour)}}
	res := Check(now.Add(-time.Hour), now, 0, existing, now)
	if res.Code != CodeSlotConflict {
		t.Fatalf("expected SLOT_CONFLICT to take precedence, got %s", res.Code)
	}
}

package availability

import (
	"testing"
	"time"

	"github.com/olnovikova/slotline/services/booking-service/internal/calendar"
)

func day() time.Time {
	return time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
}

func window(startMin, endMin int) calendar.DayWindow {
	return calendar.DayWindow{Open: true, StartMinute: startMin, EndMinute: endMin}
}

func TestSlots_FullDayNoBookings(t *testing.T) {
	// 09:00-18:00, 60-minute service, no buffers: last start fitting the
	// window is 17:00.
	slots := Slots(day(), window(9*60, 18*60), 60, nil)
	if len(slots) != 17 {
		t.Fatalf("expected 17 slots, got %d: %v", len(slots), slots)
	}
	if slots[0] != "09:00" {
		t.Fatalf("expected first slot 09:00, got %s", slots[0])
	}
	if slots[len(slots)-1] != "17:00" {
		t.Fatalf("expected last slot 17:00, got %s", slots[len(slots)-1])
	}
}

func TestSlots_BusyIntervalRemovesCandidates(t *testing.T) {
	busy := []Interval{{
		Start: day().Add(10 * time.Hour),
		End:   day().Add(11 * time.Hour),
	}}
	slots := Slots(day(), window(9*60, 18*60), 60, busy)
	for _, s := range slots {
		switch s {
		// 09:30 and 10:30 would run into the booking; 10:00 sits inside it.
		case "09:30", "10:00", "10:30":
			t.Fatalf("slot %s overlaps the busy interval", s)
		}
	}
	if slots[0] != "09:00" || slots[1] != "11:00" {
		t.Fatalf("expected 09:00 then 11:00, got %v", slots[:2])
	}
}

func TestSlots_SpanIncludesBuffers(t *testing.T) {
	// 60m duration + 15m before + 15m after = 90m span: last fitting
	// grid start in 09:00-12:00 is 10:30.
	slots := Slots(day(), window(9*60, 12*60), 90, nil)
	want := []string{"09:00", "09:30", "10:00", "10:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}
}

func TestSlots_ClosedDay(t *testing.T) {
	slots := Slots(day(), calendar.DayWindow{}, 60, nil)
	if slots == nil {
		t.Fatal("expected empty slice, not nil")
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %v", slots)
	}
}

func TestSlots_ServiceLongerThanWindow(t *testing.T) {
	slots := Slots(day(), window(9*60, 10*60), 90, nil)
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

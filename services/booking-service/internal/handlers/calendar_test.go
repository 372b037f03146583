package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// Validation-only tests: requests rejected before any storage call, so the
// handler runs with a nil repository.
func newCalendarHandler() *CalendarHandler {
	return NewCalendarHandler(nil, slog.Default())
}

func doRequest(t *testing.T, h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestUpsertWorkingHours_Validation(t *testing.T) {
	h := newCalendarHandler()

	if rec := doRequest(t, h.UpsertWorkingHours, http.MethodPost, `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", rec.Code)
	}
	if rec := doRequest(t, h.UpsertWorkingHours, http.MethodPut, `{not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
	if rec := doRequest(t, h.UpsertWorkingHours, http.MethodPut, `{"weekday":1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing business_id, got %d", rec.Code)
	}
	if rec := doRequest(t, h.UpsertWorkingHours, http.MethodPut, `{"business_id":"b1","weekday":7}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weekday out of range, got %d", rec.Code)
	}
	body := `{"business_id":"b1","weekday":1,"is_working":true,"start":"18:00","end":"09:00"}`
	if rec := doRequest(t, h.UpsertWorkingHours, http.MethodPut, body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted hours, got %d", rec.Code)
	}
}

func TestUpsertException_Validation(t *testing.T) {
	h := newCalendarHandler()

	if rec := doRequest(t, h.UpsertException, http.MethodPut, `{"business_id":"b1","date":"31-12-2026","type":"closed"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
	if rec := doRequest(t, h.UpsertException, http.MethodPut, `{"business_id":"b1","date":"2026-12-31","type":"holiday"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}
	body := `{"business_id":"b1","date":"2026-12-31","type":"open_custom","start":"10:00","end":"9:61"}`
	if rec := doRequest(t, h.UpsertException, http.MethodPut, body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unparseable clock, got %d", rec.Code)
	}
}

func TestParseClockRange(t *testing.T) {
	start, end, ok := parseClockRange("09:00", "18:30")
	if !ok || start != 9*60 || end != 18*60+30 {
		t.Fatalf("expected 540/1110, got %d/%d ok=%v", start, end, ok)
	}
	if _, _, ok := parseClockRange("10:00", "10:00"); ok {
		t.Fatal("zero-length range must be rejected")
	}
}

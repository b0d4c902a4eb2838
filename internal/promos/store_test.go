package promos

import (
	"context"
	"testing"
	"time"
)

func localTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}

func TestStatusAtRecurring(t *testing.T) {
	record := Record{
		ID:            "r1",
		PlaceID:       "p1",
		Kind:          KindPromotion,
		Recurring:     true,
		RecurringDays: []time.Weekday{time.Friday},
		StartTime:     "17:00",
		EndTime:       "19:00",
	}

	// 2025-06-20 is a Friday.
	if got := record.StatusAt(localTime(t, "2025-06-20 18:00")); got != StatusActive {
		t.Errorf("inside window: expected active, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-20 12:00")); got != StatusUpcoming {
		t.Errorf("before window: expected upcoming, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-20 19:00")); got != StatusNone {
		t.Errorf("window end is exclusive: expected none, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-21 18:00")); got != StatusNone {
		t.Errorf("wrong day: expected none, got %q", got)
	}
}

func TestStatusAtSingleDate(t *testing.T) {
	record := Record{
		ID:      "r1",
		PlaceID: "p1",
		Kind:    KindEvent,
		Date:    "2025-06-20",
		AllDay:  true,
	}
	if got := record.StatusAt(localTime(t, "2025-06-20 09:00")); got != StatusActive {
		t.Errorf("all-day on the date: expected active, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-21 09:00")); got != StatusNone {
		t.Errorf("day after: expected none, got %q", got)
	}
}

func TestStatusAtCrossMidnight(t *testing.T) {
	record := Record{
		ID:            "r1",
		PlaceID:       "p1",
		Kind:          KindEvent,
		Recurring:     true,
		RecurringDays: []time.Weekday{time.Friday},
		StartTime:     "22:00",
		EndTime:       "02:00",
	}

	if got := record.StatusAt(localTime(t, "2025-06-20 23:00")); got != StatusActive {
		t.Errorf("Friday 23:00: expected active, got %q", got)
	}
	// Saturday 01:00 falls inside the window that started Friday night.
	if got := record.StatusAt(localTime(t, "2025-06-21 01:00")); got != StatusActive {
		t.Errorf("Saturday 01:00: expected active, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-21 03:00")); got != StatusNone {
		t.Errorf("Saturday 03:00: expected none, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-20 12:00")); got != StatusUpcoming {
		t.Errorf("Friday noon: expected upcoming, got %q", got)
	}
}

func TestStatusAtCrossMidnightConsecutiveDays(t *testing.T) {
	record := Record{
		ID:            "r1",
		PlaceID:       "p1",
		Kind:          KindEvent,
		Recurring:     true,
		RecurringDays: []time.Weekday{time.Friday, time.Saturday},
		StartTime:     "22:00",
		EndTime:       "02:00",
	}

	// Saturday 01:00 sits inside Friday's still-open window even though
	// Saturday is itself a matching day with its own later window.
	if got := record.StatusAt(localTime(t, "2025-06-21 01:00")); got != StatusActive {
		t.Errorf("Saturday 01:00: expected active, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-21 12:00")); got != StatusUpcoming {
		t.Errorf("Saturday noon: expected upcoming, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-21 23:00")); got != StatusActive {
		t.Errorf("Saturday 23:00: expected active, got %q", got)
	}
	// Sunday 01:00 is inside Saturday's window; Sunday 03:00 is not.
	if got := record.StatusAt(localTime(t, "2025-06-22 01:00")); got != StatusActive {
		t.Errorf("Sunday 01:00: expected active, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-22 03:00")); got != StatusNone {
		t.Errorf("Sunday 03:00: expected none, got %q", got)
	}
}

func TestStatusAtSingleDigitClock(t *testing.T) {
	record := Record{
		ID:            "r1",
		PlaceID:       "p1",
		Recurring:     true,
		RecurringDays: []time.Weekday{time.Friday},
		StartTime:     "9:30",
		EndTime:       "11:00",
	}
	if got := record.StatusAt(localTime(t, "2025-06-20 10:00")); got != StatusActive {
		t.Errorf("inside window: expected active, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-20 09:00")); got != StatusUpcoming {
		t.Errorf("before window: expected upcoming, got %q", got)
	}
}

func TestStatusAtOpenEnded(t *testing.T) {
	record := Record{
		ID:            "r1",
		PlaceID:       "p1",
		Recurring:     true,
		RecurringDays: []time.Weekday{time.Friday},
		StartTime:     "20:00",
	}
	if got := record.StatusAt(localTime(t, "2025-06-20 21:00")); got != StatusActive {
		t.Errorf("after open-ended start: expected active, got %q", got)
	}
	if got := record.StatusAt(localTime(t, "2025-06-20 19:00")); got != StatusUpcoming {
		t.Errorf("before open-ended start: expected upcoming, got %q", got)
	}
}

func TestMemoryStoreByPlaceIDs(t *testing.T) {
	store := NewMemoryStore()
	store.Add(
		Record{ID: "r1", PlaceID: "a", Kind: KindPromotion},
		Record{ID: "r2", PlaceID: "a", Kind: KindEvent},
		Record{ID: "r3", PlaceID: "b", Kind: KindPromotion},
		Record{ID: "r4", Kind: KindPromotion}, // missing place id, dropped
	)

	records, err := store.ByPlaceIDs(context.Background(), []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records["a"]) != 2 {
		t.Errorf("expected 2 records for a, got %d", len(records["a"]))
	}
	if len(records["b"]) != 1 {
		t.Errorf("expected 1 record for b, got %d", len(records["b"]))
	}
	if _, ok := records["missing"]; ok {
		t.Error("missing place must not appear in the result")
	}
}

// Package promos holds the local promotion/event store the hydrator
// reads: batch lookup by place id, with recurring or single-date
// schedules evaluated against a target instant.
package promos

import (
	"context"
	"strings"
	"sync"
	"time"
)

type Kind string

const (
	KindPromotion Kind = "promotion"
	KindEvent     Kind = "event"
)

type Status string

const (
	StatusNone     Status = ""
	StatusActive   Status = "active"
	StatusUpcoming Status = "upcoming"
)

// Record is one promotion or event attached to a place. Recurring records
// match on RecurringDays; single-date records match Date (YYYY-MM-DD).
// StartTime/EndTime are local wall-clock "HH:MM"; a window whose end is
// at or before its start wraps past midnight.
type Record struct {
	ID            string         `json:"id"`
	PlaceID       string         `json:"placeId"`
	Kind          Kind           `json:"kind"`
	Title         string         `json:"title"`
	Recurring     bool           `json:"recurring"`
	RecurringDays []time.Weekday `json:"recurringDays,omitempty"`
	Date          string         `json:"date,omitempty"`
	AllDay        bool           `json:"allDay"`
	StartTime     string         `json:"startTime,omitempty"`
	EndTime       string         `json:"endTime,omitempty"`
}

// Store is the batch lookup contract the hydrator depends on.
type Store interface {
	ByPlaceIDs(ctx context.Context, placeIDs []string) (map[string][]Record, error)
}

// StatusAt reports whether the record is active at the local instant, or
// merely upcoming later the same day.
func (r Record) StatusAt(local time.Time) Status {
	// A cross-midnight window started yesterday can still be active,
	// including when today is itself a matching day.
	if r.wrapsMidnight() && r.matchesDay(local.AddDate(0, 0, -1)) {
		if minuteOfDay(local) < parseClock(r.EndTime) {
			return StatusActive
		}
	}
	if !r.matchesDay(local) {
		return StatusNone
	}
	if r.AllDay {
		return StatusActive
	}
	start := parseClock(r.StartTime)
	end := parseClock(r.EndTime)
	now := minuteOfDay(local)
	if start < 0 {
		return StatusNone
	}
	if end < 0 {
		// Missing end: open-ended from start.
		if now >= start {
			return StatusActive
		}
		return StatusUpcoming
	}
	if r.wrapsMidnight() {
		if now >= start {
			return StatusActive
		}
		return StatusUpcoming
	}
	switch {
	case now >= start && now < end:
		return StatusActive
	case now < start:
		return StatusUpcoming
	default:
		return StatusNone
	}
}

func (r Record) matchesDay(local time.Time) bool {
	if r.Recurring {
		for _, day := range r.RecurringDays {
			if day == local.Weekday() {
				return true
			}
		}
		return false
	}
	return r.Date == local.Format("2006-01-02")
}

func (r Record) wrapsMidnight() bool {
	start := parseClock(r.StartTime)
	end := parseClock(r.EndTime)
	return start >= 0 && end >= 0 && end <= start
}

func parseClock(raw string) int {
	value := strings.TrimSpace(raw)
	if value == "" {
		return -1
	}
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return -1
	}
	return parsed.Hour()*60 + parsed.Minute()
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// MemoryStore is the in-process backend used for dev deployments and as
// the deterministic fake in engine tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byPlace map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byPlace: make(map[string][]Record)}
}

func (s *MemoryStore) Add(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		if record.PlaceID == "" {
			continue
		}
		s.byPlace[record.PlaceID] = append(s.byPlace[record.PlaceID], record)
	}
}

func (s *MemoryStore) ByPlaceIDs(_ context.Context, placeIDs []string) (map[string][]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Record, len(placeIDs))
	for _, id := range placeIDs {
		if records, ok := s.byPlace[id]; ok {
			out[id] = append([]Record(nil), records...)
		}
	}
	return out, nil
}

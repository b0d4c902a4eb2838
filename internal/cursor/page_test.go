package cursor

import (
	"fmt"
	"testing"
	"time"

	"placefinder/discoveryservice/internal/domain"
)

func pendingPlaces(n int) []domain.CuratedPlace {
	places := make([]domain.CuratedPlace, 0, n)
	for i := 0; i < n; i++ {
		places = append(places, domain.CuratedPlace{PlaceID: fmt.Sprintf("p%02d", i)})
	}
	return places
}

func TestServePageSplices(t *testing.T) {
	state := &domain.SearchState{Pending: pendingPlaces(15)}
	now := time.Now()

	page := ServePage(state, 10, now)
	if len(page) != 10 {
		t.Fatalf("expected 10 served, got %d", len(page))
	}
	if len(state.Pending) != 5 {
		t.Fatalf("expected 5 left pending, got %d", len(state.Pending))
	}
	if page[0].PlaceID != "p00" || state.Pending[0].PlaceID != "p10" {
		t.Error("page must come off the head of the pending list")
	}
	if state.PageNo != 1 || state.Version != 1 {
		t.Errorf("expected counters advanced, got pageNo=%d version=%d", state.PageNo, state.Version)
	}

	if len(state.Audit) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(state.Audit))
	}
	entry := state.Audit[0]
	if entry.PendingBefore != 15 || entry.PendingAfter != 5 {
		t.Errorf("unexpected audit counts: %+v", entry)
	}
	if len(entry.ServedIDs) != 10 {
		t.Errorf("expected 10 served ids recorded, got %d", len(entry.ServedIDs))
	}
}

func TestServePageShortLastPage(t *testing.T) {
	state := &domain.SearchState{Pending: pendingPlaces(3)}
	page := ServePage(state, 10, time.Now())
	if len(page) != 3 {
		t.Fatalf("expected short page of 3, got %d", len(page))
	}
	if len(state.Pending) != 0 {
		t.Fatalf("expected pending drained, got %d", len(state.Pending))
	}
}

func TestAuditRingBounded(t *testing.T) {
	state := &domain.SearchState{Pending: pendingPlaces(200)}
	now := time.Now()
	for i := 0; i < 20; i++ {
		ServePage(state, 10, now)
	}
	if len(state.Audit) != domain.MaxAuditEntries {
		t.Fatalf("expected audit capped at %d, got %d", domain.MaxAuditEntries, len(state.Audit))
	}
	// Oldest entries are discarded, so the first retained entry is page 9.
	if state.Audit[0].PageNo != 20-domain.MaxAuditEntries+1 {
		t.Errorf("unexpected oldest audit page %d", state.Audit[0].PageNo)
	}
}

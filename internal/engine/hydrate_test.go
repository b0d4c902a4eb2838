package engine

import (
	"context"
	"testing"
	"time"

	"placefinder/discoveryservice/internal/domain"
	"placefinder/discoveryservice/internal/promos"
)

func TestHydrateAndSortAttachesPromos(t *testing.T) {
	store := promos.NewMemoryStore()
	store.Add(
		promos.Record{
			ID:        "r1",
			PlaceID:   "a",
			Kind:      promos.KindPromotion,
			Title:     "Happy Hour",
			Recurring: true,
			RecurringDays: []time.Weekday{
				time.Friday,
			},
			StartTime: "17:00",
			EndTime:   "19:00",
		},
		promos.Record{
			ID:        "r2",
			PlaceID:   "b",
			Kind:      promos.KindEvent,
			Title:     "Trivia Night",
			Recurring: true,
			RecurringDays: []time.Weekday{
				time.Friday,
			},
			StartTime: "21:00",
			EndTime:   "23:00",
		},
	)

	hydrator := NewPromoHydrator(store, nil)
	query := mustQuery(t, validRawQuery())
	// Friday 18:00 UTC with no time context: Happy Hour active, Trivia upcoming.
	query.TargetAt = time.Date(2025, 6, 20, 18, 0, 0, 0, time.UTC)

	state := &domain.SearchState{
		Query: query,
		Pending: []domain.CuratedPlace{
			{PlaceID: "b", DistanceMeters: 10},
			{PlaceID: "a", DistanceMeters: 20},
			{PlaceID: "c", DistanceMeters: 5},
		},
	}

	if err := hydrator.HydrateAndSort(context.Background(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID := make(map[string]domain.CuratedPlace)
	for _, place := range state.Pending {
		if !place.Hydrated {
			t.Errorf("place %s not marked hydrated", place.PlaceID)
		}
		byID[place.PlaceID] = place
	}

	if got := byID["a"]; len(got.Promotions) != 1 || got.Promotions[0].Status != domain.PromoStatusActive {
		t.Errorf("place a: expected one active promotion, got %+v", got.Promotions)
	}
	if got := byID["a"]; got.PromoRank != promoRankActive {
		t.Errorf("place a: expected rank %d, got %d", promoRankActive, got.PromoRank)
	}
	if got := byID["b"]; len(got.Events) != 1 || got.Events[0].Status != domain.PromoStatusUpcoming {
		t.Errorf("place b: expected one upcoming event, got %+v", got.Events)
	}
	if got := byID["b"]; got.PromoRank != promoRankUpcoming {
		t.Errorf("place b: expected rank %d, got %d", promoRankUpcoming, got.PromoRank)
	}
	if got := byID["c"]; got.PromoRank != promoRankNone {
		t.Errorf("place c: expected rank %d, got %d", promoRankNone, got.PromoRank)
	}

	// Promo holders beat the promo-less place regardless of distance.
	if state.Pending[2].PlaceID != "c" {
		t.Errorf("expected c last, got order %s %s %s",
			state.Pending[0].PlaceID, state.Pending[1].PlaceID, state.Pending[2].PlaceID)
	}
}

func TestHydrateSkipsAlreadyHydrated(t *testing.T) {
	store := promos.NewMemoryStore()
	hydrator := NewPromoHydrator(store, nil)

	state := &domain.SearchState{
		Query: mustQuery(t, validRawQuery()),
		Pending: []domain.CuratedPlace{
			{PlaceID: "a", Hydrated: true, PromoRank: promoRankActive},
		},
	}
	if err := hydrator.HydrateAndSort(context.Background(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Pending[0].PromoRank != promoRankActive {
		t.Error("already hydrated place must keep its rank")
	}
}

func TestComparePlacesOrdering(t *testing.T) {
	open := true
	closed := false
	activePromo := []domain.PromoItem{{Status: domain.PromoStatusActive}}

	base := domain.CuratedPlace{PlaceID: "m", OpenAtTarget: &open, DistanceMeters: 100}

	tests := []struct {
		name string
		a, b domain.CuratedPlace
	}{
		{
			name: "open beats unknown",
			a:    base,
			b:    domain.CuratedPlace{PlaceID: "n", OpenAtTarget: nil},
		},
		{
			name: "unknown beats closed",
			a:    domain.CuratedPlace{PlaceID: "m", OpenAtTarget: nil},
			b:    domain.CuratedPlace{PlaceID: "n", OpenAtTarget: &closed},
		},
		{
			name: "promos beat none",
			a:    domain.CuratedPlace{PlaceID: "m", OpenAtTarget: &open, Promotions: activePromo, DistanceMeters: 500},
			b:    base,
		},
		{
			name: "who score breaks promo tie",
			a:    domain.CuratedPlace{PlaceID: "m", OpenAtTarget: &open, WhoScore: 4, DistanceMeters: 500},
			b:    domain.CuratedPlace{PlaceID: "n", OpenAtTarget: &open, WhoScore: 1, DistanceMeters: 10},
		},
		{
			name: "distance breaks score tie",
			a:    domain.CuratedPlace{PlaceID: "m", OpenAtTarget: &open, DistanceMeters: 10},
			b:    domain.CuratedPlace{PlaceID: "n", OpenAtTarget: &open, DistanceMeters: 20},
		},
		{
			name: "place id is the final tie-break",
			a:    domain.CuratedPlace{PlaceID: "a", OpenAtTarget: &open, DistanceMeters: 10},
			b:    domain.CuratedPlace{PlaceID: "b", OpenAtTarget: &open, DistanceMeters: 10},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := comparePlaces(tc.a, tc.b); got >= 0 {
				t.Errorf("expected a before b, got %d", got)
			}
			if got := comparePlaces(tc.b, tc.a); got <= 0 {
				t.Errorf("expected b after a, got %d", got)
			}
		})
	}

	same := domain.CuratedPlace{PlaceID: "x", OpenAtTarget: &open, DistanceMeters: 10}
	if got := comparePlaces(same, same); got != 0 {
		t.Errorf("identical places must compare equal, got %d", got)
	}
}

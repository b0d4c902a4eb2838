package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"placefinder/discoveryservice/internal/domain"
	"placefinder/discoveryservice/internal/metrics"
	"placefinder/discoveryservice/internal/promos"
)

const (
	hydrateChunk       = 50
	hydrateConcurrency = 4
)

// Promo rank buckets used by the sorter: active beats upcoming beats none.
const (
	promoRankActive   = 2
	promoRankUpcoming = 1
	promoRankNone     = 0
)

// PromoHydrator attaches promotion/event records to pending places and
// orders the pending list. Hydration is idempotent per place; already
// hydrated entries are skipped on refills.
type PromoHydrator struct {
	store  promos.Store
	retry  RetryConfig
	logger *slog.Logger
}

func NewPromoHydrator(store promos.Store, logger *slog.Logger) *PromoHydrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromoHydrator{store: store, retry: DefaultRetryConfig(), logger: logger}
}

// HydrateAndSort enriches every unhydrated pending place with its promo
// records, assigns promo ranks against the query's target instant, and
// re-sorts the whole pending list.
func (h *PromoHydrator) HydrateAndSort(ctx context.Context, state *domain.SearchState) error {
	startedAt := time.Now()
	defer func() {
		metrics.HydrationDuration.Observe(time.Since(startedAt).Seconds())
	}()

	ids := make([]string, 0, len(state.Pending))
	for _, place := range state.Pending {
		if !place.Hydrated {
			ids = append(ids, place.PlaceID)
		}
	}

	if len(ids) > 0 {
		records, err := h.fetchRecords(ctx, ids)
		if err != nil {
			return err
		}
		local := localTarget(state.Query)
		for i := range state.Pending {
			place := &state.Pending[i]
			if place.Hydrated {
				continue
			}
			h.apply(place, records[place.PlaceID], local)
		}
	}

	SortPending(state.Pending)
	return nil
}

// fetchRecords batches the store lookups, a few chunks in flight at a
// time, with retries around each chunk.
func (h *PromoHydrator) fetchRecords(ctx context.Context, ids []string) (map[string][]promos.Record, error) {
	merged := make(map[string][]promos.Record, len(ids))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(hydrateConcurrency)

	for start := 0; start < len(ids); start += hydrateChunk {
		end := start + hydrateChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		group.Go(func() error {
			var result map[string][]promos.Record
			err := RetryWithBackoff(groupCtx, h.retry, func() error {
				var err error
				result, err = h.store.ByPlaceIDs(groupCtx, chunk)
				return err
			})
			if err != nil {
				return err
			}
			mu.Lock()
			for id, records := range result {
				merged[id] = records
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}

func (h *PromoHydrator) apply(place *domain.CuratedPlace, records []promos.Record, local time.Time) {
	place.Promotions = place.Promotions[:0]
	place.Events = place.Events[:0]
	rank := promoRankNone

	for _, record := range records {
		status := record.StatusAt(local)
		if status == promos.StatusNone {
			continue
		}
		item := domain.PromoItem{
			ID:       record.ID,
			Title:    record.Title,
			Status:   string(status),
			AllDay:   record.AllDay,
			StartsAt: record.StartTime,
			EndsAt:   record.EndTime,
		}
		switch record.Kind {
		case promos.KindEvent:
			place.Events = append(place.Events, item)
		default:
			place.Promotions = append(place.Promotions, item)
		}
		switch status {
		case promos.StatusActive:
			rank = promoRankActive
		case promos.StatusUpcoming:
			if rank < promoRankUpcoming {
				rank = promoRankUpcoming
			}
		}
	}

	place.PromoRank = rank
	place.Hydrated = true
}

// localTarget converts the query's target instant into the search's local
// wall clock for schedule matching.
func localTarget(q domain.Query) time.Time {
	if loc := q.TimeCtx.Location(); loc != nil {
		return q.TargetAt.In(loc)
	}
	return q.TargetAt
}

// SortPending orders places by the serving comparator: open-at-target
// first (true before unknown before false), then promo/event count
// descending, then persona score descending, then distance ascending,
// with place id as the final deterministic tie-break.
func SortPending(places []domain.CuratedPlace) {
	sort.SliceStable(places, func(i, j int) bool {
		return comparePlaces(places[i], places[j]) < 0
	})
}

func comparePlaces(a, b domain.CuratedPlace) int {
	if ra, rb := openRank(a.OpenAtTarget), openRank(b.OpenAtTarget); ra != rb {
		return ra - rb
	}
	if ca, cb := promoCount(a), promoCount(b); ca != cb {
		return cb - ca
	}
	if a.WhoScore != b.WhoScore {
		return b.WhoScore - a.WhoScore
	}
	if a.DistanceMeters != b.DistanceMeters {
		if a.DistanceMeters < b.DistanceMeters {
			return -1
		}
		return 1
	}
	switch {
	case a.PlaceID < b.PlaceID:
		return -1
	case a.PlaceID > b.PlaceID:
		return 1
	default:
		return 0
	}
}

func openRank(open *bool) int {
	switch {
	case open == nil:
		return 1
	case *open:
		return 0
	default:
		return 2
	}
}

func promoCount(place domain.CuratedPlace) int {
	count := 0
	for _, item := range place.Promotions {
		if item.Status == domain.PromoStatusActive || item.Status == domain.PromoStatusUpcoming {
			count++
		}
	}
	for _, item := range place.Events {
		if item.Status == domain.PromoStatusActive || item.Status == domain.PromoStatusUpcoming {
			count++
		}
	}
	return count
}

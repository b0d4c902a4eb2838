package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"placefinder/discoveryservice/internal/domain"
)

type fakeCall struct {
	kind  domain.StreamKind
	token string
}

// fakeProvider scripts pages per stream identity: nearby calls are keyed
// by the first included type, text calls by query + token.
type fakeProvider struct {
	mu      sync.Mutex
	calls   []fakeCall
	nearby  map[string]ProviderPage
	text    map[string]ProviderPage
	failAll bool
}

func (f *fakeProvider) SearchNearby(_ context.Context, req NearbyRequest) (ProviderPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{kind: domain.StreamNearby})
	if f.failAll {
		return ProviderPage{}, errors.New("provider down")
	}
	key := ""
	if len(req.IncludedTypes) > 0 {
		key = req.IncludedTypes[0]
	}
	return f.nearby[key], nil
}

func (f *fakeProvider) SearchText(_ context.Context, req TextRequest) (ProviderPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{kind: domain.StreamText, token: req.PageToken})
	if f.failAll {
		return ProviderPage{}, errors.New("provider down")
	}
	return f.text[req.TextQuery+"|"+req.PageToken], nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type noopHydrator struct{}

func (noopHydrator) HydrateAndSort(_ context.Context, state *domain.SearchState) error {
	SortPending(state.Pending)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func rawPlaces(ids ...string) []domain.RawPlace {
	places := make([]domain.RawPlace, 0, len(ids))
	for _, id := range ids {
		places = append(places, domain.RawPlace{
			ID:          id,
			DisplayName: "Place " + id,
			Types:       []string{"restaurant"},
			Location:    &domain.LatLng{Latitude: 40.713, Longitude: -74.006},
		})
	}
	return places
}

func newTestState(t *testing.T, streams []domain.Stream) *domain.SearchState {
	t.Helper()
	query := mustQuery(t, validRawQuery())
	return &domain.SearchState{
		CursorID: "cur-test",
		Query:    query,
		Streams:  streams,
		SeenIDs:  make(map[string]bool),
	}
}

func newTestEngine(provider ProviderClient, clock *fakeClock) *Engine {
	return New(provider, noopHydrator{},
		WithClock(clock.Now),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			clock.Advance(d)
			return nil
		}),
	)
}

func TestFillPendingNearbySingleShot(t *testing.T) {
	provider := &fakeProvider{nearby: map[string]ProviderPage{
		"restaurant": {Places: rawPlaces("a", "b", "c")},
	}}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "nearby-0", Kind: domain.StreamNearby, Stage: domain.StagePrimary, IncludedTypes: []string{"restaurant"}},
	})

	added, err := eng.FillPending(context.Background(), state, 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 3 {
		t.Errorf("expected 3 added, got %d", added)
	}
	if !state.Streams[0].Exhausted || !state.Streams[0].Fetched {
		t.Error("nearby stream must be exhausted after one successful call")
	}
	if provider.callCount() != 1 {
		t.Errorf("expected exactly one provider call, got %d", provider.callCount())
	}
	if state.Totals.ProviderCalls != 1 || state.Totals.Added != 3 {
		t.Errorf("unexpected totals: %+v", state.Totals)
	}
}

func TestFillPendingDedups(t *testing.T) {
	provider := &fakeProvider{nearby: map[string]ProviderPage{
		"restaurant": {Places: rawPlaces("a", "b")},
		"cafe":       {Places: rawPlaces("b", "c")},
	}}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "nearby-0", Kind: domain.StreamNearby, Stage: domain.StagePrimary, IncludedTypes: []string{"restaurant"}},
		{ID: "nearby-1", Kind: domain.StreamNearby, Stage: domain.StagePrimary, IncludedTypes: []string{"cafe"}},
	})

	if _, err := eng.FillPending(context.Background(), state, 10, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Pending) != 3 {
		t.Errorf("expected 3 unique places, got %d", len(state.Pending))
	}
	if state.Totals.Duplicates != 1 {
		t.Errorf("expected 1 duplicate counted, got %d", state.Totals.Duplicates)
	}
}

func TestFillPendingTextTokenDelay(t *testing.T) {
	provider := &fakeProvider{text: map[string]ProviderPage{
		"ramen|":     {Places: rawPlaces("a"), NextPageToken: "tok1"},
		"ramen|tok1": {Places: rawPlaces("b")},
	}}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "text-0", Kind: domain.StreamText, Stage: domain.StagePrimary, TextQuery: "ramen"},
	})

	if _, err := eng.FillPending(context.Background(), state, 10, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// First call got a continuation token; the stream must now be delayed,
	// so no second call happens within the same fill.
	if provider.callCount() != 1 {
		t.Fatalf("expected 1 call before the token delay elapses, got %d", provider.callCount())
	}
	if state.Streams[0].Exhausted {
		t.Fatal("stream with a live token must not be exhausted")
	}
	if state.Streams[0].NextPageToken != "tok1" {
		t.Fatalf("unexpected token %q", state.Streams[0].NextPageToken)
	}

	clock.Advance(TokenDelay + time.Millisecond)
	if _, err := eng.FillPending(context.Background(), state, 10, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.callCount() != 2 {
		t.Fatalf("expected the delayed continuation to fire, got %d calls", provider.callCount())
	}
	if !state.Streams[0].Exhausted {
		t.Error("empty continuation token must exhaust the text stream")
	}
	if len(state.Pending) != 2 {
		t.Errorf("expected both pages admitted, got %d", len(state.Pending))
	}
}

func TestFillPendingFailClosed(t *testing.T) {
	provider := &fakeProvider{failAll: true}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "nearby-0", Kind: domain.StreamNearby, Stage: domain.StagePrimary, IncludedTypes: []string{"restaurant"}},
	})

	added, err := eng.FillPending(context.Background(), state, 10, 5)
	if err != nil {
		t.Fatalf("provider failure must not surface as an error: %v", err)
	}
	if added != 0 {
		t.Errorf("expected nothing added, got %d", added)
	}
	if !state.Streams[0].Exhausted {
		t.Error("failed nearby stream must be exhausted, not retried forever")
	}
}

func TestFillPendingFallbackArming(t *testing.T) {
	provider := &fakeProvider{
		nearby: map[string]ProviderPage{
			"restaurant": {Places: rawPlaces("a")},
		},
		text: map[string]ProviderPage{
			"best places to eat|": {Places: rawPlaces("x", "y")},
		},
	}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "nearby-0", Kind: domain.StreamNearby, Stage: domain.StagePrimary, IncludedTypes: []string{"restaurant"}},
		{ID: "text-1", Kind: domain.StreamText, Stage: domain.StageFallback, TextQuery: "best places to eat"},
	})

	if _, err := eng.FillPending(context.Background(), state, 3, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Streams[1].Armed {
		t.Fatal("fallback must arm once primaries are exhausted and pending is short")
	}
	if len(state.Pending) != 3 {
		t.Errorf("expected fallback to top up to 3, got %d", len(state.Pending))
	}
}

func TestFillPendingFallbackStaysDisarmedWhenFull(t *testing.T) {
	provider := &fakeProvider{
		nearby: map[string]ProviderPage{
			"restaurant": {Places: rawPlaces("a", "b", "c")},
		},
	}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "nearby-0", Kind: domain.StreamNearby, Stage: domain.StagePrimary, IncludedTypes: []string{"restaurant"}},
		{ID: "text-1", Kind: domain.StreamText, Stage: domain.StageFallback, TextQuery: "best places to eat"},
	})

	if _, err := eng.FillPending(context.Background(), state, 3, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Streams[1].Armed {
		t.Error("fallback must stay disarmed while the primary fill satisfies the request")
	}
}

func TestFillPendingCallBudget(t *testing.T) {
	pages := make(map[string]ProviderPage)
	// An endless text chain that always has another token.
	for i := 0; i < 400; i++ {
		token := ""
		if i > 0 {
			token = fmt.Sprintf("t%d", i)
		}
		pages["chain|"+token] = ProviderPage{
			Places:        rawPlaces(fmt.Sprintf("p%d", i)),
			NextPageToken: fmt.Sprintf("t%d", i+1),
		}
	}
	provider := &fakeProvider{text: pages}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "text-0", Kind: domain.StreamText, Stage: domain.StagePrimary, TextQuery: "chain"},
	})

	if _, err := eng.FillPending(context.Background(), state, 600, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.callCount() != 1 {
		// Token delay gates one call per fill here; the per-fill budget is
		// what matters below.
		t.Logf("calls after first fill: %d", provider.callCount())
	}

	// Drain through repeated fills; the lifetime ceiling must hold.
	for i := 0; i < 400; i++ {
		clock.Advance(TokenDelay + time.Millisecond)
		if _, err := eng.FillPending(context.Background(), state, 600, 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state.Totals.ProviderCalls >= MaxProviderCallsPerSearch {
			break
		}
	}
	if state.Totals.ProviderCalls > MaxProviderCallsPerSearch {
		t.Errorf("lifetime provider calls exceeded ceiling: %d", state.Totals.ProviderCalls)
	}
}

func TestAdmitDoesNotMarkSeenAtCeiling(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(&fakeProvider{}, clock)

	state := newTestState(t, nil)
	for i := 0; i < MaxTotalResults-1; i++ {
		state.Pending = append(state.Pending, domain.CuratedPlace{PlaceID: fmt.Sprintf("pre%d", i)})
	}

	added := eng.admit(state, rawPlaces("x", "y"))
	if added != 1 {
		t.Fatalf("expected 1 admitted below the ceiling, got %d", added)
	}
	if len(state.Pending) != MaxTotalResults {
		t.Fatalf("expected pending at the ceiling, got %d", len(state.Pending))
	}
	if !state.SeenIDs["x"] {
		t.Error("admitted place must be marked seen")
	}
	// The overflow place was never evaluated, so a later fill may still
	// admit it once room frees up.
	if state.SeenIDs["y"] {
		t.Error("place dropped at the ceiling must not be marked seen")
	}
}

func TestProviderQPSLimiterPerStreamKind(t *testing.T) {
	eng := New(&fakeProvider{}, noopHydrator{}, WithProviderQPS(5, 10))
	nearby := eng.limiters[domain.StreamNearby]
	text := eng.limiters[domain.StreamText]
	if nearby == nil || text == nil {
		t.Fatal("expected a limiter per stream kind")
	}
	if nearby == text {
		t.Error("stream kinds must not share one limiter")
	}
}

func TestPrefetchAllWaitsForTokens(t *testing.T) {
	provider := &fakeProvider{text: map[string]ProviderPage{
		"ramen|":     {Places: rawPlaces("a"), NextPageToken: "tok1"},
		"ramen|tok1": {Places: rawPlaces("b"), NextPageToken: "tok2"},
		"ramen|tok2": {Places: rawPlaces("c")},
	}}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "text-0", Kind: domain.StreamText, Stage: domain.StagePrimary, TextQuery: "ramen"},
	})

	if err := eng.PrefetchAll(context.Background(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Exhausted() {
		t.Error("prefetch should drain the stream")
	}
	if len(state.Pending) != 3 {
		t.Errorf("expected all 3 pages collected, got %d", len(state.Pending))
	}
	if provider.callCount() != 3 {
		t.Errorf("expected 3 provider calls, got %d", provider.callCount())
	}
}

func TestFillPendingResultCeiling(t *testing.T) {
	big := make([]domain.RawPlace, 0, 650)
	for i := 0; i < 650; i++ {
		big = append(big, domain.RawPlace{
			ID:          fmt.Sprintf("p%d", i),
			DisplayName: "Place",
			Types:       []string{"restaurant"},
			Location:    &domain.LatLng{Latitude: 40.713, Longitude: -74.006},
		})
	}
	provider := &fakeProvider{nearby: map[string]ProviderPage{
		"restaurant": {Places: big},
	}}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "nearby-0", Kind: domain.StreamNearby, Stage: domain.StagePrimary, IncludedTypes: []string{"restaurant"}},
	})

	if _, err := eng.FillPending(context.Background(), state, 10_000, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Pending) > MaxTotalResults {
		t.Errorf("pending exceeded ceiling: %d", len(state.Pending))
	}
}

package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"placefinder/discoveryservice/internal/domain"
	"placefinder/discoveryservice/internal/metrics"
)

const (
	// MaxTotalResults is the hard ceiling on pending results per search.
	MaxTotalResults = 600
	// MaxProviderCallsPerSearch bounds provider traffic over a search's
	// whole lifetime.
	MaxProviderCallsPerSearch = 250
	// TokenDelay is the provider-mandated wait before a text page token
	// may be reused.
	TokenDelay = 1500 * time.Millisecond

	prefetchChunk = 80
	maxSingleWait = 2 * time.Second
	maxTotalWait  = 12 * time.Second
)

// NearbyRequest is one type-grouped nearby search call.
type NearbyRequest struct {
	Lat            float64
	Lng            float64
	RadiusMeters   int
	IncludedTypes  []string
	ExcludedTypes  []string
	RankPreference string
}

// TextRequest is one free-text search call, optionally continuing a
// previous page.
type TextRequest struct {
	TextQuery    string
	Lat          float64
	Lng          float64
	RadiusMeters int
	PageToken    string
}

// ProviderPage is what one provider call yields. An empty NextPageToken
// means the stream has no continuation.
type ProviderPage struct {
	Places        []domain.RawPlace
	NextPageToken string
}

// ProviderClient is the external place-search collaborator. Both calls
// issue exactly one upstream request and return an error on transport or
// provider failure.
type ProviderClient interface {
	SearchNearby(ctx context.Context, req NearbyRequest) (ProviderPage, error)
	SearchText(ctx context.Context, req TextRequest) (ProviderPage, error)
}

// Hydrator enriches and orders pending places before serving.
type Hydrator interface {
	HydrateAndSort(ctx context.Context, state *domain.SearchState) error
}

type Engine struct {
	provider ProviderClient
	hydrator Hydrator
	limiters map[domain.StreamKind]*rate.Limiter
	health   *providerHealth
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

type EngineOption func(*Engine)

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithProviderQPS caps the rate of provider calls, independently per
// stream kind so a token-paced text chain cannot starve nearby calls.
func WithProviderQPS(qps float64, burst int) EngineOption {
	return func(e *Engine) {
		if qps > 0 && burst > 0 {
			e.limiters = map[domain.StreamKind]*rate.Limiter{
				domain.StreamNearby: rate.NewLimiter(rate.Limit(qps), burst),
				domain.StreamText:   rate.NewLimiter(rate.Limit(qps), burst),
			}
		}
	}
}

// WithClock overrides the engine's time source. Tests use it together
// with WithSleeper for deterministic token-delay behavior.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

func New(provider ProviderClient, hydrator Hydrator, opts ...EngineOption) *Engine {
	engine := &Engine{
		provider: provider,
		hydrator: hydrator,
		health:   newProviderHealth(),
		logger:   slog.Default(),
		now:      time.Now,
		sleep:    sleepWithContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FillPending pumps streams round-robin until pending reaches wantCount,
// the per-invocation call budget runs out, or no stream is eligible. It
// returns the number of places added. Provider failures are recovered
// per stream and never abort the whole search; the only returned error
// is context cancellation.
func (e *Engine) FillPending(ctx context.Context, state *domain.SearchState, wantCount, maxCalls int) (int, error) {
	target := wantCount
	if target > MaxTotalResults {
		target = MaxTotalResults
	}
	added := 0
	calls := 0

	for len(state.Pending) < target {
		if calls >= maxCalls || state.Totals.ProviderCalls >= MaxProviderCallsPerSearch {
			break
		}
		if err := ctx.Err(); err != nil {
			return added, err
		}

		e.armFallbacks(state, wantCount)
		idx, ok := e.nextEligible(state)
		if !ok {
			break
		}
		state.CursorIndex = (idx + 1) % len(state.Streams)
		stream := &state.Streams[idx]

		if limiter := e.limiters[stream.Kind]; limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return added, err
			}
		}

		startedAt := e.now()
		page, err := e.pump(ctx, state, stream)
		calls++
		state.Totals.ProviderCalls++
		elapsed := e.now().Sub(startedAt)
		metrics.ProviderCallDuration.WithLabelValues(string(stream.Kind)).Observe(elapsed.Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return added, ctx.Err()
			}
			metrics.ProviderCallsTotal.WithLabelValues(string(stream.Kind), "error").Inc()
			e.health.recordFailure(stream.Kind)
			e.recordStreamFailure(state, stream, err)
			continue
		}
		metrics.ProviderCallsTotal.WithLabelValues(string(stream.Kind), "ok").Inc()
		e.health.recordSuccess(stream.Kind)

		e.advanceStream(stream, page)
		added += e.admit(state, page.Places)
	}
	return added, nil
}

// pump issues exactly one provider call for the stream.
func (e *Engine) pump(ctx context.Context, state *domain.SearchState, stream *domain.Stream) (ProviderPage, error) {
	q := state.Query
	switch stream.Kind {
	case domain.StreamNearby:
		return e.provider.SearchNearby(ctx, NearbyRequest{
			Lat:            q.Lat,
			Lng:            q.Lng,
			RadiusMeters:   q.RadiusMeters,
			IncludedTypes:  stream.IncludedTypes,
			ExcludedTypes:  q.ExcludedTypes,
			RankPreference: "POPULARITY",
		})
	default:
		return e.provider.SearchText(ctx, TextRequest{
			TextQuery:    stream.TextQuery,
			Lat:          q.Lat,
			Lng:          q.Lng,
			RadiusMeters: q.RadiusMeters,
			PageToken:    stream.NextPageToken,
		})
	}
}

// advanceStream applies the provider's continuation signal. Nearby is
// single-shot, so one successful call exhausts it regardless of result
// count; text streams stay live while the provider keeps returning a
// page token.
func (e *Engine) advanceStream(stream *domain.Stream, page ProviderPage) {
	switch stream.Kind {
	case domain.StreamNearby:
		stream.Fetched = true
		stream.Exhausted = true
	default:
		stream.NextPageToken = page.NextPageToken
		if page.NextPageToken == "" {
			stream.Exhausted = true
		} else {
			stream.TokenReadyAt = e.now().Add(TokenDelay).UnixMilli()
		}
	}
}

// recordStreamFailure fails closed per stream: a text stream holding an
// in-flight token is retried after the token delay; anything else is
// exhausted.
func (e *Engine) recordStreamFailure(state *domain.SearchState, stream *domain.Stream, err error) {
	if stream.Kind == domain.StreamText && stream.NextPageToken != "" {
		stream.TokenReadyAt = e.now().Add(TokenDelay).UnixMilli()
		e.logger.Warn("stream call failed, token retry scheduled",
			slog.String("cursorId", state.CursorID),
			slog.String("stream", stream.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	stream.Exhausted = true
	e.logger.Warn("stream call failed, stream exhausted",
		slog.String("cursorId", state.CursorID),
		slog.String("stream", stream.ID),
		slog.String("error", err.Error()),
	)
}

// admit dedups, filters and appends the places of one provider page.
func (e *Engine) admit(state *domain.SearchState, places []domain.RawPlace) int {
	added := 0
	for _, place := range places {
		// Check the ceiling before marking the place seen: an id marked
		// seen but never admitted could never be served later.
		if len(state.Pending) >= MaxTotalResults {
			break
		}
		state.Totals.ResultsSeen++
		if place.ID == "" {
			state.Totals.Reject(ReasonGeo)
			metrics.RejectionsTotal.WithLabelValues(ReasonGeo).Inc()
			continue
		}
		if !state.MarkSeen(place.ID) {
			state.Totals.Duplicates++
			continue
		}
		verdict := Evaluate(place, state.Query, state.Query.TargetAt)
		if !verdict.OK {
			state.Totals.Reject(verdict.Reason)
			metrics.RejectionsTotal.WithLabelValues(verdict.Reason).Inc()
			continue
		}
		state.Pending = append(state.Pending, verdict.Place)
		state.Totals.Added++
		added++
	}
	return added
}

// nextEligible round-robins over streams starting at the persisted
// cursor index.
func (e *Engine) nextEligible(state *domain.SearchState) (int, bool) {
	count := len(state.Streams)
	if count == 0 {
		return 0, false
	}
	now := e.now()
	start := state.CursorIndex % count
	for i := 0; i < count; i++ {
		idx := (start + i) % count
		if state.Streams[idx].Eligible(now) {
			return idx, true
		}
	}
	return 0, false
}

// armFallbacks gates fallback text streams behind an explicit underfill
// policy: they become eligible only once every primary stream is
// exhausted and pending is still short of the requested count.
func (e *Engine) armFallbacks(state *domain.SearchState, wantCount int) {
	if len(state.Pending) >= wantCount {
		return
	}
	for _, stream := range state.Streams {
		if stream.Stage == domain.StagePrimary && !stream.Exhausted {
			return
		}
	}
	for i := range state.Streams {
		if state.Streams[i].Stage == domain.StageFallback {
			state.Streams[i].Armed = true
		}
	}
}

// PrefetchAll materializes the search eagerly: it fills in chunks until
// all streams are exhausted or a ceiling is hit, waiting out token
// delays within bounded patience, then hydrates and sorts once.
func (e *Engine) PrefetchAll(ctx context.Context, state *domain.SearchState) error {
	var waited time.Duration
	for {
		if len(state.Pending) >= MaxTotalResults || state.Totals.ProviderCalls >= MaxProviderCallsPerSearch {
			break
		}
		if state.Exhausted() {
			break
		}

		want := len(state.Pending) + prefetchChunk
		remaining := MaxProviderCallsPerSearch - state.Totals.ProviderCalls
		added, err := e.FillPending(ctx, state, want, remaining)
		if err != nil {
			return err
		}
		if added > 0 {
			continue
		}

		wait, ok := e.soonestTokenWait(state)
		if !ok || waited >= maxTotalWait {
			break
		}
		if wait > maxSingleWait {
			wait = maxSingleWait
		}
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
		waited += wait
	}
	return e.hydrator.HydrateAndSort(ctx, state)
}

// Hydrate runs the hydrator over the state's pending list.
func (e *Engine) Hydrate(ctx context.Context, state *domain.SearchState) error {
	return e.hydrator.HydrateAndSort(ctx, state)
}

// soonestTokenWait finds the shortest wait until a token-delayed text
// stream becomes eligible again; ok is false when every live stream is
// exhausted rather than merely delayed.
func (e *Engine) soonestTokenWait(state *domain.SearchState) (time.Duration, bool) {
	nowMs := e.now().UnixMilli()
	best := int64(-1)
	for _, stream := range state.Streams {
		if stream.Exhausted || stream.Kind != domain.StreamText || stream.NextPageToken == "" {
			continue
		}
		delta := stream.TokenReadyAt - nowMs
		if delta < 0 {
			delta = 0
		}
		if best < 0 || delta < best {
			best = delta
		}
	}
	if best < 0 {
		return 0, false
	}
	return time.Duration(best) * time.Millisecond, true
}

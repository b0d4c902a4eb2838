// Package discover orchestrates the search lifecycle: normalize and plan
// on create, then refill/hydrate/serve one page per request until the
// cursor drains.
package discover

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"placefinder/discoveryservice/internal/cursor"
	"placefinder/discoveryservice/internal/domain"
	"placefinder/discoveryservice/internal/engine"
	"placefinder/discoveryservice/internal/metrics"
)

var (
	// ErrCursorNotFound maps to 404: unknown, expired or drained cursor.
	ErrCursorNotFound = errors.New("cursor not found or expired")
	// ErrCursorMismatch maps to 400: the continuation's query hash does
	// not match the cursor's original query.
	ErrCursorMismatch = errors.New("cursor does not belong to this query")
	// ErrCursorBusy maps to 409: another continuation of the same cursor
	// is in flight.
	ErrCursorBusy = errors.New("cursor is busy")
)

// maxCallsPerPage bounds provider traffic for a single page request; the
// search-lifetime ceiling is enforced by the engine.
const maxCallsPerPage = 10

const (
	minPerPage = 5
	maxPerPage = 25
)

type Service struct {
	engine *engine.Engine
	store  cursor.Store
	locker cursor.Locker
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithLocker(locker cursor.Locker) ServiceOption {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func NewService(eng *engine.Engine, store cursor.Store, opts ...ServiceOption) *Service {
	service := &Service{
		engine: eng,
		store:  store,
		locker: cursor.NopLocker{},
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// Create starts a new search: normalize the query, plan streams, fill the
// first page (or prefetch everything when asked), and serve page one. The
// state is persisted only when more results remain.
func (s *Service) Create(ctx context.Context, raw domain.RawQuery) (domain.SearchResponse, error) {
	query, err := engine.NormalizeQuery(raw, s.now())
	if err != nil {
		return domain.SearchResponse{}, err
	}
	streams, err := engine.PlanStreams(query)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	now := s.now()
	state := domain.SearchState{
		CursorID:   s.newID(),
		Query:      query,
		QueryHash:  engine.QueryHash(query),
		EngineHash: engine.EngineHash(query),
		Streams:    streams,
		SeenIDs:    make(map[string]bool),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if raw.Prefetch {
		if err := s.engine.PrefetchAll(ctx, &state); err != nil {
			return domain.SearchResponse{}, err
		}
	} else {
		if _, err := s.engine.FillPending(ctx, &state, query.PerPage, maxCallsPerPage); err != nil {
			return domain.SearchResponse{}, err
		}
		if err := s.engine.Hydrate(ctx, &state); err != nil {
			return domain.SearchResponse{}, err
		}
	}

	state.AppendAudit(domain.AuditEntry{
		Kind:         "create",
		At:           now,
		PendingAfter: len(state.Pending),
	})

	response, persist := s.servePage(&state, query.PerPage)
	if persist {
		if err := s.store.Put(ctx, state); err != nil {
			return domain.SearchResponse{}, err
		}
	}
	metrics.CursorServesTotal.WithLabelValues("create").Inc()
	s.logger.Info("search created",
		slog.String("cursorId", state.CursorID),
		slog.String("queryHash", state.QueryHash),
		slog.Int("served", len(response.CuratedPlaces)),
		slog.Int("pending", len(state.Pending)),
		slog.Bool("hasMore", response.Meta.HasMore),
	)
	return response, nil
}

// ContinueRequest is the continuation input: the cursor id, the query
// hash the client received with page one, and an optional per-page
// override.
type ContinueRequest struct {
	Cursor    string `json:"cursor"`
	QueryHash string `json:"queryHash"`
	PerPage   int    `json:"perPage,omitempty"`
}

// Continue serves the next page of an existing cursor. The state is
// deleted once the last page is served, so a further continuation gets
// ErrCursorNotFound.
func (s *Service) Continue(ctx context.Context, req ContinueRequest) (domain.SearchResponse, error) {
	if req.Cursor == "" {
		return domain.SearchResponse{}, ErrCursorNotFound
	}

	release, ok := s.locker.Acquire(ctx, req.Cursor)
	if !ok {
		return domain.SearchResponse{}, ErrCursorBusy
	}
	defer release()

	state, err := s.store.Get(ctx, req.Cursor)
	if err != nil {
		if errors.Is(err, cursor.ErrNotFound) {
			return domain.SearchResponse{}, ErrCursorNotFound
		}
		return domain.SearchResponse{}, err
	}
	if req.QueryHash != "" && req.QueryHash != state.QueryHash {
		return domain.SearchResponse{}, ErrCursorMismatch
	}

	perPage := state.Query.PerPage
	if req.PerPage != 0 {
		perPage = clampPerPage(req.PerPage)
	}

	if len(state.Pending) < perPage && !state.Exhausted() {
		if _, err := s.engine.FillPending(ctx, &state, perPage, maxCallsPerPage); err != nil {
			return domain.SearchResponse{}, err
		}
		if err := s.engine.Hydrate(ctx, &state); err != nil {
			return domain.SearchResponse{}, err
		}
	}

	response, persist := s.servePage(&state, perPage)
	if persist {
		if err := s.store.Put(ctx, state); err != nil {
			return domain.SearchResponse{}, err
		}
	} else {
		if err := s.store.Delete(ctx, state.CursorID); err != nil {
			s.logger.Warn("drained cursor delete failed",
				slog.String("cursorId", state.CursorID),
				slog.String("error", err.Error()),
			)
		}
	}
	metrics.CursorServesTotal.WithLabelValues("continue").Inc()
	s.logger.Info("search continued",
		slog.String("cursorId", state.CursorID),
		slog.Int("pageNo", response.Meta.PageNo),
		slog.Int("served", len(response.CuratedPlaces)),
		slog.Int("pending", len(state.Pending)),
		slog.Bool("hasMore", response.Meta.HasMore),
	)
	return response, nil
}

// servePage slices the next page and builds the response envelope. The
// second return reports whether the state should be persisted: a search
// with nothing left to serve or fetch is dropped instead.
func (s *Service) servePage(state *domain.SearchState, perPage int) (domain.SearchResponse, bool) {
	page := cursor.ServePage(state, perPage, s.now())
	hasMore := !state.Drained()

	meta := domain.SearchMeta{
		PerPage:   perPage,
		HasMore:   hasMore,
		QueryHash: state.QueryHash,
		PageNo:    state.PageNo,
		Version:   state.Version,
		Totals:    state.Totals,
	}
	if hasMore {
		id := state.CursorID
		meta.Cursor = &id
	}
	return domain.SearchResponse{CuratedPlaces: page, Meta: meta}, hasMore
}

func clampPerPage(perPage int) int {
	if perPage < minPerPage {
		return minPerPage
	}
	if perPage > maxPerPage {
		return maxPerPage
	}
	return perPage
}

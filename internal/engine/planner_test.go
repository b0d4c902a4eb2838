package engine

import (
	"errors"
	"testing"
	"time"

	"placefinder/discoveryservice/internal/domain"
)

func mustQuery(t *testing.T, raw domain.RawQuery) domain.Query {
	t.Helper()
	query, err := NormalizeQuery(raw, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return query
}

func TestPlanStreamsDining(t *testing.T) {
	raw := validRawQuery()
	raw.ActivityType = "Dining"
	streams, err := PlanStreams(mustQuery(t, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nearby := 0
	fallback := 0
	for _, stream := range streams {
		switch {
		case stream.Kind == domain.StreamNearby:
			nearby++
			if stream.Stage != domain.StagePrimary {
				t.Errorf("nearby stream %s should be primary", stream.ID)
			}
		case stream.Stage == domain.StageFallback:
			fallback++
			if stream.Armed {
				t.Errorf("fallback stream %s must start unarmed", stream.ID)
			}
			if stream.TextQuery == "" {
				t.Errorf("fallback stream %s needs a text query", stream.ID)
			}
		}
	}
	if nearby != 2 {
		t.Errorf("expected 2 nearby type groups for dining, got %d", nearby)
	}
	if fallback != 1 {
		t.Errorf("expected 1 fallback text stream without a keyword, got %d", fallback)
	}
}

func TestPlanStreamsKeywordSuppressesFallback(t *testing.T) {
	raw := validRawQuery()
	raw.Keyword = "late night ramen"
	streams, err := PlanStreams(mustQuery(t, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	primaryText := 0
	for _, stream := range streams {
		if stream.Kind != domain.StreamText {
			continue
		}
		if stream.Stage == domain.StageFallback {
			t.Error("keyword searches must not plan fallback text streams")
		}
		primaryText++
		if stream.TextQuery != "late night ramen" {
			t.Errorf("unexpected text query %q", stream.TextQuery)
		}
	}
	if primaryText != 1 {
		t.Errorf("expected exactly one primary text stream, got %d", primaryText)
	}
}

func TestPlanStreamsDedupsGroups(t *testing.T) {
	raw := validRawQuery()
	raw.ActivityType = "Dining"
	raw.Categories = []string{"dining"}
	streams, err := PlanStreams(mustQuery(t, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nearby := 0
	for _, stream := range streams {
		if stream.Kind == domain.StreamNearby {
			nearby++
		}
	}
	if nearby != 2 {
		t.Errorf("duplicate category should not double the nearby streams, got %d", nearby)
	}
}

func TestPlanStreamsNoStreams(t *testing.T) {
	raw := validRawQuery()
	raw.ActivityType = "Stargazing"
	_, err := PlanStreams(mustQuery(t, raw))
	if !errors.Is(err, ErrNoStreams) {
		t.Fatalf("expected ErrNoStreams, got %v", err)
	}
}

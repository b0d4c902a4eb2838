package engine

import (
	"context"
	"testing"
	"time"

	"placefinder/discoveryservice/internal/domain"
)

func TestProviderHealthThreshold(t *testing.T) {
	health := newProviderHealth()
	for i := 0; i < providerFailureThreshold; i++ {
		if !health.available(domain.StreamNearby) {
			t.Fatalf("unavailable after only %d failures", i)
		}
		health.recordFailure(domain.StreamNearby)
	}
	if health.available(domain.StreamNearby) {
		t.Error("expected nearby unavailable at the failure threshold")
	}
	if !health.available(domain.StreamText) {
		t.Error("stream kinds must be tracked independently")
	}

	health.recordSuccess(domain.StreamNearby)
	if !health.available(domain.StreamNearby) {
		t.Error("one success must reset the failure run")
	}
}

func TestFillPendingRecordsProviderHealth(t *testing.T) {
	provider := &fakeProvider{failAll: true}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	eng := newTestEngine(provider, clock)

	state := newTestState(t, []domain.Stream{
		{ID: "nearby-0", Kind: domain.StreamNearby, Stage: domain.StagePrimary, IncludedTypes: []string{"restaurant"}},
	})
	if _, err := eng.FillPending(context.Background(), state, 10, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := eng.health.failures[domain.StreamNearby]; got != 1 {
		t.Errorf("expected 1 recorded failure, got %d", got)
	}

	provider.failAll = false
	provider.nearby = map[string]ProviderPage{"restaurant": {Places: rawPlaces("a")}}
	state.Streams[0].Exhausted = false
	if _, err := eng.FillPending(context.Background(), state, 10, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := eng.health.failures[domain.StreamNearby]; got != 0 {
		t.Errorf("expected failure run reset by success, got %d", got)
	}
	if !eng.ProviderAvailable(domain.StreamNearby) {
		t.Error("provider must report available after a success")
	}
}

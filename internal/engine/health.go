package engine

import (
	"sync"

	"placefinder/discoveryservice/internal/domain"
	"placefinder/discoveryservice/internal/metrics"
)

// providerFailureThreshold is how many consecutive failures of one
// stream kind flip it to unavailable. A single success resets the run.
const providerFailureThreshold = 5

// providerHealth tracks consecutive provider failures per stream kind
// and mirrors the run length into a gauge.
type providerHealth struct {
	mu       sync.Mutex
	failures map[domain.StreamKind]int
}

func newProviderHealth() *providerHealth {
	return &providerHealth{failures: make(map[domain.StreamKind]int)}
}

func (h *providerHealth) recordSuccess(kind domain.StreamKind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[kind] = 0
	metrics.ProviderConsecutiveFailures.WithLabelValues(string(kind)).Set(0)
}

func (h *providerHealth) recordFailure(kind domain.StreamKind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[kind]++
	metrics.ProviderConsecutiveFailures.WithLabelValues(string(kind)).Set(float64(h.failures[kind]))
}

func (h *providerHealth) available(kind domain.StreamKind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures[kind] < providerFailureThreshold
}

// ProviderAvailable reports whether calls of the given stream kind have
// been succeeding recently.
func (e *Engine) ProviderAvailable(kind domain.StreamKind) bool {
	return e.health.available(kind)
}

package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"placefinder/discoveryservice/internal/domain"
)

// clientIntent is the subset of query fields the client controls. Only
// these participate in the hash that guards cursor reuse; derived and
// operational fields must not invalidate a continuation.
type clientIntent struct {
	Lat          float64             `json:"lat"`
	Lng          float64             `json:"lng"`
	RadiusMeters int                 `json:"radiusMeters"`
	ActivityType string              `json:"activityType,omitempty"`
	Categories   []string            `json:"categories,omitempty"`
	QuickFilters []string            `json:"quickFilters,omitempty"`
	Keyword      string              `json:"keyword,omitempty"`
	Vibes        []string            `json:"vibes,omitempty"`
	Budget       domain.Budget       `json:"budget"`
	Who          domain.Persona      `json:"who"`
	Filters      domain.PlaceFilters `json:"filters"`
}

// QueryHash is the client-intent hash used to validate cursor reuse.
func QueryHash(q domain.Query) string {
	return stableHash(clientIntent{
		Lat:          q.Lat,
		Lng:          q.Lng,
		RadiusMeters: q.RadiusMeters,
		ActivityType: q.ActivityType,
		Categories:   q.Categories,
		QuickFilters: q.QuickFilters,
		Keyword:      q.Keyword,
		Vibes:        q.Vibes,
		Budget:       q.Budget,
		Who:          q.Who,
		Filters:      q.Filters,
	})
}

// EngineHash covers every execution-relevant field, derived ones
// included. It is for debug/cache correlation only and never guards
// cursor reuse.
func EngineHash(q domain.Query) string {
	return stableHash(q)
}

// stableHash hashes a value independent of struct field order: the value
// is marshalled, decoded into generic maps, and re-marshalled —
// encoding/json emits map keys sorted at every nesting level.
func stableHash(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ""
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16]
}

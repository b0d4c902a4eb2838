package engine

import (
	"errors"
	"strings"
	"time"

	"placefinder/discoveryservice/internal/domain"
)

var (
	ErrInvalidLocation = errors.New("lat/lng is required and must be valid")
	ErrInvalidRadius   = errors.New("radiusMeters must be in (0, 50000]")
	ErrNoSelector      = errors.New("at least one of quickFilters, activityType, categories or keyword is required")
	ErrNoStreams       = errors.New("no search streams could be planned")
)

const (
	minPerPage     = 5
	maxPerPage     = 25
	defaultPerPage = 10
	maxRadius      = 50000
)

// baselineExcludedTypes are filtered from every search. meal_takeaway is
// lifted when the activity is Dining.
var baselineExcludedTypes = []string{
	"gas_station",
	"atm",
	"funeral_home",
	"cemetery",
	"storage",
	"car_repair",
	"car_dealer",
	"meal_takeaway",
}

var personaProfiles = map[domain.Persona]domain.PersonaProfile{
	domain.PersonaSolo: {
		BoostTypes:    []string{"cafe", "coffee_shop", "book_store", "library", "museum", "park"},
		PenalizeTypes: []string{"night_club", "banquet_hall"},
		BoolBoosts:    map[string]int{"outdoorSeating": 1},
	},
	domain.PersonaDate: {
		BoostTypes:    []string{"restaurant", "wine_bar", "bar", "art_gallery", "movie_theater", "performing_arts_theater"},
		PenalizeTypes: []string{"playground", "amusement_center", "fast_food_restaurant"},
		BoolBoosts:    map[string]int{"outdoorSeating": 2},
	},
	domain.PersonaFriends: {
		BoostTypes:    []string{"bar", "bowling_alley", "karaoke", "pub", "amusement_center", "sports_bar"},
		PenalizeTypes: []string{"library", "spa"},
		BoolBoosts:    map[string]int{"goodForGroups": 2, "outdoorSeating": 1},
	},
	domain.PersonaFamily: {
		BoostTypes:       []string{"park", "zoo", "aquarium", "amusement_park", "museum", "playground"},
		PenalizeTypes:    []string{"bar", "wine_bar"},
		HardExcludeTypes: []string{"night_club", "casino"},
		BoolBoosts:       map[string]int{"goodForChildren": 3},
		DisallowIfFalse:  []string{"goodForChildren"},
	},
}

// PersonaProfileFor resolves the boost/penalize/guardrail profile for a
// persona. Unknown personas resolve to the solo profile.
func PersonaProfileFor(who domain.Persona) domain.PersonaProfile {
	if profile, ok := personaProfiles[who]; ok {
		return profile
	}
	return personaProfiles[domain.PersonaSolo]
}

// NormalizeQuery turns a raw client query into the canonical Query the
// engine hashes and executes. Validation failures are 400-class sentinel
// errors; they are never retried.
func NormalizeQuery(raw domain.RawQuery, now time.Time) (domain.Query, error) {
	if raw.Lat == nil || raw.Lng == nil {
		return domain.Query{}, ErrInvalidLocation
	}
	lat, lng := *raw.Lat, *raw.Lng
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return domain.Query{}, ErrInvalidLocation
	}
	if raw.RadiusMeters <= 0 || raw.RadiusMeters > maxRadius {
		return domain.Query{}, ErrInvalidRadius
	}

	keyword := strings.TrimSpace(raw.Keyword)
	activity := strings.TrimSpace(raw.ActivityType)
	categories := normalizeList(raw.Categories)
	quickFilters := normalizeList(raw.QuickFilters)
	if keyword == "" && activity == "" && len(categories) == 0 && len(quickFilters) == 0 {
		return domain.Query{}, ErrNoSelector
	}

	perPage := raw.PerPage
	if perPage == 0 {
		perPage = defaultPerPage
	}
	if perPage < minPerPage {
		perPage = minPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	targetAt := now.UTC()
	if strings.TrimSpace(raw.WhenAtISO) != "" {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(raw.WhenAtISO)); err == nil {
			targetAt = parsed.UTC()
		}
	}

	timeCtx := domain.TimeContext{}
	if tz := strings.TrimSpace(raw.TimeZone); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			timeCtx.TimeZone = tz
		}
	}
	if timeCtx.TimeZone == "" && raw.UTCOffsetMinutes != nil {
		if offset := *raw.UTCOffsetMinutes; offset >= -840 && offset <= 840 {
			timeCtx.UTCOffsetMinutes = raw.UTCOffsetMinutes
		}
	}

	who := domain.NormalizePersona(strings.ToLower(strings.TrimSpace(raw.Who)))
	vibes := normalizeList(raw.Vibes)

	query := domain.Query{
		Lat:           lat,
		Lng:           lng,
		RadiusMeters:  raw.RadiusMeters,
		ActivityType:  activity,
		Categories:    categories,
		QuickFilters:  quickFilters,
		Keyword:       keyword,
		Vibes:         vibes,
		Budget:        normalizeBudget(raw.Budget, raw.IncludeUnpriced),
		Who:           who,
		DateNight:     isDateNight(who, vibes, quickFilters),
		TargetAt:      targetAt,
		TimeCtx:       timeCtx,
		PerPage:       perPage,
		Filters:       raw.Filters,
		ExcludedTypes: excludedTypesFor(activity),
	}
	return query, nil
}

func normalizeBudget(raw string, includeUnpriced *bool) domain.Budget {
	budget := domain.Budget{MaxTier: 4, IncludeUnpriced: true}
	switch strings.TrimSpace(raw) {
	case "$":
		budget.MaxTier = 1
	case "$$":
		budget.MaxTier = 2
	case "$$$":
		budget.MaxTier = 3
	case "$$$$":
		budget.MaxTier = 4
	}
	if includeUnpriced != nil {
		budget.IncludeUnpriced = *includeUnpriced
	}
	return budget
}

func excludedTypesFor(activity string) []string {
	excluded := make([]string, 0, len(baselineExcludedTypes))
	dining := strings.EqualFold(activity, "Dining")
	for _, t := range baselineExcludedTypes {
		if dining && t == "meal_takeaway" {
			continue
		}
		excluded = append(excluded, t)
	}
	return excluded
}

func isDateNight(who domain.Persona, vibes, quickFilters []string) bool {
	if who == domain.PersonaDate {
		return true
	}
	for _, v := range append(append([]string(nil), vibes...), quickFilters...) {
		switch v {
		case "date_night", "date night", "romantic":
			return true
		}
	}
	return false
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, raw := range values {
		value := strings.ToLower(strings.TrimSpace(raw))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

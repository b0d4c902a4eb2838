package engine

import (
	"fmt"
	"strings"

	"placefinder/discoveryservice/internal/domain"
)

// typeGroups maps an activity type to groups of related provider place
// types. One nearby stream is planned per group so a single provider
// call covers several related types.
var typeGroups = map[string][][]string{
	"dining": {
		{"restaurant", "bar", "cafe"},
		{"bakery", "coffee_shop", "dessert_shop"},
	},
	"nightlife": {
		{"bar", "night_club", "pub"},
		{"wine_bar", "karaoke", "comedy_club"},
	},
	"outdoors": {
		{"park", "hiking_area", "garden"},
		{"beach", "marina", "dog_park"},
	},
	"culture": {
		{"museum", "art_gallery", "performing_arts_theater"},
		{"historical_landmark", "cultural_center"},
	},
	"family fun": {
		{"amusement_park", "zoo", "aquarium"},
		{"playground", "bowling_alley", "movie_theater"},
	},
	"wellness": {
		{"spa", "yoga_studio", "gym"},
	},
}

// quickFilterTypes maps a quick filter to a single nearby type group.
var quickFilterTypes = map[string][]string{
	"coffee":    {"cafe", "coffee_shop", "bakery"},
	"drinks":    {"bar", "wine_bar", "pub"},
	"brunch":    {"brunch_restaurant", "breakfast_restaurant", "cafe"},
	"dessert":   {"dessert_shop", "ice_cream_shop", "bakery"},
	"live":      {"night_club", "comedy_club", "concert_hall"},
	"outdoorsy": {"park", "hiking_area", "garden"},
}

// categoryHints supply the fallback text query for category searches so
// they still get loosely-matched text results when no keyword exists.
var categoryHints = map[string]string{
	"dining":     "best places to eat",
	"nightlife":  "fun bars and night spots",
	"outdoors":   "parks and outdoor activities",
	"culture":    "museums galleries and theaters",
	"family fun": "family friendly things to do",
	"wellness":   "relaxing spas and studios",
}

// PlanStreams converts the canonical query's selectors into the search
// streams the engine will drain: nearby streams per related type group,
// a primary text stream for the user keyword, and an unarmed fallback
// text stream per category hint when no keyword was given.
func PlanStreams(q domain.Query) ([]domain.Stream, error) {
	var streams []domain.Stream

	seenGroups := make(map[string]struct{})
	addNearby := func(types []string) {
		if len(types) == 0 {
			return
		}
		key := strings.Join(types, ",")
		if _, exists := seenGroups[key]; exists {
			return
		}
		seenGroups[key] = struct{}{}
		streams = append(streams, domain.Stream{
			ID:            fmt.Sprintf("nearby-%d", len(streams)),
			Kind:          domain.StreamNearby,
			Stage:         domain.StagePrimary,
			IncludedTypes: append([]string(nil), types...),
		})
	}

	for _, filter := range q.QuickFilters {
		addNearby(quickFilterTypes[filter])
	}
	if q.ActivityType != "" {
		for _, group := range typeGroups[strings.ToLower(q.ActivityType)] {
			addNearby(group)
		}
	}
	for _, category := range q.Categories {
		for _, group := range typeGroups[category] {
			addNearby(group)
		}
	}

	if q.Keyword != "" {
		streams = append(streams, domain.Stream{
			ID:        fmt.Sprintf("text-%d", len(streams)),
			Kind:      domain.StreamText,
			Stage:     domain.StagePrimary,
			TextQuery: q.Keyword,
		})
	} else {
		for _, hint := range fallbackHints(q) {
			streams = append(streams, domain.Stream{
				ID:        fmt.Sprintf("text-%d", len(streams)),
				Kind:      domain.StreamText,
				Stage:     domain.StageFallback,
				TextQuery: hint,
			})
		}
	}

	if len(streams) == 0 {
		return nil, ErrNoStreams
	}
	return streams, nil
}

func fallbackHints(q domain.Query) []string {
	seen := make(map[string]struct{})
	var hints []string
	add := func(key string) {
		hint, ok := categoryHints[strings.ToLower(key)]
		if !ok {
			return
		}
		if _, exists := seen[hint]; exists {
			return
		}
		seen[hint] = struct{}{}
		hints = append(hints, hint)
	}
	add(q.ActivityType)
	for _, category := range q.Categories {
		add(category)
	}
	return hints
}

package engine

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"placefinder/discoveryservice/internal/domain"
)

// Date-night theme heuristics: reject kid-oriented venues and fast-food
// chains for searches carrying the date-night theme.

var kidNamePattern = regexp.MustCompile(`(?i)\b(kid|kids|children|child|birthday|trampoline|playground|bounce|bouncy|daycare|petting zoo|play zone|laser tag)\b`)

var kidOnlyTypes = map[string]struct{}{
	"playground":                  {},
	"child_care_agency":           {},
	"childrens_camp":              {},
	"amusement_center":            {},
	"family_entertainment_center": {},
	"trampoline_park":             {},
}

// adultSignalTypes rescue a place from the kid-only rejection: a venue
// that also serves adults is acceptable for a date.
var adultSignalTypes = map[string]struct{}{
	"restaurant": {},
	"bar":        {},
	"wine_bar":   {},
	"night_club": {},
	"pub":        {},
	"casino":     {},
}

var fastFoodTypes = map[string]struct{}{
	"fast_food_restaurant": {},
	"hamburger_restaurant": {},
}

// fastFoodChains holds normalized chain names and common aliases.
var fastFoodChains = []string{
	"mcdonald s", "mcdonalds",
	"burger king",
	"kfc", "kentucky fried chicken",
	"taco bell",
	"wendy s", "wendys",
	"subway",
	"domino s pizza", "dominos pizza", "dominos",
	"pizza hut",
	"little caesars",
	"chick fil a",
	"popeyes", "popeyes louisiana kitchen",
	"dairy queen",
	"panda express",
	"chipotle", "chipotle mexican grill",
	"dunkin", "dunkin donuts",
	"five guys",
	"jack in the box",
	"sonic drive in",
	"white castle",
	"in n out burger", "in n out",
	"arby s", "arbys",
	"carl s jr", "carls jr",
}

var chainMatcher = newNameMatcher(fastFoodChains)

var nameFolder = cases.Fold()

var nonAlnumPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// normalizeName case-folds a venue name and collapses punctuation to
// single spaces so alias phrases match regardless of styling
// ("McDonald's" → "mcdonald s").
func normalizeName(name string) string {
	folded := nameFolder.String(name)
	folded = nonAlnumPattern.ReplaceAllString(folded, " ")
	return strings.TrimSpace(strings.Join(strings.Fields(folded), " "))
}

// nameMatcher does whole-phrase containment against normalized names,
// longest phrase first so an alias never shadows a more specific one.
type nameMatcher struct {
	phrases []string
}

func newNameMatcher(raw []string) *nameMatcher {
	phrases := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, phrase := range raw {
		normalized := normalizeName(phrase)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		phrases = append(phrases, normalized)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})
	return &nameMatcher{phrases: phrases}
}

func (m *nameMatcher) Match(name string) (string, bool) {
	normalized := " " + normalizeName(name) + " "
	for _, phrase := range m.phrases {
		if strings.Contains(normalized, " "+phrase+" ") {
			return phrase, true
		}
	}
	return "", false
}

// rejectForDateNight applies the date-night theme heuristics.
func rejectForDateNight(place domain.RawPlace) bool {
	if kidNamePattern.MatchString(place.DisplayName) {
		return true
	}

	kidOnly := false
	adultSignal := false
	fastFood := false
	for _, t := range place.Types {
		if _, ok := kidOnlyTypes[t]; ok {
			kidOnly = true
		}
		if _, ok := adultSignalTypes[t]; ok {
			adultSignal = true
		}
		if _, ok := fastFoodTypes[t]; ok {
			fastFood = true
		}
	}
	if kidOnly && !adultSignal {
		return true
	}
	if fastFood {
		return true
	}
	if _, matched := chainMatcher.Match(place.DisplayName); matched {
		return true
	}
	return false
}

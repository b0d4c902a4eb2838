package engine

import (
	"math"
	"regexp"
	"time"

	"placefinder/discoveryservice/internal/domain"
)

// Rejection reasons, tallied per search in Totals.Rejected.
const (
	ReasonExcludedType   = "excluded_type"
	ReasonTheme          = "theme"
	ReasonOpenNow        = "open_now"
	ReasonDogFriendly    = "dog_friendly"
	ReasonFamilyFriendly = "family_friendly"
	ReasonMinRating      = "min_rating"
	ReasonChain          = "chain"
	ReasonPersona        = "persona"
	ReasonBudget         = "budget"
	ReasonGeo            = "geo"
)

const (
	whoScoreMin = -10
	whoScoreMax = 10
)

var golfClubPattern = regexp.MustCompile(`(?i)\b(country club|golf (?:club|course|links))\b`)

// Verdict is the outcome of evaluating one raw place: either an accepted,
// mapped curated place or a rejection reason.
type Verdict struct {
	OK     bool
	Reason string
	Place  domain.CuratedPlace
}

func accept(place domain.CuratedPlace) Verdict { return Verdict{OK: true, Place: place} }
func reject(reason string) Verdict             { return Verdict{Reason: reason} }

// Evaluate runs the filter pipeline over one raw place. Stages run in a
// fixed order and the first rejection wins; every reason is distinct so
// totals can break rejections down.
func Evaluate(place domain.RawPlace, q domain.Query, targetAt time.Time) Verdict {
	for _, t := range place.Types {
		for _, excluded := range q.ExcludedTypes {
			if t == excluded {
				return reject(ReasonExcludedType)
			}
		}
	}

	if q.DateNight && rejectForDateNight(place) {
		return reject(ReasonTheme)
	}

	openAtTarget := OpenAtTarget(place, targetAt, q.TimeCtx)
	if q.Filters.OpenNowOnly && openAtTarget != nil && !*openAtTarget {
		return reject(ReasonOpenNow)
	}
	if q.Filters.DogFriendly && (place.AllowsDogs == nil || !*place.AllowsDogs) {
		return reject(ReasonDogFriendly)
	}
	if q.Filters.FamilyFriendly && place.GoodForChildren != nil && !*place.GoodForChildren {
		return reject(ReasonFamilyFriendly)
	}
	if q.Filters.MinRating > 0 && place.Rating > 0 && place.Rating < q.Filters.MinRating {
		return reject(ReasonMinRating)
	}
	if q.Filters.AvoidChains {
		if _, matched := chainMatcher.Match(place.DisplayName); matched {
			return reject(ReasonChain)
		}
	}

	profile := PersonaProfileFor(q.Who)
	for _, excluded := range profile.HardExcludeTypes {
		if place.HasType(excluded) {
			return reject(ReasonPersona)
		}
	}
	for _, attr := range profile.DisallowIfFalse {
		// Only an explicit false rejects; unknown never does.
		if value := boolAttr(place, attr); value != nil && !*value {
			return reject(ReasonPersona)
		}
	}

	if tier := priceTier(place.PriceLevel); tier >= 0 {
		if tier > q.Budget.MaxTier {
			return reject(ReasonBudget)
		}
	} else if !q.Budget.IncludeUnpriced {
		return reject(ReasonBudget)
	}

	if place.Location == nil {
		return reject(ReasonGeo)
	}
	distance := haversineMeters(q.Lat, q.Lng, place.Location.Latitude, place.Location.Longitude)
	if distance > float64(q.RadiusMeters) {
		return reject(ReasonGeo)
	}
	if golfClubPattern.MatchString(place.DisplayName) {
		return reject(ReasonGeo)
	}

	return accept(domain.CuratedPlace{
		PlaceID:        place.ID,
		Name:           place.DisplayName,
		Types:          append([]string(nil), place.Types...),
		Address:        place.FormattedAddress,
		Location:       *place.Location,
		DistanceMeters: math.Round(distance),
		PhotoName:      place.PhotoName,
		OpenAtTarget:   openAtTarget,
		WhoScore:       whoScore(place, profile),
		Promotions:     []domain.PromoItem{},
		Events:         []domain.PromoItem{},
	})
}

// whoScore computes the persona score: +2 per boosted type, -2 per
// penalized type, +weight per boosted attribute that is explicitly true,
// clamped to [-10, 10].
func whoScore(place domain.RawPlace, profile domain.PersonaProfile) int {
	score := 0
	for _, t := range profile.BoostTypes {
		if place.HasType(t) {
			score += 2
		}
	}
	for _, t := range profile.PenalizeTypes {
		if place.HasType(t) {
			score -= 2
		}
	}
	for attr, weight := range profile.BoolBoosts {
		if value := boolAttr(place, attr); value != nil && *value {
			score += weight
		}
	}
	if score < whoScoreMin {
		return whoScoreMin
	}
	if score > whoScoreMax {
		return whoScoreMax
	}
	return score
}

func boolAttr(place domain.RawPlace, name string) *bool {
	switch name {
	case "allowsDogs":
		return place.AllowsDogs
	case "goodForChildren":
		return place.GoodForChildren
	case "goodForGroups":
		return place.GoodForGroups
	case "outdoorSeating":
		return place.OutdoorSeating
	default:
		return nil
	}
}

// priceTier maps the provider price level onto tiers 0..4; -1 means the
// provider did not declare a price.
func priceTier(level string) int {
	switch level {
	case "PRICE_LEVEL_FREE":
		return 0
	case "PRICE_LEVEL_INEXPENSIVE":
		return 1
	case "PRICE_LEVEL_MODERATE":
		return 2
	case "PRICE_LEVEL_EXPENSIVE":
		return 3
	case "PRICE_LEVEL_VERY_EXPENSIVE":
		return 4
	default:
		return -1
	}
}

const earthRadiusMeters = 6371000

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

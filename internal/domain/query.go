package domain

import "time"

type Persona string

const (
	PersonaSolo    Persona = "solo"
	PersonaDate    Persona = "date"
	PersonaFriends Persona = "friends"
	PersonaFamily  Persona = "family"
)

// NormalizePersona maps free-form client input onto a known persona,
// defaulting to solo.
func NormalizePersona(raw string) Persona {
	switch Persona(raw) {
	case PersonaDate:
		return PersonaDate
	case PersonaFriends:
		return PersonaFriends
	case PersonaFamily:
		return PersonaFamily
	default:
		return PersonaSolo
	}
}

// PersonaProfile drives persona-based scoring and guardrails.
// BoostTypes/PenalizeTypes shift the who score; HardExcludeTypes reject
// outright; DisallowIfFalse rejects only on an explicitly false attribute,
// never on an unknown one.
type PersonaProfile struct {
	BoostTypes       []string
	PenalizeTypes    []string
	HardExcludeTypes []string
	BoolBoosts       map[string]int
	DisallowIfFalse  []string
}

type Budget struct {
	MaxTier         int  `json:"maxTier"`
	IncludeUnpriced bool `json:"includeUnpriced"`
}

// TimeContext carries whichever time reference the client supplied: an
// IANA zone name, or a fixed UTC offset in minutes (±14h).
type TimeContext struct {
	TimeZone         string `json:"timeZone,omitempty"`
	UTCOffsetMinutes *int   `json:"utcOffsetMinutes,omitempty"`
}

func (tc TimeContext) Empty() bool {
	return tc.TimeZone == "" && tc.UTCOffsetMinutes == nil
}

// Location resolves the context into a *time.Location, or nil when the
// context is empty or invalid.
func (tc TimeContext) Location() *time.Location {
	if tc.TimeZone != "" {
		if loc, err := time.LoadLocation(tc.TimeZone); err == nil {
			return loc
		}
	}
	if tc.UTCOffsetMinutes != nil {
		offset := *tc.UTCOffsetMinutes
		if offset >= -840 && offset <= 840 {
			return time.FixedZone("utcoffset", offset*60)
		}
	}
	return nil
}

type PlaceFilters struct {
	OpenNowOnly    bool    `json:"openNowOnly,omitempty"`
	DogFriendly    bool    `json:"dogFriendly,omitempty"`
	FamilyFriendly bool    `json:"familyFriendly,omitempty"`
	MinRating      float64 `json:"minRating,omitempty"`
	AvoidChains    bool    `json:"avoidChains,omitempty"`
}

// RawQuery is the create-search request body as the client sends it.
type RawQuery struct {
	Lat              *float64     `json:"lat"`
	Lng              *float64     `json:"lng"`
	RadiusMeters     int          `json:"radiusMeters"`
	ActivityType     string       `json:"activityType,omitempty"`
	Categories       []string     `json:"categories,omitempty"`
	QuickFilters     []string     `json:"quickFilters,omitempty"`
	Keyword          string       `json:"keyword,omitempty"`
	Vibes            []string     `json:"vibes,omitempty"`
	Budget           string       `json:"budget,omitempty"`
	IncludeUnpriced  *bool        `json:"includeUnpriced,omitempty"`
	Who              string       `json:"who,omitempty"`
	WhenAtISO        string       `json:"whenAt,omitempty"`
	TimeZone         string       `json:"timeZone,omitempty"`
	UTCOffsetMinutes *int         `json:"utcOffsetMinutes,omitempty"`
	PerPage          int          `json:"perPage,omitempty"`
	Filters          PlaceFilters `json:"filters,omitempty"`
	Prefetch         bool         `json:"prefetch,omitempty"`
}

// Query is the canonical, hashed form of a search request. Derived fields
// (excluded types, target instant) live alongside the client intent so the
// engine hash can cover everything execution-relevant.
type Query struct {
	Lat           float64      `json:"lat"`
	Lng           float64      `json:"lng"`
	RadiusMeters  int          `json:"radiusMeters"`
	ActivityType  string       `json:"activityType,omitempty"`
	Categories    []string     `json:"categories,omitempty"`
	QuickFilters  []string     `json:"quickFilters,omitempty"`
	Keyword       string       `json:"keyword,omitempty"`
	Vibes         []string     `json:"vibes,omitempty"`
	Budget        Budget       `json:"budget"`
	Who           Persona      `json:"who"`
	DateNight     bool         `json:"dateNight,omitempty"`
	TargetAt      time.Time    `json:"targetAt"`
	TimeCtx       TimeContext  `json:"timeCtx"`
	PerPage       int          `json:"perPage"`
	Filters       PlaceFilters `json:"filters"`
	ExcludedTypes []string     `json:"excludedTypes,omitempty"`
}

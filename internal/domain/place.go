package domain

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DayTime is a point in the provider's weekly opening schedule.
// Day is 0=Sunday..6=Saturday, matching the provider convention.
type DayTime struct {
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// OpeningPeriod is one open/close pair. A nil Close means the period is
// open-ended, i.e. the place never closes once it opens.
type OpeningPeriod struct {
	Open  DayTime  `json:"open"`
	Close *DayTime `json:"close,omitempty"`
}

type OpeningHours struct {
	Periods []OpeningPeriod `json:"periods,omitempty"`
}

// RawPlace is a candidate as returned by the place-search provider,
// before filtering. Boolean attributes are tri-state: nil means the
// provider did not report them.
type RawPlace struct {
	ID               string        `json:"id"`
	DisplayName      string        `json:"displayName"`
	Types            []string      `json:"types,omitempty"`
	FormattedAddress string        `json:"formattedAddress,omitempty"`
	Location         *LatLng       `json:"location,omitempty"`
	PriceLevel       string        `json:"priceLevel,omitempty"`
	Rating           float64       `json:"rating,omitempty"`
	UserRatingCount  int           `json:"userRatingCount,omitempty"`
	UTCOffsetMinutes *int          `json:"utcOffsetMinutes,omitempty"`
	OpeningHours     *OpeningHours `json:"regularOpeningHours,omitempty"`
	PhotoName        string        `json:"photoName,omitempty"`
	AllowsDogs       *bool         `json:"allowsDogs,omitempty"`
	GoodForChildren  *bool         `json:"goodForChildren,omitempty"`
	GoodForGroups    *bool         `json:"goodForGroups,omitempty"`
	OutdoorSeating   *bool         `json:"outdoorSeating,omitempty"`
}

func (p RawPlace) HasType(t string) bool {
	for _, candidate := range p.Types {
		if candidate == t {
			return true
		}
	}
	return false
}

// CuratedPlace is the engine's output unit: a filtered, mapped candidate
// awaiting hydration and serving. OpenAtTarget is tri-state; nil means the
// opening hours could not be evaluated against the target instant.
type CuratedPlace struct {
	PlaceID        string      `json:"place_id"`
	Name           string      `json:"name"`
	Types          []string    `json:"types,omitempty"`
	Address        string      `json:"address,omitempty"`
	Location       LatLng      `json:"location"`
	DistanceMeters float64     `json:"distance"`
	PhotoName      string      `json:"photoName,omitempty"`
	OpenAtTarget   *bool       `json:"openAtTarget"`
	WhoScore       int         `json:"whoScore"`
	Promotions     []PromoItem `json:"promotions"`
	Events         []PromoItem `json:"events"`
	PromoRank      int         `json:"promoRank"`
	Hydrated       bool        `json:"hydrated,omitempty"`
}

// PromoItem is a hydrated promotion or event attached to a curated place.
type PromoItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	AllDay   bool   `json:"allDay,omitempty"`
	StartsAt string `json:"startsAt,omitempty"`
	EndsAt   string `json:"endsAt,omitempty"`
}

const (
	PromoStatusActive   = "active"
	PromoStatusUpcoming = "upcoming"
)

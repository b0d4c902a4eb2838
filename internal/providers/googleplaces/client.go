// Package googleplaces implements the place-search provider against the
// Places API (New) v1 searchNearby/searchText endpoints.
package googleplaces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"placefinder/discoveryservice/internal/domain"
	"placefinder/discoveryservice/internal/engine"
)

const (
	defaultBaseURL   = "https://places.googleapis.com"
	defaultUserAgent = "placefinder-discovery/1.0"
	maxPageSize      = 20
)

// fieldMask lists the place fields each search requests; keeping it tight
// keeps the per-call billing SKU down.
const fieldMask = "places.id,places.displayName,places.types,places.formattedAddress," +
	"places.location,places.priceLevel,places.rating,places.userRatingCount," +
	"places.utcOffsetMinutes,places.regularOpeningHours,places.photos," +
	"places.allowsDogs,places.goodForChildren,places.goodForGroups,places.outdoorSeating," +
	"nextPageToken"

type Config struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

type Client struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	userAgent string
}

// Error is a provider-level failure carrying the upstream HTTP status and
// the Places API status string when one was decoded.
type Error struct {
	HTTPStatus     int
	ProviderStatus string
	Message        string
}

func (e *Error) Error() string {
	if e.ProviderStatus != "" {
		return fmt.Sprintf("places API %d (%s): %s", e.HTTPStatus, e.ProviderStatus, e.Message)
	}
	return fmt.Sprintf("places API %d: %s", e.HTTPStatus, e.Message)
}

func NewClient(cfg Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		client:    client,
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		userAgent: userAgent,
	}
}

type circle struct {
	Center domain.LatLng `json:"center"`
	Radius float64       `json:"radius"`
}

type locationRestriction struct {
	Circle circle `json:"circle"`
}

type nearbyBody struct {
	IncludedTypes       []string            `json:"includedTypes,omitempty"`
	ExcludedTypes       []string            `json:"excludedTypes,omitempty"`
	MaxResultCount      int                 `json:"maxResultCount"`
	RankPreference      string              `json:"rankPreference,omitempty"`
	LocationRestriction locationRestriction `json:"locationRestriction"`
}

type textBody struct {
	TextQuery    string               `json:"textQuery"`
	PageSize     int                  `json:"pageSize"`
	PageToken    string               `json:"pageToken,omitempty"`
	LocationBias *locationRestriction `json:"locationBias,omitempty"`
}

type apiPhoto struct {
	Name string `json:"name"`
}

type apiDisplayName struct {
	Text string `json:"text"`
}

type apiPlace struct {
	ID                  string               `json:"id"`
	DisplayName         apiDisplayName       `json:"displayName"`
	Types               []string             `json:"types"`
	FormattedAddress    string               `json:"formattedAddress"`
	Location            *domain.LatLng       `json:"location"`
	PriceLevel          string               `json:"priceLevel"`
	Rating              float64              `json:"rating"`
	UserRatingCount     int                  `json:"userRatingCount"`
	UTCOffsetMinutes    *int                 `json:"utcOffsetMinutes"`
	RegularOpeningHours *domain.OpeningHours `json:"regularOpeningHours"`
	Photos              []apiPhoto           `json:"photos"`
	AllowsDogs          *bool                `json:"allowsDogs"`
	GoodForChildren     *bool                `json:"goodForChildren"`
	GoodForGroups       *bool                `json:"goodForGroups"`
	OutdoorSeating      *bool                `json:"outdoorSeating"`
}

type apiResponse struct {
	Places        []apiPlace `json:"places"`
	NextPageToken string     `json:"nextPageToken"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) SearchNearby(ctx context.Context, req engine.NearbyRequest) (engine.ProviderPage, error) {
	body := nearbyBody{
		IncludedTypes:  req.IncludedTypes,
		ExcludedTypes:  req.ExcludedTypes,
		MaxResultCount: maxPageSize,
		RankPreference: req.RankPreference,
		LocationRestriction: locationRestriction{Circle: circle{
			Center: domain.LatLng{Latitude: req.Lat, Longitude: req.Lng},
			Radius: float64(req.RadiusMeters),
		}},
	}
	return c.post(ctx, "/v1/places:searchNearby", body)
}

func (c *Client) SearchText(ctx context.Context, req engine.TextRequest) (engine.ProviderPage, error) {
	body := textBody{
		TextQuery: req.TextQuery,
		PageSize:  maxPageSize,
		PageToken: req.PageToken,
	}
	if req.PageToken == "" {
		// The API rejects a location bias on token continuations.
		body.LocationBias = &locationRestriction{Circle: circle{
			Center: domain.LatLng{Latitude: req.Lat, Longitude: req.Lng},
			Radius: float64(req.RadiusMeters),
		}}
	}
	return c.post(ctx, "/v1/places:searchText", body)
}

func (c *Client) post(ctx context.Context, path string, body any) (engine.ProviderPage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return engine.ProviderPage{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return engine.ProviderPage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.client.Do(req)
	if err != nil {
		return engine.ProviderPage{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return engine.ProviderPage{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return engine.ProviderPage{}, decodeError(resp.StatusCode, raw)
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return engine.ProviderPage{}, fmt.Errorf("decode places response: %w", err)
	}

	page := engine.ProviderPage{NextPageToken: decoded.NextPageToken}
	page.Places = make([]domain.RawPlace, 0, len(decoded.Places))
	for _, place := range decoded.Places {
		page.Places = append(page.Places, toRawPlace(place))
	}
	return page, nil
}

func decodeError(status int, raw []byte) error {
	providerErr := &Error{HTTPStatus: status, Message: strings.TrimSpace(string(raw))}
	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		providerErr.Message = body.Error.Message
		providerErr.ProviderStatus = body.Error.Status
	}
	return providerErr
}

func toRawPlace(place apiPlace) domain.RawPlace {
	photoName := ""
	if len(place.Photos) > 0 {
		photoName = place.Photos[0].Name
	}
	return domain.RawPlace{
		ID:               place.ID,
		DisplayName:      place.DisplayName.Text,
		Types:            place.Types,
		FormattedAddress: place.FormattedAddress,
		Location:         place.Location,
		PriceLevel:       place.PriceLevel,
		Rating:           place.Rating,
		UserRatingCount:  place.UserRatingCount,
		UTCOffsetMinutes: place.UTCOffsetMinutes,
		OpeningHours:     place.RegularOpeningHours,
		PhotoName:        photoName,
		AllowsDogs:       place.AllowsDogs,
		GoodForChildren:  place.GoodForChildren,
		GoodForGroups:    place.GoodForGroups,
		OutdoorSeating:   place.OutdoorSeating,
	}
}

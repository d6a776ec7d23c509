package places

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL       = "https://maps.googleapis.com/maps/api/place"
	DefaultRadiusMeters  = 5000
	maxRadiusMeters      = 50000
	cinemaPlaceType      = "movie_theater"
	cinemaDetailsFields  = "name,rating,formatted_phone_number,formatted_address,opening_hours,website,reviews"
	defaultClientTimeout = 10 * time.Second
)

var (
	ErrMissingAPIKey     = errors.New("places: api key required")
	ErrInvalidCoordinate = errors.New("places: invalid coordinate")
	ErrMissingPlaceID    = errors.New("places: place id required")
)

// APIError reports a rejected places request.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	message := e.Message
	if message == "" {
		message = "Failed to fetch cinemas"
	}
	return fmt.Sprintf("places: %s (http %d, status %s)", message, e.StatusCode, e.Status)
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Geometry struct {
	Location Location `json:"location"`
}

// Cinema is a nearby-search result.
type Cinema struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Vicinity         string   `json:"vicinity,omitempty"`
	Rating           float64  `json:"rating,omitempty"`
	UserRatingsTotal int      `json:"user_ratings_total,omitempty"`
	Geometry         Geometry `json:"geometry"`
}

type OpeningHours struct {
	OpenNow     bool     `json:"open_now"`
	WeekdayText []string `json:"weekday_text,omitempty"`
}

type Review struct {
	AuthorName string  `json:"author_name"`
	Rating     float64 `json:"rating"`
	Text       string  `json:"text"`
	Time       int64   `json:"time"`
}

// CinemaDetails is the detail view of one cinema.
type CinemaDetails struct {
	Name                 string        `json:"name"`
	Rating               float64       `json:"rating,omitempty"`
	FormattedPhoneNumber string        `json:"formatted_phone_number,omitempty"`
	FormattedAddress     string        `json:"formatted_address,omitempty"`
	OpeningHours         *OpeningHours `json:"opening_hours,omitempty"`
	Website              string        `json:"website,omitempty"`
	Reviews              []Review      `json:"reviews,omitempty"`
}

type nearbyResponse struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message"`
	Results      []Cinema `json:"results"`
}

type detailsResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Result       CinemaDetails `json:"result"`
}

// ClientConfig configures the places client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client discovers cinemas around a coordinate.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient constructs a places client.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetQueryParam("key", apiKey),
		logger: logger.With(zap.String("client", "places")),
	}, nil
}

// NearbyCinemas lists movie theaters within radius meters; a non-positive radius uses the default.
func (c *Client) NearbyCinemas(ctx context.Context, latitude, longitude float64, radius int) ([]Cinema, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return nil, fmt.Errorf("%w: %f,%f", ErrInvalidCoordinate, latitude, longitude)
	}
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	if radius > maxRadiusMeters {
		radius = maxRadiusMeters
	}

	var body nearbyResponse
	response, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"location": fmt.Sprintf("%f,%f", latitude, longitude),
			"radius":   fmt.Sprint(radius),
			"type":     cinemaPlaceType,
		}).
		SetResult(&body).
		SetError(&body).
		Get("/nearbysearch/json")
	if err != nil {
		c.logger.Warn("nearby search failed", zap.Error(err))
		return nil, fmt.Errorf("places: nearby search: %w", err)
	}
	if err := checkResponse(response, body.Status, body.ErrorMessage); err != nil {
		c.logger.Warn("nearby search rejected", zap.Error(err))
		return nil, err
	}
	if body.Results == nil {
		return []Cinema{}, nil
	}
	return body.Results, nil
}

// CinemaDetails returns the detail fields for a place id.
func (c *Client) CinemaDetails(ctx context.Context, placeID string) (CinemaDetails, error) {
	trimmed := strings.TrimSpace(placeID)
	if trimmed == "" {
		return CinemaDetails{}, ErrMissingPlaceID
	}
	var body detailsResponse
	response, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"place_id": trimmed,
			"fields":   cinemaDetailsFields,
		}).
		SetResult(&body).
		SetError(&body).
		Get("/details/json")
	if err != nil {
		c.logger.Warn("cinema details failed", zap.Error(err))
		return CinemaDetails{}, fmt.Errorf("places: details: %w", err)
	}
	if err := checkResponse(response, body.Status, body.ErrorMessage); err != nil {
		c.logger.Warn("cinema details rejected", zap.String("place_id", trimmed), zap.Error(err))
		return CinemaDetails{}, err
	}
	return body.Result, nil
}

// checkResponse treats HTTP errors and API statuses other than OK/ZERO_RESULTS as failures.
func checkResponse(response *resty.Response, status, message string) error {
	if response.IsError() {
		return &APIError{StatusCode: response.StatusCode(), Status: status, Message: message}
	}
	switch status {
	case "", "OK", "ZERO_RESULTS":
		return nil
	default:
		return &APIError{StatusCode: response.StatusCode(), Status: status, Message: message}
	}
}

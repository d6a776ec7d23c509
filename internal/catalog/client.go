package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://api.themoviedb.org/3"
	imageBaseURL        = "https://image.tmdb.org/t/p/w500"
	defaultLanguage     = "en-US"
	defaultTimeout      = 10 * time.Second
	defaultRequestRate  = 20
	defaultRequestBurst = 5
)

var (
	ErrMissingAPIKey  = errors.New("catalog: api key required")
	ErrUnknownList    = errors.New("catalog: unknown list")
	ErrInvalidTitleID = errors.New("catalog: invalid title id")
)

// APIError reports a non-2xx answer from the catalog service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog: request failed with status %d: %s", e.StatusCode, e.Message)
}

// List names one of the curated catalog lists.
type List string

const (
	ListPopularMovies  List = "popular-movies"
	ListUpcomingMovies List = "upcoming-movies"
	ListTopRatedMovies List = "top-rated-movies"
	ListPopularTV      List = "popular-tv"
	ListTopRatedTV     List = "top-rated-tv"
	ListOnTheAirTV     List = "on-the-air-tv"
)

var listPaths = map[List]string{
	ListPopularMovies:  "/movie/popular",
	ListUpcomingMovies: "/movie/upcoming",
	ListTopRatedMovies: "/movie/top_rated",
	ListPopularTV:      "/tv/popular",
	ListTopRatedTV:     "/tv/top_rated",
	ListOnTheAirTV:     "/tv/on_the_air",
}

// ParseList validates a list name.
func ParseList(value string) (List, error) {
	list := List(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := listPaths[list]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownList, value)
	}
	return list, nil
}

// ClientConfig configures the catalog client.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// Client reads one page of catalog data per call.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient constructs a catalog client.
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
		timeout = defaultTimeout
	}
	requestsPerSecond := cfg.RequestsPerSecond
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestRate
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetQueryParam("api_key", apiKey)

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), defaultRequestBurst),
		logger:  logger.With(zap.String("client", "catalog")),
	}, nil
}

// ImageURL expands a poster or backdrop path into a full image URL.
func ImageURL(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	return imageBaseURL + path
}

// FetchList returns the first page of the named list.
func (c *Client) FetchList(ctx context.Context, list List) ([]Title, error) {
	path, ok := listPaths[list]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	var result page
	if err := c.get(ctx, path, map[string]string{"language": defaultLanguage, "page": "1"}, &result); err != nil {
		return nil, err
	}
	return nonNil(result.Results), nil
}

func (c *Client) PopularMovies(ctx context.Context) ([]Title, error) {
	return c.FetchList(ctx, ListPopularMovies)
}

func (c *Client) UpcomingMovies(ctx context.Context) ([]Title, error) {
	return c.FetchList(ctx, ListUpcomingMovies)
}

func (c *Client) TopRatedMovies(ctx context.Context) ([]Title, error) {
	return c.FetchList(ctx, ListTopRatedMovies)
}

func (c *Client) PopularTVShows(ctx context.Context) ([]Title, error) {
	return c.FetchList(ctx, ListPopularTV)
}

func (c *Client) TopRatedTVShows(ctx context.Context) ([]Title, error) {
	return c.FetchList(ctx, ListTopRatedTV)
}

func (c *Client) OnTheAirTVShows(ctx context.Context) ([]Title, error) {
	return c.FetchList(ctx, ListOnTheAirTV)
}

// MovieDetails returns a movie with its credits.
func (c *Client) MovieDetails(ctx context.Context, movieID int64) (Details, error) {
	return c.details(ctx, "/movie/", movieID)
}

// TVShowDetails returns a TV show with its credits.
func (c *Client) TVShowDetails(ctx context.Context, showID int64) (Details, error) {
	return c.details(ctx, "/tv/", showID)
}

func (c *Client) details(ctx context.Context, prefix string, id int64) (Details, error) {
	if id <= 0 {
		return Details{}, fmt.Errorf("%w: %d", ErrInvalidTitleID, id)
	}
	var result Details
	params := map[string]string{"language": defaultLanguage, "append_to_response": "credits"}
	if err := c.get(ctx, prefix+strconv.FormatInt(id, 10), params, &result); err != nil {
		return Details{}, err
	}
	return result, nil
}

// Search runs the movie and TV searches concurrently and returns both first pages.
func (c *Client) Search(ctx context.Context, query string) (SearchResults, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return SearchResults{Movies: []Title{}, TVShows: []Title{}}, nil
	}

	var movies, shows page
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.get(groupCtx, "/search/movie", map[string]string{"query": trimmed, "page": "1"}, &movies)
	})
	group.Go(func() error {
		return c.get(groupCtx, "/search/tv", map[string]string{"query": trimmed, "page": "1"}, &shows)
	})
	if err := group.Wait(); err != nil {
		return SearchResults{}, err
	}
	return SearchResults{Movies: nonNil(movies.Results), TVShows: nonNil(shows.Results)}, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var apiErr apiErrorBody
	response, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		c.logger.Warn("catalog request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("catalog: %s: %w", path, err)
	}
	if response.IsError() {
		c.logger.Warn("catalog request rejected",
			zap.String("path", path),
			zap.Int("status", response.StatusCode()),
			zap.String("message", apiErr.StatusMessage))
		return &APIError{StatusCode: response.StatusCode(), Message: apiErr.StatusMessage}
	}
	return nil
}

func nonNil(titles []Title) []Title {
	if titles == nil {
		return []Title{}
	}
	return titles
}

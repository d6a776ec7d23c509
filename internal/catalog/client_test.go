package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{
		BaseURL:           server.URL,
		APIKey:            "test-key",
		RequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected missing api key error, got %v", err)
	}
}

func TestFetchListRequestsFirstPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/upcoming" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("api_key") != "test-key" || query.Get("page") != "1" || query.Get("language") != "en-US" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":7,"title":"Dune","popularity":88.5},{"id":8,"title":"Heat"}]}`))
	})

	titles, err := client.UpcomingMovies(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(titles))
	}
	if titles[0].PopularityOrZero() != 88.5 {
		t.Fatalf("unexpected popularity %v", titles[0].PopularityOrZero())
	}
	if titles[1].Popularity != nil {
		t.Fatalf("expected missing popularity to stay nil")
	}
}

func TestFetchListRejectsUnknownList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	if _, err := client.FetchList(context.Background(), List("trending")); !errors.Is(err, ErrUnknownList) {
		t.Fatalf("expected unknown list error, got %v", err)
	}
}

func TestMovieDetailsAppendsCredits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/42" || r.URL.Query().Get("append_to_response") != "credits" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":42,"title":"Amelie","release_date":"2001-04-25","vote_average":7.9,
			"genres":[{"id":35,"name":"Comedy"},{"id":10749,"name":"Romance"}],
			"runtime":122,
			"production_countries":[{"iso_3166_1":"FR","name":"France"}],
			"credits":{"crew":[{"id":1,"name":"Someone","job":"Editor"},{"id":2,"name":"Jean-Pierre Jeunet","job":"Director"}]}
		}`))
	})

	details, err := client.MovieDetails(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.Director() != "Jean-Pierre Jeunet" {
		t.Fatalf("unexpected director %q", details.Director())
	}
	if details.PrimaryCountry() != "FR" {
		t.Fatalf("unexpected country %q", details.PrimaryCountry())
	}
	if names := details.GenreNames(); len(names) != 2 || names[0] != "Comedy" {
		t.Fatalf("unexpected genres %v", names)
	}
	if details.DisplayTitle() != "Amelie" {
		t.Fatalf("unexpected title %q", details.DisplayTitle())
	}
}

func TestDetailsFallbacks(t *testing.T) {
	details := Details{}
	if details.Director() != "Unknown" || details.Creator() != "Unknown" || details.PrimaryCountry() != "Unknown" {
		t.Fatalf("expected unknown fallbacks, got %q %q %q", details.Director(), details.Creator(), details.PrimaryCountry())
	}
	details.OriginCountry = []string{"KR"}
	details.EpisodeRunTime = []int{45}
	if details.PrimaryCountry() != "KR" || details.RuntimeMinutes() != 45 {
		t.Fatalf("expected origin country and episode runtime fallbacks")
	}
}

func TestSearchQueriesBothCatalogs(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("query") != "office" {
			t.Errorf("unexpected query %q", r.URL.Query().Get("query"))
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search/movie":
			_, _ = w.Write([]byte(`{"results":[{"id":1,"title":"Office Space","popularity":3}]}`))
		case "/search/tv":
			_, _ = w.Write([]byte(`{"results":[{"id":2,"name":"The Office","popularity":9}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	results, err := client.Search(context.Background(), "  office ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected two requests, got %d", calls.Load())
	}
	if len(results.Movies) != 1 || len(results.TVShows) != 1 {
		t.Fatalf("unexpected results %#v", results)
	}
	if results.TVShows[0].DisplayTitle() != "The Office" {
		t.Fatalf("unexpected show title %q", results.TVShows[0].DisplayTitle())
	}
}

func TestSearchWithEmptyQuerySkipsRequests(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	results, err := client.Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results.Movies) != 0 || len(results.TVShows) != 0 {
		t.Fatalf("expected empty results")
	}
}

func TestAPIErrorCarriesStatusMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status_code":7,"status_message":"Invalid API key"}`))
	})

	_, err := client.PopularMovies(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "Invalid API key" {
		t.Fatalf("unexpected api error %#v", apiErr)
	}
}

func TestImageURL(t *testing.T) {
	if ImageURL("/abc.jpg") != "https://image.tmdb.org/t/p/w500/abc.jpg" {
		t.Fatalf("unexpected image url %q", ImageURL("/abc.jpg"))
	}
	if ImageURL("") != "" {
		t.Fatalf("expected empty path to produce empty url")
	}
}

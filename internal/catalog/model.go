package catalog

import "strings"

// Title is a list or search entry for a movie or a TV show.
type Title struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title,omitempty"`
	Name          string   `json:"name,omitempty"`
	Overview      string   `json:"overview,omitempty"`
	PosterPath    string   `json:"poster_path,omitempty"`
	BackdropPath  string   `json:"backdrop_path,omitempty"`
	ReleaseDate   string   `json:"release_date,omitempty"`
	FirstAirDate  string   `json:"first_air_date,omitempty"`
	VoteAverage   float64  `json:"vote_average"`
	Popularity    *float64 `json:"popularity,omitempty"`
	GenreIDs      []int    `json:"genre_ids,omitempty"`
	OriginCountry []string `json:"origin_country,omitempty"`
}

// DisplayTitle returns the movie title or, for TV shows, the show name.
func (t Title) DisplayTitle() string {
	if strings.TrimSpace(t.Title) != "" {
		return t.Title
	}
	return t.Name
}

// Date returns the release date for movies or the first air date for shows.
func (t Title) Date() string {
	if t.ReleaseDate != "" {
		return t.ReleaseDate
	}
	return t.FirstAirDate
}

// PopularityOrZero treats a missing popularity as zero.
func (t Title) PopularityOrZero() float64 {
	if t.Popularity == nil {
		return 0
	}
	return *t.Popularity
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Country struct {
	ISO31661 string `json:"iso_3166_1"`
	Name     string `json:"name"`
}

type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path,omitempty"`
}

type CrewMember struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Job  string `json:"job"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

type Creator struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Details is a single title with its credits appended.
type Details struct {
	Title
	Genres              []Genre   `json:"genres"`
	Runtime             int       `json:"runtime,omitempty"`
	EpisodeRunTime      []int     `json:"episode_run_time,omitempty"`
	Budget              int64     `json:"budget,omitempty"`
	Revenue             int64     `json:"revenue,omitempty"`
	Status              string    `json:"status,omitempty"`
	NumberOfSeasons     int       `json:"number_of_seasons,omitempty"`
	ProductionCompanies []Company `json:"production_companies"`
	ProductionCountries []Country `json:"production_countries"`
	CreatedBy           []Creator `json:"created_by,omitempty"`
	Credits             Credits   `json:"credits"`
}

// Director returns the first crew member credited as director, or "Unknown".
func (d Details) Director() string {
	for _, member := range d.Credits.Crew {
		if member.Job == "Director" {
			return member.Name
		}
	}
	return "Unknown"
}

// Creator returns the first credited show creator, or "Unknown".
func (d Details) Creator() string {
	if len(d.CreatedBy) > 0 && strings.TrimSpace(d.CreatedBy[0].Name) != "" {
		return d.CreatedBy[0].Name
	}
	return "Unknown"
}

// PrimaryCountry returns the first production country code, falling back to origin country, else "Unknown".
func (d Details) PrimaryCountry() string {
	if len(d.ProductionCountries) > 0 && d.ProductionCountries[0].ISO31661 != "" {
		return d.ProductionCountries[0].ISO31661
	}
	if len(d.OriginCountry) > 0 && d.OriginCountry[0] != "" {
		return d.OriginCountry[0]
	}
	return "Unknown"
}

// GenreNames lists genre names in display order.
func (d Details) GenreNames() []string {
	names := make([]string, 0, len(d.Genres))
	for _, genre := range d.Genres {
		names = append(names, genre.Name)
	}
	return names
}

// RuntimeMinutes returns the movie runtime or the first episode runtime for shows.
func (d Details) RuntimeMinutes() int {
	if d.Runtime > 0 {
		return d.Runtime
	}
	if len(d.EpisodeRunTime) > 0 {
		return d.EpisodeRunTime[0]
	}
	return 0
}

// SearchResults holds one page of movie and TV matches for a query.
type SearchResults struct {
	Movies  []Title `json:"movies"`
	TVShows []Title `json:"tvShows"`
}

type page struct {
	Page    int     `json:"page"`
	Results []Title `json:"results"`
}

type apiErrorBody struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

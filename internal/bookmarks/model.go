package bookmarks

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/store"
)

// MediaType distinguishes movie bookmarks from TV show bookmarks.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeTVShow MediaType = "tvshow"
)

const (
	MovieCollection  = "bookmarks"
	TVShowCollection = "tvshowbookmarks"
)

// UnknownCountry marks a title without a production country.
const UnknownCountry = "Unknown"

var ErrInvalidMediaType = errors.New("bookmarks: invalid media type")

// ParseMediaType accepts "movie", "tv" and "tvshow".
func ParseMediaType(value string) (MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie":
		return MediaTypeMovie, nil
	case "tv", "tvshow":
		return MediaTypeTVShow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaType, value)
	}
}

// Collection returns the store collection holding bookmarks of this media type.
func (m MediaType) Collection() (string, error) {
	switch m {
	case MediaTypeMovie:
		return MovieCollection, nil
	case MediaTypeTVShow:
		return TVShowCollection, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaType, string(m))
	}
}

// Record is a bookmark snapshot of a catalog title taken at toggle time.
type Record struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId" validate:"required"`
	UserName          string    `json:"userName"`
	MediaType         MediaType `json:"mediaType" validate:"required,oneof=movie tvshow"`
	ExternalID        int64     `json:"externalId" validate:"gt=0"`
	Title             string    `json:"title" validate:"required"`
	PosterPath        string    `json:"posterPath,omitempty"`
	BackdropPath      string    `json:"backdropPath,omitempty"`
	ReleaseOrAirDate  string    `json:"releaseOrAirDate,omitempty"`
	Genres            []string  `json:"genres"`
	VoteAverage       float64   `json:"voteAverage" validate:"gte=0,lte=10"`
	ProductionCountry string    `json:"productionCountry"`
	Overview          string    `json:"overview,omitempty"`
	Runtime           int       `json:"runtime,omitempty"`
	Director          string    `json:"director,omitempty"`
	Creator           string    `json:"creator,omitempty"`
	Status            string    `json:"status,omitempty"`
	CreatedAt         int64     `json:"createdAt"`
}

// ReleaseYear returns the leading year of the release or air date, or 0 when unknown.
func (r Record) ReleaseYear() int {
	if len(r.ReleaseOrAirDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(r.ReleaseOrAirDate[:4])
	if err != nil {
		return 0
	}
	return year
}

// DocumentID derives the store id that makes (user, title, media type) unique.
func DocumentID(userID string, externalID int64, mediaType MediaType) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + strconv.FormatInt(externalID, 10) + "\x00" + string(mediaType)))
	return hex.EncodeToString(sum[:])
}

func (r Record) fields() store.Fields {
	genres := r.Genres
	if genres == nil {
		genres = []string{}
	}
	return store.Fields{
		"userId":            r.UserID,
		"userName":          r.UserName,
		"mediaType":         string(r.MediaType),
		"externalId":        r.ExternalID,
		"title":             r.Title,
		"posterPath":        r.PosterPath,
		"backdropPath":      r.BackdropPath,
		"releaseOrAirDate":  r.ReleaseOrAirDate,
		"genres":            genres,
		"voteAverage":       r.VoteAverage,
		"productionCountry": r.ProductionCountry,
		"overview":          r.Overview,
		"runtime":           r.Runtime,
		"director":          r.Director,
		"creator":           r.Creator,
		"status":            r.Status,
		"createdAt":         r.CreatedAt,
	}
}

func recordFromDocument(document store.Document, mediaType MediaType) Record {
	country := document.String("productionCountry")
	if country == "" {
		country = UnknownCountry
	}
	genres := document.Strings("genres")
	if genres == nil {
		genres = []string{}
	}
	createdAt := document.Int("createdAt")
	if createdAt == 0 {
		createdAt = document.CreatedAtMillis
	}
	return Record{
		ID:                document.ID,
		UserID:            document.String("userId"),
		UserName:          document.String("userName"),
		MediaType:         mediaType,
		ExternalID:        document.Int("externalId"),
		Title:             document.String("title"),
		PosterPath:        document.String("posterPath"),
		BackdropPath:      document.String("backdropPath"),
		ReleaseOrAirDate:  document.String("releaseOrAirDate"),
		Genres:            genres,
		VoteAverage:       document.Float("voteAverage"),
		ProductionCountry: country,
		Overview:          document.String("overview"),
		Runtime:           int(document.Int("runtime")),
		Director:          document.String("director"),
		Creator:           document.String("creator"),
		Status:            document.String("status"),
		CreatedAt:         createdAt,
	}
}

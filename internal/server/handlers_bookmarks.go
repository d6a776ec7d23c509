package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/aggregate"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/bookmarks"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/toggle"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type countryGroupPayload struct {
	CountryCode   string               `json:"countryCode"`
	Coordinate    aggregate.Coordinate `json:"coordinate"`
	Color         string               `json:"color"`
	Count         int                  `json:"count"`
	AverageRating float64              `json:"averageRating"`
	Items         []bookmarks.Record   `json:"items"`
}

var errInvalidSnapshotBody = errors.New("server: malformed title snapshot body")

type bookmarkSnapshotPayload struct {
	Title             string   `json:"title"`
	PosterPath        string   `json:"posterPath"`
	BackdropPath      string   `json:"backdropPath"`
	ReleaseOrAirDate  string   `json:"releaseOrAirDate"`
	Genres            []string `json:"genres"`
	VoteAverage       float64  `json:"voteAverage"`
	ProductionCountry string   `json:"productionCountry"`
	Overview          string   `json:"overview"`
}

type toggleResponsePayload struct {
	Bookmarked bool   `json:"bookmarked"`
	ID         string `json:"id,omitempty"`
	Action     string `json:"action"`
}

func parseTitleParams(c *gin.Context) (bookmarks.MediaType, int64, bool) {
	mediaType, err := bookmarks.ParseMediaType(c.Param("mediaType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_media_type"})
		return "", 0, false
	}
	externalID, err := strconv.ParseInt(c.Param("externalId"), 10, 64)
	if err != nil || externalID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_title_id"})
		return "", 0, false
	}
	return mediaType, externalID, true
}

func (h *httpHandler) handleListBookmarks(c *gin.Context) {
	records, err := h.bookmarks.FetchBookmarks(c.Request.Context(), currentSession(c))
	if err != nil {
		h.logger.Error("bookmark fetch failed", zap.Error(err))
		respondError(c, http.StatusBadGateway, "bookmarks_unavailable", err)
		return
	}
	filtered := aggregate.FilterBookmarks(records, c.Query("q"), c.DefaultQuery("sort", aggregate.SortByTimestamp))
	c.JSON(http.StatusOK, gin.H{"bookmarks": filtered})
}

func (h *httpHandler) handleBookmarkCountries(c *gin.Context) {
	records, err := h.bookmarks.FetchBookmarks(c.Request.Context(), currentSession(c))
	if err != nil {
		h.logger.Error("bookmark fetch failed", zap.Error(err))
		respondError(c, http.StatusBadGateway, "bookmarks_unavailable", err)
		return
	}
	groups := aggregate.OrderedGroups(aggregate.GroupByCountry(records))
	payload := make([]countryGroupPayload, 0, len(groups))
	for _, group := range groups {
		payload = append(payload, countryGroupPayload{
			CountryCode:   group.CountryCode,
			Coordinate:    group.Coordinate,
			Color:         group.Color,
			Count:         group.Count(),
			AverageRating: group.AverageRating(),
			Items:         group.Items,
		})
	}
	c.JSON(http.StatusOK, gin.H{"countries": payload, "total": len(records)})
}

func (h *httpHandler) handleBookmarkStatus(c *gin.Context) {
	mediaType, externalID, ok := parseTitleParams(c)
	if !ok {
		return
	}
	session := currentSession(c)
	existing, err := h.bookmarks.BookmarkExists(c.Request.Context(), session.UserID, externalID, mediaType)
	if err != nil {
		h.logger.Error("bookmark status failed", zap.Error(err))
		respondError(c, http.StatusBadGateway, "bookmarks_unavailable", err)
		return
	}
	if existing == nil {
		c.JSON(http.StatusOK, gin.H{"bookmarked": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": true, "id": existing.ID})
}

func (h *httpHandler) handleBookmarkToggle(c *gin.Context) {
	mediaType, externalID, ok := parseTitleParams(c)
	if !ok {
		return
	}
	session := currentSession(c)
	ctx := c.Request.Context()

	snapshot, err := h.bookmarkSnapshot(c, mediaType, externalID)
	if errors.Is(err, errInvalidSnapshotBody) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err != nil {
		h.logger.Warn("title snapshot unavailable", zap.Int64("external_id", externalID), zap.Error(err))
		respondError(c, http.StatusBadGateway, "title_unavailable", err)
		return
	}

	controller, err := toggle.NewController(ctx, toggle.ControllerConfig{
		Repository: h.bookmarks,
		Sessions:   sessionSource{session: session},
		Title:      snapshot,
		Logger:     h.logger,
		Observer: func(result toggle.Result) {
			if result.Err == nil {
				h.publish(result.UserID, RealtimeEventBookmarkChanged, gin.H{
					"action":     string(result.Action),
					"mediaType":  string(mediaType),
					"externalId": externalID,
					"id":         result.BookmarkID,
				})
			}
		},
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_title"})
		return
	}
	defer controller.Close()

	if err := controller.Load(ctx); err != nil {
		respondError(c, http.StatusBadGateway, "bookmarks_unavailable", err)
		return
	}
	results, err := controller.Toggle()
	if errors.Is(err, toggle.ErrAuthenticationRequired) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": messageSignInToBookmark})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "toggle_in_progress"})
		return
	}

	var result toggle.Result
	select {
	case result = <-results:
	case <-ctx.Done():
		return
	}
	if result.Err != nil {
		status := http.StatusBadGateway
		if errors.Is(result.Err, bookmarks.ErrInvalidRecord) {
			status = http.StatusBadRequest
		}
		h.logger.Warn("bookmark toggle rolled back", zap.String("action", string(result.Action)), zap.Error(result.Err))
		body := gin.H{"error": "bookmark_toggle_failed", "bookmarked": result.State == toggle.Bookmarked}
		var coded codedError
		if errors.As(result.Err, &coded) {
			body["code"] = coded.Code()
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, toggleResponsePayload{
		Bookmarked: result.State == toggle.Bookmarked,
		ID:         result.BookmarkID,
		Action:     string(result.Action),
	})
}

// bookmarkSnapshot uses the request body when it names the title and falls back to the catalog.
func (h *httpHandler) bookmarkSnapshot(c *gin.Context, mediaType bookmarks.MediaType, externalID int64) (bookmarks.Record, error) {
	session := currentSession(c)
	var payload bookmarkSnapshotPayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
			return bookmarks.Record{}, fmt.Errorf("%w: %v", errInvalidSnapshotBody, err)
		}
	}
	if payload.Title != "" || h.catalog == nil {
		record := bookmarks.Record{
			MediaType:         mediaType,
			ExternalID:        externalID,
			Title:             payload.Title,
			PosterPath:        payload.PosterPath,
			BackdropPath:      payload.BackdropPath,
			ReleaseOrAirDate:  payload.ReleaseOrAirDate,
			Genres:            payload.Genres,
			VoteAverage:       payload.VoteAverage,
			ProductionCountry: payload.ProductionCountry,
			Overview:          payload.Overview,
		}
		if record.ProductionCountry == "" {
			record.ProductionCountry = bookmarks.UnknownCountry
		}
		return record, nil
	}

	var (
		details catalog.Details
		err     error
	)
	if mediaType == bookmarks.MediaTypeTVShow {
		details, err = h.catalog.TVShowDetails(c.Request.Context(), externalID)
	} else {
		details, err = h.catalog.MovieDetails(c.Request.Context(), externalID)
	}
	if err != nil {
		return bookmarks.Record{}, err
	}
	return bookmarks.SnapshotFromDetails(mediaType, details, session), nil
}

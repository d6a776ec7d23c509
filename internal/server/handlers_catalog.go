package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/aggregate"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/places"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleCatalogList(c *gin.Context) {
	if h.catalog == nil {
		respondUnavailable(c)
		return
	}
	list, err := catalog.ParseList(c.Param("list"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_list"})
		return
	}
	titles, err := h.catalog.FetchList(c.Request.Context(), list)
	if err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": titles})
}

func (h *httpHandler) handleMovieDetails(c *gin.Context) {
	h.handleDetails(c, h.catalogMovieDetails)
}

func (h *httpHandler) handleTVShowDetails(c *gin.Context) {
	h.handleDetails(c, h.catalogTVShowDetails)
}

func (h *httpHandler) catalogMovieDetails(c *gin.Context, id int64) (catalog.Details, error) {
	return h.catalog.MovieDetails(c.Request.Context(), id)
}

func (h *httpHandler) catalogTVShowDetails(c *gin.Context, id int64) (catalog.Details, error) {
	return h.catalog.TVShowDetails(c.Request.Context(), id)
}

func (h *httpHandler) handleDetails(c *gin.Context, load func(*gin.Context, int64) (catalog.Details, error)) {
	if h.catalog == nil {
		respondUnavailable(c)
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_title_id"})
		return
	}
	details, err := load(c, id)
	if err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"details":        details,
		"director":       details.Director(),
		"creator":        details.Creator(),
		"country":        details.PrimaryCountry(),
		"posterUrl":      catalog.ImageURL(details.PosterPath),
		"backdropUrl":    catalog.ImageURL(details.BackdropPath),
		"runtimeMinutes": details.RuntimeMinutes(),
	})
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	if h.catalog == nil {
		respondUnavailable(c)
		return
	}
	results, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"movies":  results.Movies,
		"tvShows": results.TVShows,
		"ranked":  aggregate.MergeAndRank(results.Movies, results.TVShows),
	})
}

func (h *httpHandler) respondCatalogError(c *gin.Context, err error) {
	var apiErr *catalog.APIError
	switch {
	case errors.Is(err, catalog.ErrInvalidTitleID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_title_id"})
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "title_not_found"})
	default:
		h.logger.Warn("catalog request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog_unavailable"})
	}
}

func (h *httpHandler) handleNearbyCinemas(c *gin.Context) {
	if h.places == nil {
		respondUnavailable(c)
		return
	}
	latitude, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	longitude, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_coordinate"})
		return
	}
	radius := 0
	if value := c.Query("radius"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_radius"})
			return
		}
		radius = parsed
	}
	cinemas, err := h.places.NearbyCinemas(c.Request.Context(), latitude, longitude, radius)
	if err != nil {
		h.respondPlacesError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cinemas": cinemas})
}

func (h *httpHandler) handleCinemaDetails(c *gin.Context) {
	if h.places == nil {
		respondUnavailable(c)
		return
	}
	details, err := h.places.CinemaDetails(c.Request.Context(), c.Param("placeId"))
	if err != nil {
		h.respondPlacesError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *httpHandler) respondPlacesError(c *gin.Context, err error) {
	var apiErr *places.APIError
	switch {
	case errors.Is(err, places.ErrInvalidCoordinate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_coordinate"})
	case errors.Is(err, places.ErrMissingPlaceID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_place_id"})
	case errors.As(err, &apiErr):
		h.logger.Warn("places request rejected", zap.Error(err))
		message := apiErr.Message
		if message == "" {
			message = "Failed to fetch cinemas"
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": message})
	default:
		h.logger.Warn("places request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch cinemas"})
	}
}

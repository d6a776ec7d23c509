package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/blobs"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/reviews"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleListReviews(c *gin.Context) {
	if h.reviews == nil {
		respondUnavailable(c)
		return
	}
	mediaType, externalID, ok := parseTitleParams(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	records, err := h.reviews.List(ctx, string(mediaType), externalID)
	if err != nil {
		h.logger.Error("review list failed", zap.Error(err))
		respondError(c, http.StatusBadGateway, "reviews_unavailable", err)
		return
	}
	userReview, err := h.reviews.UserReview(ctx, currentSession(c), string(mediaType), externalID)
	if err != nil {
		h.logger.Error("user review lookup failed", zap.Error(err))
		respondError(c, http.StatusBadGateway, "reviews_unavailable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": records, "userReview": userReview})
}

func (h *httpHandler) handleSubmitReview(c *gin.Context) {
	if h.reviews == nil {
		respondUnavailable(c)
		return
	}
	mediaType, externalID, ok := parseTitleParams(c)
	if !ok {
		return
	}
	session := currentSession(c)
	request := reviews.SubmitRequest{
		MediaExternalID: externalID,
		MediaType:       string(mediaType),
		Text:            c.PostForm("text"),
	}

	if fileHeader, err := c.FormFile("image"); err == nil {
		if fileHeader.Size > blobs.MaxObjectSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image_too_large"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image_unreadable"})
			return
		}
		defer file.Close()
		request.Image = file
		request.ImageContentType = fileHeader.Header.Get("Content-Type")
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	record, err := h.reviews.Submit(c.Request.Context(), session, request)
	switch {
	case errors.Is(err, reviews.ErrAuthenticationRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": messageLoginToReview})
		return
	case errors.Is(err, reviews.ErrInvalidReview):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_review"})
		return
	case errors.Is(err, blobs.ErrObjectTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image_too_large"})
		return
	case err != nil:
		h.logger.Error("review submit failed", zap.Error(err))
		respondError(c, http.StatusBadGateway, "Failed to submit review. Please try again.", err)
		return
	}
	h.publish(session.UserID, RealtimeEventReviewChanged, gin.H{"action": "submit", "mediaType": string(mediaType), "mediaExternalId": externalID, "id": record.ID})
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) handleDeleteReview(c *gin.Context) {
	if h.reviews == nil {
		respondUnavailable(c)
		return
	}
	mediaType, externalID, ok := parseTitleParams(c)
	if !ok {
		return
	}
	session := currentSession(c)
	err := h.reviews.Delete(c.Request.Context(), session, string(mediaType), externalID)
	switch {
	case errors.Is(err, reviews.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "review_not_found"})
		return
	case err != nil:
		h.logger.Error("review delete failed", zap.Error(err))
		respondError(c, http.StatusBadGateway, "review_delete_failed", err)
		return
	}
	h.publish(session.UserID, RealtimeEventReviewChanged, gin.H{"action": "delete", "mediaType": string(mediaType), "mediaExternalId": externalID})
	c.Status(http.StatusNoContent)
}

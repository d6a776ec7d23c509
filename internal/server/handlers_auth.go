package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/blobs"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type signUpRequestPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponsePayload struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int64         `json:"expires_in"`
	TokenType   string        `json:"token_type"`
	User        users.Session `json:"user"`
}

type passwordResetRequestPayload struct {
	Email string `json:"email"`
}

type passwordResetConfirmPayload struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type profileUpdatePayload struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

func (h *httpHandler) handleSignUp(c *gin.Context) {
	var request signUpRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	session, err := h.accounts.SignUp(c.Request.Context(), users.SignUpRequest{
		Email:       request.Email,
		Password:    request.Password,
		DisplayName: request.DisplayName,
	})
	switch {
	case errors.Is(err, users.ErrEmailAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, users.ErrInvalidEmail), errors.Is(err, users.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("sign up failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup_failed"})
		return
	}
	h.respondWithToken(c, http.StatusCreated, session)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	session, err := h.accounts.Login(c.Request.Context(), request.Email, request.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials), errors.Is(err, users.ErrInvalidEmail):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}
	h.respondWithToken(c, http.StatusOK, session)
}

// Sessions are stateless bearer tokens; logout only tells the client to drop its token.
func (h *httpHandler) handleLogout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) respondWithToken(c *gin.Context, status int, session users.Session) {
	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), session)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(status, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        session,
	})
}

func (h *httpHandler) handlePasswordResetRequest(c *gin.Context) {
	var request passwordResetRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	token, err := h.accounts.RequestPasswordReset(c.Request.Context(), request.Email)
	if errors.Is(err, users.ErrInvalidEmail) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("password reset request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password_reset_failed"})
		return
	}
	if token != "" {
		if h.resetSender == nil {
			h.logger.Warn("password reset token issued without a sender")
		} else if err := h.resetSender(c.Request.Context(), request.Email, token); err != nil {
			h.logger.Error("password reset delivery failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "Password reset email sent"})
}

func (h *httpHandler) handlePasswordResetConfirm(c *gin.Context) {
	var request passwordResetConfirmPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	err := h.accounts.ResetPassword(c.Request.Context(), request.Token, request.Password)
	switch {
	case errors.Is(err, users.ErrInvalidResetToken), errors.Is(err, users.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("password reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password_reset_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	session := currentSession(c)
	profile, err := h.accounts.Profile(c.Request.Context(), session.UserID)
	if errors.Is(err, users.ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("profile lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_failed"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request profileUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.updateProfile(c, users.ProfileUpdate{DisplayName: request.DisplayName, PhotoURL: request.PhotoURL})
}

func (h *httpHandler) handleProfilePhoto(c *gin.Context) {
	if h.blobs == nil {
		respondUnavailable(c)
		return
	}
	session := currentSession(c)
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo_required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo_unreadable"})
		return
	}
	defer file.Close()

	key := blobs.ProfilePhotoKey(session.UserID, h.now().UTC().UnixMilli())
	photoURL, err := h.blobs.Upload(c.Request.Context(), key, file, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Warn("profile photo upload failed", zap.String("user_id", session.UserID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo_upload_failed"})
		return
	}
	photoURL = absoluteURL(c, photoURL)
	h.updateProfile(c, users.ProfileUpdate{PhotoURL: &photoURL})
}

func (h *httpHandler) updateProfile(c *gin.Context, update users.ProfileUpdate) {
	session := currentSession(c)
	profile, err := h.accounts.UpdateProfile(c.Request.Context(), session.UserID, update)
	switch {
	case errors.Is(err, users.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account_not_found"})
		return
	case err != nil:
		h.logger.Warn("profile update failed", zap.String("user_id", session.UserID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile_update_failed"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// absoluteURL resolves a path-only blob URL against the request host.
func absoluteURL(c *gin.Context, value string) string {
	if !strings.HasPrefix(value, "/") {
		return value
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + value
}

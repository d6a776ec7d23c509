package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/bookmarks"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/places"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/reminders"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/reviews"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/toggle"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	sessionContextKey = "cinetrack_session"
	defaultMediaPath  = "/media"
)

// User-facing messages shown by the mobile client.
const (
	messageSignInToBookmark = "Please sign in to bookmark items"
	messageLoginToReview    = "You need to login to write reviews"
	messageChooseFutureTime = "Please choose a future time"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingTokenIssuer      = errors.New("token issuer dependency required")
	errMissingAccounts         = errors.New("account service dependency required")
	errMissingBookmarks        = errors.New("bookmark repository dependency required")
)

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

type TokenIssuer interface {
	IssueSessionToken(ctx context.Context, session users.Session) (string, int64, error)
}

type AccountService interface {
	SignUp(ctx context.Context, request users.SignUpRequest) (users.Session, error)
	Login(ctx context.Context, email, password string) (users.Session, error)
	Profile(ctx context.Context, userID string) (users.Session, error)
	UpdateProfile(ctx context.Context, userID string, update users.ProfileUpdate) (users.Session, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type BookmarkRepository interface {
	toggle.Repository
	FetchBookmarks(ctx context.Context, session *users.Session) ([]bookmarks.Record, error)
}

type ReviewService interface {
	Submit(ctx context.Context, session *users.Session, request reviews.SubmitRequest) (reviews.Record, error)
	List(ctx context.Context, mediaType string, mediaExternalID int64) ([]reviews.Record, error)
	UserReview(ctx context.Context, session *users.Session, mediaType string, mediaExternalID int64) (*reviews.Record, error)
	Delete(ctx context.Context, session *users.Session, mediaType string, mediaExternalID int64) error
}

type CatalogClient interface {
	FetchList(ctx context.Context, list catalog.List) ([]catalog.Title, error)
	MovieDetails(ctx context.Context, movieID int64) (catalog.Details, error)
	TVShowDetails(ctx context.Context, showID int64) (catalog.Details, error)
	Search(ctx context.Context, query string) (catalog.SearchResults, error)
}

type PlacesClient interface {
	NearbyCinemas(ctx context.Context, latitude, longitude float64, radius int) ([]places.Cinema, error)
	CinemaDetails(ctx context.Context, placeID string) (places.CinemaDetails, error)
}

type BlobUploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

type ReminderScheduler interface {
	Schedule(request reminders.Request) (reminders.Reminder, error)
	Cancel(userID, reminderID string) error
	Pending(userID string) []reminders.Reminder
}

// PasswordResetSender delivers reset tokens out of band.
type PasswordResetSender func(ctx context.Context, email, token string) error

// Dependencies lists the collaborators of the HTTP layer. Optional features answer 503 when their dependency is nil.
type Dependencies struct {
	Sessions       SessionValidator
	Tokens         TokenIssuer
	Accounts       AccountService
	Bookmarks      BookmarkRepository
	Reviews        ReviewService
	Catalog        CatalogClient
	Places         PlacesClient
	Blobs          BlobUploader
	Reminders      ReminderScheduler
	Media          http.FileSystem
	MediaPath      string
	Realtime       *RealtimeDispatcher
	ResetSender    PasswordResetSender
	AllowedOrigins []string
	Clock          func() time.Time
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.Bookmarks == nil {
		return nil, errMissingBookmarks
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	handler := &httpHandler{
		sessions:    deps.Sessions,
		tokens:      deps.Tokens,
		accounts:    deps.Accounts,
		bookmarks:   deps.Bookmarks,
		reviews:     deps.Reviews,
		catalog:     deps.Catalog,
		places:      deps.Places,
		blobs:       deps.Blobs,
		reminders:   deps.Reminders,
		realtime:    realtime,
		resetSender: deps.ResetSender,
		now:         clock,
		logger:      logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	if deps.Media != nil {
		mediaPath := deps.MediaPath
		if mediaPath == "" {
			mediaPath = defaultMediaPath
		}
		router.StaticFS(mediaPath, deps.Media)
	}

	router.POST("/auth/signup", handler.handleSignUp)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/logout", handler.handleLogout)
	router.POST("/auth/password-reset", handler.handlePasswordResetRequest)
	router.POST("/auth/password-reset/confirm", handler.handlePasswordResetConfirm)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/me", handler.handleProfile)
	protected.PATCH("/me", handler.handleUpdateProfile)
	protected.POST("/me/photo", handler.handleProfilePhoto)

	protected.GET("/bookmarks", handler.handleListBookmarks)
	protected.GET("/bookmarks/countries", handler.handleBookmarkCountries)
	protected.GET("/titles/:mediaType/:externalId/bookmark", handler.handleBookmarkStatus)
	protected.POST("/titles/:mediaType/:externalId/bookmark/toggle", handler.handleBookmarkToggle)

	protected.GET("/titles/:mediaType/:externalId/reviews", handler.handleListReviews)
	protected.POST("/titles/:mediaType/:externalId/reviews", handler.handleSubmitReview)
	protected.DELETE("/titles/:mediaType/:externalId/reviews", handler.handleDeleteReview)

	protected.GET("/catalog/:list", handler.handleCatalogList)
	protected.GET("/catalog/movie/:id", handler.handleMovieDetails)
	protected.GET("/catalog/tv/:id", handler.handleTVShowDetails)
	protected.GET("/search", handler.handleSearch)

	protected.GET("/cinemas/nearby", handler.handleNearbyCinemas)
	protected.GET("/cinemas/:placeId", handler.handleCinemaDetails)

	protected.POST("/reminders", handler.handleScheduleReminder)
	protected.GET("/reminders", handler.handleListReminders)
	protected.DELETE("/reminders/:id", handler.handleCancelReminder)

	protected.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	sessions    SessionValidator
	tokens      TokenIssuer
	accounts    AccountService
	bookmarks   BookmarkRepository
	reviews     ReviewService
	catalog     CatalogClient
	places      PlacesClient
	blobs       BlobUploader
	reminders   ReminderScheduler
	realtime    *RealtimeDispatcher
	resetSender PasswordResetSender
	now         func() time.Time
	logger      *zap.Logger
}

func corsMiddleware(allowedOrigins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		config.AllowOrigins = allowedOrigins
	} else {
		config.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(config)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingSessionToken):
			h.logger.Debug("session token missing", zap.String("path", c.FullPath()))
		case errors.Is(err, auth.ErrExpiredSessionToken), errors.Is(err, jwt.ErrTokenExpired):
			h.logger.Info("token validation failed", zap.Error(err))
		default:
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	session := claims.Session()
	c.Set(sessionContextKey, &session)
	c.Next()
}

// currentSession returns the session set by authorizeRequest, or nil.
func currentSession(c *gin.Context) *users.Session {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	session, _ := value.(*users.Session)
	return session
}

// sessionSource adapts the request session to users.SessionSource.
type sessionSource struct {
	session *users.Session
}

func (s sessionSource) CurrentSession() *users.Session {
	return s.session
}

type codedError interface {
	Code() string
}

func respondError(c *gin.Context, status int, reason string, err error) {
	body := gin.H{"error": reason}
	var coded codedError
	if errors.As(err, &coded) {
		body["code"] = coded.Code()
	}
	c.AbortWithStatusJSON(status, body)
}

func respondUnavailable(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "feature_unavailable"})
}

func (h *httpHandler) publish(userID, eventType string, payload any) {
	h.realtime.Publish(RealtimeMessage{
		UserID:    userID,
		EventType: eventType,
		Payload:   payload,
		Timestamp: h.now().UTC(),
	})
}

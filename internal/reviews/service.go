// Package reviews keeps one user review per title, optionally illustrated with an uploaded image.
package reviews

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/blobs"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/store"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/users"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Collection holds review documents.
const Collection = "reviews"

var (
	ErrAuthenticationRequired = errors.New("reviews: authentication required")
	ErrInvalidReview          = errors.New("reviews: invalid review")
	ErrReviewNotFound         = errors.New("reviews: review not found")
	errMissingStore           = errors.New("reviews: store is required")
	errMissingUploader        = errors.New("reviews: image uploader is not configured")
)

// ServiceError carries a stable code alongside the underlying failure.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "reviews.service.new"
	opSubmit     = "reviews.submit"
	opList       = "reviews.list"
	opDelete     = "reviews.delete"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// Uploader stores review images and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

// Record is one user's review of a title.
type Record struct {
	ID              string  `json:"id"`
	MediaExternalID int64   `json:"mediaExternalId"`
	MediaType       string  `json:"mediaType,omitempty"`
	UserID          string  `json:"userId"`
	UserName        string  `json:"userName"`
	Text            string  `json:"text"`
	Timestamp       int64   `json:"timestamp"`
	ImageURL        *string `json:"imageUrl"`
}

// SubmitRequest carries a new or edited review.
type SubmitRequest struct {
	MediaExternalID  int64  `validate:"gt=0"`
	MediaType        string `validate:"required,oneof=movie tvshow"`
	Text             string `validate:"required,max=5000"`
	Image            io.Reader
	ImageContentType string
}

// ServiceConfig describes the dependencies of the review service.
type ServiceConfig struct {
	Store    store.Store
	Uploader Uploader
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service reads and writes reviews.
type Service struct {
	store    store.Store
	uploader Uploader
	now      func() time.Time
	logger   *zap.Logger
	validate *validator.Validate
}

// NewService validates the configuration and applies defaults.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    cfg.Store,
		uploader: cfg.Uploader,
		now:      clock,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// ReviewID derives the document id of a user's review of a title.
// Movie and TV ids are separate namespaces, so the media type is part of the key.
func ReviewID(userID, mediaType string, mediaExternalID int64) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + mediaType + "\x00" + strconv.FormatInt(mediaExternalID, 10)))
	return hex.EncodeToString(sum[:])
}

// Submit creates the user's review of a title or replaces its text, keeping the previous image unless a new one is sent.
func (s *Service) Submit(ctx context.Context, session *users.Session, request SubmitRequest) (Record, error) {
	if !session.Authenticated() {
		return Record{}, ErrAuthenticationRequired
	}
	request.Text = strings.TrimSpace(request.Text)
	if err := s.validate.Struct(request); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidReview, err)
	}

	existing, err := s.find(ctx, session.UserID, request.MediaType, request.MediaExternalID)
	if err != nil {
		s.logError(opSubmit, "lookup_failed", err, zap.String("user_id", session.UserID))
		return Record{}, newServiceError(opSubmit, "lookup_failed", err)
	}

	now := s.now().UTC().UnixMilli()
	var imageURL *string
	if request.Image != nil {
		if s.uploader == nil {
			return Record{}, newServiceError(opSubmit, "upload_unavailable", errMissingUploader)
		}
		uploaded, err := s.uploader.Upload(ctx, blobs.ReviewImageKey(session.UserID, now), request.Image, request.ImageContentType)
		if err != nil {
			s.logError(opSubmit, "upload_failed", err, zap.String("user_id", session.UserID))
			return Record{}, newServiceError(opSubmit, "upload_failed", err)
		}
		imageURL = &uploaded
	}

	if existing != nil {
		if imageURL == nil {
			imageURL = existing.ImageURL
		}
		update := store.Fields{"text": request.Text, "timestamp": now, "imageUrl": nullable(imageURL)}
		if err := s.store.Set(ctx, Collection, existing.ID, update, true); err != nil {
			s.logError(opSubmit, "update_failed", err, zap.String("review_id", existing.ID))
			return Record{}, newServiceError(opSubmit, "update_failed", err)
		}
		existing.Text = request.Text
		existing.Timestamp = now
		existing.ImageURL = imageURL
		return *existing, nil
	}

	record := Record{
		ID:              ReviewID(session.UserID, request.MediaType, request.MediaExternalID),
		MediaExternalID: request.MediaExternalID,
		MediaType:       request.MediaType,
		UserID:          session.UserID,
		UserName:        session.NameOrAnonymous(),
		Text:            request.Text,
		Timestamp:       now,
		ImageURL:        imageURL,
	}
	if _, err := s.store.Insert(ctx, Collection, record.ID, record.fields()); err != nil {
		if !errors.Is(err, store.ErrDuplicateDocument) {
			s.logError(opSubmit, "insert_failed", err, zap.String("review_id", record.ID))
			return Record{}, newServiceError(opSubmit, "insert_failed", err)
		}
		if err := s.store.Set(ctx, Collection, record.ID, record.fields(), true); err != nil {
			s.logError(opSubmit, "update_failed", err, zap.String("review_id", record.ID))
			return Record{}, newServiceError(opSubmit, "update_failed", err)
		}
	}
	return record, nil
}

// List returns the reviews of a title, newest first.
func (s *Service) List(ctx context.Context, mediaType string, mediaExternalID int64) ([]Record, error) {
	documents, err := s.store.Query(ctx, Collection,
		store.Where("mediaType", mediaType),
		store.Where("mediaExternalId", mediaExternalID),
	)
	if err != nil {
		s.logError(opList, "query_failed", err, zap.String("media_type", mediaType), zap.Int64("media_external_id", mediaExternalID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	records := make([]Record, 0, len(documents))
	for _, document := range documents {
		records = append(records, recordFromDocument(document))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	return records, nil
}

// UserReview returns the session user's review of a title, or nil.
func (s *Service) UserReview(ctx context.Context, session *users.Session, mediaType string, mediaExternalID int64) (*Record, error) {
	if !session.Authenticated() {
		return nil, nil
	}
	record, err := s.find(ctx, session.UserID, mediaType, mediaExternalID)
	if err != nil {
		return nil, newServiceError(opList, "lookup_failed", err)
	}
	return record, nil
}

// Delete removes the session user's review of a title.
func (s *Service) Delete(ctx context.Context, session *users.Session, mediaType string, mediaExternalID int64) error {
	if !session.Authenticated() {
		return ErrAuthenticationRequired
	}
	existing, err := s.find(ctx, session.UserID, mediaType, mediaExternalID)
	if err != nil {
		s.logError(opDelete, "lookup_failed", err, zap.String("user_id", session.UserID))
		return newServiceError(opDelete, "lookup_failed", err)
	}
	if existing == nil {
		return ErrReviewNotFound
	}
	if err := s.store.Delete(ctx, Collection, existing.ID); err != nil {
		s.logError(opDelete, "delete_failed", err, zap.String("review_id", existing.ID))
		return newServiceError(opDelete, "delete_failed", err)
	}
	return nil
}

func (s *Service) find(ctx context.Context, userID, mediaType string, mediaExternalID int64) (*Record, error) {
	document, err := s.store.QueryOne(ctx, Collection,
		store.Where("userId", userID),
		store.Where("mediaType", mediaType),
		store.Where("mediaExternalId", mediaExternalID),
	)
	if err != nil || document == nil {
		return nil, err
	}
	record := recordFromDocument(*document)
	return &record, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("review service error", attrs...)
}

func (r Record) fields() store.Fields {
	return store.Fields{
		"mediaExternalId": r.MediaExternalID,
		"mediaType":       r.MediaType,
		"userId":          r.UserID,
		"userName":        r.UserName,
		"text":            r.Text,
		"timestamp":       r.Timestamp,
		"imageUrl":        nullable(r.ImageURL),
	}
}

func recordFromDocument(document store.Document) Record {
	record := Record{
		ID:              document.ID,
		MediaExternalID: document.Int("mediaExternalId"),
		MediaType:       document.String("mediaType"),
		UserID:          document.String("userId"),
		UserName:        document.String("userName"),
		Text:            document.String("text"),
		Timestamp:       document.Int("timestamp"),
	}
	if imageURL := document.String("imageUrl"); imageURL != "" {
		record.ImageURL = &imageURL
	}
	return record
}

func nullable(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

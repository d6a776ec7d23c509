package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/store"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/users"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/MarcoPoloResearchLab/cinetrack/backend/internal/bookmarks"

var (
	// ErrAlreadyBookmarked reports that the user already holds a bookmark for the title.
	ErrAlreadyBookmarked = errors.New("bookmarks: already bookmarked")
	ErrInvalidRecord     = errors.New("bookmarks: invalid record")
	errMissingStore      = errors.New("bookmarks: store is required")
	errMissingBookmarkID = errors.New("bookmarks: bookmark id is required")
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
	opRepositoryNew  = "bookmarks.repository.new"
	opFetchBookmarks = "bookmarks.fetch"
	opBookmarkExists = "bookmarks.exists"
	opInsert         = "bookmarks.insert"
	opDelete         = "bookmarks.delete"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// RepositoryConfig describes the dependencies of the bookmark repository.
type RepositoryConfig struct {
	Store  store.Store
	Clock  func() time.Time
	Logger *zap.Logger
	Tracer trace.Tracer
}

// Repository reads and writes bookmark records across the movie and TV collections.
type Repository struct {
	store    store.Store
	now      func() time.Time
	logger   *zap.Logger
	tracer   trace.Tracer
	validate *validator.Validate
}

// NewRepository validates the configuration and applies defaults.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opRepositoryNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Repository{
		store:    cfg.Store,
		now:      clock,
		logger:   logger,
		tracer:   tracer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// FetchBookmarks returns the session user's movie bookmarks followed by their TV show bookmarks.
// Without an authenticated session it returns an empty slice and touches nothing.
func (r *Repository) FetchBookmarks(ctx context.Context, session *users.Session) ([]Record, error) {
	if !session.Authenticated() {
		r.logger.Info("bookmark fetch skipped", zap.String("reason", "no_user"))
		return []Record{}, nil
	}
	ctx, span := r.tracer.Start(ctx, opFetchBookmarks, trace.WithAttributes(attribute.String("user.id", session.UserID)))
	defer span.End()

	var movies, shows []store.Document
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		documents, err := r.store.Query(groupCtx, MovieCollection, store.Where("userId", session.UserID))
		if err != nil {
			return fmt.Errorf("%s: %w", MovieCollection, err)
		}
		movies = documents
		return nil
	})
	group.Go(func() error {
		documents, err := r.store.Query(groupCtx, TVShowCollection, store.Where("userId", session.UserID))
		if err != nil {
			return fmt.Errorf("%s: %w", TVShowCollection, err)
		}
		shows = documents
		return nil
	})
	if err := group.Wait(); err != nil {
		r.fail(span, opFetchBookmarks, "query_failed", err, zap.String("user_id", session.UserID))
		return nil, newServiceError(opFetchBookmarks, "query_failed", err)
	}

	records := make([]Record, 0, len(movies)+len(shows))
	for _, document := range movies {
		records = append(records, recordFromDocument(document, MediaTypeMovie))
	}
	for _, document := range shows {
		records = append(records, recordFromDocument(document, MediaTypeTVShow))
	}
	span.SetAttributes(attribute.Int("bookmarks.count", len(records)))
	return records, nil
}

// BookmarkExists returns the user's bookmark for the title, or nil when there is none.
func (r *Repository) BookmarkExists(ctx context.Context, userID string, externalID int64, mediaType MediaType) (*Record, error) {
	collection, err := mediaType.Collection()
	if err != nil {
		return nil, newServiceError(opBookmarkExists, "invalid_media_type", err)
	}
	ctx, span := r.tracer.Start(ctx, opBookmarkExists, trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int64("title.id", externalID),
		attribute.String("media.type", string(mediaType)),
	))
	defer span.End()

	document, err := r.store.QueryOne(ctx, collection,
		store.Where("userId", userID),
		store.Where("externalId", externalID),
	)
	if err != nil {
		r.fail(span, opBookmarkExists, "query_failed", err, zap.String("user_id", userID), zap.Int64("external_id", externalID))
		return nil, newServiceError(opBookmarkExists, "query_failed", err)
	}
	if document == nil {
		return nil, nil
	}
	record := recordFromDocument(*document, mediaType)
	return &record, nil
}

// Insert stores the record under its deterministic id and stamps its creation time.
func (r *Repository) Insert(ctx context.Context, record Record) (Record, error) {
	if err := r.validate.Struct(record); err != nil {
		return Record{}, newServiceError(opInsert, "invalid_record", fmt.Errorf("%w: %v", ErrInvalidRecord, err))
	}
	collection, err := record.MediaType.Collection()
	if err != nil {
		return Record{}, newServiceError(opInsert, "invalid_media_type", err)
	}
	if record.ProductionCountry == "" {
		record.ProductionCountry = UnknownCountry
	}
	record.ID = DocumentID(record.UserID, record.ExternalID, record.MediaType)
	record.CreatedAt = r.now().UTC().UnixMilli()

	ctx, span := r.tracer.Start(ctx, opInsert, trace.WithAttributes(
		attribute.String("user.id", record.UserID),
		attribute.Int64("title.id", record.ExternalID),
		attribute.String("media.type", string(record.MediaType)),
	))
	defer span.End()

	if _, err := r.store.Insert(ctx, collection, record.ID, record.fields()); err != nil {
		if errors.Is(err, store.ErrDuplicateDocument) {
			span.SetAttributes(attribute.Bool("bookmarks.duplicate", true))
			return Record{}, ErrAlreadyBookmarked
		}
		r.fail(span, opInsert, "insert_failed", err, zap.String("document_id", record.ID))
		return Record{}, newServiceError(opInsert, "insert_failed", err)
	}
	return record, nil
}

// Delete removes a bookmark by store id. Deleting a missing bookmark succeeds.
func (r *Repository) Delete(ctx context.Context, mediaType MediaType, id string) error {
	collection, err := mediaType.Collection()
	if err != nil {
		return newServiceError(opDelete, "invalid_media_type", err)
	}
	if id == "" {
		return newServiceError(opDelete, "missing_id", errMissingBookmarkID)
	}
	ctx, span := r.tracer.Start(ctx, opDelete, trace.WithAttributes(attribute.String("document.id", id)))
	defer span.End()

	if err := r.store.Delete(ctx, collection, id); err != nil {
		r.fail(span, opDelete, "delete_failed", err, zap.String("document_id", id))
		return newServiceError(opDelete, "delete_failed", err)
	}
	return nil
}

func (r *Repository) fail(span trace.Span, operation, reason string, err error, fields ...zap.Field) {
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	r.logError(operation, reason, err, fields...)
}

func (r *Repository) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	r.logger.Error("bookmark repository error", attrs...)
}

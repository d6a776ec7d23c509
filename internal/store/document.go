package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrDocumentNotFound indicates the requested document does not exist in the collection.
	ErrDocumentNotFound = errors.New("store: document not found")
	// ErrDuplicateDocument indicates a document with the same id already exists in the collection.
	ErrDuplicateDocument = errors.New("store: duplicate document")
	// ErrInvalidCollection indicates the collection name is empty or malformed.
	ErrInvalidCollection = errors.New("store: invalid collection")
	// ErrInvalidDocumentID indicates the document identifier is empty or too long.
	ErrInvalidDocumentID = errors.New("store: invalid document id")
)

const (
	maxCollectionLength = 64
	maxDocumentIDLength = 190
)

var collectionPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Fields holds the document payload keyed by field name.
type Fields map[string]any

// Document is a stored payload together with its identifier and bookkeeping timestamps.
type Document struct {
	ID              string
	Collection      string
	Fields          Fields
	CreatedAtMillis int64
	UpdatedAtMillis int64
}

// String returns the field value as a string, or the empty string when absent.
func (d Document) String(field string) string {
	value, ok := d.Fields[field]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

// Float returns the numeric field value, or zero when absent or not numeric.
func (d Document) Float(field string) float64 {
	switch typed := d.Fields[field].(type) {
	case float64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return float64(typed)
	case int32:
		return float64(typed)
	case int64:
		return float64(typed)
	default:
		return 0
	}
}

// Int returns the integer field value, or zero when absent or not numeric.
func (d Document) Int(field string) int64 {
	switch typed := d.Fields[field].(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case float64:
		return int64(typed)
	default:
		return 0
	}
}

// Strings returns the field value as a string slice.
func (d Document) Strings(field string) []string {
	switch typed := d.Fields[field].(type) {
	case []string:
		return append([]string(nil), typed...)
	case []any:
		values := make([]string, 0, len(typed))
		for _, item := range typed {
			if text, ok := item.(string); ok {
				values = append(values, text)
			}
		}
		return values
	default:
		return nil
	}
}

// Filter is an equality predicate over a single top-level field.
type Filter struct {
	Field string
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Store is the generic document CRUD surface shared by every backend.
type Store interface {
	Insert(ctx context.Context, collection, id string, fields Fields) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	QueryOne(ctx context.Context, collection string, filters ...Filter) (*Document, error)
	Set(ctx context.Context, collection, id string, fields Fields, merge bool) error
	Delete(ctx context.Context, collection, id string) error
}

// ValidateCollection ensures the collection name is usable by every backend.
func ValidateCollection(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCollection)
	}
	if len(trimmed) > maxCollectionLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidCollection, maxCollectionLength)
	}
	if !collectionPattern.MatchString(trimmed) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, trimmed)
	}
	return nil
}

// ValidateDocumentID ensures the identifier fits storage bounds.
func ValidateDocumentID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDocumentID)
	}
	if len(trimmed) > maxDocumentIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidDocumentID, maxDocumentIDLength)
	}
	return nil
}

func validateFilters(filters []Filter) error {
	for _, filter := range filters {
		if !fieldPattern.MatchString(filter.Field) {
			return fmt.Errorf("store: invalid filter field %q", filter.Field)
		}
	}
	return nil
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

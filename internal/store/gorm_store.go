package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("store: database handle is required")

// DocumentRow is the relational encoding of a Document.
type DocumentRow struct {
	Collection      string `gorm:"column:collection;primaryKey;size:64;not null;index:idx_store_documents_created,priority:1"`
	DocumentID      string `gorm:"column:document_id;primaryKey;size:190;not null"`
	FieldsJSON      string `gorm:"column:fields_json;type:text;not null"`
	CreatedAtMillis int64  `gorm:"column:created_at_ms;not null;index:idx_store_documents_created,priority:2"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DocumentRow) TableName() string {
	return "store_documents"
}

// GormStoreConfig describes the dependencies of the relational document store.
type GormStoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// GormStore keeps documents as JSON rows in a single table keyed by collection and id.
type GormStore struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewGormStore validates the configuration and returns a store bound to the database.
func NewGormStore(cfg GormStoreConfig) (*GormStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		db:         cfg.Database,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger.With(zap.String("store", "sqlite")),
	}, nil
}

func (s *GormStore) Insert(ctx context.Context, collection, id string, fields Fields) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	if id == "" {
		generated, err := s.idProvider.NewID()
		if err != nil {
			return "", fmt.Errorf("store: generate id: %w", err)
		}
		id = generated
	}
	if err := ValidateDocumentID(id); err != nil {
		return "", err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("store: encode fields: %w", err)
	}

	nowMillis := s.clock().UTC().UnixMilli()
	row := DocumentRow{
		Collection:      collection,
		DocumentID:      id,
		FieldsJSON:      string(payload),
		CreatedAtMillis: nowMillis,
		UpdatedAtMillis: nowMillis,
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		s.logger.Debug("insert failed", zap.String("collection", collection), zap.String("document_id", id), zap.Error(result.Error))
		return "", fmt.Errorf("store: insert %s/%s: %w", collection, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return "", fmt.Errorf("%w: %s/%s", ErrDuplicateDocument, collection, id)
	}
	return id, nil
}

func (s *GormStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return Document{}, err
	}
	var row DocumentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND document_id = ?", collection, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return decodeRow(row)
}

func (s *GormStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	condition, args, err := buildCondition(collection, filters)
	if err != nil {
		return nil, err
	}
	var rows []DocumentRow
	if err := s.db.WithContext(ctx).
		Where(condition, args...).
		Order("created_at_ms ASC").
		Order("document_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: query %s: %w", collection, err)
	}
	documents := make([]Document, 0, len(rows))
	for _, row := range rows {
		document, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		documents = append(documents, document)
	}
	return documents, nil
}

func (s *GormStore) QueryOne(ctx context.Context, collection string, filters ...Filter) (*Document, error) {
	documents, err := s.Query(ctx, collection, filters...)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, nil
	}
	return &documents[0], nil
}

func (s *GormStore) Set(ctx context.Context, collection, id string, fields Fields, merge bool) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if err := ValidateDocumentID(id); err != nil {
		return err
	}
	nowMillis := s.clock().UTC().UnixMilli()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing DocumentRow
		err := tx.Where("collection = ? AND document_id = ?", collection, id).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			payload, encodeErr := json.Marshal(fields)
			if encodeErr != nil {
				return fmt.Errorf("store: encode fields: %w", encodeErr)
			}
			return tx.Create(&DocumentRow{
				Collection:      collection,
				DocumentID:      id,
				FieldsJSON:      string(payload),
				CreatedAtMillis: nowMillis,
				UpdatedAtMillis: nowMillis,
			}).Error
		}
		if err != nil {
			return fmt.Errorf("store: set %s/%s: %w", collection, id, err)
		}

		next := fields
		if merge {
			current, decodeErr := decodeRow(existing)
			if decodeErr != nil {
				return decodeErr
			}
			next = current.Fields
			for key, value := range fields {
				next[key] = value
			}
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("store: encode fields: %w", err)
		}
		return tx.Model(&DocumentRow{}).
			Where("collection = ? AND document_id = ?", collection, id).
			Updates(map[string]any{
				"fields_json":   string(payload),
				"updated_at_ms": nowMillis,
			}).Error
	})
}

func (s *GormStore) Delete(ctx context.Context, collection, id string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).
		Where("collection = ? AND document_id = ?", collection, id).
		Delete(&DocumentRow{}).Error; err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func buildCondition(collection string, filters []Filter) (string, []any, error) {
	if err := validateFilters(filters); err != nil {
		return "", nil, err
	}
	conditions := sq.And{sq.Eq{"collection": collection}}
	for _, filter := range filters {
		column := fmt.Sprintf("json_extract(fields_json, '$.%s')", filter.Field)
		conditions = append(conditions, sq.Eq{column: sqliteValue(filter.Value)})
	}
	return conditions.ToSql()
}

// sqliteValue maps filter values onto what json_extract yields for the same JSON value.
func sqliteValue(value any) any {
	switch typed := value.(type) {
	case bool:
		if typed {
			return 1
		}
		return 0
	default:
		return value
	}
}

func decodeRow(row DocumentRow) (Document, error) {
	fields := Fields{}
	if row.FieldsJSON != "" {
		if err := json.Unmarshal([]byte(row.FieldsJSON), &fields); err != nil {
			return Document{}, fmt.Errorf("store: decode %s/%s: %w", row.Collection, row.DocumentID, err)
		}
	}
	return Document{
		ID:              row.DocumentID,
		Collection:      row.Collection,
		Fields:          fields,
		CreatedAtMillis: row.CreatedAtMillis,
		UpdatedAtMillis: row.UpdatedAtMillis,
	}, nil
}

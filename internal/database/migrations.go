package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationIndexDocumentOwner    = "2024-03-01_index_document_owner"
	migrationIndexDocumentExternal = "2024-03-08_index_document_external_id"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

var migrations = []migrationDefinition{
	{name: migrationIndexDocumentOwner, apply: indexDocumentOwner},
	{name: migrationIndexDocumentExternal, apply: indexDocumentExternalID},
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Bookmark and review reads filter on userId inside the JSON payload.
func indexDocumentOwner(db *gorm.DB) error {
	return db.Exec("CREATE INDEX IF NOT EXISTS idx_store_documents_owner ON store_documents (collection, json_extract(fields_json, '$.userId'))").Error
}

// Review listings filter on mediaExternalId.
func indexDocumentExternalID(db *gorm.DB) error {
	return db.Exec("CREATE INDEX IF NOT EXISTS idx_store_documents_media ON store_documents (collection, json_extract(fields_json, '$.mediaExternalId'))").Error
}

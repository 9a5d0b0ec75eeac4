package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/quire/internal/docs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationClampDocumentUpdatedAt = "2026-10-01_clamp_document_updated_at"
	migrationBackfillPageHashes     = "2026-10-01_backfill_page_update_hash"
	backfillBatchSize               = 100
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

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationClampDocumentUpdatedAt, apply: clampDocumentUpdatedAt},
		{name: migrationBackfillPageHashes, apply: backfillPageHashes},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(transaction *gorm.DB) error {
			if err := migration.apply(transaction); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return transaction.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func clampDocumentUpdatedAt(db *gorm.DB) error {
	return db.Model(&docs.Document{}).
		Where("updated_at_s < created_at_s").
		Update("updated_at_s", gorm.Expr("created_at_s")).Error
}

func backfillPageHashes(db *gorm.DB) error {
	for {
		var pages []docs.Page
		if err := db.Where("update_hash = ?", "").Limit(backfillBatchSize).Find(&pages).Error; err != nil {
			return err
		}
		if len(pages) == 0 {
			return nil
		}
		for _, page := range pages {
			err := db.Model(&docs.Page{}).
				Where("doc_id = ? AND page_index = ?", page.DocID, page.PageIndex).
				Update("update_hash", docs.HashUpdate(page.UpdateBlob)).Error
			if err != nil {
				return err
			}
		}
	}
}

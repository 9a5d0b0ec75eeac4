package docs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opOpenPage       = "docs.open_page"
	opUpsertPage     = "docs.upsert_page"
	columnDocID      = "doc_id"
	columnPageIndex  = "page_index"
	queryDocPage     = fieldDocID + " = ? AND " + fieldPageIndex + " = ?"
	reasonPageUpsert = "page_upsert_failed"
)

// PagePayload is the stored state of one page.
type PagePayload struct {
	DocID     DocumentID
	Index     PageIndex
	Style     PageStyle
	Update    []byte
	UpdatedAt int64
}

// PageWrite is the result of an upsert.
type PageWrite struct {
	RowsAffected int64
	UpdatedAt    int64
}

// OpenPage returns the stored blob of a page verbatim.
func (service *Service) OpenPage(ctx context.Context, docID DocumentID, index PageIndex) (PagePayload, error) {
	var page Page
	err := service.db.WithContext(ctx).
		Where(queryDocPage, docID.String(), index.Int()).
		Take(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PagePayload{}, ErrPageNotFound
	}
	if err != nil {
		service.logError(opOpenPage, reasonPageLookup, err,
			zap.String(fieldDocID, docID.String()),
			zap.Int(fieldPageIndex, index.Int()))
		return PagePayload{}, newServiceError(opOpenPage, reasonPageLookup, err)
	}

	update := page.UpdateBlob
	if update == nil {
		update = []byte{}
	}
	return PagePayload{
		DocID:     docID,
		Index:     index,
		Style:     PageStyle(page.Style),
		Update:    update,
		UpdatedAt: page.UpdatedAtSeconds,
	}, nil
}

// UpsertPage replaces the page at index and bumps the document in one transaction.
// Indices beyond the document's page count are accepted within 0..MaxPageIndex.
func (service *Service) UpsertPage(ctx context.Context, docID DocumentID, index PageIndex, style PageStyle, update UpdateBlob) (PageWrite, error) {
	if len(update) == 0 {
		return PageWrite{}, ErrUpdateEmpty
	}
	if len(update) > MaxUpdateBytes {
		return PageWrite{}, ErrUpdateTooLarge
	}

	now := service.now()
	page := Page{
		DocID:            docID.String(),
		PageIndex:        index.Int(),
		Style:            style.Int(),
		UpdateBlob:       update.Bytes(),
		UpdateHash:       HashUpdate(update.Bytes()),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	var write PageWrite
	transactionError := service.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if _, err := service.loadDocument(transaction, opUpsertPage, docID); err != nil {
			return err
		}

		result := transaction.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: columnDocID}, {Name: columnPageIndex}},
			DoUpdates: clause.AssignmentColumns([]string{"style", "update_blob", "update_hash", "updated_at_s"}),
		}).Create(&page)
		if result.Error != nil {
			service.logError(opUpsertPage, reasonPageUpsert, result.Error,
				zap.String(fieldDocID, docID.String()),
				zap.Int(fieldPageIndex, index.Int()))
			return newServiceError(opUpsertPage, reasonPageUpsert, result.Error)
		}

		if err := service.touch(transaction, opUpsertPage, docID, now); err != nil {
			return err
		}

		write = PageWrite{RowsAffected: result.RowsAffected, UpdatedAt: now}
		return nil
	})
	if transactionError != nil {
		return PageWrite{}, transactionError
	}
	return write, nil
}

// HashUpdate returns the hex SHA-256 digest stored alongside a page blob.
func HashUpdate(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

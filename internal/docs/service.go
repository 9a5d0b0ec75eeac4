package docs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew      = "docs.service.new"
	opCreateDocument  = "docs.create_document"
	opGetMeta         = "docs.get_meta"
	opListForUser     = "docs.list_for_user"
	opTouchDocument   = "docs.touch_document"
	fieldDocID        = "doc_id"
	fieldUserID       = "user_id"
	fieldPageIndex    = "page_index"
	fieldRequestID    = "request_id"
	queryDocID        = fieldDocID + " = ?"
	queryDocUser      = fieldDocID + " = ? AND " + fieldUserID + " = ?"
	queryAccessible   = "owner_id = ? OR EXISTS (SELECT 1 FROM document_collaborators c WHERE c.doc_id = documents.doc_id AND c.user_id = ? AND c.role = ?)"
	orderRecentFirst  = "updated_at_s DESC, doc_id DESC"
	orderPageIndexAsc = "page_index ASC"
	touchExpression   = "CASE WHEN updated_at_s < ? THEN ? ELSE updated_at_s END"

	reasonMissingDatabase   = "missing_database"
	reasonMissingIDProvider = "missing_id_provider"
	reasonIDGeneration      = "id_generation_failed"
	reasonDocumentInsert    = "document_insert_failed"
	reasonPageInsert        = "page_insert_failed"
	reasonDocumentLookup    = "document_lookup_failed"
	reasonPageLookup        = "page_lookup_failed"
	reasonQueryFailed       = "query_failed"
	reasonCountFailed       = "count_failed"
	reasonTouchFailed       = "touch_failed"
)

var noOpLogger = zap.NewNop()

// IDProvider issues identifiers for new documents and join requests.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig wires dependencies for Service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service implements the document, page, membership and join-request stores.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, reasonMissingIDProvider, errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// DocumentSummary describes a document header without pages.
type DocumentSummary struct {
	ID        DocumentID
	OwnerID   UserID
	Title     string
	PageCount int
	CreatedAt int64
	UpdatedAt int64
}

// PageMeta describes a stored page without its blob.
type PageMeta struct {
	Index      PageIndex
	Style      PageStyle
	UpdatedAt  int64
	UpdateSize int64
	UpdateHash string
}

// DocumentMeta is a document header plus page navigation data.
type DocumentMeta struct {
	DocumentSummary
	Pages []PageMeta
}

// DocumentList is one window of a user's documents.
type DocumentList struct {
	Items      []DocumentSummary
	Pagination Pagination
	Total      int64
}

// TotalPages reports how many windows the full listing spans.
func (list DocumentList) TotalPages() int64 {
	return list.Pagination.TotalPages(list.Total)
}

// CreateDocument stores a new document owned by owner and seeds pageCount empty body pages.
func (service *Service) CreateDocument(ctx context.Context, owner UserID, title DocumentTitle, pageCount PageCount) (DocumentID, error) {
	docID, err := service.idProvider.NewID()
	if err != nil {
		service.logError(opCreateDocument, reasonIDGeneration, err, zap.String(fieldUserID, owner.String()))
		return "", newServiceError(opCreateDocument, reasonIDGeneration, err)
	}

	now := service.now()
	document := Document{
		DocID:            docID,
		OwnerID:          owner.String(),
		Title:            title.String(),
		PageCount:        pageCount.Int(),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	pages := make([]Page, 0, pageCount.Int())
	for index := 0; index < pageCount.Int(); index++ {
		pages = append(pages, Page{
			DocID:            docID,
			PageIndex:        index,
			Style:            PageStyleBody.Int(),
			UpdateBlob:       []byte{},
			UpdateHash:       HashUpdate(nil),
			CreatedAtSeconds: now,
			UpdatedAtSeconds: now,
		})
	}

	transactionError := service.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Create(&document).Error; err != nil {
			service.logError(opCreateDocument, reasonDocumentInsert, err,
				zap.String(fieldUserID, owner.String()),
				zap.String(fieldDocID, docID))
			return newServiceError(opCreateDocument, reasonDocumentInsert, err)
		}
		if err := transaction.Create(&pages).Error; err != nil {
			service.logError(opCreateDocument, reasonPageInsert, err, zap.String(fieldDocID, docID))
			return newServiceError(opCreateDocument, reasonPageInsert, err)
		}
		return nil
	})
	if transactionError != nil {
		return "", transactionError
	}
	return DocumentID(docID), nil
}

// GetMeta returns the document header and its ordered page metadata.
func (service *Service) GetMeta(ctx context.Context, docID DocumentID) (DocumentMeta, error) {
	document, err := service.loadDocument(service.db.WithContext(ctx), opGetMeta, docID)
	if err != nil {
		return DocumentMeta{}, err
	}

	var rows []pageMetaRow
	if err := service.db.WithContext(ctx).
		Model(&Page{}).
		Select("page_index, style, updated_at_s, update_hash, LENGTH(update_blob) AS update_size").
		Where(queryDocID, docID.String()).
		Order(orderPageIndexAsc).
		Scan(&rows).Error; err != nil {
		service.logError(opGetMeta, reasonPageLookup, err, zap.String(fieldDocID, docID.String()))
		return DocumentMeta{}, newServiceError(opGetMeta, reasonPageLookup, err)
	}

	meta := DocumentMeta{
		DocumentSummary: summarize(document),
		Pages:           make([]PageMeta, 0, len(rows)),
	}
	for _, row := range rows {
		meta.Pages = append(meta.Pages, PageMeta{
			Index:      PageIndex(row.PageIndex),
			Style:      PageStyle(row.Style),
			UpdatedAt:  row.UpdatedAtSeconds,
			UpdateSize: row.UpdateSize,
			UpdateHash: row.UpdateHash,
		})
	}
	return meta, nil
}

// ListForUser returns documents the user owns or edits, most recently updated first.
func (service *Service) ListForUser(ctx context.Context, userID UserID, pagination Pagination) (DocumentList, error) {
	accessible := func(db *gorm.DB) *gorm.DB {
		return db.Model(&Document{}).Where(queryAccessible, userID.String(), userID.String(), MemberRoleEditor.Int())
	}

	var total int64
	if err := service.db.WithContext(ctx).Scopes(accessible).Count(&total).Error; err != nil {
		service.logError(opListForUser, reasonCountFailed, err, zap.String(fieldUserID, userID.String()))
		return DocumentList{}, newServiceError(opListForUser, reasonCountFailed, err)
	}

	var documents []Document
	if err := service.db.WithContext(ctx).
		Scopes(accessible).
		Order(orderRecentFirst).
		Limit(pagination.Limit).
		Offset(pagination.Offset()).
		Find(&documents).Error; err != nil {
		service.logError(opListForUser, reasonQueryFailed, err, zap.String(fieldUserID, userID.String()))
		return DocumentList{}, newServiceError(opListForUser, reasonQueryFailed, err)
	}

	list := DocumentList{
		Items:      make([]DocumentSummary, 0, len(documents)),
		Pagination: pagination,
		Total:      total,
	}
	for _, document := range documents {
		list.Items = append(list.Items, summarize(document))
	}
	return list, nil
}

// Touch advances the document's updated_at to now; it never moves it backwards.
func (service *Service) Touch(ctx context.Context, docID DocumentID, now UnixTimestamp) error {
	return service.touch(service.db.WithContext(ctx), opTouchDocument, docID, now.Int64())
}

func (service *Service) touch(db *gorm.DB, operation string, docID DocumentID, now int64) error {
	result := db.Model(&Document{}).
		Where(queryDocID, docID.String()).
		Update("updated_at_s", gorm.Expr(touchExpression, now, now))
	if result.Error != nil {
		service.logError(operation, reasonTouchFailed, result.Error, zap.String(fieldDocID, docID.String()))
		return newServiceError(operation, reasonTouchFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (service *Service) loadDocument(db *gorm.DB, operation string, docID DocumentID) (Document, error) {
	var document Document
	err := db.Where(queryDocID, docID.String()).Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		service.logError(operation, reasonDocumentLookup, err, zap.String(fieldDocID, docID.String()))
		return Document{}, newServiceError(operation, reasonDocumentLookup, err)
	}
	return document, nil
}

type pageMetaRow struct {
	PageIndex        int    `gorm:"column:page_index"`
	Style            int    `gorm:"column:style"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s"`
	UpdateHash       string `gorm:"column:update_hash"`
	UpdateSize       int64  `gorm:"column:update_size"`
}

func summarize(document Document) DocumentSummary {
	return DocumentSummary{
		ID:        DocumentID(document.DocID),
		OwnerID:   UserID(document.OwnerID),
		Title:     document.Title,
		PageCount: document.PageCount,
		CreatedAt: document.CreatedAtSeconds,
		UpdatedAt: document.UpdatedAtSeconds,
	}
}

func (service *Service) now() int64 {
	return service.clock().UTC().Unix()
}

func (service *Service) loggerOrDefault() *zap.Logger {
	if service == nil || service.logger == nil {
		return noOpLogger
	}
	return service.logger
}

func (service *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	service.loggerOrDefault().Error("docs service error", attrs...)
}

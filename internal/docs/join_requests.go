package docs

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opCreateJoinRequest  = "docs.create_join_request"
	opGetJoinRequest     = "docs.get_join_request"
	opListJoinRequests   = "docs.list_join_requests"
	opApproveJoinRequest = "docs.approve_join_request"
	opDenyJoinRequest    = "docs.deny_join_request"
	columnUserID         = "user_id"
	columnRequestID      = "request_id"
	queryRequestID       = fieldRequestID + " = ?"
	queryPendingRequest  = fieldRequestID + " = ? AND status = ?"
	queryOwnedDocuments  = "doc_id IN (?)"
	queryOwnerID         = "owner_id = ?"
	queryStatus          = "status = ?"
	orderCreatedAtAsc    = "created_at_s ASC, request_id ASC"
	coalesceMessage      = "COALESCE(excluded.message, document_join_requests.message)"
	lockStrengthUpdate   = "UPDATE"
	reasonRequestUpsert  = "request_upsert_failed"
	reasonRequestLookup  = "request_lookup_failed"
	reasonRequestUpdate  = "request_update_failed"
	reasonDocumentLock   = "document_lock_failed"
)

// JoinRequestRecord is the stored state of a join request.
type JoinRequestRecord struct {
	ID        JoinRequestID
	DocID     DocumentID
	UserID    UserID
	Status    JoinRequestStatus
	Message   *string
	CreatedAt int64
	DecidedAt *int64
	DecidedBy *UserID
}

// JoinRequestOutcome reports the result of CreateOrUpdateRequest. AlreadyMember is
// set when the caller already owns or edits the document; no request row exists then.
type JoinRequestOutcome struct {
	RequestID     JoinRequestID
	AlreadyMember bool
}

// CreateOrUpdateRequest files a join request for userID, or refreshes the message of the
// existing one. Status and decision fields of an existing request are left untouched and
// a nil message keeps the stored one.
func (service *Service) CreateOrUpdateRequest(ctx context.Context, docID DocumentID, userID UserID, message *string) (JoinRequestOutcome, error) {
	var outcome JoinRequestOutcome
	transactionError := service.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		document, err := service.loadDocument(transaction, opCreateJoinRequest, docID)
		if err != nil {
			return err
		}
		if document.OwnerID == userID.String() {
			outcome.AlreadyMember = true
			return nil
		}
		isEditor, err := service.hasEditorRow(transaction, opCreateJoinRequest, docID, userID)
		if err != nil {
			return err
		}
		if isEditor {
			outcome.AlreadyMember = true
			return nil
		}

		requestID, err := service.idProvider.NewID()
		if err != nil {
			service.logError(opCreateJoinRequest, reasonIDGeneration, err, zap.String(fieldDocID, docID.String()))
			return newServiceError(opCreateJoinRequest, reasonIDGeneration, err)
		}

		model := JoinRequest{
			RequestID:        requestID,
			DocID:            docID.String(),
			UserID:           userID.String(),
			Status:           JoinRequestPending.Int(),
			Message:          message,
			CreatedAtSeconds: service.now(),
		}
		if err := transaction.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: columnDocID}, {Name: columnUserID}},
			DoUpdates: clause.Assignments(map[string]any{"message": gorm.Expr(coalesceMessage)}),
		}).Create(&model).Error; err != nil {
			service.logError(opCreateJoinRequest, reasonRequestUpsert, err,
				zap.String(fieldDocID, docID.String()),
				zap.String(fieldUserID, userID.String()))
			return newServiceError(opCreateJoinRequest, reasonRequestUpsert, err)
		}

		var stored JoinRequest
		if err := transaction.Select(columnRequestID).
			Where(queryDocUser, docID.String(), userID.String()).
			Take(&stored).Error; err != nil {
			service.logError(opCreateJoinRequest, reasonRequestLookup, err,
				zap.String(fieldDocID, docID.String()),
				zap.String(fieldUserID, userID.String()))
			return newServiceError(opCreateJoinRequest, reasonRequestLookup, err)
		}
		outcome.RequestID = JoinRequestID(stored.RequestID)
		return nil
	})
	if transactionError != nil {
		return JoinRequestOutcome{}, transactionError
	}
	return outcome, nil
}

// GetJoinRequest loads a join request by id.
func (service *Service) GetJoinRequest(ctx context.Context, requestID JoinRequestID) (JoinRequestRecord, error) {
	request, err := service.loadJoinRequest(service.db.WithContext(ctx), opGetJoinRequest, requestID)
	if err != nil {
		return JoinRequestRecord{}, err
	}
	return toJoinRequestRecord(request), nil
}

// ListJoinRequests returns the document's join requests oldest first, optionally
// restricted to one status.
func (service *Service) ListJoinRequests(ctx context.Context, docID DocumentID, status *JoinRequestStatus) ([]JoinRequestRecord, error) {
	query := service.db.WithContext(ctx).Where(queryDocID, docID.String())
	if status != nil {
		query = query.Where(queryStatus, status.Int())
	}

	var requests []JoinRequest
	if err := query.Order(orderCreatedAtAsc).Find(&requests).Error; err != nil {
		service.logError(opListJoinRequests, reasonQueryFailed, err, zap.String(fieldDocID, docID.String()))
		return nil, newServiceError(opListJoinRequests, reasonQueryFailed, err)
	}

	records := make([]JoinRequestRecord, 0, len(requests))
	for _, request := range requests {
		records = append(records, toJoinRequestRecord(request))
	}
	return records, nil
}

// Approve turns a pending request into an editor grant. The pending check, the owner
// check, the capacity check, the editor insert and the status transition commit together.
func (service *Service) Approve(ctx context.Context, requestID JoinRequestID, approverID UserID) error {
	return service.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		request, err := service.loadJoinRequest(
			transaction.Clauses(clause.Locking{Strength: lockStrengthUpdate}),
			opApproveJoinRequest, requestID)
		if err != nil {
			return err
		}
		if JoinRequestStatus(request.Status) != JoinRequestPending {
			return ErrJoinRequestNotPending
		}

		docID := DocumentID(request.DocID)
		requesterID := UserID(request.UserID)
		var document Document
		err = transaction.Clauses(clause.Locking{Strength: lockStrengthUpdate}).
			Where(queryDocID, docID.String()).
			Take(&document).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		if err != nil {
			service.logError(opApproveJoinRequest, reasonDocumentLock, err,
				zap.String(fieldRequestID, requestID.String()),
				zap.String(fieldDocID, docID.String()))
			return newServiceError(opApproveJoinRequest, reasonDocumentLock, err)
		}
		if document.OwnerID != approverID.String() {
			return ErrNotDocumentOwner
		}

		alreadyMember := document.OwnerID == requesterID.String()
		if !alreadyMember {
			alreadyMember, err = service.hasEditorRow(transaction, opApproveJoinRequest, docID, requesterID)
			if err != nil {
				return err
			}
		}
		if !alreadyMember {
			count, err := service.countMembers(transaction, opApproveJoinRequest, docID)
			if err != nil {
				return err
			}
			if count >= MaxMembers {
				return ErrCapacityReached
			}
			if _, err := service.insertEditor(transaction, opApproveJoinRequest, docID, requesterID); err != nil {
				return err
			}
		}

		decidedAt := service.now()
		decidedBy := approverID.String()
		result := transaction.Model(&JoinRequest{}).
			Where(queryPendingRequest, requestID.String(), JoinRequestPending.Int()).
			Updates(map[string]any{
				"status":       JoinRequestApproved.Int(),
				"decided_at_s": decidedAt,
				"decided_by":   decidedBy,
			})
		if result.Error != nil {
			service.logError(opApproveJoinRequest, reasonRequestUpdate, result.Error,
				zap.String(fieldRequestID, requestID.String()))
			return newServiceError(opApproveJoinRequest, reasonRequestUpdate, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrJoinRequestNotPending
		}
		return nil
	})
}

// Deny marks a pending request denied when ownerID owns its document. It returns the
// number of updated rows, which is zero when the request is not pending or not owned.
func (service *Service) Deny(ctx context.Context, requestID JoinRequestID, ownerID UserID) (int64, error) {
	db := service.db.WithContext(ctx)
	ownedDocuments := db.Session(&gorm.Session{NewDB: true}).
		Model(&Document{}).
		Select(columnDocID).
		Where(queryOwnerID, ownerID.String())

	result := db.Model(&JoinRequest{}).
		Where(queryPendingRequest, requestID.String(), JoinRequestPending.Int()).
		Where(queryOwnedDocuments, ownedDocuments).
		Updates(map[string]any{
			"status":       JoinRequestDenied.Int(),
			"decided_at_s": service.now(),
			"decided_by":   ownerID.String(),
		})
	if result.Error != nil {
		service.logError(opDenyJoinRequest, reasonRequestUpdate, result.Error,
			zap.String(fieldRequestID, requestID.String()))
		return 0, newServiceError(opDenyJoinRequest, reasonRequestUpdate, result.Error)
	}
	return result.RowsAffected, nil
}

func (service *Service) loadJoinRequest(db *gorm.DB, operation string, requestID JoinRequestID) (JoinRequest, error) {
	var request JoinRequest
	err := db.Where(queryRequestID, requestID.String()).Take(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return JoinRequest{}, ErrJoinRequestNotFound
	}
	if err != nil {
		service.logError(operation, reasonRequestLookup, err, zap.String(fieldRequestID, requestID.String()))
		return JoinRequest{}, newServiceError(operation, reasonRequestLookup, err)
	}
	return request, nil
}

func toJoinRequestRecord(request JoinRequest) JoinRequestRecord {
	record := JoinRequestRecord{
		ID:        JoinRequestID(request.RequestID),
		DocID:     DocumentID(request.DocID),
		UserID:    UserID(request.UserID),
		Status:    JoinRequestStatus(request.Status),
		Message:   request.Message,
		CreatedAt: request.CreatedAtSeconds,
		DecidedAt: request.DecidedAtSeconds,
	}
	if request.DecidedBy != nil {
		decidedBy := UserID(*request.DecidedBy)
		record.DecidedBy = &decidedBy
	}
	return record
}

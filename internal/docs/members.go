package docs

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opIsOwner          = "docs.is_owner"
	opIsEditor         = "docs.is_editor"
	opMemberCount      = "docs.member_count"
	opAddEditor        = "docs.add_editor"
	opRemoveEditor     = "docs.remove_editor"
	opRemoveMember     = "docs.remove_member"
	opListMembers      = "docs.list_members"
	queryDocUserRole   = queryDocUser + " AND role = ?"
	queryDocRole       = fieldDocID + " = ? AND role = ?"
	orderAddedAtAsc    = "added_at_s ASC, user_id ASC"
	reasonEditorLookup = "editor_lookup_failed"
	reasonEditorInsert = "editor_insert_failed"
	reasonEditorDelete = "editor_delete_failed"
)

// Member is one entry of a document's member set.
type Member struct {
	UserID  UserID
	Role    MemberRole
	AddedAt int64
}

// IsOwner reports whether userID owns the document.
func (service *Service) IsOwner(ctx context.Context, docID DocumentID, userID UserID) (bool, error) {
	document, err := service.loadDocument(service.db.WithContext(ctx), opIsOwner, docID)
	if err != nil {
		return false, err
	}
	return document.OwnerID == userID.String(), nil
}

// IsEditor reports whether userID may edit the document. Owners are editors.
func (service *Service) IsEditor(ctx context.Context, docID DocumentID, userID UserID) (bool, error) {
	db := service.db.WithContext(ctx)
	document, err := service.loadDocument(db, opIsEditor, docID)
	if err != nil {
		return false, err
	}
	if document.OwnerID == userID.String() {
		return true, nil
	}
	return service.hasEditorRow(db, opIsEditor, docID, userID)
}

// MemberCount returns the owner plus the number of editors.
func (service *Service) MemberCount(ctx context.Context, docID DocumentID) (int64, error) {
	db := service.db.WithContext(ctx)
	if _, err := service.loadDocument(db, opMemberCount, docID); err != nil {
		return 0, err
	}
	return service.countMembers(db, opMemberCount, docID)
}

// HasCapacity reports whether another editor fits under limit.
func (service *Service) HasCapacity(ctx context.Context, docID DocumentID, limit int) (bool, error) {
	count, err := service.MemberCount(ctx, docID)
	if err != nil {
		return false, err
	}
	return count < int64(limit), nil
}

// AddEditor grants the editor role. Adding an existing editor or the owner is a no-op.
func (service *Service) AddEditor(ctx context.Context, docID DocumentID, userID UserID) (int64, error) {
	var added int64
	transactionError := service.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		document, err := service.loadDocument(transaction, opAddEditor, docID)
		if err != nil {
			return err
		}
		if document.OwnerID == userID.String() {
			return nil
		}
		added, err = service.insertEditor(transaction, opAddEditor, docID, userID)
		return err
	})
	if transactionError != nil {
		return 0, transactionError
	}
	return added, nil
}

// RemoveEditor deletes an editor row. Removing a non-member affects zero rows.
func (service *Service) RemoveEditor(ctx context.Context, docID DocumentID, userID UserID) (int64, error) {
	result := service.db.WithContext(ctx).
		Where(queryDocUserRole, docID.String(), userID.String(), MemberRoleEditor.Int()).
		Delete(&Collaborator{})
	if result.Error != nil {
		service.logError(opRemoveEditor, reasonEditorDelete, result.Error,
			zap.String(fieldDocID, docID.String()),
			zap.String(fieldUserID, userID.String()))
		return 0, newServiceError(opRemoveEditor, reasonEditorDelete, result.Error)
	}
	return result.RowsAffected, nil
}

// RemoveMember removes memberID on behalf of callerID. The owner can never be removed,
// whoever asks; only the owner may remove editors.
func (service *Service) RemoveMember(ctx context.Context, docID DocumentID, callerID UserID, memberID UserID) (int64, error) {
	document, err := service.loadDocument(service.db.WithContext(ctx), opRemoveMember, docID)
	if err != nil {
		return 0, err
	}
	if document.OwnerID == memberID.String() {
		return 0, ErrCannotRemoveOwner
	}
	if document.OwnerID != callerID.String() {
		return 0, ErrNotDocumentOwner
	}
	return service.RemoveEditor(ctx, docID, memberID)
}

// ListMembers returns the owner first, then editors by the time they were added.
func (service *Service) ListMembers(ctx context.Context, docID DocumentID) ([]Member, error) {
	db := service.db.WithContext(ctx)
	document, err := service.loadDocument(db, opListMembers, docID)
	if err != nil {
		return nil, err
	}

	var editors []Collaborator
	if err := db.Where(queryDocRole, docID.String(), MemberRoleEditor.Int()).
		Order(orderAddedAtAsc).
		Find(&editors).Error; err != nil {
		service.logError(opListMembers, reasonEditorLookup, err, zap.String(fieldDocID, docID.String()))
		return nil, newServiceError(opListMembers, reasonEditorLookup, err)
	}

	members := make([]Member, 0, len(editors)+1)
	members = append(members, Member{
		UserID:  UserID(document.OwnerID),
		Role:    MemberRoleOwner,
		AddedAt: document.CreatedAtSeconds,
	})
	for _, editor := range editors {
		members = append(members, Member{
			UserID:  UserID(editor.UserID),
			Role:    MemberRoleEditor,
			AddedAt: editor.AddedAtSeconds,
		})
	}
	return members, nil
}

func (service *Service) hasEditorRow(db *gorm.DB, operation string, docID DocumentID, userID UserID) (bool, error) {
	var count int64
	if err := db.Model(&Collaborator{}).
		Where(queryDocUserRole, docID.String(), userID.String(), MemberRoleEditor.Int()).
		Count(&count).Error; err != nil {
		service.logError(operation, reasonEditorLookup, err,
			zap.String(fieldDocID, docID.String()),
			zap.String(fieldUserID, userID.String()))
		return false, newServiceError(operation, reasonEditorLookup, err)
	}
	return count > 0, nil
}

func (service *Service) countMembers(db *gorm.DB, operation string, docID DocumentID) (int64, error) {
	var editors int64
	if err := db.Model(&Collaborator{}).
		Where(queryDocRole, docID.String(), MemberRoleEditor.Int()).
		Count(&editors).Error; err != nil {
		service.logError(operation, reasonCountFailed, err, zap.String(fieldDocID, docID.String()))
		return 0, newServiceError(operation, reasonCountFailed, err)
	}
	return 1 + editors, nil
}

func (service *Service) insertEditor(db *gorm.DB, operation string, docID DocumentID, userID UserID) (int64, error) {
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Collaborator{
		DocID:          docID.String(),
		UserID:         userID.String(),
		Role:           MemberRoleEditor.Int(),
		AddedAtSeconds: service.now(),
	})
	if result.Error != nil {
		service.logError(operation, reasonEditorInsert, result.Error,
			zap.String(fieldDocID, docID.String()),
			zap.String(fieldUserID, userID.String()))
		return 0, newServiceError(operation, reasonEditorInsert, result.Error)
	}
	return result.RowsAffected, nil
}

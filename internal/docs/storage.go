package docs

// Document stores a document header. OwnerID and PageCount never change after creation.
type Document struct {
	DocID            string `gorm:"column:doc_id;primaryKey;size:190;not null"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_documents_owner"`
	Title            string `gorm:"column:title;size:480;not null"`
	PageCount        int    `gorm:"column:page_count;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null;index:idx_documents_updated"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// Page stores the latest client-merged blob for one page slot.
type Page struct {
	DocID            string `gorm:"column:doc_id;primaryKey;size:190;not null"`
	PageIndex        int    `gorm:"column:page_index;primaryKey;not null;autoIncrement:false"`
	Style            int    `gorm:"column:style;not null"`
	UpdateBlob       []byte `gorm:"column:update_blob;not null"`
	UpdateHash       string `gorm:"column:update_hash;size:64;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Page) TableName() string {
	return "document_pages"
}

// Collaborator stores a non-owner editor of a document.
type Collaborator struct {
	DocID          string `gorm:"column:doc_id;primaryKey;size:190;not null"`
	UserID         string `gorm:"column:user_id;primaryKey;size:190;not null;index:idx_collaborators_user"`
	Role           int    `gorm:"column:role;not null"`
	AddedAtSeconds int64  `gorm:"column:added_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Collaborator) TableName() string {
	return "document_collaborators"
}

// JoinRequest stores a request to become an editor. Decided fields are NULL while pending.
type JoinRequest struct {
	RequestID        string  `gorm:"column:request_id;primaryKey;size:190;not null"`
	DocID            string  `gorm:"column:doc_id;size:190;not null;uniqueIndex:idx_join_requests_doc_user,priority:1"`
	UserID           string  `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_join_requests_doc_user,priority:2"`
	Status           int     `gorm:"column:status;not null;default:0"`
	Message          *string `gorm:"column:message;type:text"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
	DecidedAtSeconds *int64  `gorm:"column:decided_at_s"`
	DecidedBy        *string `gorm:"column:decided_by;size:190"`
}

// TableName provides the explicit table binding for GORM.
func (JoinRequest) TableName() string {
	return "document_join_requests"
}

// Models lists every persisted type of the package for migration.
func Models() []any {
	return []any{&Document{}, &Page{}, &Collaborator{}, &JoinRequest{}}
}

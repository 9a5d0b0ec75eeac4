package docs

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// MaxMembers bounds the owner plus editors of a single document.
	MaxMembers = 10
	// MaxPageCount bounds the pages seeded at document creation.
	MaxPageCount = 10
	// MaxPageIndex is the highest addressable page slot regardless of page count.
	MaxPageIndex = 9
	// MaxUpdateBytes bounds a single page update blob.
	MaxUpdateBytes = 512 * 1024
	// MaxTitleRunes bounds a document title after trimming.
	MaxTitleRunes = 120

	maxIdentifierLength = 190
)

var (
	// ErrInvalidDocumentID indicates that a document identifier is empty or exceeds storage bounds.
	ErrInvalidDocumentID = errors.New("docs: invalid document id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("docs: invalid user id")
	// ErrInvalidJoinRequestID indicates that a join request identifier is empty or exceeds storage bounds.
	ErrInvalidJoinRequestID = errors.New("docs: invalid join request id")
	// ErrInvalidTitle indicates an empty or overlong document title.
	ErrInvalidTitle = errors.New("docs: invalid title")
	// ErrInvalidPageCount indicates a page count outside 1..MaxPageCount.
	ErrInvalidPageCount = errors.New("docs: invalid page count")
	// ErrInvalidPageIndex indicates a page index outside 0..MaxPageIndex.
	ErrInvalidPageIndex = errors.New("docs: invalid page index")
	// ErrInvalidPageStyle indicates a style other than title, heading or body.
	ErrInvalidPageStyle = errors.New("docs: invalid page style")
	// ErrUpdateEmpty indicates an empty page update blob.
	ErrUpdateEmpty = errors.New("docs: update is empty")
	// ErrUpdateTooLarge indicates a page update blob above MaxUpdateBytes.
	ErrUpdateTooLarge = errors.New("docs: update is too large")
	// ErrInvalidTimestamp indicates that a unix timestamp value is not positive.
	ErrInvalidTimestamp = errors.New("docs: invalid unix timestamp")
	// ErrInvalidJoinRequestStatus indicates an unknown join request status.
	ErrInvalidJoinRequestStatus = errors.New("docs: invalid join request status")

	// ErrDocumentNotFound indicates that the document does not exist.
	ErrDocumentNotFound = errors.New("docs: document not found")
	// ErrPageNotFound indicates that no page is stored at the requested index.
	ErrPageNotFound = errors.New("docs: page not found")
	// ErrJoinRequestNotFound indicates that the join request does not exist.
	ErrJoinRequestNotFound = errors.New("docs: join request not found")
	// ErrNotDocumentOwner indicates that the caller does not own the document.
	ErrNotDocumentOwner = errors.New("docs: not the document owner")
	// ErrNotDocumentEditor indicates that the caller can not edit the document.
	ErrNotDocumentEditor = errors.New("docs: not a document editor")
	// ErrJoinRequestNotPending indicates that the join request was already decided.
	ErrJoinRequestNotPending = errors.New("docs: join request is not pending")
	// ErrCapacityReached indicates that the document already has MaxMembers members.
	ErrCapacityReached = errors.New("docs: document member limit reached")
	// ErrCannotRemoveOwner indicates an attempt to remove the owner from the member set.
	ErrCannotRemoveOwner = errors.New("docs: cannot remove document owner")
)

// DocumentID represents a validated document identifier.
type DocumentID string

// NewDocumentID validates raw input and returns a DocumentID.
func NewDocumentID(rawInput string) (DocumentID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidDocumentID)
	if err != nil {
		return "", err
	}
	return DocumentID(trimmed), nil
}

// String returns the underlying string identifier.
func (id DocumentID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidUserID)
	if err != nil {
		return "", err
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// JoinRequestID represents a validated join request identifier.
type JoinRequestID string

// NewJoinRequestID validates raw input and returns a JoinRequestID.
func NewJoinRequestID(rawInput string) (JoinRequestID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidJoinRequestID)
	if err != nil {
		return "", err
	}
	return JoinRequestID(trimmed), nil
}

// String returns the underlying string identifier.
func (id JoinRequestID) String() string {
	return string(id)
}

func validateIdentifier(rawInput string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}

// DocumentTitle is a trimmed, non-empty title of at most MaxTitleRunes characters.
type DocumentTitle string

// NewDocumentTitle trims and validates a title.
func NewDocumentTitle(rawInput string) (DocumentTitle, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTitle)
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleRunes {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidTitle, MaxTitleRunes)
	}
	return DocumentTitle(trimmed), nil
}

// String returns the title text.
func (title DocumentTitle) String() string {
	return string(title)
}

// PageCount is the number of pages seeded for a new document.
type PageCount int

// NewPageCount validates the value and returns a PageCount.
func NewPageCount(value int64) (PageCount, error) {
	if value < 1 || value > MaxPageCount {
		return 0, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidPageCount, value, MaxPageCount)
	}
	return PageCount(value), nil
}

// Int returns the page count as an int.
func (count PageCount) Int() int {
	return int(count)
}

// PageIndex addresses a page slot within a document.
type PageIndex int

// NewPageIndex validates the value and returns a PageIndex.
func NewPageIndex(value int64) (PageIndex, error) {
	if value < 0 || value > MaxPageIndex {
		return 0, fmt.Errorf("%w: %d not in 0..%d", ErrInvalidPageIndex, value, MaxPageIndex)
	}
	return PageIndex(value), nil
}

// Int returns the page index as an int.
func (index PageIndex) Int() int {
	return int(index)
}

// PageStyle tags the visual role of a page.
type PageStyle int

const (
	// PageStyleTitle renders the page as a title page.
	PageStyleTitle PageStyle = 1
	// PageStyleHeading renders the page as a heading page.
	PageStyleHeading PageStyle = 2
	// PageStyleBody renders the page as body text.
	PageStyleBody PageStyle = 3
)

// NewPageStyle validates the value and returns a PageStyle.
func NewPageStyle(value int64) (PageStyle, error) {
	switch PageStyle(value) {
	case PageStyleTitle, PageStyleHeading, PageStyleBody:
		return PageStyle(value), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidPageStyle, value)
	}
}

// Int returns the encoded style.
func (style PageStyle) Int() int {
	return int(style)
}

// UpdateBlob is an opaque, client-merged page state.
type UpdateBlob []byte

// NewUpdateBlob validates the blob size and returns a private copy.
func NewUpdateBlob(raw []byte) (UpdateBlob, error) {
	if len(raw) == 0 {
		return nil, ErrUpdateEmpty
	}
	if len(raw) > MaxUpdateBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrUpdateTooLarge, len(raw), MaxUpdateBytes)
	}
	return append(UpdateBlob(nil), raw...), nil
}

// Bytes exposes the raw blob.
func (blob UpdateBlob) Bytes() []byte {
	return []byte(blob)
}

// UnixTimestamp represents a validated unix timestamp in seconds.
type UnixTimestamp int64

// NewUnixTimestamp validates the value and returns a UnixTimestamp.
func NewUnixTimestamp(value int64) (UnixTimestamp, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTimestamp, value)
	}
	return UnixTimestamp(value), nil
}

// Int64 exposes the raw unix seconds value.
func (ts UnixTimestamp) Int64() int64 {
	return int64(ts)
}

// MemberRole is the tagged role of a document member.
type MemberRole int

const (
	// MemberRoleEditor is stored on collaborator rows.
	MemberRoleEditor MemberRole = 2
	// MemberRoleOwner is derived from the document and never stored as a collaborator.
	MemberRoleOwner MemberRole = 3
)

// Int returns the encoded role.
func (role MemberRole) Int() int {
	return int(role)
}

// String returns the wire name of the role.
func (role MemberRole) String() string {
	switch role {
	case MemberRoleOwner:
		return "owner"
	case MemberRoleEditor:
		return "editor"
	default:
		return "unknown"
	}
}

// JoinRequestStatus tracks the join request state machine.
type JoinRequestStatus int

const (
	// JoinRequestPending awaits an owner decision.
	JoinRequestPending JoinRequestStatus = 0
	// JoinRequestApproved is terminal; the requester became an editor.
	JoinRequestApproved JoinRequestStatus = 1
	// JoinRequestDenied is terminal.
	JoinRequestDenied JoinRequestStatus = 2
)

// ParseJoinRequestStatus converts a wire name into a status.
func ParseJoinRequestStatus(rawInput string) (JoinRequestStatus, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case "pending":
		return JoinRequestPending, nil
	case "approved":
		return JoinRequestApproved, nil
	case "denied":
		return JoinRequestDenied, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidJoinRequestStatus, rawInput)
	}
}

// String returns the wire name of the status.
func (status JoinRequestStatus) String() string {
	switch status {
	case JoinRequestPending:
		return "pending"
	case JoinRequestApproved:
		return "approved"
	case JoinRequestDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Int returns the encoded status.
func (status JoinRequestStatus) Int() int {
	return int(status)
}

// Terminal reports whether no further transition is allowed.
func (status JoinRequestStatus) Terminal() bool {
	return status == JoinRequestApproved || status == JoinRequestDenied
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPageNumber   = math.MaxInt32
)

// Pagination is a normalized 1-based page window.
type Pagination struct {
	Page  int
	Limit int
}

// NewPagination coerces raw inputs into a valid window. It never fails: a page below
// one becomes one, a missing limit becomes the default and limits are clamped to 1..100.
// Pages are capped at math.MaxInt32 so the row offset can not overflow.
func NewPagination(page int64, limit int64, limitProvided bool) Pagination {
	if page < 1 {
		page = 1
	}
	if page > maxPageNumber {
		page = maxPageNumber
	}
	if !limitProvided {
		limit = defaultPageSize
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return Pagination{Page: int(page), Limit: int(limit)}
}

// Offset returns the row offset of the window.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns the number of pages for total rows, never less than one.
func (p Pagination) TotalPages(total int64) int64 {
	if total <= 0 || p.Limit <= 0 {
		return 1
	}
	limit := int64(p.Limit)
	return (total + limit - 1) / limit
}

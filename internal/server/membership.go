package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/quire/internal/docs"
	"github.com/gin-gonic/gin"
)

type joinRequestBody struct {
	Message *string `json:"message"`
}

type memberResponse struct {
	UserID   string `json:"user_id"`
	Role     int    `json:"role"`
	RoleName string `json:"role_name"`
	AddedAt  int64  `json:"added_at"`
}

type joinRequestResponse struct {
	RequestID string  `json:"request_id"`
	DocID     string  `json:"doc_id"`
	UserID    string  `json:"user_id"`
	Status    string  `json:"status"`
	Message   *string `json:"message"`
	CreatedAt int64   `json:"created_at"`
	DecidedAt *int64  `json:"decided_at"`
	DecidedBy *string `json:"decided_by"`
}

func (h *httpHandler) handleListMembers(c *gin.Context) {
	docID, _, ok := h.authorizeOwner(c)
	if !ok {
		return
	}

	members, err := h.docs.ListMembers(c.Request.Context(), docID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]memberResponse, 0, len(members))
	for _, member := range members {
		items = append(items, memberResponse{
			UserID:   member.UserID.String(),
			Role:     member.Role.Int(),
			RoleName: member.Role.String(),
			AddedAt:  member.AddedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) handleRemoveMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, err := docs.NewDocumentID(c.Param("doc_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	memberID, err := docs.NewUserID(c.Param("member_user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	removed, err := h.docs.RemoveMember(c.Request.Context(), docID, userID, memberID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *httpHandler) handleCreateJoinRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, err := docs.NewDocumentID(c.Param("doc_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var body joinRequestBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		respondInvalidRequest(c)
		return
	}
	var message *string
	if body.Message != nil {
		trimmed := strings.TrimSpace(*body.Message)
		if trimmed != "" {
			message = &trimmed
		}
	}

	outcome, err := h.docs.CreateOrUpdateRequest(c.Request.Context(), docID, userID, message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response := gin.H{"already_member": outcome.AlreadyMember, "request_id": nil}
	if !outcome.AlreadyMember {
		response["request_id"] = outcome.RequestID.String()
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleListJoinRequests(c *gin.Context) {
	docID, _, ok := h.authorizeOwner(c)
	if !ok {
		return
	}

	var statusFilter *docs.JoinRequestStatus
	if rawStatus, provided := c.GetQuery("status"); provided && strings.TrimSpace(rawStatus) != "" {
		status, err := docs.ParseJoinRequestStatus(rawStatus)
		if err != nil {
			h.respondError(c, err)
			return
		}
		statusFilter = &status
	}

	records, err := h.docs.ListJoinRequests(c.Request.Context(), docID, statusFilter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]joinRequestResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toJoinRequestResponse(record))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) handleApproveJoinRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	requestID, err := docs.NewJoinRequestID(c.Param("req_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.docs.Approve(c.Request.Context(), requestID, userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleDenyJoinRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	requestID, err := docs.NewJoinRequestID(c.Param("req_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	updated, err := h.docs.Deny(c.Request.Context(), requestID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func toJoinRequestResponse(record docs.JoinRequestRecord) joinRequestResponse {
	response := joinRequestResponse{
		RequestID: record.ID.String(),
		DocID:     record.DocID.String(),
		UserID:    record.UserID.String(),
		Status:    record.Status.String(),
		Message:   record.Message,
		CreatedAt: record.CreatedAt,
		DecidedAt: record.DecidedAt,
	}
	if record.DecidedBy != nil {
		decidedBy := record.DecidedBy.String()
		response.DecidedBy = &decidedBy
	}
	return response
}

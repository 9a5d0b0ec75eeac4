package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/quire/internal/database"
	"github.com/MarcoPoloResearchLab/quire/internal/docs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeInvalidUpdate  = "invalid_update"
	errorCodeInternal       = "internal_error"
	errorCodeStorage        = "storage_unavailable"
	retryAfterSeconds       = "1"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{target: docs.ErrInvalidTitle, status: http.StatusBadRequest, code: "invalid_title"},
	{target: docs.ErrInvalidPageCount, status: http.StatusBadRequest, code: "invalid_page_count"},
	{target: docs.ErrInvalidPageIndex, status: http.StatusBadRequest, code: "invalid_page_index"},
	{target: docs.ErrInvalidPageStyle, status: http.StatusBadRequest, code: "invalid_page_style"},
	{target: docs.ErrUpdateEmpty, status: http.StatusBadRequest, code: "update_empty"},
	{target: docs.ErrUpdateTooLarge, status: http.StatusBadRequest, code: "update_too_large"},
	{target: docs.ErrInvalidJoinRequestStatus, status: http.StatusBadRequest, code: "invalid_status"},
	{target: docs.ErrCannotRemoveOwner, status: http.StatusBadRequest, code: "cannot_remove_owner"},
	{target: docs.ErrInvalidUserID, status: http.StatusBadRequest, code: errorCodeInvalidRequest},
	{target: docs.ErrNotDocumentOwner, status: http.StatusForbidden, code: "not_doc_owner"},
	{target: docs.ErrNotDocumentEditor, status: http.StatusForbidden, code: "not_doc_editor"},
	{target: docs.ErrDocumentNotFound, status: http.StatusNotFound, code: "doc_not_found"},
	{target: docs.ErrInvalidDocumentID, status: http.StatusNotFound, code: "doc_not_found"},
	{target: docs.ErrPageNotFound, status: http.StatusNotFound, code: "page_not_found"},
	{target: docs.ErrJoinRequestNotFound, status: http.StatusNotFound, code: "join_request_not_found"},
	{target: docs.ErrInvalidJoinRequestID, status: http.StatusNotFound, code: "join_request_not_found"},
	{target: docs.ErrCapacityReached, status: http.StatusConflict, code: "doc_members_limit_reached"},
	{target: docs.ErrJoinRequestNotPending, status: http.StatusConflict, code: "join_request_not_pending"},
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			c.JSON(mapping.status, gin.H{"error": mapping.code})
			return
		}
	}

	if database.IsTransient(err) {
		h.logger.Warn("storage unavailable", zap.String("route", c.FullPath()), zap.Error(err))
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errorCodeStorage})
		return
	}

	var serviceErr *docs.ServiceError
	if errors.As(err, &serviceErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorCodeInternal, "code": serviceErr.Code()})
		return
	}

	h.logger.Error("unhandled request error", zap.String("route", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": errorCodeInternal})
}

func respondInvalidRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": errorCodeInvalidRequest})
}

package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/quire/internal/docs"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageCount = 1
	// upsertBodySlack covers the JSON envelope around the encoded update.
	upsertBodySlack  = 1024
)

var maxUpsertBodyBytes = int64(base64.StdEncoding.EncodedLen(docs.MaxUpdateBytes)) + upsertBodySlack

type createDocumentRequest struct {
	Title     string `json:"title"`
	PageCount *int64 `json:"page_count"`
}

type upsertPageRequest struct {
	Style     *int64 `json:"style"`
	UpdateB64 string `json:"update_b64"`
}

type documentSummaryResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	PageCount int    `json:"page_count"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type pageMetaResponse struct {
	PageIndex  int    `json:"page_index"`
	Style      int    `json:"style"`
	UpdatedAt  int64  `json:"updated_at"`
	UpdateSize int64  `json:"update_size"`
	UpdateHash string `json:"update_hash"`
}

type documentMetaResponse struct {
	documentSummaryResponse
	Pages []pageMetaResponse `json:"pages"`
}

type documentListResponse struct {
	Items      []documentSummaryResponse `json:"items"`
	Page       int                       `json:"page"`
	Limit      int                       `json:"limit"`
	TotalPages int64                     `json:"total_pages"`
	Total      int64                     `json:"total"`
}

type pageResponse struct {
	DocID     string `json:"doc_id"`
	PageIndex int    `json:"page_index"`
	Style     int    `json:"style"`
	UpdateB64 string `json:"update_b64"`
	UpdatedAt int64  `json:"updated_at"`
}

func (h *httpHandler) handleCreateDocument(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request createDocumentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c)
		return
	}
	title, err := docs.NewDocumentTitle(request.Title)
	if err != nil {
		h.respondError(c, err)
		return
	}
	rawPageCount := int64(defaultPageCount)
	if request.PageCount != nil {
		rawPageCount = *request.PageCount
	}
	pageCount, err := docs.NewPageCount(rawPageCount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	docID, err := h.docs.CreateDocument(c.Request.Context(), userID, title, pageCount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": docID.String()})
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page, err := strconv.ParseInt(c.Query("page"), 10, 64)
	if err != nil {
		page = 1
	}
	rawLimit, limitProvided := c.GetQuery("limit")
	limit, err := strconv.ParseInt(rawLimit, 10, 64)
	if err != nil {
		limitProvided = false
	}

	list, err := h.docs.ListForUser(c.Request.Context(), userID, docs.NewPagination(page, limit, limitProvided))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]documentSummaryResponse, 0, len(list.Items))
	for _, summary := range list.Items {
		items = append(items, toDocumentSummaryResponse(summary))
	}
	c.JSON(http.StatusOK, documentListResponse{
		Items:      items,
		Page:       list.Pagination.Page,
		Limit:      list.Pagination.Limit,
		TotalPages: list.TotalPages(),
		Total:      list.Total,
	})
}

func (h *httpHandler) handleGetMeta(c *gin.Context) {
	docID, ok := h.authorizeEditor(c)
	if !ok {
		return
	}

	meta, err := h.docs.GetMeta(c.Request.Context(), docID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	pages := make([]pageMetaResponse, 0, len(meta.Pages))
	for _, page := range meta.Pages {
		pages = append(pages, pageMetaResponse{
			PageIndex:  page.Index.Int(),
			Style:      page.Style.Int(),
			UpdatedAt:  page.UpdatedAt,
			UpdateSize: page.UpdateSize,
			UpdateHash: page.UpdateHash,
		})
	}
	c.JSON(http.StatusOK, documentMetaResponse{
		documentSummaryResponse: toDocumentSummaryResponse(meta.DocumentSummary),
		Pages:                   pages,
	})
}

func (h *httpHandler) handleOpenPage(c *gin.Context) {
	docID, ok := h.authorizeEditor(c)
	if !ok {
		return
	}
	index, err := pageIndexParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	payload, err := h.docs.OpenPage(c.Request.Context(), docID, index)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse{
		DocID:     payload.DocID.String(),
		PageIndex: payload.Index.Int(),
		Style:     payload.Style.Int(),
		UpdateB64: base64.StdEncoding.EncodeToString(payload.Update),
		UpdatedAt: payload.UpdatedAt,
	})
}

func (h *httpHandler) handleUpsertPage(c *gin.Context) {
	docID, ok := h.authorizeEditor(c)
	if !ok {
		return
	}
	index, err := pageIndexParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpsertBodyBytes)
	var request upsertPageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, docs.ErrUpdateTooLarge)
			return
		}
		respondInvalidRequest(c)
		return
	}
	rawStyle := int64(docs.PageStyleBody)
	if request.Style != nil {
		rawStyle = *request.Style
	}
	style, err := docs.NewPageStyle(rawStyle)
	if err != nil {
		h.respondError(c, err)
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(request.UpdateB64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorCodeInvalidUpdate})
		return
	}
	update, err := docs.NewUpdateBlob(decoded)
	if err != nil {
		h.respondError(c, err)
		return
	}

	write, err := h.docs.UpsertPage(c.Request.Context(), docID, index, style, update)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": write.RowsAffected, "updated_at": write.UpdatedAt})
}

// authorizeEditor resolves the document path parameter and requires edit access.
func (h *httpHandler) authorizeEditor(c *gin.Context) (docs.DocumentID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return "", false
	}
	docID, err := docs.NewDocumentID(c.Param("doc_id"))
	if err != nil {
		h.respondError(c, err)
		return "", false
	}
	isEditor, err := h.docs.IsEditor(c.Request.Context(), docID, userID)
	if err != nil {
		h.respondError(c, err)
		return "", false
	}
	if !isEditor {
		h.respondError(c, docs.ErrNotDocumentEditor)
		return "", false
	}
	return docID, true
}

// authorizeOwner resolves the document path parameter and requires ownership.
func (h *httpHandler) authorizeOwner(c *gin.Context) (docs.DocumentID, docs.UserID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return "", "", false
	}
	docID, err := docs.NewDocumentID(c.Param("doc_id"))
	if err != nil {
		h.respondError(c, err)
		return "", "", false
	}
	isOwner, err := h.docs.IsOwner(c.Request.Context(), docID, userID)
	if err != nil {
		h.respondError(c, err)
		return "", "", false
	}
	if !isOwner {
		h.respondError(c, docs.ErrNotDocumentOwner)
		return "", "", false
	}
	return docID, userID, true
}

func pageIndexParam(c *gin.Context) (docs.PageIndex, error) {
	raw, err := strconv.ParseInt(c.Param("page_index"), 10, 64)
	if err != nil {
		return 0, docs.ErrInvalidPageIndex
	}
	return docs.NewPageIndex(raw)
}

func toDocumentSummaryResponse(summary docs.DocumentSummary) documentSummaryResponse {
	return documentSummaryResponse{
		ID:        summary.ID.String(),
		OwnerID:   summary.OwnerID.String(),
		Title:     summary.Title,
		PageCount: summary.PageCount,
		CreatedAt: summary.CreatedAt,
		UpdatedAt: summary.UpdatedAt,
	}
}

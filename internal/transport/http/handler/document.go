package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/access"
	"knowledgehub/internal/app"
	"knowledgehub/internal/model"
	"knowledgehub/internal/transport/http/response"
)

type DocumentHandler struct {
	lifecycle *app.LifecycleService
}

func NewDocumentHandler(lifecycle *app.LifecycleService) *DocumentHandler {
	return &DocumentHandler{lifecycle: lifecycle}
}

type CreateDocumentRequest struct {
	Layer        string `json:"layer" binding:"required"`
	ScopeID      *uint  `json:"scope_id"`
	Title        string `json:"title" binding:"required,max=256"`
	Content      string `json:"content" binding:"required"`
	SourceType   string `json:"source_type" binding:"max=32"`
	QualityLevel int    `json:"quality_level"`
}

type RejectDocumentRequest struct {
	Reason string `json:"reason" binding:"required,max=512"`
}

type ReviseDocumentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		return
	}
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	doc, err := h.lifecycle.CreateDraft(c.Request.Context(), principal, app.CreateDraftInput{
		Layer:        model.Layer(req.Layer),
		ScopeID:      req.ScopeID,
		Title:        req.Title,
		Content:      req.Content,
		SourceType:   req.SourceType,
		QualityLevel: req.QualityLevel,
	})
	if err != nil {
		response.MapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		return
	}
	docs, err := h.lifecycle.List(c.Request.Context(), principal)
	if err != nil {
		response.MapError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	doc, err := h.lifecycle.Get(c.Request.Context(), principal, id)
	if err != nil {
		response.MapError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Submit(c *gin.Context) {
	h.transition(c, h.lifecycle.Submit)
}

func (h *DocumentHandler) Approve(c *gin.Context) {
	h.transition(c, h.lifecycle.Approve)
}

func (h *DocumentHandler) Archive(c *gin.Context) {
	h.transition(c, h.lifecycle.Archive)
}

func (h *DocumentHandler) Reject(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req RejectDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload: reason is required")
		return
	}
	doc, err := h.lifecycle.Reject(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		response.MapError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Revise(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req ReviseDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload: content is required")
		return
	}
	doc, err := h.lifecycle.Revise(c.Request.Context(), principal, id, req.Content)
	if err != nil {
		response.MapError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.lifecycle.Delete(c.Request.Context(), principal, id); err != nil {
		response.MapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_document_id": id})
}

type transitionFunc func(ctx context.Context, p access.Principal, documentID uint) (*model.Document, error)

func (h *DocumentHandler) transition(c *gin.Context, fn transitionFunc) {
	principal, ok := getPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	doc, err := fn(c.Request.Context(), principal, id)
	if err != nil {
		response.MapError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func parseIDParam(c *gin.Context) (uint, bool) {
	u, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || u == 0 {
		response.Error(c, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return uint(u), true
}

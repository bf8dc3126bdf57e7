package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/access"
	"knowledgehub/internal/app"
	"knowledgehub/internal/transport/http/middleware"
	"knowledgehub/internal/transport/http/response"
)

type QueryHandler struct {
	retrieval *app.RetrievalService
}

func NewQueryHandler(retrieval *app.RetrievalService) *QueryHandler {
	return &QueryHandler{retrieval: retrieval}
}

type QueryRequest struct {
	Query          string   `json:"query" binding:"required"`
	LayerContext   string   `json:"layer_context"`
	MatchThreshold *float64 `json:"match_threshold"`
	MatchCount     *int     `json:"match_count"`
	Preview        bool     `json:"preview"`
	Persona        string   `json:"persona"`
}

type QueryResponse struct {
	Answer           string         `json:"answer"`
	Sources          []app.Citation `json:"sources"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

// Ask runs one pass of the retrieval pipeline for the authenticated
// principal.
func (h *QueryHandler) Ask(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload: query is required")
		return
	}

	input := app.AskInput{
		Principal:    principal,
		Query:        req.Query,
		LayerContext: req.LayerContext,
		Preview:      req.Preview,
		Persona:      req.Persona,
	}
	if req.MatchThreshold != nil {
		input.Threshold = *req.MatchThreshold
		input.ThresholdSet = true
	}
	if req.MatchCount != nil {
		input.Count = *req.MatchCount
		input.CountSet = true
	}

	started := time.Now()
	result, err := h.retrieval.Ask(c.Request.Context(), input)
	if err != nil {
		response.MapError(c, err)
		return
	}

	c.JSON(http.StatusOK, QueryResponse{
		Answer:           result.Answer,
		Sources:          result.Sources,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
	})
}

func getPrincipal(c *gin.Context) (access.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return access.Principal{}, false
	}
	return principal, true
}

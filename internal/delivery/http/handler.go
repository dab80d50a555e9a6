package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/usecase"
)

// ComparisonUsecase matches scanned items and compares their prices
type ComparisonUsecase interface {
	CompareItem(ctx context.Context, query domain.ComparisonQuery, excludeSupplierID string, cfg usecase.ComparisonConfig) (*domain.ComparisonResult, error)
	CompareBatch(ctx context.Context, items []domain.ComparisonQuery, excludeSupplierID string, cfg usecase.ComparisonConfig) ([]domain.BatchResult, error)
	Score(query, candidate string) domain.SimilarityResult
	Config() usecase.ComparisonConfig
}

// ExtractionUsecase evaluates and runs price list extractions
type ExtractionUsecase interface {
	Evaluate(report domain.ExtractionReport, cfg usecase.ExtractionConfig) (domain.ExtractionDecision, error)
	ExtractPriceList(ctx context.Context, r io.Reader, filename, supplierName string) (*usecase.ExtractionResult, error)
	Resolve(ruleBased, ai *domain.Extraction) (*usecase.ExtractionResult, error)
	Config() usecase.ExtractionConfig
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	comparison     ComparisonUsecase
	extraction     ExtractionUsecase
	catalog        domain.CatalogWriter
	logger         zerolog.Logger
	maxUploadBytes int64
}

// NewHandler creates a new HTTP handler. catalog may be nil, in which case
// the catalog write endpoints answer 503.
func NewHandler(
	comparison ComparisonUsecase,
	extraction ExtractionUsecase,
	catalog domain.CatalogWriter,
	logger zerolog.Logger,
	maxUploadMB int64,
) *Handler {
	return &Handler{
		comparison:     comparison,
		extraction:     extraction,
		catalog:        catalog,
		logger:         logger,
		maxUploadBytes: maxUploadMB << 20,
	}
}

// CompareRequest is the body of POST /comparisons
type CompareRequest struct {
	Item              domain.ComparisonQuery      `json:"item" binding:"required"`
	ExcludeSupplierID string                      `json:"excludeSupplierId"`
	Overrides         usecase.ComparisonOverrides `json:"overrides"`
}

// BatchCompareRequest is the body of POST /comparisons/batch.
// Items are not validated one by one; an unusable item yields an unmatched result.
type BatchCompareRequest struct {
	Items             []domain.ComparisonQuery    `json:"items" binding:"required,min=1,max=200"`
	ExcludeSupplierID string                      `json:"excludeSupplierId"`
	Overrides         usecase.ComparisonOverrides `json:"overrides"`
}

// EvaluateRequest is the body of POST /extractions/evaluate
type EvaluateRequest struct {
	Report     domain.ExtractionReport `json:"report"`
	Thresholds *ExtractionThresholds   `json:"thresholds,omitempty"`
}

// ExtractionThresholds are optional per-call replacements for the completeness thresholds
type ExtractionThresholds struct {
	MinProductsForSuccess  *int     `json:"minProductsForSuccess,omitempty"`
	CompletenessThreshold  *float64 `json:"completenessThreshold,omitempty"`
	MaxProductsForFallback *int     `json:"maxProductsForFallback,omitempty"`
}

func (t *ExtractionThresholds) apply(cfg usecase.ExtractionConfig) usecase.ExtractionConfig {
	if t == nil {
		return cfg
	}
	if t.MinProductsForSuccess != nil {
		cfg.MinProductsForSuccess = *t.MinProductsForSuccess
	}
	if t.CompletenessThreshold != nil {
		cfg.CompletenessThreshold = *t.CompletenessThreshold
	}
	if t.MaxProductsForFallback != nil {
		cfg.MaxProductsForFallback = *t.MaxProductsForFallback
	}
	return cfg
}

// ResolveRequest is the body of POST /extractions/resolve
type ResolveRequest struct {
	RuleBased *domain.Extraction `json:"ruleBased" binding:"required"`
	AI        *domain.Extraction `json:"ai"`
}

// SimilarityRequest is the body of POST /similarity
type SimilarityRequest struct {
	Query     string `json:"query" binding:"required"`
	Candidate string `json:"candidate" binding:"required"`
}

// StandardizedNameRequest is the body of PUT /products/:id/standardized-name
type StandardizedNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricelens-backend",
		"version": "1.0.0",
	})
}

// CompareItem handles POST /api/v1/comparisons
func (h *Handler) CompareItem(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cfg, err := req.Overrides.Apply(h.comparison.Config())
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.comparison.CompareItem(c.Request.Context(), req.Item, req.ExcludeSupplierID, cfg)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CompareBatch handles POST /api/v1/comparisons/batch
func (h *Handler) CompareBatch(c *gin.Context) {
	var req BatchCompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cfg, err := req.Overrides.Apply(h.comparison.Config())
	if err != nil {
		badRequest(c, err)
		return
	}

	results, err := h.comparison.CompareBatch(c.Request.Context(), req.Items, req.ExcludeSupplierID, cfg)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// EvaluateExtraction handles POST /api/v1/extractions/evaluate
func (h *Handler) EvaluateExtraction(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	decision, err := h.extraction.Evaluate(req.Report, req.Thresholds.apply(h.extraction.Config()))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// ExtractSpreadsheet handles POST /api/v1/extractions/spreadsheet (multipart "file",
// optional "supplier" to record an accepted list)
func (h *Handler) ExtractSpreadsheet(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes)})
			return
		}
		badRequest(c, fmt.Errorf("missing file: %w", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	supplier := strings.TrimSpace(c.PostForm("supplier"))
	result, err := h.extraction.ExtractPriceList(c.Request.Context(), f, fh.Filename, supplier)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ResolveExtraction handles POST /api/v1/extractions/resolve
func (h *Handler) ResolveExtraction(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.extraction.Resolve(req.RuleBased, req.AI)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Similarity handles POST /api/v1/similarity
func (h *Handler) Similarity(c *gin.Context) {
	var req SimilarityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, h.comparison.Score(req.Query, req.Candidate))
}

// RecordPrice handles POST /api/v1/prices
func (h *Handler) RecordPrice(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog storage not configured"})
		return
	}

	var req domain.PriceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	price, err := h.catalog.RecordPrice(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, price)
}

// UpdateStandardizedName handles PUT /api/v1/products/:id/standardized-name
func (h *Handler) UpdateStandardizedName(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog storage not configured"})
		return
	}

	var req StandardizedNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.catalog.UpdateStandardizedName(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("rid", RequestID(c)).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoCandidate):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDataInconsistency):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStandardizerFailure), errors.Is(err, domain.ErrPersistenceFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

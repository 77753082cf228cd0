package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/petfooddb/catalog/internal/domain"
	"github.com/petfooddb/catalog/internal/usecase"
)

// BatchRunner runs one resolution batch. Satisfied by
// usecase.ResolutionService; narrowed to an interface so handler tests
// can stub it.
type BatchRunner interface {
	Run(ctx context.Context, opts usecase.BatchOptions) (*usecase.BatchReport, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store  domain.CatalogStore
	runner BatchRunner
}

// NewHandler creates a new HTTP handler
func NewHandler(store domain.CatalogStore, runner BatchRunner) *Handler {
	return &Handler{store: store, runner: runner}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "petfooddb-catalog",
		"version": "1.0.0",
	})
}

// ListProducts returns a page of canonical products
func (h *Handler) ListProducts(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	if limit < 1 || limit > 500 || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-500 and offset non-negative"})
		return
	}

	products, err := h.store.ListProducts(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns one canonical product with its archived variants
func (h *Handler) GetProduct(c *gin.Context) {
	key := c.Param("key")

	product, err := h.store.GetProduct(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load product"})
		return
	}

	variants, err := h.store.ListVariants(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load variants"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product":  product,
		"variants": variants,
	})
}

// ListReview returns the manual review queue
func (h *Handler) ListReview(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	if limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-500"})
		return
	}

	items, err := h.store.ListReview(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list review queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// GetAudit returns the audit trail of one batch
func (h *Handler) GetAudit(c *gin.Context) {
	batchID := c.Param("batchId")

	entries, err := h.store.ListAudit(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batchId": batchID,
		"entries": entries,
	})
}

// dryRunRequest is the body of a dry-run trigger
type dryRunRequest struct {
	BrandFilter string `json:"brandFilter"`
}

// TriggerDryRun runs a resolution batch in dry-run mode and returns
// the diff report. Execution is deliberately not exposed here;
// destructive applies go through the batch CLI.
func (h *Handler) TriggerDryRun(c *gin.Context) {
	var req dryRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	report, err := h.runner.Run(c.Request.Context(), usecase.BatchOptions{
		BrandFilter: req.BrandFilter,
		Execute:     false,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch run failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/sherlock-center/internal/domain"
	"github.com/jonesrussell/sherlock-center/internal/logger"
	"github.com/jonesrussell/sherlock-center/internal/middleware"
	"github.com/jonesrussell/sherlock-center/internal/repository"
	"github.com/jonesrussell/sherlock-center/internal/scanner"
)

// List pagination bounds.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ScanHandler handles scan admission and status queries.
type ScanHandler struct {
	scans *scanner.Service
	log   logger.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(scans *scanner.Service, log logger.Logger) *ScanHandler {
	return &ScanHandler{scans: scans, log: log}
}

// Create handles POST /scans.
func (h *ScanHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req domain.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.ScanType == "" {
		req.ScanType = domain.ScanTypeQuick
	}
	if !req.ScanType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown scan type"})
		return
	}

	scan, err := h.scans.Admit(c.Request.Context(), userID, req.TargetURL, req.ScanType)
	if err != nil {
		switch {
		case errors.Is(err, scanner.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "scan rate limit exceeded, try again later"})
		case errors.Is(err, scanner.ErrBusy):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner at capacity, try again later"})
		default:
			h.log.Error("Failed to admit scan",
				logger.Int64("user_id", userID),
				logger.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start scan"})
		}
		return
	}

	c.JSON(http.StatusOK, domain.ScanResponse{
		ScanID:  scan.ID,
		Status:  string(scan.Status),
		Message: "Scan started",
	})
}

// Get handles GET /scans/:id.
func (h *ScanHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	scanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan id"})
		return
	}

	scan, progress, count, err := h.scans.GetScan(c.Request.Context(), scanID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
			return
		}
		h.log.Error("Failed to load scan",
			logger.String("scan_id", scanID.String()),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load scan"})
		return
	}

	c.JSON(http.StatusOK, statusResponse(scan, progress, count))
}

// List handles GET /scans.
func (h *ScanHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	limit := intQuery(c, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	overviews, err := h.scans.ListScans(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error("Failed to list scans",
			logger.Int64("user_id", userID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list scans"})
		return
	}

	responses := make([]domain.ScanStatusResponse, 0, len(overviews))
	for _, o := range overviews {
		responses = append(responses, statusResponse(o.Scan, o.Progress, o.Findings))
	}

	c.JSON(http.StatusOK, gin.H{"scans": responses})
}

// Results handles GET /scans/:id/results.
func (h *ScanHandler) Results(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	scanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan id"})
		return
	}

	results, err := h.scans.ListResults(c.Request.Context(), scanID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
			return
		}
		h.log.Error("Failed to list scan results",
			logger.String("scan_id", scanID.String()),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list results"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func statusResponse(scan domain.Scan, progress float64, count int) domain.ScanStatusResponse {
	return domain.ScanStatusResponse{
		ScanID:        scan.ID,
		Status:        scan.Status,
		Progress:      progress,
		SecurityScore: scan.SecurityScore,
		FindingsCount: count,
		StartedAt:     scan.StartedAt,
		CompletedAt:   scan.CompletedAt,
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gtmquest/directory-service/internal/middleware"
	"github.com/gtmquest/directory-service/internal/model"
	"github.com/gtmquest/directory-service/internal/service"
	"github.com/gtmquest/directory-service/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DirectoryService is the subset of service.DirectoryService the handler uses
type DirectoryService interface {
	CategorySummary(ctx context.Context, q service.SummaryQuery) (*service.SummaryResult, error)
	LocationSummary(ctx context.Context, q service.SummaryQuery) (*service.SummaryResult, error)
	Summarize(entries []model.DirectoryEntry, fallback float64, topTagLimit int) (model.DirectorySummary, error)
	ListAgencies(ctx context.Context, category, location string, page, limit int) ([]model.AgencyResponse, int, error)
	GetAgency(ctx context.Context, slug string) (*model.AgencyResponse, error)
	ServiceAreas(ctx context.Context) ([]string, error)
}

// DirectoryHandler handles directory-related HTTP requests
type DirectoryHandler struct {
	directoryService DirectoryService
	logger           *zap.Logger
}

// NewDirectoryHandler creates a new directory handler
func NewDirectoryHandler(directoryService DirectoryService, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		directoryService: directoryService,
		logger:           logger,
	}
}

// GetCategorySummary handles summarizing agencies in a category
// GET /api/v1/directory/summary?category=&location=&limit=&counts=
func (h *DirectoryHandler) GetCategorySummary(c *gin.Context) {
	result, err := h.directoryService.CategorySummary(c.Request.Context(), service.SummaryQuery{
		Category:    c.Query("category"),
		Location:    c.Query("location"),
		TopTagLimit: utils.ParseTopTagLimit(c),
		WithCounts:  wantCounts(c),
	})
	if err != nil {
		h.sendError(c, err, "Failed to build category summary")
		return
	}

	sendSummary(c, result)
}

// GetLocationSummary handles summarizing agencies serving a location
// GET /api/v1/locations/{location}/summary?limit=&counts=
func (h *DirectoryHandler) GetLocationSummary(c *gin.Context) {
	result, err := h.directoryService.LocationSummary(c.Request.Context(), service.SummaryQuery{
		Location:    c.Param("location"),
		TopTagLimit: utils.ParseTopTagLimit(c),
		WithCounts:  wantCounts(c),
	})
	if err != nil {
		h.sendError(c, err, "Failed to build location summary")
		return
	}

	sendSummary(c, result)
}

// summarizeRequest is the body accepted by CreateSummary
type summarizeRequest struct {
	Entries         []model.DirectoryEntry `json:"entries" binding:"dive"`
	FallbackAverage *float64               `json:"fallback_average" binding:"required,min=0"`
	TopTagLimit     int                    `json:"top_tag_limit" binding:"min=0,max=50"`
}

// CreateSummary handles summarizing caller-supplied entries
// POST /api/v1/summaries
func (h *DirectoryHandler) CreateSummary(c *gin.Context) {
	var request summarizeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.directoryService.Summarize(request.Entries, *request.FallbackAverage, request.TopTagLimit)
	if err != nil {
		h.sendError(c, err, "Failed to build summary")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// ListAgencies handles listing agencies by category and/or location
// GET /api/v1/agencies?category=&location=&page=&limit=
func (h *DirectoryHandler) ListAgencies(c *gin.Context) {
	params := utils.ParsePaginationParams(c, 20, 100)

	agencies, total, err := h.directoryService.ListAgencies(
		c.Request.Context(),
		c.Query("category"),
		c.Query("location"),
		params.Page,
		params.Limit,
	)
	if err != nil {
		h.sendError(c, err, "Failed to fetch agencies")
		return
	}

	utils.SendPaginatedResponse(c, http.StatusOK, agencies, total, params.Page, params.Limit)
}

// GetAgency handles retrieving a single agency
// GET /api/v1/agencies/{slug}
func (h *DirectoryHandler) GetAgency(c *gin.Context) {
	agency, err := h.directoryService.GetAgency(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.sendError(c, err, "Failed to fetch agency")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": agency})
}

// GetServiceAreas handles listing every served location
// GET /api/v1/locations
func (h *DirectoryHandler) GetServiceAreas(c *gin.Context) {
	areas, err := h.directoryService.ServiceAreas(c.Request.Context())
	if err != nil {
		h.sendError(c, err, "Failed to fetch locations")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": areas})
}

// sendError maps service errors onto HTTP status codes
func (h *DirectoryHandler) sendError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, service.ErrMissingFilter), errors.Is(err, service.ErrTopTagLimit):
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAgencyNotFound):
		utils.SendErrorResponse(c, http.StatusNotFound, err.Error())
	default:
		h.logger.Error(message, zap.Error(err), zap.String("path", c.Request.URL.Path))
		utils.SendErrorResponse(c, http.StatusInternalServerError, message)
	}
}

// sendSummary writes a summary result, keeping degraded results out of the response cache
func sendSummary(c *gin.Context, result *service.SummaryResult) {
	if result.Degraded {
		middleware.SkipCache(c)
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func wantCounts(c *gin.Context) bool {
	counts, _ := strconv.ParseBool(c.Query("counts"))
	return counts
}

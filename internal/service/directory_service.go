package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gtmquest/directory-service/internal/config"
	"github.com/gtmquest/directory-service/internal/model"
	"github.com/gtmquest/directory-service/internal/stats"
	"github.com/gtmquest/directory-service/internal/utils"

	"go.uber.org/zap"
)

var (
	// ErrMissingFilter is returned when neither category nor location is given
	ErrMissingFilter = errors.New("category or location is required")
	// ErrAgencyNotFound is returned when no published agency matches a slug
	ErrAgencyNotFound = errors.New("agency not found")
	// ErrTopTagLimit is returned when a requested tag limit exceeds the configured maximum
	ErrTopTagLimit = errors.New("top tag limit exceeds maximum")
)

// AgencyLookup supplies published agencies; implemented by repository.AgencyRepository
type AgencyLookup interface {
	GetAgenciesForLocation(ctx context.Context, location string) ([]model.Agency, error)
	GetAgenciesByCategory(ctx context.Context, category, location string) ([]model.Agency, error)
	GetAllServiceAreas(ctx context.Context) ([]string, error)
	GetAgencyBySlug(ctx context.Context, slug string) (*model.Agency, error)
}

// SummaryResult is a summary together with how it was produced
type SummaryResult struct {
	Category string                 `json:"category,omitempty"`
	Location string                 `json:"location,omitempty"`
	Summary  model.DirectorySummary `json:"summary"`
	// TagCounts is only filled when requested
	TagCounts []stats.TagCount `json:"tag_counts,omitempty"`
	// Degraded is set when the lookup failed and the fallback summary was used
	Degraded bool `json:"degraded"`
}

// SummaryQuery selects which agencies to summarize
type SummaryQuery struct {
	Category    string
	Location    string
	TopTagLimit int
	WithCounts  bool
}

// DirectoryService builds directory summaries and listings
type DirectoryService struct {
	lookup AgencyLookup
	cfg    config.DirectoryConfig
	logger *zap.Logger
}

// NewDirectoryService creates a new directory service
func NewDirectoryService(lookup AgencyLookup, cfg config.DirectoryConfig, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{
		lookup: lookup,
		cfg:    cfg,
		logger: logger,
	}
}

// CategorySummary summarizes agencies in a category, optionally within a location.
// Lookup failures produce the fallback summary instead of an error.
func (s *DirectoryService) CategorySummary(ctx context.Context, q SummaryQuery) (*SummaryResult, error) {
	q.Category = strings.TrimSpace(q.Category)
	q.Location = strings.TrimSpace(q.Location)
	if q.Category == "" {
		return nil, ErrMissingFilter
	}
	limit, err := s.topTagLimit(q.TopTagLimit)
	if err != nil {
		return nil, err
	}
	q.TopTagLimit = limit

	agencies, err := s.lookup.GetAgenciesByCategory(ctx, q.Category, q.Location)
	return s.summarize(q, agencies, err, s.cfg.FallbackFor(q.Category, q.Location)), nil
}

// LocationSummary summarizes the GTM agencies serving a location.
// Lookup failures produce the fallback summary instead of an error.
func (s *DirectoryService) LocationSummary(ctx context.Context, q SummaryQuery) (*SummaryResult, error) {
	q.Category = ""
	q.Location = strings.TrimSpace(q.Location)
	if q.Location == "" {
		return nil, ErrMissingFilter
	}
	limit, err := s.topTagLimit(q.TopTagLimit)
	if err != nil {
		return nil, err
	}
	q.TopTagLimit = limit

	agencies, err := s.lookup.GetAgenciesForLocation(ctx, q.Location)
	return s.summarize(q, agencies, err, s.cfg.LocationFallbackAverage), nil
}

func (s *DirectoryService) summarize(q SummaryQuery, agencies []model.Agency, lookupErr error, fallback float64) *SummaryResult {
	result := &SummaryResult{
		Category: q.Category,
		Location: q.Location,
	}

	if lookupErr != nil {
		s.logger.Error("Directory lookup failed, using fallback summary",
			zap.Error(lookupErr),
			zap.String("category", q.Category),
			zap.String("location", q.Location))
		agencies = nil
		result.Degraded = true
	}

	entries := model.ToDirectoryEntries(agencies)
	opts := stats.NewOptions(fallback).WithTopTagLimit(q.TopTagLimit)

	result.Summary = stats.Summarize(entries, opts)
	if q.WithCounts {
		result.TagCounts = stats.TagCounts(entries)
	}

	s.logger.Debug("Computed directory summary",
		zap.String("category", q.Category),
		zap.String("location", q.Location),
		zap.Int("total", result.Summary.TotalCount))

	return result
}

// Summarize runs the aggregator over caller-supplied entries
func (s *DirectoryService) Summarize(entries []model.DirectoryEntry, fallback float64, topTagLimit int) (model.DirectorySummary, error) {
	limit, err := s.topTagLimit(topTagLimit)
	if err != nil {
		return model.DirectorySummary{}, err
	}
	return stats.Summarize(entries, stats.NewOptions(fallback).WithTopTagLimit(limit)), nil
}

// topTagLimit applies the configured default to a requested limit and rejects
// limits above the configured maximum
func (s *DirectoryService) topTagLimit(requested int) (int, error) {
	if requested < 1 {
		return s.cfg.TopTagLimit, nil
	}
	if requested > s.cfg.MaxTopTagLimit {
		return 0, fmt.Errorf("%w of %d", ErrTopTagLimit, s.cfg.MaxTopTagLimit)
	}
	return requested, nil
}

// ListAgencies returns one page of agencies matching category and/or location
func (s *DirectoryService) ListAgencies(ctx context.Context, category, location string, page, limit int) ([]model.AgencyResponse, int, error) {
	category = strings.TrimSpace(category)
	location = strings.TrimSpace(location)

	// Validate pagination
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var agencies []model.Agency
	var err error
	switch {
	case category != "":
		agencies, err = s.lookup.GetAgenciesByCategory(ctx, category, location)
	case location != "":
		agencies, err = s.lookup.GetAgenciesForLocation(ctx, location)
	default:
		return nil, 0, ErrMissingFilter
	}
	if err != nil {
		return nil, 0, err
	}

	total := len(agencies)
	start, end := utils.PageBounds(total, page, limit)

	items := make([]model.AgencyResponse, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, agencies[i].ToResponse())
	}

	return items, total, nil
}

// GetAgency returns a single agency by slug
func (s *DirectoryService) GetAgency(ctx context.Context, slug string) (*model.AgencyResponse, error) {
	agency, err := s.lookup.GetAgencyBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, err
	}
	if agency == nil {
		return nil, ErrAgencyNotFound
	}

	resp := agency.ToResponse()
	return &resp, nil
}

// ServiceAreas returns every location served by at least one agency
func (s *DirectoryService) ServiceAreas(ctx context.Context) ([]string, error) {
	return s.lookup.GetAllServiceAreas(ctx)
}

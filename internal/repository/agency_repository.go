package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gtmquest/directory-service/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const agencyColumns = `
	id, slug, name, description, headquarters, logo_url, website,
	global_rank, employee_count, founded_year, pricing_model, min_budget,
	specializations, service_areas, category_tags
`

// AgencyRepository handles read access to published agencies in the companies table
type AgencyRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewAgencyRepository creates a new agency repository
func NewAgencyRepository(db *sqlx.DB, logger *zap.Logger) *AgencyRepository {
	return &AgencyRepository{
		db:     db,
		logger: logger,
	}
}

// GetAgenciesForLocation retrieves GTM agencies whose service areas include location
func (r *AgencyRepository) GetAgenciesForLocation(ctx context.Context, location string) ([]model.Agency, error) {
	query := `
		SELECT ` + agencyColumns + `
		FROM companies
		WHERE app = 'gtm'
			AND status = 'published'
			AND $1 = ANY(service_areas)
		ORDER BY global_rank ASC NULLS LAST, name ASC
	`

	var agencies []model.Agency
	if err := r.db.SelectContext(ctx, &agencies, query, location); err != nil {
		r.logger.Error("Failed to get agencies for location", zap.Error(err), zap.String("location", location))
		return nil, fmt.Errorf("get agencies for location %q: %w", location, err)
	}

	return agencies, nil
}

// GetAgenciesByCategory retrieves agencies tagged with category, optionally
// narrowed to a location. An empty location means no location filter.
func (r *AgencyRepository) GetAgenciesByCategory(ctx context.Context, category, location string) ([]model.Agency, error) {
	query := `
		SELECT ` + agencyColumns + `
		FROM companies
		WHERE status = 'published'
			AND $1 = ANY(category_tags)
			AND ($2 = '' OR $2 = ANY(service_areas))
		ORDER BY global_rank ASC NULLS LAST, name ASC
	`

	var agencies []model.Agency
	if err := r.db.SelectContext(ctx, &agencies, query, category, location); err != nil {
		r.logger.Error("Failed to get agencies for category",
			zap.Error(err),
			zap.String("category", category),
			zap.String("location", location))
		return nil, fmt.Errorf("get agencies for category %q: %w", category, err)
	}

	return agencies, nil
}

// GetAllServiceAreas retrieves every distinct location served by a GTM agency
func (r *AgencyRepository) GetAllServiceAreas(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT unnest(service_areas) AS area
		FROM companies
		WHERE app = 'gtm'
			AND status = 'published'
			AND service_areas IS NOT NULL
		ORDER BY area ASC
	`

	areas := []string{}
	if err := r.db.SelectContext(ctx, &areas, query); err != nil {
		r.logger.Error("Failed to get service areas", zap.Error(err))
		return nil, fmt.Errorf("get service areas: %w", err)
	}

	return areas, nil
}

// GetAgencyBySlug retrieves a single published agency, or nil if none matches
func (r *AgencyRepository) GetAgencyBySlug(ctx context.Context, slug string) (*model.Agency, error) {
	query := `
		SELECT ` + agencyColumns + `
		FROM companies
		WHERE slug = $1
			AND status = 'published'
	`

	var agency model.Agency
	err := r.db.GetContext(ctx, &agency, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get agency", zap.Error(err), zap.String("slug", slug))
		return nil, fmt.Errorf("get agency %q: %w", slug, err)
	}

	return &agency, nil
}

// Ping checks database connectivity for health reporting
func (r *AgencyRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

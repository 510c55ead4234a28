package model

import (
	"database/sql"
	"strconv"

	"github.com/lib/pq"
)

// Agency represents a published row of the companies table
type Agency struct {
	ID              int             `json:"id" db:"id"`
	Slug            string          `json:"slug" db:"slug"`
	Name            string          `json:"name" db:"name"`
	Description     sql.NullString  `json:"-" db:"description"`
	Headquarters    sql.NullString  `json:"-" db:"headquarters"`
	LogoURL         sql.NullString  `json:"-" db:"logo_url"`
	Website         sql.NullString  `json:"-" db:"website"`
	GlobalRank      sql.NullInt64   `json:"-" db:"global_rank"`
	EmployeeCount   sql.NullInt64   `json:"-" db:"employee_count"`
	FoundedYear     sql.NullInt64   `json:"-" db:"founded_year"`
	PricingModel    sql.NullString  `json:"-" db:"pricing_model"`
	MinBudget       sql.NullFloat64 `json:"-" db:"min_budget"`
	Specializations pq.StringArray  `json:"specializations" db:"specializations"`
	ServiceAreas    pq.StringArray  `json:"service_areas" db:"service_areas"`
	CategoryTags    pq.StringArray  `json:"category_tags" db:"category_tags"`
}

// AgencyResponse is the JSON shape of an agency with nullable columns flattened
type AgencyResponse struct {
	ID              int      `json:"id"`
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Headquarters    string   `json:"headquarters,omitempty"`
	LogoURL         string   `json:"logo_url,omitempty"`
	Website         string   `json:"website,omitempty"`
	GlobalRank      *int64   `json:"global_rank,omitempty"`
	EmployeeCount   *int64   `json:"employee_count,omitempty"`
	FoundedYear     *int64   `json:"founded_year,omitempty"`
	PricingModel    string   `json:"pricing_model,omitempty"`
	MinBudget       *float64 `json:"min_budget,omitempty"`
	Specializations []string `json:"specializations"`
	ServiceAreas    []string `json:"service_areas"`
	CategoryTags    []string `json:"category_tags"`
}

// ToDirectoryEntry maps the row into the shape the statistics engine reads.
// min_budget becomes MinimumBudget and specializations become Tags.
func (a *Agency) ToDirectoryEntry() DirectoryEntry {
	entry := DirectoryEntry{
		ID:   strconv.Itoa(a.ID),
		Tags: []string(a.Specializations),
	}
	if a.MinBudget.Valid {
		budget := a.MinBudget.Float64
		entry.MinimumBudget = &budget
	}
	return entry
}

// ToResponse flattens nullable columns for JSON output
func (a *Agency) ToResponse() AgencyResponse {
	resp := AgencyResponse{
		ID:              a.ID,
		Slug:            a.Slug,
		Name:            a.Name,
		Description:     a.Description.String,
		Headquarters:    a.Headquarters.String,
		LogoURL:         a.LogoURL.String,
		Website:         a.Website.String,
		PricingModel:    a.PricingModel.String,
		Specializations: nonNil(a.Specializations),
		ServiceAreas:    nonNil(a.ServiceAreas),
		CategoryTags:    nonNil(a.CategoryTags),
	}
	resp.GlobalRank = nullInt(a.GlobalRank)
	resp.EmployeeCount = nullInt(a.EmployeeCount)
	resp.FoundedYear = nullInt(a.FoundedYear)
	if a.MinBudget.Valid {
		budget := a.MinBudget.Float64
		resp.MinBudget = &budget
	}
	return resp
}

// ToDirectoryEntries maps a slice of agencies in order
func ToDirectoryEntries(agencies []Agency) []DirectoryEntry {
	entries := make([]DirectoryEntry, len(agencies))
	for i := range agencies {
		entries[i] = agencies[i].ToDirectoryEntry()
	}
	return entries
}

func nonNil(values pq.StringArray) []string {
	if values == nil {
		return []string{}
	}
	return []string(values)
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gtmquest/directory-service/internal/config"
	"github.com/gtmquest/directory-service/internal/middleware"
	"github.com/gtmquest/directory-service/internal/model"
	"github.com/gtmquest/directory-service/internal/service"
)

type stubLookup struct {
	agencies []model.Agency
	areas    []string
	err      error
}

func (s *stubLookup) GetAgenciesForLocation(context.Context, string) ([]model.Agency, error) {
	return s.agencies, s.err
}

func (s *stubLookup) GetAgenciesByCategory(context.Context, string, string) ([]model.Agency, error) {
	return s.agencies, s.err
}

func (s *stubLookup) GetAllServiceAreas(context.Context) ([]string, error) {
	return s.areas, s.err
}

func (s *stubLookup) GetAgencyBySlug(_ context.Context, slug string) (*model.Agency, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.agencies {
		if s.agencies[i].Slug == slug {
			return &s.agencies[i], nil
		}
	}
	return nil, nil
}

func newTestRouter(lookup service.AgencyLookup, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := service.NewDirectoryService(lookup, config.DirectoryConfig{
		DefaultFallbackAverage:  12000,
		LocationFallbackAverage: 10000,
		TopTagLimit:             5,
		MaxTopTagLimit:          20,
	}, zap.NewNop())
	h := NewDirectoryHandler(svc, zap.NewNop())

	router := gin.New()
	router.Use(handlers...)
	v1 := router.Group("/api/v1")
	v1.GET("/directory/summary", h.GetCategorySummary)
	v1.GET("/locations", h.GetServiceAreas)
	v1.GET("/locations/:location/summary", h.GetLocationSummary)
	v1.GET("/agencies", h.ListAgencies)
	v1.GET("/agencies/:slug", h.GetAgency)
	v1.POST("/summaries", h.CreateSummary)
	return router
}

func sampleAgencies() []model.Agency {
	return []model.Agency{
		{
			ID: 1, Slug: "northstar", Name: "Northstar",
			MinBudget:       sql.NullFloat64{Float64: 10000, Valid: true},
			Specializations: pq.StringArray{"ABM", "SaaS"},
		},
		{
			ID: 2, Slug: "launchpad", Name: "Launchpad",
			MinBudget:       sql.NullFloat64{Float64: 20000, Valid: true},
			Specializations: pq.StringArray{"SaaS"},
		},
		{ID: 3, Slug: "quiet", Name: "Quiet"},
	}
}

func serve(t *testing.T, router *gin.Engine, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestGetCategorySummary(t *testing.T) {
	router := newTestRouter(&stubLookup{agencies: sampleAgencies()})

	rec, body := serve(t, router, http.MethodGet, "/api/v1/directory/summary?category=GTM+Agency&location=London&counts=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "GTM Agency", data["category"])
	assert.Equal(t, false, data["degraded"])

	summary := data["summary"].(map[string]interface{})
	assert.Equal(t, 3.0, summary["total_count"])
	assert.Equal(t, 15000.0, summary["average_minimum_budget"])
	assert.Equal(t, []interface{}{"SaaS", "ABM"}, summary["top_tags"])
	assert.Len(t, data["tag_counts"], 2)
}

func TestGetCategorySummaryRequiresCategory(t *testing.T) {
	router := newTestRouter(&stubLookup{})

	rec, body := serve(t, router, http.MethodGet, "/api/v1/directory/summary", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrMissingFilter.Error(), body["error"])
}

func TestGetLocationSummaryDegraded(t *testing.T) {
	router := newTestRouter(&stubLookup{err: errors.New("db down")})

	rec, body := serve(t, router, http.MethodGet, "/api/v1/locations/UK/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["degraded"])
	summary := data["summary"].(map[string]interface{})
	assert.Equal(t, 0.0, summary["total_count"])
	assert.Equal(t, 10000.0, summary["average_minimum_budget"])
	assert.Equal(t, []interface{}{}, summary["top_tags"])
}

// setRecorder records which redis commands reach the client, failing all of them
// before any network access
type setRecorder struct {
	sets int
}

func (r *setRecorder) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	if cmd.Name() == "set" {
		r.sets++
	}
	return ctx, redis.Nil
}

func (r *setRecorder) AfterProcess(context.Context, redis.Cmder) error { return nil }

func (r *setRecorder) BeforeProcessPipeline(ctx context.Context, _ []redis.Cmder) (context.Context, error) {
	return ctx, redis.Nil
}

func (r *setRecorder) AfterProcessPipeline(context.Context, []redis.Cmder) error { return nil }

func TestSummaryCaching(t *testing.T) {
	tests := []struct {
		name     string
		lookup   *stubLookup
		target   string
		wantSets int
	}{
		{name: "degraded location", lookup: &stubLookup{err: errors.New("db down")}, target: "/api/v1/locations/UK/summary", wantSets: 0},
		{name: "degraded category", lookup: &stubLookup{err: errors.New("db down")}, target: "/api/v1/directory/summary?category=GTM+Agency", wantSets: 0},
		{name: "healthy location", lookup: &stubLookup{agencies: sampleAgencies()}, target: "/api/v1/locations/UK/summary", wantSets: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &setRecorder{}
			client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
			client.AddHook(recorder)
			defer client.Close()

			cache := middleware.RedisCache(client, middleware.CacheConfig{Enabled: true, PrefixKey: "directory"}, zap.NewNop())
			router := newTestRouter(tt.lookup, cache)

			rec, _ := serve(t, router, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantSets, recorder.sets)
		})
	}
}

func TestSummaryTopTagLimitAboveMaximum(t *testing.T) {
	router := newTestRouter(&stubLookup{agencies: sampleAgencies()})

	rec, body := serve(t, router, http.MethodGet, "/api/v1/locations/UK/summary?limit=30", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "top tag limit exceeds maximum of 20", body["error"])

	rec, _ = serve(t, router, http.MethodGet, "/api/v1/directory/summary?category=GTM+Agency&limit=30", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = serve(t, router, http.MethodPost, "/api/v1/summaries", `{"fallback_average": 0, "top_tag_limit": 30}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "top tag limit exceeds maximum of 20", body["error"])

	rec, _ = serve(t, router, http.MethodGet, "/api/v1/locations/UK/summary?limit=20", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSummary(t *testing.T) {
	router := newTestRouter(&stubLookup{})

	rec, body := serve(t, router, http.MethodPost, "/api/v1/summaries", `{
		"fallback_average": 12000,
		"top_tag_limit": 5,
		"entries": [
			{"id": "1", "tags": ["Y"]},
			{"id": "2", "tags": ["X"]},
			{"id": "3", "tags": ["Y"]},
			{"id": "4", "tags": ["X"]}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, 4.0, data["total_count"])
	assert.Equal(t, 12000.0, data["average_minimum_budget"])
	assert.Equal(t, []interface{}{"Y", "X"}, data["top_tags"])
}

func TestCreateSummaryValidation(t *testing.T) {
	router := newTestRouter(&stubLookup{})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing fallback", body: `{"entries": []}`},
		{name: "negative fallback", body: `{"fallback_average": -1}`},
		{name: "negative budget", body: `{"fallback_average": 0, "entries": [{"minimum_budget": -5}]}`},
		{name: "empty tag", body: `{"fallback_average": 0, "entries": [{"tags": [""]}]}`},
		{name: "limit too large", body: `{"fallback_average": 0, "top_tag_limit": 500}`},
		{name: "malformed", body: `{"fallback_average": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, router, http.MethodPost, "/api/v1/summaries", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListAgencies(t *testing.T) {
	router := newTestRouter(&stubLookup{agencies: sampleAgencies()})

	rec, body := serve(t, router, http.MethodGet, "/api/v1/agencies?location=London&page=1&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, body["data"], 2)
	pagination := body["pagination"].(map[string]interface{})
	assert.Equal(t, 3.0, pagination["totalItems"])
	assert.Equal(t, 2.0, pagination["totalPages"])

	rec, _ = serve(t, router, http.MethodGet, "/api/v1/agencies", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAgenciesLookupFailure(t *testing.T) {
	router := newTestRouter(&stubLookup{err: errors.New("db down")})

	rec, body := serve(t, router, http.MethodGet, "/api/v1/agencies?category=GTM+Agency", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch agencies", body["error"])
}

func TestGetAgency(t *testing.T) {
	router := newTestRouter(&stubLookup{agencies: sampleAgencies()})

	rec, body := serve(t, router, http.MethodGet, "/api/v1/agencies/launchpad", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Launchpad", data["name"])
	assert.Equal(t, 20000.0, data["min_budget"])

	rec, _ = serve(t, router, http.MethodGet, "/api/v1/agencies/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetServiceAreas(t *testing.T) {
	router := newTestRouter(&stubLookup{areas: []string{"Berlin", "London", "UK"}})

	rec, body := serve(t, router, http.MethodGet, "/api/v1/locations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"Berlin", "London", "UK"}, body["data"])
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kite/internal/domain"
	"github.com/opensource-finance/kite/internal/repository"
	"github.com/opensource-finance/kite/internal/score"
	"github.com/opensource-finance/kite/internal/trend"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	scorer  *score.Scorer
	trends  *trend.Service
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, scorer *score.Scorer, trends *trend.Service, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		scorer:  scorer,
		trends:  trends,
		version: version,
	}
}

const (
	analysisCacheTTL = time.Hour
	runCounterWindow = 24 * time.Hour
)

// ScoreRequest is the request body for POST /score. Criteria may be
// omitted, in which case the tenant's stored criteria are used.
type ScoreRequest struct {
	Criteria []*domain.Criterion  `json:"criteria,omitempty"`
	Cases    []*domain.CaseRecord `json:"cases"`
}

// ScoreResponse is the response for POST /score.
type ScoreResponse struct {
	AnalysisID string              `json:"analysisId"`
	Results    []domain.CaseResult `json:"results"`
	Summary    domain.BatchSummary `json:"summary"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Score handles POST /score requests: a synchronous scoring run over
// the submitted cases.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	criteria := req.Criteria
	if len(criteria) == 0 && h.repo != nil {
		stored, err := h.repo.ListCriteria(ctx, tenantID)
		if err != nil {
			slog.Error("failed to load stored criteria", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load stored criteria",
			})
			return
		}
		criteria = stored
	}

	if err := score.ValidateInput(criteria, req.Cases); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	analysis := h.scorer.Run(ctx, tenantID, criteria, req.Cases)

	// Persist and cache; scoring output takes priority over either
	// failing.
	if h.repo != nil {
		if err := h.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			slog.Error("failed to save analysis", "analysis_id", analysis.ID, "error", err)
		}
	}
	if h.cache != nil {
		if err := h.cache.SetAnalysis(ctx, tenantID, analysis.ID, analysis, analysisCacheTTL); err != nil {
			slog.Error("failed to cache analysis", "analysis_id", analysis.ID, "error", err)
		}

		if runs, err := h.cache.IncrementCounter(ctx, tenantID, "runs", runCounterWindow); err == nil {
			slog.Debug("scoring run counted", "tenant_id", tenantID, "runs_24h", runs)
		}
	}

	h.publishResults(ctx, tenantID, analysis)

	resp := ScoreResponse{
		AnalysisID: analysis.ID,
		Results:    analysis.Results,
		Summary:    analysis.Summary,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	slog.Info("scoring run completed",
		"analysis_id", analysis.ID,
		"tenant_id", tenantID,
		"total_cases", analysis.Summary.TotalCases,
		"eligible_cases", analysis.Summary.EligibleCases,
		"duration_ms", resp.Metadata.TotalMs,
	)

	writeJSON(w, http.StatusOK, resp)
}

// publishResults emits the completed analysis and one alert per
// ineligible case.
func (h *Handler) publishResults(ctx context.Context, tenantID string, analysis *domain.Analysis) {
	if h.bus == nil {
		return
	}

	payload, _ := json.Marshal(analysis)
	if err := h.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload); err != nil {
		slog.Error("failed to publish analysis", "analysis_id", analysis.ID, "error", err)
	}

	for _, result := range analysis.Results {
		if result.EligibilityStatus != domain.EligibilityNotEligible {
			continue
		}
		alertPayload, _ := json.Marshal(result)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicCaseAlert, alertPayload); err != nil {
			slog.Error("failed to publish case alert",
				"analysis_id", analysis.ID,
				"case_id", result.CaseID,
				"error", err,
			)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetAnalysis retrieves an analysis by ID, cache first.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	analysisID := chi.URLParam(r, "id")

	if analysisID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysis id is required",
		})
		return
	}

	if h.cache != nil {
		if analysis, err := h.cache.GetAnalysis(ctx, tenantID, analysisID); err == nil && analysis != nil {
			writeJSON(w, http.StatusOK, analysis)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	analysis, err := h.repo.GetAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get analysis", "id", analysisID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.SetAnalysis(ctx, tenantID, analysisID, analysis, analysisCacheTTL)
	}

	writeJSON(w, http.StatusOK, analysis)
}

// ListAnalyses returns the tenant's analyses inside the lookback
// window, oldest first.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	window := defaultTrendWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid window duration",
			})
			return
		}
		window = parsed
	}

	analyses, err := h.repo.ListAnalyses(ctx, tenantID, time.Now().UTC().Add(-window))
	if err != nil {
		slog.Error("failed to list analyses", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list analyses",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// ListCriteria returns all active criteria for the tenant.
func (h *Handler) ListCriteria(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	criteria, err := h.repo.ListCriteria(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list criteria", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list criteria",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"criteria": criteria,
		"count":    len(criteria),
	})
}

// GetCriterion retrieves a criterion by ID.
func (h *Handler) GetCriterion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	criterionID := chi.URLParam(r, "id")

	if criterionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "criterion id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	criterion, err := h.repo.GetCriterion(ctx, tenantID, criterionID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get criterion", "id", criterionID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "criterion not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, criterion)
}

// CreateCriterionRequest is the request body for creating a criterion.
type CreateCriterionRequest struct {
	ID            string                `json:"id,omitempty"`
	MetricName    string                `json:"metricName"`
	Weight        float64               `json:"weight"`
	Intervals     []domain.IntervalRule `json:"scoringIntervals,omitempty"`
	HardMin       string                `json:"minValue,omitempty"`
	Expression    string                `json:"expression,omitempty"`
	LowerIsBetter bool                  `json:"lowerIsBetter,omitempty"`
}

// CreateCriterion creates or replaces a criterion for the tenant.
func (h *Handler) CreateCriterion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateCriterionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.MetricName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "metricName is required",
		})
		return
	}

	for _, rule := range req.Intervals {
		if rule.Interval == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "interval text cannot be empty",
			})
			return
		}
	}

	// Reject bad CEL at create time instead of scoring it as zero later.
	if req.Expression != "" {
		if err := h.scorer.Evaluator().ValidateExpression(req.Expression); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid expression: " + err.Error(),
			})
			return
		}
	}

	criterion := &domain.Criterion{
		ID:            req.ID,
		TenantID:      tenantID,
		MetricName:    req.MetricName,
		Weight:        req.Weight,
		Intervals:     req.Intervals,
		HardMin:       req.HardMin,
		Expression:    req.Expression,
		LowerIsBetter: req.LowerIsBetter,
		Enabled:       true,
	}
	if criterion.ID == "" {
		criterion.ID = uuid.New().String()
	}

	if h.repo != nil {
		if err := h.repo.SaveCriterion(ctx, tenantID, criterion); err != nil {
			slog.Error("failed to save criterion", "id", criterion.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save criterion",
			})
			return
		}
	}

	slog.Info("criterion created", "id", criterion.ID, "metric", criterion.MetricName)
	writeJSON(w, http.StatusCreated, criterion)
}

// DeleteCriterion soft-deletes a criterion.
func (h *Handler) DeleteCriterion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	criterionID := chi.URLParam(r, "id")

	if criterionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "criterion id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteCriterion(ctx, tenantID, criterionID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to delete criterion", "id", criterionID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "criterion not found",
		})
		return
	}

	slog.Info("criterion deleted", "id", criterionID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "criterion deleted",
	})
}

// defaultTrendWindow bounds how far back the trend endpoint looks.
const defaultTrendWindow = 30 * 24 * time.Hour

// GetCaseTrend handles GET /cases/{id}/trend. An optional window query
// parameter (Go duration syntax, e.g. "72h") narrows the lookback.
func (h *Handler) GetCaseTrend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	if caseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "case id is required",
		})
		return
	}

	if h.trends == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "trend service not available",
		})
		return
	}

	window := defaultTrendWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid window duration",
			})
			return
		}
		window = parsed
	}

	caseTrend, err := h.trends.CaseTrend(ctx, tenantID, caseID, window)
	if err != nil {
		if errors.Is(err, trend.ErrNoHistory) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no scoring history for case",
			})
			return
		}
		slog.Error("failed to compute case trend", "case_id", caseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute case trend",
		})
		return
	}

	writeJSON(w, http.StatusOK, caseTrend)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

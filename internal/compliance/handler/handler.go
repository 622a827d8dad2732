package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/markahope-aag/labelcheck-sub001/internal/allergen"
	"github.com/markahope-aag/labelcheck-sub001/internal/compliance"
	"github.com/markahope-aag/labelcheck-sub001/internal/compliance/reportcache"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab/cache"
	errs "github.com/markahope-aag/labelcheck-sub001/pkg/errors"
	"github.com/markahope-aag/labelcheck-sub001/pkg/logger"
)

const maxIngredients = 500

// Handler serves the compliance check API.
type Handler struct {
	aggregator  *compliance.Aggregator
	vocabCache  *cache.Cache
	reportCache *reportcache.ReportCache
	logger      *slog.Logger
}

// New creates a Handler. reportCache may be nil when Redis is unavailable.
func New(agg *compliance.Aggregator, vocabCache *cache.Cache, reportCache *reportcache.ReportCache) *Handler {
	return &Handler{
		aggregator:  agg,
		vocabCache:  vocabCache,
		reportCache: reportCache,
		logger:      slog.Default().With("component", "compliance-handler"),
	}
}

type checkRequest struct {
	Ingredients []string `json:"ingredients"`
}

// CheckGRAS handles POST /api/v1/check/gras.
func (h *Handler) CheckGRAS(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, string(vocab.GRAS), h.aggregator.CheckGRAS)
}

// CheckNDIODI handles POST /api/v1/check/ndi-odi.
func (h *Handler) CheckNDIODI(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, "ndi+odi", h.aggregator.CheckNDIODI)
}

func (h *Handler) check(
	w http.ResponseWriter,
	r *http.Request,
	vocabulary string,
	checkFn func(ctx context.Context, ingredients []string) (*compliance.Report, error),
) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	ingredients, ok := h.decodeIngredients(w, r)
	if !ok {
		return
	}

	var (
		report   *compliance.Report
		cacheHit bool
		err      error
	)
	if h.reportCache != nil {
		report, cacheHit, err = h.reportCache.GetOrCompute(ctx, vocabulary, ingredients, func() (*compliance.Report, error) {
			return checkFn(ctx, ingredients)
		})
	} else {
		report, err = checkFn(ctx, ingredients)
	}
	if err != nil {
		log.Error("compliance check failed", "vocabulary", vocabulary, "error", err)
		h.writeError(w, errs.HTTPStatusCode(err), "compliance check failed")
		return
	}

	log.Info("compliance check completed",
		"vocabulary", vocabulary,
		"total", report.TotalIngredients,
		"unmatched", len(report.Unmatched),
		"critical", report.Critical,
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, report)
}

// CheckAllergens handles POST /api/v1/check/allergens.
func (h *Handler) CheckAllergens(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	ingredients, ok := h.decodeIngredients(w, r)
	if !ok {
		return
	}

	var (
		report   *allergen.Report
		cacheHit bool
		err      error
	)
	if h.reportCache != nil {
		report, cacheHit, err = h.reportCache.GetOrComputeAllergen(ctx, ingredients, func() (*allergen.Report, error) {
			return h.aggregator.CheckAllergens(ctx, ingredients)
		})
	} else {
		report, err = h.aggregator.CheckAllergens(ctx, ingredients)
	}
	if err != nil {
		log.Error("allergen check failed", "error", err)
		h.writeError(w, errs.HTTPStatusCode(err), "allergen check failed")
		return
	}
	log.Info("allergen check completed",
		"total", report.TotalIngredients,
		"detected", len(report.DetectedCategories),
		"contains_required", report.ContainsRequired,
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, report)
}

// Invalidate handles POST /api/v1/vocabularies/{id}/invalidate.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	id := vocab.ID(r.PathValue("id"))
	if err := h.vocabCache.Invalidate(id); err != nil {
		h.writeError(w, errs.HTTPStatusCode(err), fmt.Sprintf("unknown vocabulary %q", id))
		return
	}
	h.flushReports(r)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "vocabulary": string(id)})
}

// InvalidateAll handles POST /api/v1/vocabularies/invalidate.
func (h *Handler) InvalidateAll(w http.ResponseWriter, r *http.Request) {
	h.vocabCache.InvalidateAll()
	h.flushReports(r)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "vocabulary": "all"})
}

// Stats handles GET /api/v1/vocabularies/{id}/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	id := vocab.ID(r.PathValue("id"))
	hits, misses, ok := h.vocabCache.Stats(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown vocabulary %q", id))
		return
	}
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"vocabulary": string(id),
		"hits":       hits,
		"misses":     misses,
		"total":      total,
		"hit_rate":   fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) flushReports(r *http.Request) {
	if h.reportCache == nil {
		return
	}
	if err := h.reportCache.Invalidate(r.Context()); err != nil {
		h.logger.Error("report cache invalidation failed", "error", err)
	}
}

func (h *Handler) decodeIngredients(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body must be JSON with an \"ingredients\" array of strings")
		return nil, false
	}
	if len(req.Ingredients) == 0 {
		h.writeError(w, http.StatusBadRequest, "ingredients list is required")
		return nil, false
	}
	if len(req.Ingredients) > maxIngredients {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("ingredients list exceeds %d entries", maxIngredients))
		return nil, false
	}
	return req.Ingredients, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/middleware"
)

const maxQueryLength = 1024

type SearchExecutor interface {
	Resolve(req executor.Request) ([]*registry.Source, error)
	Execute(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
}

// SearchResponse is the search result plus how it was served.
type SearchResponse struct {
	*executor.SearchResult
	CacheHit  bool    `json:"cache_hit"`
	LatencyMs float64 `json:"latency_ms"`
}

type Handler struct {
	executor     SearchExecutor
	registry     *registry.Registry
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires the search endpoints. cache, collector and m may be nil.
func New(exec SearchExecutor, reg *registry.Registry, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		registry:     reg,
		cache:        queryCache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) parseRequest(r *http.Request) (executor.Request, error) {
	params := r.URL.Query()
	req := executor.Request{Query: params.Get("q"), Limit: h.defaultLimit}
	if len(req.Query) > maxQueryLength {
		return req, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query must be at most %d bytes", maxQueryLength)
	}
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		req.Limit = min(parsed, h.maxResults)
	}
	for _, name := range strings.Split(params.Get("sources"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			req.Sources = append(req.Sources, name)
		}
	}
	return req, nil
}

// Search handles GET /api/v1/search?q=&sources=a,b&limit=. An empty q
// matches every item.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := h.parseRequest(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	sources, err := h.executor.Resolve(req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	key := cache.Key{Query: req.Query, Limit: req.Limit}
	for _, src := range sources {
		key.Sources = append(key.Sources, src.Name)
		key.Counts = append(key.Counts, src.Handle.ItemCount())
	}
	req.Sources = key.Sources

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, req)
		})
	} else {
		result, err = h.executor.Execute(ctx, req)
	}
	latency := time.Since(start)

	event := analytics.QueryEvent{
		Query:     req.Query,
		Sources:   key.Sources,
		LatencyMs: float64(latency.Microseconds()) / 1000,
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}

	if err != nil {
		level := slog.LevelWarn
		if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(ctx, level, "search failed", "query", req.Query, "sources", key.Sources, "error", err)
		if errors.Is(err, apperrors.ErrDuplicateIdentity) {
			h.track(event, true)
		}
		h.observe("error", cacheHit, latency)
		middleware.WriteError(w, err)
		return
	}

	event.Matched = result.Matched
	event.Returned = len(result.Hits)
	h.track(event, false)

	resultType := "miss"
	switch {
	case result.Matched == 0:
		resultType = "zero_result"
	case cacheHit:
		resultType = "hit"
	}
	h.observe(resultType, cacheHit, latency)

	log.Info("search completed",
		"query", req.Query,
		"sources", key.Sources,
		"matched", result.Matched,
		"returned", len(result.Hits),
		"cache_hit", cacheHit,
		"latency_ms", event.LatencyMs,
	)
	middleware.WriteJSON(w, http.StatusOK, SearchResponse{
		SearchResult: result,
		CacheHit:     cacheHit,
		LatencyMs:    event.LatencyMs,
	})
}

func (h *Handler) track(event analytics.QueryEvent, failed bool) {
	if h.collector == nil {
		return
	}
	event.Classify(failed)
	h.collector.Track(event)
}

func (h *Handler) observe(resultType string, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
}

// Sources lists every source with its current counts.
func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	all := h.registry.All()
	out := make([]registry.Stats, 0, len(all))
	for _, src := range all {
		st, err := src.Stats()
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		out = append(out, st)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"sources": out})
}

// Source handles GET /api/v1/sources/{name}.
func (h *Handler) Source(w http.ResponseWriter, r *http.Request) {
	src, err := h.registry.Get(r.PathValue("name"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	st, err := src.Stats()
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	st := h.cache.Stats()
	total := st.LocalHits + st.RemoteHits + st.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(st.LocalHits+st.RemoteHits) / float64(total) * 100
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"local_hits":  st.LocalHits,
		"remote_hits": st.RemoteHits,
		"misses":      st.Misses,
		"total":       total,
		"local_size":  st.LocalSize,
		"breaker":     st.Breaker,
		"hit_rate":    strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		middleware.WriteError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

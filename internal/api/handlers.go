package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/utakatalp/league-ratings/internal/analysis"
	"github.com/utakatalp/league-ratings/internal/cache"
	"github.com/utakatalp/league-ratings/internal/dataset"
	"github.com/utakatalp/league-ratings/internal/league"
	"github.com/utakatalp/league-ratings/internal/rating"
	"github.com/utakatalp/league-ratings/internal/store"
	"github.com/utakatalp/league-ratings/internal/telemetry"
)

// ResultStore persists finished sweeps and reads them back.
type ResultStore interface {
	SaveRun(ctx context.Context, res *rating.Result) (string, error)
	LatestRun(ctx context.Context, season, system, paramsHash string) (*store.Run, error)
	GetRun(ctx context.Context, runID string) (*store.Run, error)
	LoadTable(ctx context.Context, runID string) ([]rating.Entry, error)
	LoadMatches(ctx context.Context, runID string) ([]*league.Match, error)
	DeleteRun(ctx context.Context, runID string) error
}

type Config struct {
	Source   rating.SeasonSource
	Params   rating.Params
	Logger   *zap.Logger
	Cache    cache.Cache // optional
	CacheTTL time.Duration
	Store    ResultStore // optional
}

type Handler struct {
	source   rating.SeasonSource
	params   rating.Params
	logger   *zap.SugaredLogger
	cache    cache.Cache
	cacheTTL time.Duration
	store    ResultStore
}

func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		source:   cfg.Source,
		params:   cfg.Params,
		logger:   logger.Sugar(),
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		store:    cfg.Store,
	}
}

// result returns the sweep of season under kind. It tries the cache, then the
// latest stored run for the current parameters, and only then sweeps the season.
// A fresh sweep is cached and stored.
func (h *Handler) result(ctx context.Context, season string, kind rating.Kind) (*rating.Result, error) {
	fp := h.params.Fingerprint()
	key := cache.Key(season, kind.String(), fp)
	if h.cache != nil {
		b, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			h.logger.Warnw("Cache read failed", "error", err, "key", key)
		} else if ok {
			var res rating.Result
			if err := json.Unmarshal(b, &res); err == nil {
				telemetry.CacheHits.Inc()
				return &res, nil
			}
			h.logger.Warnw("Discarding unreadable cache entry", "key", key)
		}
	}

	if res, ok := h.storedResult(ctx, season, kind.String(), fp); ok {
		telemetry.StoreHits.Inc()
		h.cacheResult(ctx, key, res)
		return res, nil
	}

	res, err := analysis.Run(ctx, h.source, season, kind, h.params, h.logger.Desugar())
	if err != nil {
		return nil, err
	}

	h.cacheResult(ctx, key, res)
	if h.store != nil {
		id, err := h.store.SaveRun(ctx, res)
		if err != nil {
			h.logger.Errorw("Failed to persist rating run", "error", err, "season", season, "system", res.System)
		} else {
			h.logger.Infow("Rating run stored", "run", id, "season", season, "system", res.System)
		}
	}
	return res, nil
}

// storedResult rebuilds the latest stored run of season under the current
// parameters. Store failures are logged and treated as a miss.
func (h *Handler) storedResult(ctx context.Context, season, system, fp string) (*rating.Result, bool) {
	if h.store == nil {
		return nil, false
	}
	run, err := h.store.LatestRun(ctx, season, system, fp)
	if err != nil {
		if !errors.Is(err, store.ErrRunNotFound) {
			h.logger.Warnw("Stored run lookup failed", "error", err, "season", season, "system", system)
		}
		return nil, false
	}
	res, err := h.loadRun(ctx, run)
	if err != nil {
		h.logger.Warnw("Stored run unreadable", "error", err, "run", run.ID)
		return nil, false
	}
	res.Params = h.params
	return res, true
}

func (h *Handler) loadRun(ctx context.Context, run *store.Run) (*rating.Result, error) {
	table, err := h.store.LoadTable(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	matches, err := h.store.LoadMatches(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return &rating.Result{Season: run.Season, System: run.System, Table: table, Matches: matches}, nil
}

func (h *Handler) cacheResult(ctx context.Context, key string, res *rating.Result) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, key, b, h.cacheTTL); err != nil {
		h.logger.Warnw("Cache write failed", "error", err, "key", key)
	}
}

// kindParam reads the system query parameter, defaulting to classic.
func kindParam(r *http.Request) (rating.Kind, error) {
	s := r.URL.Query().Get("system")
	if s == "" {
		return rating.KindClassic, nil
	}
	return rating.ParseKind(s)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrDataUnavailable), errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, rating.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, rating.ErrUnknownTeam):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) failed(w http.ResponseWriter, err error, msg string, kv ...any) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw(msg, append([]any{"error", err}, kv...)...)
		h.errorResponse(w, status, msg)
		return
	}
	h.errorResponse(w, status, err.Error())
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utakatalp/league-ratings/internal/analysis"
	"github.com/utakatalp/league-ratings/internal/league"
	"github.com/utakatalp/league-ratings/internal/rating"
)

// Router wires every endpoint onto a gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s := r.PathPrefix("/seasons/{season}").Subrouter()
	s.HandleFunc("/ratings", h.GetRatings).Methods(http.MethodGet)
	s.HandleFunc("/matches", h.GetMatches).Methods(http.MethodGet)
	s.HandleFunc("/teams/{team}/history", h.GetTeamHistory).Methods(http.MethodGet)
	s.HandleFunc("/evaluation", h.GetEvaluation).Methods(http.MethodGet)
	s.HandleFunc("/standings", h.GetStandings).Methods(http.MethodGet)

	r.HandleFunc("/runs/{id}", h.GetRun).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", h.DeleteRun).Methods(http.MethodDelete)
	return r
}

// Health check endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// GetRatings returns the final rating table of a season.
func (h *Handler) GetRatings(w http.ResponseWriter, r *http.Request) {
	season := mux.Vars(r)["season"]
	kind, err := kindParam(r)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.result(r.Context(), season, kind)
	if err != nil {
		h.failed(w, err, "Failed to rate season", "season", season, "system", kind.String())
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"season": res.Season,
		"system": res.System,
		"table":  res.Table,
	})
}

// GetMatches returns every match of a season annotated with pre-match ratings.
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	season := mux.Vars(r)["season"]
	kind, err := kindParam(r)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.result(r.Context(), season, kind)
	if err != nil {
		h.failed(w, err, "Failed to rate season", "season", season, "system", kind.String())
		return
	}

	h.jsonResponse(w, http.StatusOK, res)
}

// GetTeamHistory returns one team's rating going into each of its matches.
func (h *Handler) GetTeamHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	season, team := vars["season"], vars["team"]
	kind, err := kindParam(r)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.result(r.Context(), season, kind)
	if err != nil {
		h.failed(w, err, "Failed to rate season", "season", season, "system", kind.String())
		return
	}

	history := analysis.TeamHistory(res.Matches, team)
	if len(history) == 0 {
		h.errorResponse(w, http.StatusNotFound, "team not found in season")
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"season":  res.Season,
		"system":  res.System,
		"team":    team,
		"history": history,
	})
}

// GetEvaluation scores the model's pre-match predictions against results and the market.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	season := mux.Vars(r)["season"]
	kind, err := kindParam(r)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.result(r.Context(), season, kind)
	if err != nil {
		h.failed(w, err, "Failed to rate season", "season", season, "system", kind.String())
		return
	}
	strategy, err := rating.NewStrategy(kind, h.params.K)
	if err != nil {
		h.failed(w, err, "Failed to build strategy", "system", kind.String())
		return
	}
	ev, err := analysis.Evaluate(strategy, res.Matches)
	if err != nil {
		h.failed(w, err, "Failed to evaluate season", "season", season, "system", kind.String())
		return
	}

	h.jsonResponse(w, http.StatusOK, ev)
}

// GetStandings returns the points table computed from the season's results.
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	season := mux.Vars(r)["season"]

	s, err := h.source.Season(season)
	if err != nil {
		h.failed(w, err, "Failed to load season", "season", season)
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"season": s.Key,
		"table":  league.CalculateTable(s.Matches),
	})
}

// GetRun returns a stored run with its final table and annotated matches.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.errorResponse(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}
	id := mux.Vars(r)["id"]

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		h.failed(w, err, "Failed to load run", "run", id)
		return
	}
	res, err := h.loadRun(r.Context(), run)
	if err != nil {
		h.failed(w, err, "Failed to load run", "run", id)
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"run":     run,
		"table":   res.Table,
		"matches": res.Matches,
	})
}

// DeleteRun removes a stored run.
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.errorResponse(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}
	id := mux.Vars(r)["id"]

	if err := h.store.DeleteRun(r.Context(), id); err != nil {
		h.failed(w, err, "Failed to delete run", "run", id)
		return
	}
	h.logger.Infow("Rating run deleted", "run", id)
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/utakatalp/league-ratings/internal/analysis"
	"github.com/utakatalp/league-ratings/internal/cache"
	"github.com/utakatalp/league-ratings/internal/dataset"
	"github.com/utakatalp/league-ratings/internal/league"
	"github.com/utakatalp/league-ratings/internal/rating"
	"github.com/utakatalp/league-ratings/internal/store"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

var _ ResultStore = (*store.Store)(nil)

type storedRun struct {
	run *store.Run
	res *rating.Result
}

// memStore keeps runs in memory, newest last.
type memStore struct {
	runs []storedRun
	err  error
}

func (s *memStore) SaveRun(_ context.Context, res *rating.Result) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	id := fmt.Sprintf("run-%d", len(s.runs)+1)
	s.runs = append(s.runs, storedRun{
		run: &store.Run{ID: id, Season: res.Season, System: res.System, ParamsHash: res.Params.Fingerprint()},
		res: res,
	})
	return id, nil
}

func (s *memStore) LatestRun(_ context.Context, season, system, paramsHash string) (*store.Run, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := len(s.runs) - 1; i >= 0; i-- {
		r := s.runs[i].run
		if r.Season == season && r.System == system && r.ParamsHash == paramsHash {
			return r, nil
		}
	}
	return nil, store.ErrRunNotFound
}

func (s *memStore) find(id string) (int, error) {
	for i, r := range s.runs {
		if r.run.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s: %w", id, store.ErrRunNotFound)
}

func (s *memStore) GetRun(_ context.Context, id string) (*store.Run, error) {
	i, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.runs[i].run, nil
}

func (s *memStore) LoadTable(_ context.Context, id string) ([]rating.Entry, error) {
	i, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.runs[i].res.Table, nil
}

func (s *memStore) LoadMatches(_ context.Context, id string) ([]*league.Match, error) {
	i, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.runs[i].res.Matches, nil
}

func (s *memStore) DeleteRun(_ context.Context, id string) error {
	i, err := s.find(id)
	if err != nil {
		return err
	}
	s.runs = append(s.runs[:i], s.runs[i+1:]...)
	return nil
}

func testSource() dataset.Memory {
	return dataset.Memory{
		"9_10": {Key: "9_10", Matches: []*league.Match{
			{HomeTeam: "Chelsea", AwayTeam: "Hull", HomeGoals: 2, AwayGoals: 1, Result: "H", HomeOdds: 1.17, DrawOdds: 6.5, AwayOdds: 17},
			{HomeTeam: "Hull", AwayTeam: "Chelsea", HomeGoals: 0, AwayGoals: 0, Result: "D", HomeOdds: 6, DrawOdds: 4, AwayOdds: 1.5},
		}},
		"bad": {Key: "bad", Matches: []*league.Match{
			{HomeTeam: "Chelsea", AwayTeam: "Promoted", HomeGoals: 1, AwayGoals: 0},
		}},
	}
}

func newTestHandler(c cache.Cache, st ResultStore) *Handler {
	return newTestHandlerWithParams(c, st, rating.DefaultParams())
}

func newTestHandlerWithParams(c cache.Cache, st ResultStore, params rating.Params) *Handler {
	return New(Config{
		Source:   testSource(),
		Params:   params,
		Logger:   zap.NewNop(),
		Cache:    c,
		CacheTTL: time.Minute,
		Store:    st,
	})
}

func get(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, http.MethodGet, path)
}

func do(t *testing.T, h *Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestStatusCodes(t *testing.T) {
	h := newTestHandler(nil, nil)
	tests := []struct {
		name string
		path string
		want int
	}{
		{"health", "/health", http.StatusOK},
		{"ratings", "/seasons/9_10/ratings", http.StatusOK},
		{"bayesian ratings", "/seasons/9_10/ratings?system=bayesian", http.StatusOK},
		{"unknown system", "/seasons/9_10/ratings?system=trueskill", http.StatusBadRequest},
		{"glicko", "/seasons/9_10/ratings?system=glicko", http.StatusNotImplemented},
		{"missing season", "/seasons/8_9/ratings", http.StatusNotFound},
		{"unknown team in data", "/seasons/bad/matches", http.StatusUnprocessableEntity},
		{"history", "/seasons/9_10/teams/Chelsea/history", http.StatusOK},
		{"history unknown team", "/seasons/9_10/teams/Wigan/history", http.StatusNotFound},
		{"evaluation", "/seasons/9_10/evaluation?system=bayesian", http.StatusOK},
		{"standings", "/seasons/9_10/standings", http.StatusOK},
		{"standings missing season", "/seasons/8_9/standings", http.StatusNotFound},
		{"metrics", "/metrics", http.StatusOK},
		{"runs without store", "/runs/run-1", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d (body %s)", tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGetRatings(t *testing.T) {
	rec := get(t, newTestHandler(nil, nil), "/seasons/9_10/ratings")

	var body struct {
		Season string         `json:"season"`
		System string         `json:"system"`
		Table  []rating.Entry `json:"table"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.System != "classic" || len(body.Table) != 2 {
		t.Fatalf("body = %+v", body)
	}
	// 1516/1484 after the first match; the draw pulls them back together by 32*(0.5-E).
	if body.Table[0].Team != "Chelsea" || body.Table[0].GamesPlayed != 2 {
		t.Errorf("leader = %+v", body.Table[0])
	}
	if sum := body.Table[0].Rating + body.Table[1].Rating; sum < 2999.999 || sum > 3000.001 {
		t.Errorf("rating pool = %v, want 3000", sum)
	}
}

func TestGetTeamHistory(t *testing.T) {
	rec := get(t, newTestHandler(nil, nil), "/seasons/9_10/teams/Hull/history")

	var body struct {
		History []analysis.HistoryPoint `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.History) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(body.History))
	}
	if body.History[0].Rating != 1500 || body.History[1].Rating != 1484 {
		t.Errorf("history ratings = %v, %v, want 1500, 1484", body.History[0].Rating, body.History[1].Rating)
	}
}

func TestResultIsCachedAndStored(t *testing.T) {
	c := &mapCache{data: map[string][]byte{}}
	st := &memStore{}
	h := newTestHandler(c, st)

	first := get(t, h, "/seasons/9_10/matches")
	second := get(t, h, "/seasons/9_10/matches")
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("codes = %d, %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("cached response differs from computed response")
	}
	if c.sets != 1 {
		t.Errorf("cache sets = %d, want 1", c.sets)
	}
	key := cache.Key("9_10", "classic", rating.DefaultParams().Fingerprint())
	if _, ok := c.data[key]; !ok {
		t.Error("result not cached under its key")
	}
	if len(st.runs) != 1 {
		t.Errorf("stored runs = %d, want 1", len(st.runs))
	}
}

func leaderRating(t *testing.T, rec *httptest.ResponseRecorder) float64 {
	t.Helper()
	var body struct {
		Table []rating.Entry `json:"table"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Table) == 0 {
		t.Fatalf("empty table in %s", rec.Body.String())
	}
	return body.Table[0].Rating
}

func TestCacheIsKeyedByParams(t *testing.T) {
	c := &mapCache{data: map[string][]byte{}}
	slow := rating.DefaultParams()
	slow.K = 10

	fast := leaderRating(t, get(t, newTestHandler(c, nil), "/seasons/9_10/ratings"))
	got := leaderRating(t, get(t, newTestHandlerWithParams(c, nil, slow), "/seasons/9_10/ratings"))

	// K=32: Chelsea 1516 after the win, about 1514.5 after the draw. K=10 keeps them near 1505.
	if fast < 1514 || fast > 1515 {
		t.Errorf("K=32 leader = %v, want about 1514.5", fast)
	}
	if got < 1504 || got > 1505.5 {
		t.Errorf("K=10 leader = %v, want about 1505", got)
	}
	if c.sets != 2 {
		t.Errorf("cache sets = %d, want one per parameter set", c.sets)
	}
}

func TestRepeatedRequestsStoreOneRun(t *testing.T) {
	st := &memStore{}
	h := newTestHandler(nil, st)

	var bodies []string
	for i := 0; i < 3; i++ {
		rec := get(t, h, "/seasons/9_10/ratings")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET ratings = %d", rec.Code)
		}
		bodies = append(bodies, rec.Body.String())
	}
	if len(st.runs) != 1 {
		t.Errorf("stored runs after 3 identical GETs = %d, want 1", len(st.runs))
	}
	if bodies[0] != bodies[2] {
		t.Error("stored result differs from computed result")
	}

	slow := rating.DefaultParams()
	slow.K = 10
	if rec := get(t, newTestHandlerWithParams(nil, st, slow), "/seasons/9_10/ratings"); rec.Code != http.StatusOK {
		t.Fatalf("GET ratings (K=10) = %d", rec.Code)
	}
	if len(st.runs) != 2 {
		t.Errorf("stored runs after a parameter change = %d, want 2", len(st.runs))
	}
}

func TestStoreFailureDoesNotFailRequest(t *testing.T) {
	h := newTestHandler(nil, &memStore{err: errors.New("db down")})
	if rec := get(t, h, "/seasons/9_10/ratings"); rec.Code != http.StatusOK {
		t.Errorf("GET ratings = %d, want 200", rec.Code)
	}
}

func TestRunEndpoints(t *testing.T) {
	st := &memStore{}
	h := newTestHandler(nil, st)
	if rec := get(t, h, "/seasons/9_10/ratings?system=bayesian"); rec.Code != http.StatusOK {
		t.Fatalf("GET ratings = %d", rec.Code)
	}
	id := st.runs[0].run.ID

	rec := get(t, h, "/runs/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /runs/%s = %d", id, rec.Code)
	}
	var body struct {
		Run     store.Run       `json:"run"`
		Table   []rating.Entry  `json:"table"`
		Matches []*league.Match `json:"matches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Run.ID != id || body.Run.System != "bayesian" || len(body.Table) != 2 || len(body.Matches) != 2 {
		t.Errorf("GET /runs/%s = %+v", id, body)
	}

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodDelete, "/runs/" + id, http.StatusNoContent},
		{http.MethodGet, "/runs/" + id, http.StatusNotFound},
		{http.MethodDelete, "/runs/" + id, http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := do(t, h, tt.method, tt.path); rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestGetStandings(t *testing.T) {
	rec := get(t, newTestHandler(nil, nil), "/seasons/9_10/standings")

	var body struct {
		Table []league.TableEntry `json:"table"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Table) != 2 || body.Table[0].Team != "Chelsea" || body.Table[0].Points != 4 {
		t.Errorf("standings = %+v", body.Table)
	}
}

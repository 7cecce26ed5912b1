package rating

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/utakatalp/league-ratings/internal/league"
)

// ErrAlreadySwept is returned when Sweep is called a second time on the same system.
var ErrAlreadySwept = errors.New("season already swept")

// SeasonSource supplies a season's matches in the order they were played.
type SeasonSource interface {
	Season(key string) (*league.Season, error)
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger used during the sweep.
func WithLogger(l *zap.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.logger = l.Sugar()
		}
	}
}

// System owns one season's matches and the rating table that evolves across them.
type System struct {
	strategy Strategy
	params   Params
	season   *league.Season
	table    *Table
	logger   *zap.SugaredLogger
	swept    bool
}

// Result is what a finished sweep exposes to callers.
type Result struct {
	Season  string          `json:"season"`
	System  string          `json:"system"`
	Table   []Entry         `json:"table"`
	Matches []*league.Match `json:"matches"`
	Params  Params          `json:"params"`
}

// NewSystem loads the season identified by key from src and prepares a fresh
// rating table for it. Errors from src are returned unchanged in the chain.
func NewSystem(src SeasonSource, key string, strategy Strategy, params Params, opts ...Option) (*System, error) {
	season, err := src.Season(key)
	if err != nil {
		return nil, fmt.Errorf("loading season %s: %w", key, err)
	}
	return NewSeasonSystem(season, strategy, params, opts...)
}

// NewSeasonSystem prepares a rating table for an already loaded season.
// The system takes ownership of the season's match records.
func NewSeasonSystem(season *league.Season, strategy Strategy, params Params, opts ...Option) (*System, error) {
	if season == nil {
		return nil, errors.New("nil season")
	}
	if strategy == nil {
		return nil, errors.New("nil strategy")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rating params: %w", err)
	}

	s := &System{
		strategy: strategy,
		params:   params,
		season:   season,
		table:    NewTable(season.Teams(), params.InitialRating, params.InitialUncertainty),
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *System) Strategy() Strategy     { return s.strategy }
func (s *System) Season() *league.Season { return s.season }
func (s *System) Table() *Table          { return s.table }
func (s *System) Params() Params         { return s.params }

func (s *System) ExpectedOutcome(homeRating, awayRating float64) (float64, error) {
	return s.strategy.ExpectedOutcome(homeRating, awayRating)
}

func (s *System) UpdateIncrement(expected, outcome, uncertainty float64) (float64, error) {
	return s.strategy.UpdateIncrement(expected, outcome, uncertainty)
}

// Sweep rates every match of the season in file order, annotating each match
// with the pre-match ratings and uncertainties. On error the table keeps every
// update made before the failing match.
func (s *System) Sweep() error {
	if s.swept {
		return ErrAlreadySwept
	}
	s.swept = true

	for i, m := range s.season.Matches {
		if err := s.rateMatch(m); err != nil {
			return fmt.Errorf("match %d (%s v %s): %w", i, m.HomeTeam, m.AwayTeam, err)
		}
	}

	s.logger.Infow("Season swept",
		"season", s.season.Key,
		"system", s.strategy.Kind().String(),
		"matches", len(s.season.Matches),
		"teams", s.table.Len(),
	)
	return nil
}

func (s *System) rateMatch(m *league.Match) error {
	// 1) current state of both sides, before anything is written
	home, err := s.table.Get(m.HomeTeam)
	if err != nil {
		return err
	}
	away, err := s.table.Get(m.AwayTeam)
	if err != nil {
		return err
	}

	// 2) expected vs observed
	uncertainty := math.Max(home.Uncertainty, away.Uncertainty)
	outcome := league.TrueOutcome(m)
	expected, err := s.strategy.ExpectedOutcome(home.Rating, away.Rating)
	if err != nil {
		return err
	}
	delta, err := s.strategy.UpdateIncrement(expected, outcome, uncertainty)
	if err != nil {
		return err
	}

	// 3) annotate the match with what the teams looked like going in
	m.HomeRatingPre = home.Rating
	m.AwayRatingPre = away.Rating
	m.HomeUncertaintyPre = home.Uncertainty
	m.AwayUncertaintyPre = away.Uncertainty

	if !league.ResultConsistent(m) {
		s.logger.Warnw("Result code disagrees with score",
			"match", m.ScoreLine(), "result", m.Result)
	}

	// 4) zero-sum rating move, uniform uncertainty reduction
	if err := s.table.ApplyUpdate(m.HomeTeam, delta, s.params.reduceUncertainty(home.Uncertainty)); err != nil {
		return err
	}
	if err := s.table.ApplyUpdate(m.AwayTeam, -delta, s.params.reduceUncertainty(away.Uncertainty)); err != nil {
		return err
	}

	s.logger.Debugw("Match rated",
		"match", m.ScoreLine(),
		"expected", expected,
		"outcome", outcome,
		"delta", delta,
	)
	return nil
}

// SeasonEnd is where promotion, relegation and carry-over into the next season
// will be handled. It currently does nothing.
func (s *System) SeasonEnd() error {
	return nil
}

// Result returns the annotated matches and the final table.
func (s *System) Result() *Result {
	return &Result{
		Season:  s.season.Key,
		System:  s.strategy.Kind().String(),
		Table:   s.table.Entries(),
		Matches: s.season.Matches,
		Params:  s.params,
	}
}

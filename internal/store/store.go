package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/utakatalp/league-ratings/internal/league"
	"github.com/utakatalp/league-ratings/internal/rating"
)

// ErrRunNotFound is returned when no stored run matches the lookup.
var ErrRunNotFound = errors.New("rating run not found")

// Store wraps a database connection and persists finished sweeps.
type Store struct {
	DB     *sql.DB
	driver string
}

// Run describes one stored sweep. ParamsHash is the fingerprint of the rating
// parameters the sweep ran under.
type Run struct {
	ID         string    `json:"id"`
	Season     string    `json:"season"`
	System     string    `json:"system"`
	ParamsHash string    `json:"params_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// Open connects using driver "postgres" or "sqlite" and verifies the connection.
func Open(driver, dsn string) (*Store, error) {
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	// verify early
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{DB: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

var placeholder = regexp.MustCompile(`\$\d+`)

// bind rewrites $n placeholders for drivers that expect ?.
// Every query numbers its placeholders in order of appearance.
func (s *Store) bind(q string) string {
	if s.driver == "postgres" {
		return q
	}
	return placeholder.ReplaceAllString(q, "?")
}

// Migrate creates the necessary tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rating_runs (
			id          TEXT   PRIMARY KEY,
			season      TEXT   NOT NULL,
			system      TEXT   NOT NULL,
			params_hash TEXT   NOT NULL,
			created_at  BIGINT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ratings (
			run_id       TEXT             NOT NULL REFERENCES rating_runs(id) ON DELETE CASCADE,
			team         TEXT             NOT NULL,
			games_played INT              NOT NULL,
			rating       DOUBLE PRECISION NOT NULL,
			uncertainty  DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, team)
		);`,
		`CREATE TABLE IF NOT EXISTS rated_matches (
			run_id               TEXT             NOT NULL REFERENCES rating_runs(id) ON DELETE CASCADE,
			seq                  INT              NOT NULL,
			played_on            TEXT             NOT NULL,
			home_team            TEXT             NOT NULL,
			away_team            TEXT             NOT NULL,
			home_goals           INT              NOT NULL,
			away_goals           INT              NOT NULL,
			result               TEXT             NOT NULL,
			home_odds            DOUBLE PRECISION NOT NULL,
			draw_odds            DOUBLE PRECISION NOT NULL,
			away_odds            DOUBLE PRECISION NOT NULL,
			home_rating_pre      DOUBLE PRECISION NOT NULL,
			away_rating_pre      DOUBLE PRECISION NOT NULL,
			home_uncertainty_pre DOUBLE PRECISION NOT NULL,
			away_uncertainty_pre DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS rating_runs_lookup ON rating_runs (season, system, params_hash, created_at);`,
	}
	for _, q := range queries {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// SaveRun stores the final table and annotated matches of a sweep in one
// transaction and returns the new run's ID.
func (s *Store) SaveRun(ctx context.Context, res *rating.Result) (string, error) {
	id := uuid.NewString()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin SaveRun tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.bind(`INSERT INTO rating_runs (id, season, system, params_hash, created_at) VALUES ($1, $2, $3, $4, $5)`),
		id, res.Season, res.System, res.Params.Fingerprint(), time.Now().UTC().UnixNano(),
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	const qRating = `
	INSERT INTO ratings (run_id, team, games_played, rating, uncertainty)
	VALUES ($1, $2, $3, $4, $5)
	`
	for _, e := range res.Table {
		if _, err := tx.ExecContext(ctx, s.bind(qRating),
			id, e.Team, e.GamesPlayed, e.Rating, e.Uncertainty,
		); err != nil {
			return "", fmt.Errorf("inserting rating for %s: %w", e.Team, err)
		}
	}

	const qMatch = `
	INSERT INTO rated_matches (
		run_id, seq, played_on, home_team, away_team, home_goals, away_goals, result,
		home_odds, draw_odds, away_odds,
		home_rating_pre, away_rating_pre, home_uncertainty_pre, away_uncertainty_pre
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	for i, m := range res.Matches {
		if _, err := tx.ExecContext(ctx, s.bind(qMatch),
			id, i, m.Date.Format(time.DateOnly), m.HomeTeam, m.AwayTeam, m.HomeGoals, m.AwayGoals, m.Result,
			m.HomeOdds, m.DrawOdds, m.AwayOdds,
			m.HomeRatingPre, m.AwayRatingPre, m.HomeUncertaintyPre, m.AwayUncertaintyPre,
		); err != nil {
			return "", fmt.Errorf("inserting match %d (%s): %w", i, m.ScoreLine(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit SaveRun tx: %w", err)
	}
	return id, nil
}

// LatestRun returns the most recent run stored for a season and system under
// the parameter set identified by paramsHash.
func (s *Store) LatestRun(ctx context.Context, season, system, paramsHash string) (*Run, error) {
	const q = `
	SELECT id, season, system, params_hash, created_at
	FROM rating_runs
	WHERE season = $1 AND system = $2 AND params_hash = $3
	ORDER BY created_at DESC
	LIMIT 1
	`
	r, err := scanRun(s.DB.QueryRowContext(ctx, s.bind(q), season, system, paramsHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", season, system, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	return r, nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	const q = `
	SELECT id, season, system, params_hash, created_at
	FROM rating_runs
	WHERE id = $1
	`
	r, err := scanRun(s.DB.QueryRowContext(ctx, s.bind(q), runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return r, nil
}

func scanRun(row *sql.Row) (*Run, error) {
	var (
		r  Run
		ns int64
	)
	if err := row.Scan(&r.ID, &r.Season, &r.System, &r.ParamsHash, &ns); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, ns).UTC()
	return &r, nil
}

// LoadTable returns a stored run's final table, highest rating first.
func (s *Store) LoadTable(ctx context.Context, runID string) ([]rating.Entry, error) {
	const q = `
	SELECT team, games_played, rating, uncertainty
	FROM ratings
	WHERE run_id = $1
	ORDER BY
	  rating DESC,
	  team   ASC
	`
	rows, err := s.DB.QueryContext(ctx, s.bind(q), runID)
	if err != nil {
		return nil, fmt.Errorf("querying table: %w", err)
	}
	defer rows.Close()

	var table []rating.Entry
	for rows.Next() {
		var e rating.Entry
		if err := rows.Scan(&e.Team, &e.GamesPlayed, &e.Rating, &e.Uncertainty); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		table = append(table, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return table, nil
}

// LoadMatches returns a stored run's annotated matches in season order.
func (s *Store) LoadMatches(ctx context.Context, runID string) ([]*league.Match, error) {
	const q = `
	SELECT played_on, home_team, away_team, home_goals, away_goals, result,
	       home_odds, draw_odds, away_odds,
	       home_rating_pre, away_rating_pre, home_uncertainty_pre, away_uncertainty_pre
	FROM rated_matches
	WHERE run_id = $1
	ORDER BY seq
	`
	rows, err := s.DB.QueryContext(ctx, s.bind(q), runID)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var matches []*league.Match
	for rows.Next() {
		var (
			m      league.Match
			played string
		)
		if err := rows.Scan(
			&played, &m.HomeTeam, &m.AwayTeam, &m.HomeGoals, &m.AwayGoals, &m.Result,
			&m.HomeOdds, &m.DrawOdds, &m.AwayOdds,
			&m.HomeRatingPre, &m.AwayRatingPre, &m.HomeUncertaintyPre, &m.AwayUncertaintyPre,
		); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if m.Date, err = time.Parse(time.DateOnly, played); err != nil {
			return nil, fmt.Errorf("parsing match date %q: %w", played, err)
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

// DeleteRun removes a run together with its ratings and matches.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin DeleteRun tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM rated_matches WHERE run_id = $1`,
		`DELETE FROM ratings WHERE run_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, s.bind(q), runID); err != nil {
			return fmt.Errorf("deleting run %s: %w", runID, err)
		}
	}
	res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM rating_runs WHERE id = $1`), runID)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return tx.Commit()
}

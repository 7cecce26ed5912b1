// Package dataset reads season match files in the football-data.co.uk CSV layout.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/utakatalp/league-ratings/internal/league"
)

// ErrDataUnavailable is returned when no file backs the requested season.
var ErrDataUnavailable = errors.New("season data unavailable")

// Columns are the fields read from every season file, in this order.
var Columns = []string{
	"Date",
	"HomeTeam", "AwayTeam",
	"FTHG", "FTAG", "FTR",
	"B365H", "B365D", "B365A",
}

var dateLayouts = []string{"02/01/06", "02/01/2006", "2006-01-02"}

// Dir serves seasons from <Root>/<key>.csv.
type Dir struct {
	Root string
}

// Season reads and parses the file for key.
func (d Dir) Season(key string) (*league.Season, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return nil, fmt.Errorf("invalid season key %q: %w", key, ErrDataUnavailable)
	}

	f, err := os.Open(filepath.Join(d.Root, key+".csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("season %s: %w", key, ErrDataUnavailable)
		}
		return nil, fmt.Errorf("opening season %s: %w", key, err)
	}
	defer f.Close()

	matches, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing season %s: %w", key, err)
	}
	return &league.Season{Key: key, Matches: matches}, nil
}

// Parse reads match rows from r. Columns are located by header name; any other
// columns in the file are ignored.
func Parse(r io.Reader) ([]*league.Match, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	cols := make([]int, len(Columns))
	for i, name := range Columns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("missing column %s", name)
		}
		cols[i] = pos
	}

	var matches []*league.Match
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}

		fields := make([]string, len(cols))
		for i, pos := range cols {
			if pos < len(rec) {
				fields[i] = strings.TrimSpace(rec[pos])
			}
		}
		m, err := parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func parseRow(f []string) (*league.Match, error) {
	date, err := parseDate(f[0])
	if err != nil {
		return nil, err
	}
	if f[1] == "" || f[2] == "" {
		return nil, errors.New("missing team name")
	}

	m := &league.Match{
		Date:     date,
		HomeTeam: f[1],
		AwayTeam: f[2],
		Result:   f[5],
	}
	if m.HomeGoals, err = strconv.Atoi(f[3]); err != nil {
		return nil, fmt.Errorf("column FTHG: %w", err)
	}
	if m.AwayGoals, err = strconv.Atoi(f[4]); err != nil {
		return nil, fmt.Errorf("column FTAG: %w", err)
	}

	odds := []*float64{&m.HomeOdds, &m.DrawOdds, &m.AwayOdds}
	for i, dst := range odds {
		// Some seasons have matches with no bookmaker price; they read as 0.
		if f[6+i] == "" {
			continue
		}
		v, err := strconv.ParseFloat(f[6+i], 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", Columns[6+i], err)
		}
		*dst = v
	}
	return m, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("column Date: unrecognised date %q", s)
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Memory is an in-memory source keyed by season. Each call returns a deep copy,
// so sweeping the result never alters the stored season.
type Memory map[string]*league.Season

func (m Memory) Season(key string) (*league.Season, error) {
	s, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("season %s: %w", key, ErrDataUnavailable)
	}
	return s.Clone(), nil
}

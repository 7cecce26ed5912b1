package rating

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownTeam is returned when a team has no row in the rating table.
	ErrUnknownTeam = errors.New("unknown team")
	// ErrNotImplemented is returned by strategies whose formulas are not available yet.
	ErrNotImplemented = errors.New("not implemented")
)

// Entry is one team's row in the rating table.
type Entry struct {
	Team        string  `json:"team"`
	GamesPlayed int     `json:"games_played"`
	Rating      float64 `json:"rating"`
	Uncertainty float64 `json:"uncertainty"`
}

// Table maps a team name to its current rating state.
type Table struct {
	entries map[string]*Entry
}

// NewTable creates one entry per team, all starting from the same rating and uncertainty.
func NewTable(teams []string, initialRating, initialUncertainty float64) *Table {
	t := &Table{entries: make(map[string]*Entry, len(teams))}
	for _, team := range teams {
		t.entries[team] = &Entry{
			Team:        team,
			Rating:      initialRating,
			Uncertainty: initialUncertainty,
		}
	}
	return t
}

// Get returns a copy of the team's entry.
func (t *Table) Get(team string) (Entry, error) {
	e, ok := t.entries[team]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownTeam, team)
	}
	return *e, nil
}

// ApplyUpdate counts one more game for the team and shifts its rating and uncertainty.
func (t *Table) ApplyUpdate(team string, ratingDelta, uncertaintyDelta float64) error {
	e, ok := t.entries[team]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTeam, team)
	}
	e.GamesPlayed++
	e.Rating += ratingDelta
	e.Uncertainty += uncertaintyDelta
	return nil
}

// Len returns the number of teams in the table.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the rows ordered by rating, highest first, then by team name.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Team < out[j].Team
	})
	return out
}

// Snapshot returns an independent copy of the table.
func (t *Table) Snapshot() *Table {
	c := &Table{entries: make(map[string]*Entry, len(t.entries))}
	for team, e := range t.entries {
		cp := *e
		c.entries[team] = &cp
	}
	return c
}

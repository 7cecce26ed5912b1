package league

import (
	"sort"
	"time"
)

// Match is one played fixture as supplied by the season data, annotated with
// both sides' ratings and uncertainty as they stood before kick-off.
type Match struct {
	Date      time.Time `json:"date"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeGoals int       `json:"home_goals"`
	AwayGoals int       `json:"away_goals"`
	Result    string    `json:"result"`

	// Decimal bookmaker odds for home win, draw and away win.
	HomeOdds float64 `json:"home_odds"`
	DrawOdds float64 `json:"draw_odds"`
	AwayOdds float64 `json:"away_odds"`

	HomeRatingPre      float64 `json:"home_rating_pre"`
	AwayRatingPre      float64 `json:"away_rating_pre"`
	HomeUncertaintyPre float64 `json:"home_uncertainty_pre"`
	AwayUncertaintyPre float64 `json:"away_uncertainty_pre"`
}

// Season is the ordered list of matches for one competition period, e.g. "9_10".
type Season struct {
	Key     string
	Matches []*Match
}

// TableEntry holds the standings info for one team.
type TableEntry struct {
	Team                        string
	Played, Wins, Draws, Losses int
	GoalsFor, GoalsAgainst      int
	GoalDiff, Points            int
}

// Teams returns the distinct home teams of the season sorted by name.
func (s *Season) Teams() []string {
	seen := make(map[string]struct{})
	var teams []string
	for _, m := range s.Matches {
		if _, ok := seen[m.HomeTeam]; ok {
			continue
		}
		seen[m.HomeTeam] = struct{}{}
		teams = append(teams, m.HomeTeam)
	}
	sort.Strings(teams)
	return teams
}

// Clone copies the season deeply so the copy can be swept independently.
func (s *Season) Clone() *Season {
	c := &Season{Key: s.Key, Matches: make([]*Match, len(s.Matches))}
	for i, m := range s.Matches {
		cp := *m
		c.Matches[i] = &cp
	}
	return c
}

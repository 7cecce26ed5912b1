package analysis

import (
	"time"

	"github.com/utakatalp/league-ratings/internal/league"
)

// HistoryPoint is a team's rating going into one of its matches.
type HistoryPoint struct {
	Date        time.Time `json:"date"`
	Opponent    string    `json:"opponent"`
	Home        bool      `json:"home"`
	Rating      float64   `json:"rating"`
	Uncertainty float64   `json:"uncertainty"`
	Outcome     float64   `json:"outcome"`
}

// TeamHistory collects the pre-match ratings of team across an annotated
// season, home and away, in season order.
func TeamHistory(matches []*league.Match, team string) []HistoryPoint {
	var out []HistoryPoint
	for _, m := range matches {
		switch team {
		case m.HomeTeam:
			out = append(out, HistoryPoint{
				Date:        m.Date,
				Opponent:    m.AwayTeam,
				Home:        true,
				Rating:      m.HomeRatingPre,
				Uncertainty: m.HomeUncertaintyPre,
				Outcome:     league.TrueOutcome(m),
			})
		case m.AwayTeam:
			out = append(out, HistoryPoint{
				Date:        m.Date,
				Opponent:    m.HomeTeam,
				Rating:      m.AwayRatingPre,
				Uncertainty: m.AwayUncertaintyPre,
				Outcome:     1 - league.TrueOutcome(m),
			})
		}
	}
	return out
}

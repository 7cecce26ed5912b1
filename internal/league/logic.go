// internal/league/logic.go
package league

import (
	"fmt"
	"io"
	"sort"
)

// Result codes as they appear in the FTR column.
const (
	HomeWin = "H"
	Draw    = "D"
	AwayWin = "A"
)

func (m *Match) ScoreLine() string {
	return fmt.Sprintf("%s %d - %d %s",
		m.HomeTeam, m.HomeGoals,
		m.AwayGoals, m.AwayTeam,
	)
}

// TrueOutcome scores the match from the home side: 1 for a win, 0 for a loss
// and 0.5 for a draw. Only the goals are considered.
func TrueOutcome(m *Match) float64 {
	switch {
	case m.HomeGoals > m.AwayGoals:
		return 1
	case m.HomeGoals < m.AwayGoals:
		return 0
	default:
		return 0.5
	}
}

// ResultCode derives the FTR code from the scoreline.
func ResultCode(m *Match) string {
	switch {
	case m.HomeGoals > m.AwayGoals:
		return HomeWin
	case m.HomeGoals < m.AwayGoals:
		return AwayWin
	default:
		return Draw
	}
}

// ResultConsistent reports whether the recorded result code agrees with the goals.
// An empty code is treated as consistent.
func ResultConsistent(m *Match) bool {
	return m.Result == "" || m.Result == ResultCode(m)
}

func CalculateTable(matches []*Match) []*TableEntry {
	// Initialize table entries
	entriesMap := make(map[string]*TableEntry)
	for _, m := range matches {
		for _, t := range []string{m.HomeTeam, m.AwayTeam} {
			if _, ok := entriesMap[t]; !ok {
				entriesMap[t] = &TableEntry{Team: t}
			}
		}
		home, away := entriesMap[m.HomeTeam], entriesMap[m.AwayTeam]

		// Update played count
		home.Played++
		away.Played++

		// Goals
		home.GoalsFor += m.HomeGoals
		home.GoalsAgainst += m.AwayGoals
		away.GoalsFor += m.AwayGoals
		away.GoalsAgainst += m.HomeGoals

		// Win/Draw/Loss and Points
		switch {
		case m.HomeGoals > m.AwayGoals:
			home.Wins++
			away.Losses++
			home.Points += 3
		case m.HomeGoals < m.AwayGoals:
			away.Wins++
			home.Losses++
			away.Points += 3
		default:
			home.Draws++
			away.Draws++
			home.Points++
			away.Points++
		}
	}

	// Collect and compute GoalDiff
	entries := make([]*TableEntry, 0, len(entriesMap))
	for _, e := range entriesMap {
		e.GoalDiff = e.GoalsFor - e.GoalsAgainst
		entries = append(entries, e)
	}

	// Sort
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDiff != b.GoalDiff {
			return a.GoalDiff > b.GoalDiff
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		return a.Team < b.Team
	})

	return entries
}

func PrintTable(w io.Writer, label string, table []*TableEntry) {
	fmt.Fprintln(w, label)
	fmt.Fprintf(w, "%-16s %2s %2s %2s %2s %3s %3s %3s %3s\n",
		"Team", "P", "W", "D", "L", "GF", "GA", "GD", "Pts")
	for _, entry := range table {
		fmt.Fprintf(w, "%-16s %2d %2d %2d %2d %3d %3d %3d %3d\n",
			entry.Team,
			entry.Played,
			entry.Wins,
			entry.Draws,
			entry.Losses,
			entry.GoalsFor,
			entry.GoalsAgainst,
			entry.GoalDiff,
			entry.Points,
		)
	}
}

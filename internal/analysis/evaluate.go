package analysis

import (
	"github.com/utakatalp/league-ratings/internal/league"
	"github.com/utakatalp/league-ratings/internal/rating"
)

// Evaluation scores a swept season's predictions against what happened and
// against the bookmaker.
type Evaluation struct {
	System  string `json:"system"`
	Matches int    `json:"matches"`
	// ModelBrier is the mean squared error of the model's expected home score.
	ModelBrier float64 `json:"model_brier"`
	// MarketMatches counts matches with usable odds.
	MarketMatches int `json:"market_matches"`
	// ModelBrierPriced is ModelBrier restricted to the priced matches, so it
	// compares directly with MarketBrier.
	ModelBrierPriced float64 `json:"model_brier_priced"`
	MarketBrier      float64 `json:"market_brier"`
}

// MarketExpected converts decimal 1X2 odds into the home side's expected score,
// counting a draw as half a win. ok is false when any price is missing.
func MarketExpected(m *league.Match) (float64, bool) {
	if m.HomeOdds <= 0 || m.DrawOdds <= 0 || m.AwayOdds <= 0 {
		return 0, false
	}
	pH, pD, _ := RemoveVig3(m.HomeOdds, m.DrawOdds, m.AwayOdds)
	return pH + pD/2, true
}

// RemoveVig3 converts three-way decimal odds to fair probabilities.
func RemoveVig3(a, b, c float64) (float64, float64, float64) {
	rawA := 1.0 / a
	rawB := 1.0 / b
	rawC := 1.0 / c
	total := rawA + rawB + rawC
	return rawA / total, rawB / total, rawC / total
}

// Evaluate recomputes each match's expected outcome from its pre-match
// ratings with strategy and compares it with the true outcome.
func Evaluate(strategy rating.Strategy, matches []*league.Match) (*Evaluation, error) {
	ev := &Evaluation{System: strategy.Kind().String()}
	var model, modelPriced, market float64
	for _, m := range matches {
		expected, err := strategy.ExpectedOutcome(m.HomeRatingPre, m.AwayRatingPre)
		if err != nil {
			return nil, err
		}
		outcome := league.TrueOutcome(m)
		se := (expected - outcome) * (expected - outcome)
		model += se
		ev.Matches++

		if p, ok := MarketExpected(m); ok {
			market += (p - outcome) * (p - outcome)
			modelPriced += se
			ev.MarketMatches++
		}
	}
	if ev.Matches > 0 {
		ev.ModelBrier = model / float64(ev.Matches)
	}
	if ev.MarketMatches > 0 {
		ev.ModelBrierPriced = modelPriced / float64(ev.MarketMatches)
		ev.MarketBrier = market / float64(ev.MarketMatches)
	}
	return ev, nil
}

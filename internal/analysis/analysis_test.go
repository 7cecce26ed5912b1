package analysis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/utakatalp/league-ratings/internal/dataset"
	"github.com/utakatalp/league-ratings/internal/league"
	"github.com/utakatalp/league-ratings/internal/rating"
)

func testSource() dataset.Memory {
	day := func(d int) time.Time { return time.Date(2009, 8, d, 0, 0, 0, 0, time.UTC) }
	return dataset.Memory{"9_10": {Key: "9_10", Matches: []*league.Match{
		{Date: day(15), HomeTeam: "Chelsea", AwayTeam: "Hull", HomeGoals: 2, AwayGoals: 1, Result: "H", HomeOdds: 1.17, DrawOdds: 6.5, AwayOdds: 17},
		{Date: day(16), HomeTeam: "Hull", AwayTeam: "Arsenal", HomeGoals: 0, AwayGoals: 3, Result: "A", HomeOdds: 5, DrawOdds: 3.6, AwayOdds: 1.7},
		{Date: day(22), HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeGoals: 1, AwayGoals: 1, Result: "D"},
	}}}
}

func TestRun(t *testing.T) {
	res, err := Run(context.Background(), testSource(), "9_10", rating.KindClassic, rating.DefaultParams(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.System != "classic" || len(res.Matches) != 3 || len(res.Table) != 3 {
		t.Errorf("Run() = %+v", res)
	}
	// Chelsea win, Arsenal win away, then the two draw at Arsenal.
	if res.Table[0].Team != "Chelsea" || res.Table[1].Team != "Arsenal" || res.Table[2].Team != "Hull" {
		t.Errorf("table order = %s, %s, %s", res.Table[0].Team, res.Table[1].Team, res.Table[2].Team)
	}
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Run(ctx, testSource(), "8_9", rating.KindClassic, rating.DefaultParams(), nil); !errors.Is(err, dataset.ErrDataUnavailable) {
		t.Errorf("Run(8_9) error = %v, want ErrDataUnavailable", err)
	}
	if _, err := Run(ctx, testSource(), "9_10", rating.KindGlicko, rating.DefaultParams(), nil); !errors.Is(err, rating.ErrNotImplemented) {
		t.Errorf("Run(glicko) error = %v, want ErrNotImplemented", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Run(cancelled, testSource(), "9_10", rating.KindClassic, rating.DefaultParams(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Run(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestRunAll(t *testing.T) {
	src := testSource()
	kinds := []rating.Kind{rating.KindBayesian, rating.KindClassic}

	results, err := RunAll(context.Background(), src, "9_10", kinds, rating.DefaultParams(), nil)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(results) != 2 || results[0].System != "bayesian" || results[1].System != "classic" {
		t.Fatalf("RunAll() systems out of order")
	}
	if results[0].Matches[0] == results[1].Matches[0] {
		t.Error("variants share match records")
	}
	if src["9_10"].Matches[1].HomeRatingPre != 0 {
		t.Error("source season was annotated")
	}

	if _, err := RunAll(context.Background(), src, "9_10", rating.Kinds, rating.DefaultParams(), nil); !errors.Is(err, rating.ErrNotImplemented) {
		t.Errorf("RunAll(all kinds) error = %v, want ErrNotImplemented", err)
	}
}

func TestTeamHistory(t *testing.T) {
	res, err := Run(context.Background(), testSource(), "9_10", rating.KindClassic, rating.DefaultParams(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	h := TeamHistory(res.Matches, "Chelsea")
	if len(h) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(h))
	}
	if !h[0].Home || h[0].Opponent != "Hull" || h[0].Rating != 1500 || h[0].Outcome != 1 {
		t.Errorf("history[0] = %+v", h[0])
	}
	if h[1].Home || h[1].Opponent != "Arsenal" || h[1].Outcome != 0.5 {
		t.Errorf("history[1] = %+v", h[1])
	}
	if h[1].Rating <= h[0].Rating {
		t.Errorf("rating after a win did not rise: %v -> %v", h[0].Rating, h[1].Rating)
	}
	if h[1].Uncertainty != 99 {
		t.Errorf("history[1].Uncertainty = %v, want 99", h[1].Uncertainty)
	}

	if got := TeamHistory(res.Matches, "Wigan"); len(got) != 0 {
		t.Errorf("TeamHistory(Wigan) = %v, want empty", got)
	}
}

func TestRemoveVig3(t *testing.T) {
	a, b, c := RemoveVig3(2, 4, 4)
	if math.Abs(a-0.5) > 1e-12 || math.Abs(b-0.25) > 1e-12 || math.Abs(c-0.25) > 1e-12 {
		t.Errorf("RemoveVig3(2,4,4) = %v, %v, %v", a, b, c)
	}
	a, b, c = RemoveVig3(1.9, 3.4, 4.2)
	if math.Abs(a+b+c-1) > 1e-12 {
		t.Errorf("fair probabilities sum to %v", a+b+c)
	}
}

func TestEvaluate(t *testing.T) {
	matches := []*league.Match{
		// even ratings, home win: model error (0.5-1)^2 = 0.25
		{HomeTeam: "A", AwayTeam: "B", HomeGoals: 1, AwayGoals: 0, HomeRatingPre: 1500, AwayRatingPre: 1500, HomeOdds: 2, DrawOdds: 4, AwayOdds: 4},
		// even ratings, draw: model error 0
		{HomeTeam: "B", AwayTeam: "A", HomeGoals: 0, AwayGoals: 0, HomeRatingPre: 1500, AwayRatingPre: 1500},
	}

	ev, err := Evaluate(rating.Classic{K: 32}, matches)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if ev.Matches != 2 || ev.MarketMatches != 1 {
		t.Errorf("counts = %d/%d, want 2/1", ev.Matches, ev.MarketMatches)
	}
	if math.Abs(ev.ModelBrier-0.125) > 1e-12 {
		t.Errorf("ModelBrier = %v, want 0.125", ev.ModelBrier)
	}
	if math.Abs(ev.ModelBrierPriced-0.25) > 1e-12 {
		t.Errorf("ModelBrierPriced = %v, want 0.25", ev.ModelBrierPriced)
	}
	// market: pH=0.5, pD=0.25 -> expected 0.625, error 0.375^2
	if math.Abs(ev.MarketBrier-0.140625) > 1e-12 {
		t.Errorf("MarketBrier = %v, want 0.140625", ev.MarketBrier)
	}

	if _, err := Evaluate(rating.Glicko{}, matches); !errors.Is(err, rating.ErrNotImplemented) {
		t.Errorf("Evaluate(glicko) error = %v, want ErrNotImplemented", err)
	}
}

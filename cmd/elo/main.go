package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/utakatalp/league-ratings/internal/analysis"
	"github.com/utakatalp/league-ratings/internal/config"
	"github.com/utakatalp/league-ratings/internal/dataset"
	"github.com/utakatalp/league-ratings/internal/league"
	"github.com/utakatalp/league-ratings/internal/rating"
	"github.com/utakatalp/league-ratings/internal/store"
	"github.com/utakatalp/league-ratings/internal/telemetry"
)

var (
	dataDir    = flag.String("data", "", "directory holding <season>.csv files (default $DATA_DIR)")
	season     = flag.String("season", "9_10", "season to rate")
	system     = flag.String("system", "all", "rating system: classic, bayesian, glicko or all")
	team       = flag.String("team", "", "print this team's pre-match ratings")
	ratingConf = flag.String("config", "", "YAML file with rating parameters (default $RATING_CONFIG)")
	persist    = flag.Bool("persist", false, "store results using DB_DRIVER and DATABASE_URL")
	standings  = flag.Bool("standings", false, "also print the points table")
)

func main() {
	flag.Parse()
	cfg := config.Load()

	logger, err := telemetry.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if *dataDir == "" {
		*dataDir = cfg.DataDir
	}
	if *ratingConf == "" {
		*ratingConf = cfg.RatingConfigPath
	}

	params, err := config.LoadRatingParams(*ratingConf)
	if err != nil {
		logger.Fatal("Invalid rating parameters", zap.Error(err))
	}
	kinds, err := parseKinds(*system)
	if err != nil {
		logger.Fatal("Invalid -system", zap.Error(err))
	}

	src := dataset.Dir{Root: *dataDir}
	results, err := analysis.RunAll(context.Background(), src, *season, kinds, params, logger)
	if err != nil {
		logger.Fatal("Rating failed", zap.Error(err), zap.String("season", *season))
	}

	out := os.Stdout
	for i, res := range results {
		printRatings(out, res)
		if *team != "" {
			printHistory(out, res, *team)
		}
		strategy, err := rating.NewStrategy(kinds[i], params.K)
		if err != nil {
			logger.Fatal("Unknown system", zap.Error(err))
		}
		ev, err := analysis.Evaluate(strategy, res.Matches)
		if err != nil {
			logger.Fatal("Evaluation failed", zap.Error(err))
		}
		fmt.Fprintf(out, "Brier: model %.4f over %d matches; model %.4f vs market %.4f over %d priced matches\n\n",
			ev.ModelBrier, ev.Matches, ev.ModelBrierPriced, ev.MarketBrier, ev.MarketMatches)
	}

	if *standings && len(results) > 0 {
		league.PrintTable(out, "Standings "+*season, league.CalculateTable(results[0].Matches))
		fmt.Fprintln(out)
	}

	if *persist {
		if err := persistResults(cfg, results, logger); err != nil {
			logger.Fatal("Persisting results failed", zap.Error(err))
		}
	}
}

func parseKinds(s string) ([]rating.Kind, error) {
	if strings.EqualFold(s, "all") {
		// glicko has no formulas yet, so "all" means every working system.
		return []rating.Kind{rating.KindClassic, rating.KindBayesian}, nil
	}
	var kinds []rating.Kind
	for _, name := range strings.Split(s, ",") {
		k, err := rating.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func printRatings(w io.Writer, res *rating.Result) {
	fmt.Fprintf(w, "%s ratings, season %s\n", res.System, res.Season)
	fmt.Fprintf(w, "%-4s %-16s %3s %8s %6s\n", "#", "Team", "P", "Rating", "Unc")
	for i, e := range res.Table {
		fmt.Fprintf(w, "%-4d %-16s %3d %8.1f %6.1f\n", i+1, e.Team, e.GamesPlayed, e.Rating, e.Uncertainty)
	}
}

func printHistory(w io.Writer, res *rating.Result, team string) {
	history := analysis.TeamHistory(res.Matches, team)
	if len(history) == 0 {
		fmt.Fprintf(w, "%s did not play in %s\n", team, res.Season)
		return
	}
	fmt.Fprintf(w, "%s (%s)\n", team, res.System)
	for _, p := range history {
		venue := "A"
		if p.Home {
			venue = "H"
		}
		fmt.Fprintf(w, "  %s %s %-16s %8.1f ± %.1f\n", p.Date.Format("2006-01-02"), venue, p.Opponent, p.Rating, p.Uncertainty)
	}
}

func persistResults(cfg *config.Config, results []*rating.Result, logger *zap.Logger) error {
	if cfg.DBDriver == "" {
		return errors.New("-persist needs DB_DRIVER and DATABASE_URL")
	}
	st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	for _, res := range results {
		id, err := st.SaveRun(ctx, res)
		if err != nil {
			return err
		}
		logger.Info("Stored rating run", zap.String("run", id), zap.String("system", res.System))
	}
	return nil
}

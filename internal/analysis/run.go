package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utakatalp/league-ratings/internal/rating"
	"github.com/utakatalp/league-ratings/internal/telemetry"
)

// Run loads the season from src, sweeps it with one rating variant and returns
// the annotated matches and final table.
func Run(ctx context.Context, src rating.SeasonSource, season string, kind rating.Kind, params rating.Params, logger *zap.Logger) (*rating.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	strategy, err := rating.NewStrategy(kind, params.K)
	if err != nil {
		return nil, err
	}
	sys, err := rating.NewSystem(src, season, strategy, params, rating.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	system := kind.String()
	start := time.Now()
	if err := sys.Sweep(); err != nil {
		telemetry.SweepFailures.WithLabelValues(system).Inc()
		return nil, fmt.Errorf("%s sweep of %s: %w", system, season, err)
	}
	telemetry.SweepDuration.WithLabelValues(system).Observe(time.Since(start).Seconds())
	telemetry.SweepsTotal.WithLabelValues(system).Inc()
	telemetry.MatchesRated.WithLabelValues(system).Add(float64(len(sys.Season().Matches)))

	if err := sys.SeasonEnd(); err != nil {
		return nil, err
	}
	return sys.Result(), nil
}

// RunAll sweeps the same season once per kind, in parallel. Each variant gets
// its own copy of the season from src. Results are returned in kinds order.
func RunAll(ctx context.Context, src rating.SeasonSource, season string, kinds []rating.Kind, params rating.Params, logger *zap.Logger) ([]*rating.Result, error) {
	results := make([]*rating.Result, len(kinds))
	g, ctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			res, err := Run(ctx, src, season, kind, params, logger)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

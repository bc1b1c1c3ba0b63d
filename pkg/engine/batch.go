package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"rasterstats/pkg/source"
	"rasterstats/pkg/stats"
)

// ComputeStatisticsBatch computes statistics of independent sources in
// parallel, one accumulator per source. At most limit traversals run at
// once; limit <= 0 means no limit. The first failure cancels the remaining
// traversals and no result is returned.
func (e *Engine) ComputeStatisticsBatch(ctx context.Context, srcs []source.TileSource, opts Options, limit int) ([]*stats.Statistics, error) {
	results := make([]*stats.Statistics, len(srcs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			st, err := e.ComputeStatistics(ctx, src, opts)
			if err != nil {
				return fmt.Errorf("source %d: %w", i, err)
			}
			results[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

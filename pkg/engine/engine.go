// Package engine drives the accumulators over a tile source. It decomposes
// the raster extent into row-major windows, reads each window once and hands
// finished, read-only results back to the caller.
package engine

import (
	"context"
	"fmt"
	"time"

	"rasterstats/internal/logger"
	"rasterstats/internal/models"
	"rasterstats/pkg/histogram"
	"rasterstats/pkg/kmeans"
	"rasterstats/pkg/source"
	"rasterstats/pkg/stats"
	"rasterstats/pkg/tiling"
)

const component = "engine"

// DefaultTileBytes bounds the memory of one tile when no sizer is given
const DefaultTileBytes = 16 << 20

// Engine traverses rasters. An Engine holds no per-run state and may be
// shared between goroutines.
type Engine struct {
	sizer tiling.Sizer
	log   logger.Logger
}

// Option configures an Engine
type Option func(e *Engine)

// WithSizer sets the tile sizing policy
func WithSizer(s tiling.Sizer) Option {
	return func(e *Engine) {
		e.sizer = s
	}
}

// WithLogger sets the logger used for traversal events
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// New returns an engine reading memory-bounded full-width strips
func New(opts ...Option) *Engine {
	e := &Engine{
		sizer: tiling.MemoryBudget{Bytes: DefaultTileBytes},
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Selection picks the raster bands of a run
type Selection struct {
	// AllBands selects every band of the source and ignores Bands
	AllBands bool

	// Bands lists raster band indices when AllBands is false
	Bands []int
}

func (s Selection) resolve(src source.TileSource) ([]int, error) {
	n := src.BandCount()
	if n <= 0 {
		return nil, fmt.Errorf("%w: source has no bands", models.ErrConfiguration)
	}
	if s.AllBands {
		return source.AllBands(n), nil
	}
	if len(s.Bands) == 0 {
		return nil, fmt.Errorf("%w: no bands selected", models.ErrConfiguration)
	}
	for _, b := range s.Bands {
		if b < 0 || b >= n {
			return nil, fmt.Errorf("%w: band %d out of range [0,%d)", models.ErrConfiguration, b, n)
		}
	}
	return append([]int(nil), s.Bands...), nil
}

// Options configures ComputeStatistics
type Options struct {
	Selection

	// InterBand accumulates the cross-band matrices
	InterBand bool

	// NoData overrides the sentinels reported by the source
	NoData *models.NoData

	MaskPolicy stats.MaskPolicy
	EigenMode  stats.EigenMode
}

// ComputeStatistics traverses src once and returns finalized statistics.
// Any failure returns a nil result.
func (e *Engine) ComputeStatistics(ctx context.Context, src source.TileSource, opts Options) (*stats.Statistics, error) {
	bands, err := opts.resolve(src)
	if err != nil {
		return nil, err
	}
	st, err := stats.New(len(bands),
		stats.WithNoData(noDataFor(src, opts.NoData)),
		stats.WithMaskPolicy(opts.MaskPolicy),
		stats.WithEigenMode(opts.EigenMode))
	if err != nil {
		return nil, err
	}

	visit := func(tile *models.Tile) error {
		if opts.InterBand {
			return st.ProcessAllBands(tile)
		}
		for b := range bands {
			if err := st.ProcessBand(b, tile); err != nil {
				return err
			}
		}
		return nil
	}
	if err := e.traverse(ctx, "statistics", src, bands, visit); err != nil {
		return nil, err
	}
	st.Finalize()
	return st, nil
}

// HistogramOptions configures ComputeHistogram
type HistogramOptions struct {
	Selection

	// Bins defaults to 256
	Bins int

	// Min and Max replace the statistics bounds when non-empty. Each must
	// hold one value per selected band.
	Min, Max []float64
}

// ComputeHistogram bins src between the bounds found by st. The band
// selection must match the one st was computed with. No-data handling
// follows st.
func (e *Engine) ComputeHistogram(ctx context.Context, src source.TileSource, st *stats.Statistics, opts HistogramOptions) (*histogram.Histogram, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: histogram needs statistics", models.ErrUnavailable)
	}
	if !hasSamples(st) {
		return nil, fmt.Errorf("%w: statistics hold no valid sample", models.ErrUnavailable)
	}
	bands, err := opts.resolve(src)
	if err != nil {
		return nil, err
	}
	if len(bands) != st.BandCount() {
		return nil, fmt.Errorf("%w: %d bands selected, statistics cover %d", models.ErrConfiguration, len(bands), st.BandCount())
	}
	mins, err := bounds(opts.Min, st, (*stats.Statistics).Min)
	if err != nil {
		return nil, err
	}
	maxs, err := bounds(opts.Max, st, (*stats.Statistics).Max)
	if err != nil {
		return nil, err
	}
	bins := opts.Bins
	if bins == 0 {
		bins = 256
	}
	h, err := histogram.New(bins, mins, maxs, histogram.WithNoData(st.NoData()))
	if err != nil {
		return nil, err
	}
	if err := e.traverse(ctx, "histogram", src, bands, h.CountTile); err != nil {
		return nil, err
	}
	return h, nil
}

func hasSamples(st *stats.Statistics) bool {
	for b := 0; b < st.BandCount(); b++ {
		if st.Count(b) > 0 {
			return true
		}
	}
	return false
}

func bounds(override []float64, st *stats.Statistics, get func(*stats.Statistics, int) float64) ([]float64, error) {
	if len(override) > 0 {
		if len(override) != st.BandCount() {
			return nil, fmt.Errorf("%w: %d bounds for %d bands", models.ErrConfiguration, len(override), st.BandCount())
		}
		return append([]float64(nil), override...), nil
	}
	out := make([]float64, st.BandCount())
	for b := range out {
		out[b] = get(st, b)
	}
	return out, nil
}

// ComputeClusterIteration runs one K-Means accumulation pass of acc over src.
// acc must already hold its initial means.
func (e *Engine) ComputeClusterIteration(ctx context.Context, src source.TileSource, acc *kmeans.Accumulator, sel Selection) error {
	bands, err := sel.resolve(src)
	if err != nil {
		return err
	}
	if acc.Classes() == 0 {
		return fmt.Errorf("%w: initial means are not set", models.ErrUnavailable)
	}
	if acc.BandCount() != len(bands) {
		return fmt.Errorf("%w: %d bands selected, centroids have %d", models.ErrConfiguration, len(bands), acc.BandCount())
	}
	return e.traverse(ctx, "kmeans", src, bands, acc.ProcessTile)
}

// traverse reads every window of src once in row-major order and hands the
// tile to visit. Cancellation is checked at every tile boundary.
func (e *Engine) traverse(ctx context.Context, pass string, src source.TileSource, bands []int, visit func(*models.Tile) error) error {
	kind := src.NumericKind()
	if kind.Size() == 0 {
		return fmt.Errorf("%w: unsupported numeric kind %s", models.ErrConfiguration, kind)
	}
	width, height := src.Size()
	tileX, tileY := e.sizer.TileSize(width, height, len(bands), kind)
	it, err := tiling.NewIterator(width, height, tileX, tileY)
	if err != nil {
		return err
	}
	nx, ny := it.Count()
	e.log.Debug(component, "traversal started", map[string]interface{}{
		"pass":  pass,
		"width": width, "height": height,
		"bands": len(bands),
		"kind":  kind.String(),
		"tiles": nx * ny,
	})

	start := time.Now()
	tiles := 0
	for ok := true; ok; it, ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		tile, err := src.ReadTile(ctx, it.Window, bands)
		if err != nil {
			return fmt.Errorf("reading window %+v: %w", it.Window, err)
		}
		if tile.Window != it.Window {
			return fmt.Errorf("%w: source returned window %+v for %+v", models.ErrData, tile.Window, it.Window)
		}
		if err := visit(tile); err != nil {
			return fmt.Errorf("window %+v: %w", it.Window, err)
		}
		tiles++
	}

	e.log.Info(component, "traversal finished", map[string]interface{}{
		"pass":     pass,
		"tiles":    tiles,
		"pixels":   width * height,
		"duration": time.Since(start).String(),
	})
	return nil
}

func noDataFor(src source.TileSource, override *models.NoData) models.NoData {
	if override != nil {
		return *override
	}
	if p, ok := src.(source.NoDataProvider); ok {
		return p.NoData()
	}
	return models.NoData{}
}

// Package kmeans implements one assignment-and-accumulate pass of Lloyd's
// K-Means over raster tiles. The outer convergence loop and the choice of
// initial centroids belong to the caller.
package kmeans

import (
	"fmt"
	"math"

	"rasterstats/internal/models"
)

// Accumulator assigns every pixel to its nearest centroid and accumulates
// per-class sums. It is valid for exactly one iteration: call SetInitialMeans,
// feed every tile through ProcessTile, then read UpdatedMeans.
type Accumulator struct {
	centroids [][]float64
	sums      [][]float64
	counts    []int64

	nodata     models.NoData
	skipNoData bool

	pixel []float64
}

// Option configures an Accumulator
type Option func(a *Accumulator)

// WithNoDataSkipping leaves out positions where every band is a no-data,
// NaN or infinite value. By default every pixel is assigned.
func WithNoDataSkipping(nd models.NoData) Option {
	return func(a *Accumulator) {
		a.nodata = nd
		a.skipNoData = true
	}
}

// New returns an accumulator waiting for its initial means
func New(opts ...Option) *Accumulator {
	a := &Accumulator{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetInitialMeans installs the centroids of this iteration, one vector of
// band values per class, and resets the class sums and counts.
func (a *Accumulator) SetInitialMeans(centroids [][]float64) error {
	if len(centroids) == 0 {
		return fmt.Errorf("%w: no classes", models.ErrConfiguration)
	}
	bands := len(centroids[0])
	if bands == 0 {
		return fmt.Errorf("%w: centroids have no bands", models.ErrConfiguration)
	}
	a.centroids = make([][]float64, len(centroids))
	a.sums = make([][]float64, len(centroids))
	for c, centroid := range centroids {
		if len(centroid) != bands {
			return fmt.Errorf("%w: class %d has %d bands, class 0 has %d", models.ErrConfiguration, c, len(centroid), bands)
		}
		a.centroids[c] = append([]float64(nil), centroid...)
		a.sums[c] = make([]float64, bands)
	}
	a.counts = make([]int64, len(centroids))
	a.pixel = make([]float64, bands)
	return nil
}

// Classes returns the number of classes
func (a *Accumulator) Classes() int {
	return len(a.centroids)
}

// BandCount returns the dimension of the centroids
func (a *Accumulator) BandCount() int {
	return len(a.pixel)
}

// ProcessTile assigns every pixel of tile to its nearest centroid
func (a *Accumulator) ProcessTile(tile *models.Tile) error {
	if a.centroids == nil {
		return fmt.Errorf("%w: initial means are not set", models.ErrUnavailable)
	}
	if err := tile.Validate(); err != nil {
		return err
	}
	if tile.BandCount() != len(a.pixel) {
		return fmt.Errorf("%w: tile has %d bands, centroids have %d", models.ErrConfiguration, tile.BandCount(), len(a.pixel))
	}
	var masks []models.Mask
	if a.skipNoData {
		masks = make([]models.Mask, tile.BandCount())
		for i := range masks {
			masks[i] = a.nodata.MaskFor(tile.RasterBand(i), tile.Kind)
		}
	}

	switch tile.Kind {
	case models.KindUint8:
		return processTile[uint8](a, tile, masks)
	case models.KindUint16:
		return processTile[uint16](a, tile, masks)
	case models.KindInt16:
		return processTile[int16](a, tile, masks)
	case models.KindUint32:
		return processTile[uint32](a, tile, masks)
	case models.KindInt32:
		return processTile[int32](a, tile, masks)
	case models.KindFloat32:
		return processTile[float32](a, tile, masks)
	case models.KindFloat64:
		return processTile[float64](a, tile, masks)
	}
	return fmt.Errorf("%w: unsupported numeric kind %s", models.ErrConfiguration, tile.Kind)
}

func processTile[T models.Sample](a *Accumulator, tile *models.Tile, masks []models.Mask) error {
	data, err := models.Bands[T](tile)
	if err != nil {
		return err
	}
	pixels := tile.Window.Pixels()
	for p := 0; p < pixels; p++ {
		invalid := 0
		for b := range a.pixel {
			a.pixel[b] = float64(data[b][p])
			if masks != nil && masks[b].Excludes(a.pixel[b]) {
				invalid++
			}
		}
		if masks != nil && invalid == len(a.pixel) {
			continue
		}
		c := a.Nearest(a.pixel)
		a.counts[c]++
		for b, x := range a.pixel {
			a.sums[c][b] += x
		}
	}
	return nil
}

// Nearest returns the class whose centroid is closest to pixel in squared
// Euclidean distance. Ties keep the lowest class index.
func (a *Accumulator) Nearest(pixel []float64) int {
	best, bestDist := 0, 0.0
	for c, centroid := range a.centroids {
		var d float64
		for b, m := range centroid {
			diff := pixel[b] - m
			d += diff * diff
		}
		if c == 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Counts returns the number of pixels assigned to each class so far
func (a *Accumulator) Counts() []int64 {
	return append([]int64(nil), a.counts...)
}

// UpdatedMeans returns sum/count per class. A class without pixels keeps its
// initial centroid.
func (a *Accumulator) UpdatedMeans() [][]float64 {
	out := make([][]float64, len(a.centroids))
	for c, centroid := range a.centroids {
		if a.counts[c] == 0 {
			out[c] = append([]float64(nil), centroid...)
			continue
		}
		out[c] = make([]float64, len(centroid))
		for b, s := range a.sums[c] {
			out[c][b] = s / float64(a.counts[c])
		}
	}
	return out
}

// MaxShift returns the largest Euclidean displacement between two sets of
// centroids of identical shape. Convergence loops compare it to a threshold.
func MaxShift(prev, next [][]float64) float64 {
	var worst float64
	for c := range prev {
		var d float64
		for b := range prev[c] {
			diff := next[c][b] - prev[c][b]
			d += diff * diff
		}
		if d > worst {
			worst = d
		}
	}
	return math.Sqrt(worst)
}

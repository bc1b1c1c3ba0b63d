// Package histogram bins band samples into fixed-range frequency tables and
// derives percentiles, entropy and mode from them.
package histogram

import (
	"fmt"
	"math"

	"rasterstats/internal/models"
)

// Band is the frequency table of one band. Bin i covers
// [Min+i*Scale, Min+(i+1)*Scale) and the last bin also holds Max.
type Band struct {
	Min, Max float64

	// Scale is the bin width, (Max-Min)/(bins-1)
	Scale float64

	Frequency []int64

	// Accumulated is the number of samples that landed in a bin
	Accumulated int64
}

// divisor returns the bin width used for binning. A zero width collapses
// every in-range sample into bin 0.
func (b *Band) divisor() float64 {
	if b.Scale == 0 {
		return 1
	}
	return b.Scale
}

// bin returns the bin of x, or false when x lies outside [Min, Max] or is NaN
func (b *Band) bin(x float64) (int, bool) {
	if !(x >= b.Min && x <= b.Max) {
		return 0, false
	}
	idx := int(math.Floor((x - b.Min) / b.divisor()))
	if idx >= len(b.Frequency) {
		idx = len(b.Frequency) - 1
	}
	return idx, true
}

func (b *Band) add(x float64) {
	if idx, ok := b.bin(x); ok {
		b.Frequency[idx]++
		b.Accumulated++
	}
}

// Histogram holds one frequency table per band. It is mutated tile by tile
// and is not safe for concurrent use.
type Histogram struct {
	bins   int
	bands  []Band
	kind   models.NumericKind
	nodata models.NoData
}

// Option configures a Histogram
type Option func(h *Histogram)

// WithNoData sets the samples excluded from binning
func WithNoData(nd models.NoData) Option {
	return func(h *Histogram) {
		h.nodata = nd
	}
}

// WithKind records the numeric kind of the binned samples
func WithKind(kind models.NumericKind) Option {
	return func(h *Histogram) {
		h.kind = kind
	}
}

// New creates an empty histogram with bins bins per band spanning
// [mins[b], maxs[b]].
func New(bins int, mins, maxs []float64, opts ...Option) (*Histogram, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("%w: bin count must be positive, got %d", models.ErrConfiguration, bins)
	}
	if len(mins) == 0 || len(mins) != len(maxs) {
		return nil, fmt.Errorf("%w: %d minimums for %d maximums", models.ErrConfiguration, len(mins), len(maxs))
	}
	h := &Histogram{
		bins:  bins,
		bands: make([]Band, len(mins)),
	}
	for b := range mins {
		lo, hi := mins[b], maxs[b]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || lo > hi {
			return nil, fmt.Errorf("%w: invalid range [%v,%v] for band %d", models.ErrConfiguration, lo, hi, b)
		}
		scale := hi - lo
		if bins > 1 {
			scale /= float64(bins - 1)
		}
		h.bands[b] = Band{
			Min:       lo,
			Max:       hi,
			Scale:     scale,
			Frequency: make([]int64, bins),
		}
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Restore rebuilds a histogram from stored frequency tables.
func Restore(mins, maxs []float64, frequencies [][]int64, opts ...Option) (*Histogram, error) {
	if len(frequencies) != len(mins) {
		return nil, fmt.Errorf("%w: %d frequency tables for %d bands", models.ErrConfiguration, len(frequencies), len(mins))
	}
	bins := 0
	if len(frequencies) > 0 {
		bins = len(frequencies[0])
	}
	h, err := New(bins, mins, maxs, opts...)
	if err != nil {
		return nil, err
	}
	for b, freq := range frequencies {
		if len(freq) != bins {
			return nil, fmt.Errorf("%w: band %d has %d bins, expected %d", models.ErrConfiguration, b, len(freq), bins)
		}
		copy(h.bands[b].Frequency, freq)
		for _, f := range freq {
			h.bands[b].Accumulated += f
		}
	}
	return h, nil
}

// Bins returns the number of bins per band
func (h *Histogram) Bins() int {
	return h.bins
}

// BandCount returns the number of bands
func (h *Histogram) BandCount() int {
	return len(h.bands)
}

// Kind returns the numeric kind of the binned samples
func (h *Histogram) Kind() models.NumericKind {
	return h.kind
}

// Band returns a copy of the frequency table of band
func (h *Histogram) Band(band int) Band {
	b := h.bands[band]
	b.Frequency = append([]int64(nil), b.Frequency...)
	return b
}

// Frequency returns the bin counts of band. The slice must not be modified.
func (h *Histogram) Frequency(band int) []int64 {
	return h.bands[band].Frequency
}

// AccumulatedFrequency returns the number of binned samples of band
func (h *Histogram) AccumulatedFrequency(band int) int64 {
	return h.bands[band].Accumulated
}

// CountPixels bins buffer band of tile into band band. A single-buffer tile
// is accepted for any band. Excluded and out-of-range samples are dropped.
func (h *Histogram) CountPixels(band int, tile *models.Tile) error {
	if band < 0 || band >= len(h.bands) {
		return fmt.Errorf("%w: band %d out of range [0,%d)", models.ErrConfiguration, band, len(h.bands))
	}
	if err := tile.Validate(); err != nil {
		return err
	}
	buffer := band
	switch tile.BandCount() {
	case len(h.bands):
	case 1:
		buffer = 0
	default:
		return fmt.Errorf("%w: tile has %d bands, histogram has %d", models.ErrConfiguration, tile.BandCount(), len(h.bands))
	}
	if h.kind != models.KindUnknown && h.kind != tile.Kind {
		return fmt.Errorf("%w: tile kind %s differs from histogram kind %s", models.ErrConfiguration, tile.Kind, h.kind)
	}
	h.kind = tile.Kind
	mask := h.nodata.MaskFor(tile.RasterBand(buffer), tile.Kind)
	hb := &h.bands[band]

	switch tile.Kind {
	case models.KindUint8:
		return countPixels[uint8](hb, tile, buffer, mask)
	case models.KindUint16:
		return countPixels[uint16](hb, tile, buffer, mask)
	case models.KindInt16:
		return countPixels[int16](hb, tile, buffer, mask)
	case models.KindUint32:
		return countPixels[uint32](hb, tile, buffer, mask)
	case models.KindInt32:
		return countPixels[int32](hb, tile, buffer, mask)
	case models.KindFloat32:
		return countPixels[float32](hb, tile, buffer, mask)
	case models.KindFloat64:
		return countPixels[float64](hb, tile, buffer, mask)
	}
	return fmt.Errorf("%w: unsupported numeric kind %s", models.ErrConfiguration, tile.Kind)
}

func countPixels[T models.Sample](hb *Band, tile *models.Tile, buffer int, mask models.Mask) error {
	data, err := models.Band[T](tile, buffer)
	if err != nil {
		return err
	}
	for _, v := range data {
		x := float64(v)
		if mask.Excludes(x) {
			continue
		}
		hb.add(x)
	}
	return nil
}

// CountTile bins every band of tile.
func (h *Histogram) CountTile(tile *models.Tile) error {
	if err := tile.Validate(); err != nil {
		return err
	}
	if tile.BandCount() != len(h.bands) {
		return fmt.Errorf("%w: tile has %d bands, histogram has %d", models.ErrConfiguration, tile.BandCount(), len(h.bands))
	}
	for b := range h.bands {
		if err := h.CountPixels(b, tile); err != nil {
			return err
		}
	}
	return nil
}

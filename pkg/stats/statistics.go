// Package stats implements single-pass per-band and cross-band statistics
// over raster tiles.
//
// Every band keeps a running count, min, max, mean and accumulated variance
// (the sum of squared deviations) updated with Welford's recurrence, so the
// result does not depend on the order samples arrive in and no second pass
// is needed. In inter-band mode the accumulator also keeps the raw
// cross-product matrix Σ x_i·x_j together with a co-moment matrix updated
// with the paired Welford recurrence, from which covariance, correlation and
// principal components are derived.
package stats

import (
	"fmt"
	"math"

	"rasterstats/internal/models"
)

// MaskPolicy decides when a pixel position is dropped in inter-band mode.
type MaskPolicy int

const (
	// MaskAllInvalid drops a position only when every band is invalid there.
	// Invalid samples of the remaining bands are still accumulated.
	MaskAllInvalid MaskPolicy = iota

	// MaskAnyInvalid drops a position as soon as one band is invalid.
	MaskAnyInvalid
)

// ParseMaskPolicy converts "all" or "any" to a MaskPolicy
func ParseMaskPolicy(s string) (MaskPolicy, error) {
	switch s {
	case "", "all":
		return MaskAllInvalid, nil
	case "any":
		return MaskAnyInvalid, nil
	}
	return MaskAllInvalid, fmt.Errorf("%w: unknown mask policy %q", models.ErrConfiguration, s)
}

func (p MaskPolicy) String() string {
	if p == MaskAnyInvalid {
		return "any"
	}
	return "all"
}

type mode int

const (
	modeUnset mode = iota
	modePerBand
	modeInterBand
)

// BandStats holds the running aggregates of one band.
type BandStats struct {
	Count int64
	Min   float64
	Max   float64
	Mean  float64

	// AccumVariance is the sum of squared deviations from the running mean.
	// Divide by Count-1 for the sample variance.
	AccumVariance float64
}

// Add folds one sample into the aggregates. NaN and infinities reach Add
// only through the all-invalid mask policy; they enter the moments but never
// Min or Max. Min and Max stay NaN until a finite sample arrives.
func (s *BandStats) Add(x float64) {
	s.Count++
	switch {
	case math.IsNaN(x) || math.IsInf(x, 0):
		if s.Count == 1 {
			s.Min, s.Max = math.NaN(), math.NaN()
		}
	case s.Count == 1 || math.IsNaN(s.Min):
		s.Min, s.Max = x, x
	default:
		if x < s.Min {
			s.Min = x
		}
		if x > s.Max {
			s.Max = x
		}
	}
	delta := x - s.Mean
	s.Mean += delta / float64(s.Count)
	s.AccumVariance += (x - s.Mean) * delta
}

// Variance returns the sample variance, or 0 when Count <= 1.
func (s BandStats) Variance() float64 {
	if s.Count <= 1 {
		return 0
	}
	v := s.AccumVariance / float64(s.Count-1)
	if v < 0 {
		return 0
	}
	return v
}

// StdDev returns the square root of Variance
func (s BandStats) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// merge combines two independent aggregates (Chan et al.).
func (s *BandStats) merge(o BandStats) {
	if o.Count == 0 {
		return
	}
	if s.Count == 0 {
		*s = o
		return
	}
	n := s.Count + o.Count
	delta := o.Mean - s.Mean
	s.AccumVariance += o.AccumVariance + delta*delta*float64(s.Count)*float64(o.Count)/float64(n)
	s.Mean += delta * float64(o.Count) / float64(n)
	switch {
	case math.IsNaN(s.Min):
		s.Min, s.Max = o.Min, o.Max
	case !math.IsNaN(o.Min):
		s.Min = math.Min(s.Min, o.Min)
		s.Max = math.Max(s.Max, o.Max)
	}
	s.Count = n
}

// Statistics accumulates per-band and cross-band statistics for a fixed
// number of bands. It is not safe for concurrent use; independent instances
// may be fed from different goroutines.
type Statistics struct {
	bands []BandStats

	// cross and comoment are bandCount*bandCount row-major matrices. Only the
	// upper triangle is updated while accumulating.
	cross      []float64
	comoment   []float64
	crossCount int64

	nodata    models.NoData
	policy    MaskPolicy
	eigenMode EigenMode
	kind      models.NumericKind
	mode      mode
	finalized bool

	// per-position scratch for inter-band accumulation
	sample []float64
	delta  []float64
}

// Option configures a Statistics accumulator
type Option func(s *Statistics)

// WithNoData sets the global and per-band no-data values
func WithNoData(nd models.NoData) Option {
	return func(s *Statistics) {
		s.nodata = nd
	}
}

// WithMaskPolicy sets the inter-band masking rule. Defaults to MaskAllInvalid.
func WithMaskPolicy(p MaskPolicy) Option {
	return func(s *Statistics) {
		s.policy = p
	}
}

// WithEigenMode records which matrix principal components are derived from
func WithEigenMode(m EigenMode) Option {
	return func(s *Statistics) {
		s.eigenMode = m
	}
}

// New creates an empty accumulator for bandCount bands.
func New(bandCount int, opts ...Option) (*Statistics, error) {
	if bandCount <= 0 {
		return nil, fmt.Errorf("%w: band count must be positive, got %d", models.ErrConfiguration, bandCount)
	}
	s := &Statistics{
		bands:    make([]BandStats, bandCount),
		cross:    make([]float64, bandCount*bandCount),
		comoment: make([]float64, bandCount*bandCount),
		sample:   make([]float64, bandCount),
		delta:    make([]float64, bandCount),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Restore rebuilds an accumulator from previously computed aggregates so that
// accumulation can resume. cross is the raw cross-product matrix and may be
// nil when the aggregates were computed band by band.
func Restore(bands []BandStats, cross [][]float64, crossCount int64, kind models.NumericKind, opts ...Option) (*Statistics, error) {
	s, err := New(len(bands), opts...)
	if err != nil {
		return nil, err
	}
	copy(s.bands, bands)
	s.kind = kind
	n := len(bands)
	if cross == nil {
		if crossCount != 0 {
			return nil, fmt.Errorf("%w: cross count %d without cross-product matrix", models.ErrConfiguration, crossCount)
		}
		for _, b := range bands {
			if b.Count > 0 {
				s.mode = modePerBand
			}
		}
		return s, nil
	}
	if len(cross) != n {
		return nil, fmt.Errorf("%w: cross-product matrix has %d rows for %d bands", models.ErrConfiguration, len(cross), n)
	}
	for i := range cross {
		if len(cross[i]) != n {
			return nil, fmt.Errorf("%w: cross-product row %d has %d columns for %d bands", models.ErrConfiguration, i, len(cross[i]), n)
		}
		for j := range cross[i] {
			s.cross[i*n+j] = cross[i][j]
			s.comoment[i*n+j] = cross[i][j] - float64(crossCount)*bands[i].Mean*bands[j].Mean
		}
	}
	s.crossCount = crossCount
	s.mode = modeInterBand
	return s, nil
}

// BandCount returns the number of bands
func (s *Statistics) BandCount() int {
	return len(s.bands)
}

// Kind returns the numeric kind of the processed tiles, KindUnknown before the first tile
func (s *Statistics) Kind() models.NumericKind {
	return s.kind
}

// InterBand reports whether the cross-band matrices were accumulated
func (s *Statistics) InterBand() bool {
	return s.mode == modeInterBand
}

// EigenMode returns the eigen selector recorded with WithEigenMode
func (s *Statistics) EigenMode() EigenMode {
	return s.eigenMode
}

// NoData returns the exclusion configuration
func (s *Statistics) NoData() models.NoData {
	return s.nodata
}

// MaskPolicy returns the inter-band masking rule
func (s *Statistics) MaskPolicy() MaskPolicy {
	return s.policy
}

// Finalize marks the result read-only. Further Process calls fail.
func (s *Statistics) Finalize() {
	s.finalized = true
}

// Finalized reports whether Finalize was called
func (s *Statistics) Finalized() bool {
	return s.finalized
}

// begin checks that tile may be folded in mode m and records its kind and mode.
func (s *Statistics) begin(tile *models.Tile, m mode) error {
	if s.finalized {
		return fmt.Errorf("%w: statistics are finalized", models.ErrConfiguration)
	}
	if s.kind != models.KindUnknown && s.kind != tile.Kind {
		return fmt.Errorf("%w: tile kind %s differs from previous tiles (%s)", models.ErrConfiguration, tile.Kind, s.kind)
	}
	if s.mode != modeUnset && s.mode != m {
		return fmt.Errorf("%w: per-band and inter-band accumulation cannot be mixed", models.ErrConfiguration)
	}
	s.kind = tile.Kind
	s.mode = m
	return nil
}

// ProcessBand folds buffer band of tile into band band of the accumulator.
// A single-buffer tile is accepted for any band. NaN, infinities and the
// band's no-data value are skipped.
func (s *Statistics) ProcessBand(band int, tile *models.Tile) error {
	if band < 0 || band >= len(s.bands) {
		return fmt.Errorf("%w: band %d out of range [0,%d)", models.ErrConfiguration, band, len(s.bands))
	}
	if err := tile.Validate(); err != nil {
		return err
	}
	buffer := band
	switch tile.BandCount() {
	case len(s.bands):
	case 1:
		buffer = 0
	default:
		return fmt.Errorf("%w: tile has %d bands, accumulator has %d", models.ErrConfiguration, tile.BandCount(), len(s.bands))
	}
	if err := s.begin(tile, modePerBand); err != nil {
		return err
	}
	mask := s.nodata.MaskFor(tile.RasterBand(buffer), tile.Kind)
	bs := &s.bands[band]

	switch tile.Kind {
	case models.KindUint8:
		return processBand[uint8](bs, tile, buffer, mask)
	case models.KindUint16:
		return processBand[uint16](bs, tile, buffer, mask)
	case models.KindInt16:
		return processBand[int16](bs, tile, buffer, mask)
	case models.KindUint32:
		return processBand[uint32](bs, tile, buffer, mask)
	case models.KindInt32:
		return processBand[int32](bs, tile, buffer, mask)
	case models.KindFloat32:
		return processBand[float32](bs, tile, buffer, mask)
	case models.KindFloat64:
		return processBand[float64](bs, tile, buffer, mask)
	}
	return fmt.Errorf("%w: unsupported numeric kind %s", models.ErrConfiguration, tile.Kind)
}

func processBand[T models.Sample](bs *BandStats, tile *models.Tile, buffer int, mask models.Mask) error {
	data, err := models.Band[T](tile, buffer)
	if err != nil {
		return err
	}
	for _, v := range data {
		x := float64(v)
		if mask.Excludes(x) {
			continue
		}
		bs.Add(x)
	}
	return nil
}

// ProcessAllBands folds every band of tile in lock-step and updates the
// cross-band matrices. Positions are dropped according to the mask policy.
func (s *Statistics) ProcessAllBands(tile *models.Tile) error {
	if err := tile.Validate(); err != nil {
		return err
	}
	if tile.BandCount() != len(s.bands) {
		return fmt.Errorf("%w: tile has %d bands, accumulator has %d", models.ErrConfiguration, tile.BandCount(), len(s.bands))
	}
	if err := s.begin(tile, modeInterBand); err != nil {
		return err
	}
	masks := make([]models.Mask, len(s.bands))
	for i := range masks {
		masks[i] = s.nodata.MaskFor(tile.RasterBand(i), tile.Kind)
	}

	switch tile.Kind {
	case models.KindUint8:
		return processAll[uint8](s, tile, masks)
	case models.KindUint16:
		return processAll[uint16](s, tile, masks)
	case models.KindInt16:
		return processAll[int16](s, tile, masks)
	case models.KindUint32:
		return processAll[uint32](s, tile, masks)
	case models.KindInt32:
		return processAll[int32](s, tile, masks)
	case models.KindFloat32:
		return processAll[float32](s, tile, masks)
	case models.KindFloat64:
		return processAll[float64](s, tile, masks)
	}
	return fmt.Errorf("%w: unsupported numeric kind %s", models.ErrConfiguration, tile.Kind)
}

func processAll[T models.Sample](s *Statistics, tile *models.Tile, masks []models.Mask) error {
	data, err := models.Bands[T](tile)
	if err != nil {
		return err
	}
	n := len(s.bands)
	pixels := tile.Window.Pixels()
	for p := 0; p < pixels; p++ {
		invalid := 0
		for b := 0; b < n; b++ {
			x := float64(data[b][p])
			s.sample[b] = x
			if masks[b].Excludes(x) {
				invalid++
			}
		}
		if invalid == n || (s.policy == MaskAnyInvalid && invalid > 0) {
			continue
		}
		s.accumulatePosition()
	}
	return nil
}

// accumulatePosition folds s.sample into every band and both matrices.
func (s *Statistics) accumulatePosition() {
	n := len(s.bands)
	s.crossCount++
	for b := 0; b < n; b++ {
		s.delta[b] = s.sample[b] - s.bands[b].Mean
		s.bands[b].Add(s.sample[b])
	}
	for i := 0; i < n; i++ {
		xi := s.sample[i]
		di := s.delta[i]
		row := i * n
		for j := i; j < n; j++ {
			s.cross[row+j] += xi * s.sample[j]
			s.comoment[row+j] += di * (s.sample[j] - s.bands[j].Mean)
		}
	}
}

// Merge folds the aggregates of o into s. Both accumulators must have the
// same band count and accumulation mode.
func (s *Statistics) Merge(o *Statistics) error {
	if s.finalized {
		return fmt.Errorf("%w: statistics are finalized", models.ErrConfiguration)
	}
	if len(o.bands) != len(s.bands) {
		return fmt.Errorf("%w: cannot merge %d bands into %d", models.ErrConfiguration, len(o.bands), len(s.bands))
	}
	if o.mode == modeUnset {
		return nil
	}
	if s.mode != modeUnset && s.mode != o.mode {
		return fmt.Errorf("%w: per-band and inter-band accumulation cannot be mixed", models.ErrConfiguration)
	}
	if s.kind != models.KindUnknown && o.kind != models.KindUnknown && s.kind != o.kind {
		return fmt.Errorf("%w: cannot merge %s statistics into %s", models.ErrConfiguration, o.kind, s.kind)
	}

	n := len(s.bands)
	na, nb := float64(s.crossCount), float64(o.crossCount)
	if o.mode == modeInterBand && nb > 0 {
		total := na + nb
		for i := 0; i < n; i++ {
			di := o.bands[i].Mean - s.bands[i].Mean
			for j := i; j < n; j++ {
				dj := o.bands[j].Mean - s.bands[j].Mean
				idx := i*n + j
				s.cross[idx] += o.cross[idx]
				s.comoment[idx] += o.comoment[idx] + di*dj*na*nb/total
			}
		}
		s.crossCount += o.crossCount
	}
	for b := range s.bands {
		s.bands[b].merge(o.bands[b])
	}
	if s.kind == models.KindUnknown {
		s.kind = o.kind
	}
	s.mode = o.mode
	return nil
}

func (s *Statistics) checkBand(band int) {
	if band < 0 || band >= len(s.bands) {
		panic(fmt.Sprintf("stats: band %d out of range [0,%d)", band, len(s.bands)))
	}
}

// Band returns a copy of the aggregates of band
func (s *Statistics) Band(band int) BandStats {
	s.checkBand(band)
	return s.bands[band]
}

// Bands returns a copy of every band's aggregates
func (s *Statistics) Bands() []BandStats {
	out := make([]BandStats, len(s.bands))
	copy(out, s.bands)
	return out
}

// Count returns the number of valid samples of band
func (s *Statistics) Count(band int) int64 { return s.Band(band).Count }

// Min returns the smallest valid sample of band
func (s *Statistics) Min(band int) float64 { return s.Band(band).Min }

// Max returns the largest valid sample of band
func (s *Statistics) Max(band int) float64 { return s.Band(band).Max }

// Mean returns the running mean of band
func (s *Statistics) Mean(band int) float64 { return s.Band(band).Mean }

// Variance returns AccumVariance/(Count-1), or 0 when Count <= 1
func (s *Statistics) Variance(band int) float64 { return s.Band(band).Variance() }

// StdDev returns the square root of Variance
func (s *Statistics) StdDev(band int) float64 { return s.Band(band).StdDev() }

// CrossCount returns the number of positions folded into the cross-band matrices
func (s *Statistics) CrossCount() int64 {
	return s.crossCount
}

// CrossProducts returns the raw accumulated Σ x_i·x_j matrix.
func (s *Statistics) CrossProducts() [][]float64 {
	return s.symmetric(s.cross)
}

func (s *Statistics) symmetric(m []float64) [][]float64 {
	n := len(s.bands)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out[i][j] = m[i*n+j]
			out[j][i] = m[i*n+j]
		}
	}
	return out
}

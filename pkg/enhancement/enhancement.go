// Package enhancement turns histograms into per-band lookup tables for
// contrast enhancement.
package enhancement

import (
	"fmt"
	"sort"

	"rasterstats/internal/models"
	"rasterstats/pkg/histogram"
)

// LUT maps, per band, a histogram bin index to an output intensity in
// [0, Levels).
type LUT struct {
	Levels int
	Bands  [][]int
}

// Lookup returns the output intensity of bin in band, clamping bin to the table
func (l LUT) Lookup(band, bin int) int {
	table := l.Bands[band]
	if bin < 0 {
		bin = 0
	} else if bin >= len(table) {
		bin = len(table) - 1
	}
	return table[bin]
}

// Method names an enhancement strategy
type Method string

const (
	MethodLinear       Method = "linear"
	MethodGaussian     Method = "gaussian"
	MethodEqualization Method = "equalization"
	MethodMatching     Method = "matching"
)

// Params carries the tunables shared by the strategies.
type Params struct {
	// GaussianMean and GaussianStdDev describe the target distribution of the
	// gaussian stretch, in output levels
	GaussianMean   float64
	GaussianStdDev float64

	// OutputLevels is the number of output intensities of the gaussian table
	OutputLevels int
}

// DefaultParams centers the gaussian target on a 0..255 output range
func DefaultParams() Params {
	return Params{GaussianMean: 127.5, GaussianStdDev: 42.5, OutputLevels: 256}
}

// Generator produces a lookup table from the histograms it was built with.
// Generators hold no state besides their inputs; CreateLUT may be called
// any number of times.
type Generator interface {
	Method() Method
	CreateLUT() (LUT, error)
}

// Constructor builds a Generator. ref is only used by MethodMatching.
type Constructor func(src, ref *histogram.Histogram, p Params) (Generator, error)

// Registry maps method names to constructors. It is built once at start-up
// and handed to whatever needs to create generators.
type Registry struct {
	constructors map[Method]Constructor
}

// NewRegistry returns a registry holding the four built-in strategies
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[Method]Constructor)}
	r.Register(MethodLinear, NewLinear)
	r.Register(MethodGaussian, NewGaussian)
	r.Register(MethodEqualization, NewEqualization)
	r.Register(MethodMatching, NewMatching)
	return r
}

// Register adds or replaces the constructor of method
func (r *Registry) Register(method Method, c Constructor) {
	r.constructors[method] = c
}

// Methods returns the registered method names in sorted order
func (r *Registry) Methods() []Method {
	out := make([]Method, 0, len(r.constructors))
	for m := range r.constructors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New builds the generator registered under method
func (r *Registry) New(method Method, src, ref *histogram.Histogram, p Params) (Generator, error) {
	c, ok := r.constructors[method]
	if !ok {
		return nil, fmt.Errorf("%w: unknown enhancement method %q", models.ErrConfiguration, method)
	}
	return c(src, ref, p)
}

// checkHistogram rejects missing histograms and histograms without a single
// binned sample.
func checkHistogram(h *histogram.Histogram, role string) error {
	if h == nil {
		return fmt.Errorf("%w: %s histogram is missing", models.ErrUnavailable, role)
	}
	if h.BandCount() == 0 || h.Bins() == 0 {
		return fmt.Errorf("%w: %s histogram has no bins", models.ErrUnavailable, role)
	}
	for b := 0; b < h.BandCount(); b++ {
		if h.AccumulatedFrequency(b) > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: %s histogram is empty", models.ErrUnavailable, role)
}

func newLUT(bands, bins, levels int) LUT {
	lut := LUT{Levels: levels, Bands: make([][]int, bands)}
	for b := range lut.Bands {
		lut.Bands[b] = make([]int, bins)
	}
	return lut
}

// cumulative returns the running bin counts of band
func cumulative(h *histogram.Histogram, band int) []int64 {
	freq := h.Frequency(band)
	out := make([]int64, len(freq))
	var running int64
	for i, f := range freq {
		running += f
		out[i] = running
	}
	return out
}

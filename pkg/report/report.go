// Package report assembles the read-only query surface of a statistics run:
// per-band moments, cross-band matrices, principal components and histogram
// derived values. Callers pick the tables to include with a bitmask.
package report

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"rasterstats/internal/models"
	"rasterstats/pkg/histogram"
	"rasterstats/pkg/stats"
)

// Section is a bitmask of the tables a report includes
type Section uint

const (
	SectionBasic Section = 1 << iota
	SectionCovariance
	SectionCorrelation
	SectionEigen
	SectionHistogram
	SectionPercentiles
	SectionMode
	SectionEntropy

	SectionAll = SectionBasic | SectionCovariance | SectionCorrelation | SectionEigen |
		SectionHistogram | SectionPercentiles | SectionMode | SectionEntropy
)

var sectionNames = []struct {
	name    string
	section Section
}{
	{"basic", SectionBasic},
	{"covariance", SectionCovariance},
	{"correlation", SectionCorrelation},
	{"eigen", SectionEigen},
	{"histogram", SectionHistogram},
	{"percentiles", SectionPercentiles},
	{"mode", SectionMode},
	{"entropy", SectionEntropy},
}

// Has reports whether every bit of o is set in s
func (s Section) Has(o Section) bool {
	return s&o == o
}

func (s Section) String() string {
	var parts []string
	for _, n := range sectionNames {
		if s.Has(n.section) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseSections converts names such as "basic,eigen" or "all" to a bitmask
func ParseSections(spec string) (Section, error) {
	var out Section
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		if part == "all" {
			out |= SectionAll
			continue
		}
		found := false
		for _, n := range sectionNames {
			if n.name == part {
				out |= n.section
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown report section %q", models.ErrConfiguration, part)
		}
	}
	return out, nil
}

// Band holds the per-band moments
type Band struct {
	Count    int64   `yaml:"count"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	Mean     float64 `yaml:"mean"`
	Variance float64 `yaml:"variance"`
	StdDev   float64 `yaml:"stdDev"`
}

// Mode is the most populated histogram bin of a band. Bin is the bin index
// and Value the midpoint of the bin in sample units.
type Mode struct {
	Bin   int     `yaml:"bin"`
	Value float64 `yaml:"value"`
	Count int64   `yaml:"count"`
}

// HistogramBand holds the histogram derived values of a band
type HistogramBand struct {
	Bins      int      `yaml:"bins"`
	Min       float64  `yaml:"min"`
	Max       float64  `yaml:"max"`
	Frequency []int64  `yaml:"frequency,omitempty"`
	Low       *float64 `yaml:"low,omitempty"`
	High      *float64 `yaml:"high,omitempty"`
	Mode      *Mode    `yaml:"mode,omitempty"`
	Entropy   *float64 `yaml:"entropy,omitempty"`
}

// Report is the assembled query result. Only the selected tables are set.
type Report struct {
	Sections Section `yaml:"-"`

	Bands        []Band          `yaml:"bands,omitempty"`
	Covariance   [][]float64     `yaml:"covariance,omitempty"`
	Correlation  [][]float64     `yaml:"correlation,omitempty"`
	EigenMode    string          `yaml:"eigenMode,omitempty"`
	EigenValues  []float64       `yaml:"eigenValues,omitempty"`
	EigenVectors [][]float64     `yaml:"eigenVectors,omitempty"`
	Histograms   []HistogramBand `yaml:"histograms,omitempty"`
}

// Options tunes Build
type Options struct {
	// Percent is the tail cut on each side for SectionPercentiles. Zero uses 2.
	Percent float64

	// EigenMode overrides the mode stored in the statistics
	EigenMode stats.EigenMode
}

// Build extracts the sections of st and h selected by sections. h may be nil
// when no histogram section is requested. Cross-band and eigen sections need
// inter-band statistics.
func Build(st *stats.Statistics, h *histogram.Histogram, sections Section, opts Options) (*Report, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: report needs statistics", models.ErrUnavailable)
	}
	r := &Report{Sections: sections}

	if sections.Has(SectionBasic) {
		for _, bs := range st.Bands() {
			r.Bands = append(r.Bands, Band{
				Count:    bs.Count,
				Min:      bs.Min,
				Max:      bs.Max,
				Mean:     bs.Mean,
				Variance: bs.Variance(),
				StdDev:   bs.StdDev(),
			})
		}
	}

	cross := SectionCovariance | SectionCorrelation | SectionEigen
	if sections&cross != 0 && !st.InterBand() {
		return nil, fmt.Errorf("%w: %s need inter-band statistics", models.ErrUnavailable, (sections & cross).String())
	}
	if sections.Has(SectionCovariance) {
		r.Covariance = rows(st.CovarianceMatrix())
	}
	if sections.Has(SectionCorrelation) {
		r.Correlation = rows(st.CorrelationMatrix())
	}
	if sections.Has(SectionEigen) {
		mode := opts.EigenMode
		if mode == stats.EigenNone {
			mode = st.EigenMode()
		}
		if mode == stats.EigenNone {
			mode = stats.EigenCovariance
		}
		values, vectors, err := st.Eigen(mode)
		if err != nil {
			return nil, err
		}
		r.EigenMode = mode.String()
		r.EigenValues = values
		r.EigenVectors = rows(vectors)
	}

	hist := SectionHistogram | SectionPercentiles | SectionMode | SectionEntropy
	if sections&hist != 0 {
		if h == nil {
			return nil, fmt.Errorf("%w: %s need a histogram", models.ErrUnavailable, (sections & hist).String())
		}
		r.Histograms = histogramBands(h, sections, opts)
	}
	return r, nil
}

func histogramBands(h *histogram.Histogram, sections Section, opts Options) []HistogramBand {
	percent := opts.Percent
	if percent == 0 {
		percent = 2
	}
	lows, highs := h.Stretch(percent, percent)
	entropy := h.Entropy()

	out := make([]HistogramBand, h.BandCount())
	for b := range out {
		band := h.Band(b)
		hb := HistogramBand{Bins: h.Bins(), Min: band.Min, Max: band.Max}
		if sections.Has(SectionHistogram) {
			hb.Frequency = band.Frequency
		}
		if sections.Has(SectionPercentiles) {
			hb.Low, hb.High = &lows[b], &highs[b]
		}
		if sections.Has(SectionMode) {
			if m, ok := h.Mode(b); ok {
				hb.Mode = &Mode{Bin: m.Bin, Value: m.Value, Count: m.Count}
			}
		}
		if sections.Has(SectionEntropy) {
			hb.Entropy = &entropy[b]
		}
		out[b] = hb
	}
	return out
}

func rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// Package record defines the serialized form of statistics and histogram
// results. Records are plain YAML documents that can be reloaded to resume
// accumulation or to feed the enhancement and report stages.
package record

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rasterstats/internal/models"
	"rasterstats/pkg/histogram"
	"rasterstats/pkg/stats"
)

// Record is the serialized statistics result
type Record struct {
	// Bands is the band count every per-band slice and matrix is sized to
	Bands int `yaml:"bands"`

	// Kind is the numeric kind of the samples the statistics were computed on
	Kind models.NumericKind `yaml:"kind"`

	Count []int64   `yaml:"count"`
	Mean  []float64 `yaml:"mean"`

	// Variance is normalized by count-1. AccumVariance keeps the raw sum of
	// squared deviations so that a resumed accumulation is exact.
	Variance      []float64 `yaml:"variance"`
	AccumVariance []float64 `yaml:"accumVariance,omitempty"`

	Min []float64 `yaml:"min"`
	Max []float64 `yaml:"max"`

	// Inter-band results. Absent for per-band statistics.
	Covariance    [][]float64 `yaml:"covariance,omitempty"`
	Correlation   [][]float64 `yaml:"correlation,omitempty"`
	CrossProducts [][]float64 `yaml:"crossProducts,omitempty"`
	CrossCount    int64       `yaml:"crossCount,omitempty"`

	EigenMode string `yaml:"eigenMode"`

	// NoData and MaskPolicy are the exclusion rules the statistics were
	// computed with. They are restored so resumed accumulation and histograms
	// keep excluding the same samples.
	NoData     models.NoData `yaml:"noData"`
	MaskPolicy string        `yaml:"maskPolicy,omitempty"`

	Histograms []Histogram `yaml:"histograms,omitempty"`
}

// Histogram is the serialized form of a histogram result
type Histogram struct {
	Kind        models.NumericKind `yaml:"kind"`
	Min         []float64          `yaml:"min"`
	Max         []float64          `yaml:"max"`
	Frequencies [][]int64          `yaml:"frequencies"`
}

// FromStatistics captures st and any histograms computed from it
func FromStatistics(st *stats.Statistics, hists ...*histogram.Histogram) *Record {
	n := st.BandCount()
	r := &Record{
		Bands:         n,
		Kind:          st.Kind(),
		Count:         make([]int64, n),
		Mean:          make([]float64, n),
		Variance:      make([]float64, n),
		AccumVariance: make([]float64, n),
		Min:           make([]float64, n),
		Max:           make([]float64, n),
		EigenMode:     st.EigenMode().String(),
		NoData:        st.NoData(),
		MaskPolicy:    st.MaskPolicy().String(),
	}
	for b, bs := range st.Bands() {
		r.Count[b] = bs.Count
		r.Mean[b] = bs.Mean
		r.Variance[b] = bs.Variance()
		r.AccumVariance[b] = bs.AccumVariance
		r.Min[b] = bs.Min
		r.Max[b] = bs.Max
	}
	if st.InterBand() {
		r.Covariance = rows(st.CovarianceMatrix())
		r.Correlation = rows(st.CorrelationMatrix())
		r.CrossProducts = st.CrossProducts()
		r.CrossCount = st.CrossCount()
	}
	for _, h := range hists {
		if h != nil {
			r.Histograms = append(r.Histograms, FromHistogram(h))
		}
	}
	return r
}

// FromHistogram captures h
func FromHistogram(h *histogram.Histogram) Histogram {
	out := Histogram{
		Kind:        h.Kind(),
		Min:         make([]float64, h.BandCount()),
		Max:         make([]float64, h.BandCount()),
		Frequencies: make([][]int64, h.BandCount()),
	}
	for b := 0; b < h.BandCount(); b++ {
		band := h.Band(b)
		out.Min[b] = band.Min
		out.Max[b] = band.Max
		out.Frequencies[b] = band.Frequency
	}
	return out
}

type symmetric interface {
	SymmetricDim() int
	At(i, j int) float64
}

func rows(m symmetric) [][]float64 {
	n := m.SymmetricDim()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// Validate checks that every slice and matrix matches the band count
func (r *Record) Validate() error {
	n := r.Bands
	if n <= 0 {
		return fmt.Errorf("%w: record has %d bands", models.ErrConfiguration, n)
	}
	for name, l := range map[string]int{
		"count":    len(r.Count),
		"mean":     len(r.Mean),
		"variance": len(r.Variance),
		"min":      len(r.Min),
		"max":      len(r.Max),
	} {
		if l != n {
			return fmt.Errorf("%w: %s has %d entries for %d bands", models.ErrConfiguration, name, l, n)
		}
	}
	if r.AccumVariance != nil && len(r.AccumVariance) != n {
		return fmt.Errorf("%w: accumVariance has %d entries for %d bands", models.ErrConfiguration, len(r.AccumVariance), n)
	}
	for name, m := range map[string][][]float64{
		"covariance":    r.Covariance,
		"correlation":   r.Correlation,
		"crossProducts": r.CrossProducts,
	} {
		if m == nil {
			continue
		}
		if len(m) != n {
			return fmt.Errorf("%w: %s has %d rows for %d bands", models.ErrConfiguration, name, len(m), n)
		}
		for i, row := range m {
			if len(row) != n {
				return fmt.Errorf("%w: %s row %d has %d columns", models.ErrConfiguration, name, i, len(row))
			}
		}
	}
	if len(r.NoData.PerBand) > n {
		return fmt.Errorf("%w: noData has %d per-band entries for %d bands", models.ErrConfiguration, len(r.NoData.PerBand), n)
	}
	if _, err := stats.ParseMaskPolicy(r.MaskPolicy); err != nil {
		return err
	}
	_, err := stats.ParseEigenMode(r.EigenMode)
	return err
}

// ToStatistics rebuilds an accumulator that can resume from the record.
// opts are applied after the stored eigen mode, no-data and mask policy.
func (r *Record) ToStatistics(opts ...stats.Option) (*stats.Statistics, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	mode, _ := stats.ParseEigenMode(r.EigenMode)
	policy, _ := stats.ParseMaskPolicy(r.MaskPolicy)
	bands := make([]stats.BandStats, r.Bands)
	for b := range bands {
		accum := r.Variance[b] * float64(r.Count[b]-1)
		if r.AccumVariance != nil {
			accum = r.AccumVariance[b]
		} else if r.Count[b] <= 1 {
			accum = 0
		}
		bands[b] = stats.BandStats{
			Count:         r.Count[b],
			Min:           r.Min[b],
			Max:           r.Max[b],
			Mean:          r.Mean[b],
			AccumVariance: accum,
		}
	}
	opts = append([]stats.Option{
		stats.WithEigenMode(mode),
		stats.WithNoData(r.NoData),
		stats.WithMaskPolicy(policy),
	}, opts...)
	return stats.Restore(bands, r.CrossProducts, r.CrossCount, r.Kind, opts...)
}

// ToHistograms rebuilds the stored histograms
func (r *Record) ToHistograms() ([]*histogram.Histogram, error) {
	out := make([]*histogram.Histogram, 0, len(r.Histograms))
	for i, hr := range r.Histograms {
		h, err := histogram.Restore(hr.Min, hr.Max, hr.Frequencies, histogram.WithKind(hr.Kind))
		if err != nil {
			return nil, fmt.Errorf("histogram %d: %w", i, err)
		}
		out = append(out, h)
	}
	return out, nil
}

// Encode writes r as YAML to w
func (r *Record) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML record from rd and validates it
func Decode(rd io.Reader) (*Record, error) {
	r := &Record{}
	if err := yaml.NewDecoder(rd).Decode(r); err != nil {
		return nil, fmt.Errorf("error decoding record: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Save writes r to path, creating parent directories as needed
func (r *Record) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating record directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating record file: %w", err)
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads the record stored at path
func Load(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening record file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

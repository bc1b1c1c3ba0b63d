package enhancement

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"rasterstats/internal/models"
	"rasterstats/pkg/histogram"
)

// Range maps the cumulative percentages [Lower, Upper) to an output value.
type Range struct {
	Lower, Upper float64
	Value        int
}

// GaussianTable returns one range per output level approximating a normal
// distribution with the configured mean and deviation. The first range
// starts at 0 and the last one ends at 100.
func GaussianTable(p Params) ([]Range, error) {
	if p.OutputLevels < 2 || p.GaussianStdDev <= 0 {
		return nil, fmt.Errorf("%w: gaussian table needs at least 2 levels and a positive deviation", models.ErrConfiguration)
	}
	normal := distuv.Normal{Mu: p.GaussianMean, Sigma: p.GaussianStdDev}
	table := make([]Range, p.OutputLevels)
	lower := 0.0
	for v := range table {
		upper := 100 * normal.CDF(float64(v)+0.5)
		if v == len(table)-1 {
			upper = 100
		}
		table[v] = Range{Lower: lower, Upper: upper, Value: v}
		lower = upper
	}
	return table, nil
}

// Gaussian reshapes each band so that its cumulative distribution follows
// the gaussian table.
type Gaussian struct {
	src   *histogram.Histogram
	table []Range
}

// NewGaussian returns the gaussian stretch strategy
func NewGaussian(src, _ *histogram.Histogram, p Params) (Generator, error) {
	if err := checkHistogram(src, "source"); err != nil {
		return nil, err
	}
	table, err := GaussianTable(p)
	if err != nil {
		return nil, err
	}
	return &Gaussian{src: src, table: table}, nil
}

// Method returns MethodGaussian
func (g *Gaussian) Method() Method { return MethodGaussian }

// CreateLUT maps each bin through its cumulative percentage in the gaussian table
func (g *Gaussian) CreateLUT() (LUT, error) {
	pct := g.src.AccumulatedFrequencyPercentage()
	lut := newLUT(g.src.BandCount(), g.src.Bins(), len(g.table))
	for b, table := range lut.Bands {
		for i, p := range pct[b] {
			table[i] = g.lookup(p)
		}
	}
	return lut, nil
}

// lookup returns the value of the first range containing pct, 0 if none does.
func (g *Gaussian) lookup(pct float64) int {
	last := len(g.table) - 1
	for i, r := range g.table {
		if pct >= r.Lower && (pct < r.Upper || (i == last && pct <= r.Upper)) {
			return r.Value
		}
	}
	return 0
}

package enhancement

import (
	"fmt"

	"rasterstats/internal/models"
	"rasterstats/pkg/histogram"
)

// Matching reshapes a source histogram onto a reference one by inverting the
// reference CDF: every source bin maps to the highest reference bin whose
// CDF does not exceed the source CDF at that bin.
type Matching struct {
	src, ref *histogram.Histogram
}

// NewMatching returns the histogram matching strategy
func NewMatching(src, ref *histogram.Histogram, _ Params) (Generator, error) {
	if err := checkHistogram(src, "source"); err != nil {
		return nil, err
	}
	if err := checkHistogram(ref, "reference"); err != nil {
		return nil, err
	}
	if src.BandCount() != ref.BandCount() {
		return nil, fmt.Errorf("%w: source has %d bands, reference has %d",
			models.ErrConfiguration, src.BandCount(), ref.BandCount())
	}
	return &Matching{src: src, ref: ref}, nil
}

// Method returns MethodMatching
func (m *Matching) Method() Method { return MethodMatching }

// CreateLUT maps each source bin to the highest reference bin whose CDF does
// not exceed the source CDF
func (m *Matching) CreateLUT() (LUT, error) {
	lut := newLUT(m.src.BandCount(), m.src.Bins(), m.ref.Bins())
	for b, table := range lut.Bands {
		totalA := float64(m.src.AccumulatedFrequency(b))
		totalB := float64(m.ref.AccumulatedFrequency(b))
		if totalA == 0 || totalB == 0 {
			continue
		}
		cdfA := cumulative(m.src, b)
		cdfB := cumulative(m.ref, b)
		for a := range table {
			// cdfB[r]/totalB <= cdfA[a]/totalA without dividing
			target := float64(cdfA[a]) * totalB
			for r := len(cdfB) - 1; r >= 0; r-- {
				if float64(cdfB[r])*totalA <= target {
					table[a] = r
					break
				}
			}
		}
	}
	return lut, nil
}

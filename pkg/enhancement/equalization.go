package enhancement

import "rasterstats/pkg/histogram"

// Equalization spreads the cumulative distribution over the bin range:
// out[bin] = floor(cum(bin)·(bins−1)/total), clamped to [0, bins−1].
type Equalization struct {
	src *histogram.Histogram
}

// NewEqualization returns the histogram equalization strategy
func NewEqualization(src, _ *histogram.Histogram, _ Params) (Generator, error) {
	if err := checkHistogram(src, "source"); err != nil {
		return nil, err
	}
	return &Equalization{src: src}, nil
}

// Method returns MethodEqualization
func (e *Equalization) Method() Method { return MethodEqualization }

// CreateLUT spreads the cumulative counts over the bin range
func (e *Equalization) CreateLUT() (LUT, error) {
	bins := e.src.Bins()
	lut := newLUT(e.src.BandCount(), bins, bins)
	for b, table := range lut.Bands {
		total := e.src.AccumulatedFrequency(b)
		if total == 0 {
			continue
		}
		for i, cum := range cumulative(e.src, b) {
			v := int(float64(cum) * float64(bins-1) / float64(total))
			if v < 0 {
				v = 0
			} else if v > bins-1 {
				v = bins - 1
			}
			table[i] = v
		}
	}
	return lut, nil
}

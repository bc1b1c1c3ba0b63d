package enhancement

import "rasterstats/pkg/histogram"

// Linear maps every bin to itself.
type Linear struct {
	src *histogram.Histogram
}

// NewLinear returns the identity strategy
func NewLinear(src, _ *histogram.Histogram, _ Params) (Generator, error) {
	if err := checkHistogram(src, "source"); err != nil {
		return nil, err
	}
	return &Linear{src: src}, nil
}

// Method returns MethodLinear
func (l *Linear) Method() Method { return MethodLinear }

// CreateLUT returns the identity table of every band
func (l *Linear) CreateLUT() (LUT, error) {
	lut := newLUT(l.src.BandCount(), l.src.Bins(), l.src.Bins())
	for _, table := range lut.Bands {
		for i := range table {
			table[i] = i
		}
	}
	return lut, nil
}

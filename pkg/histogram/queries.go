package histogram

import "math"

// BinOf returns the bin a value of band falls in. Values below Min or above
// Max are clamped to the first or last bin and reported with ok false.
func (h *Histogram) BinOf(band int, x float64) (bin int, ok bool) {
	b := &h.bands[band]
	if idx, in := b.bin(x); in {
		return idx, true
	}
	if x > b.Max {
		return len(b.Frequency) - 1, false
	}
	return 0, false
}

// BinLower returns the lower bound value of bin i of band
func (h *Histogram) BinLower(band, i int) float64 {
	b := &h.bands[band]
	return b.Min + float64(i)*b.Scale
}

// BinMidpoint returns the center value of bin i of band
func (h *Histogram) BinMidpoint(band, i int) float64 {
	b := &h.bands[band]
	return b.Min + (float64(i)+0.5)*b.Scale
}

// AccumulatedFrequencyPercentage returns, per band and bin, the percentage of
// binned samples at or below that bin. Empty bands yield all zeros.
func (h *Histogram) AccumulatedFrequencyPercentage() [][]float64 {
	out := make([][]float64, len(h.bands))
	for band := range h.bands {
		out[band] = h.cumulativePercentage(band)
	}
	return out
}

func (h *Histogram) cumulativePercentage(band int) []float64 {
	b := &h.bands[band]
	pct := make([]float64, h.bins)
	if b.Accumulated == 0 {
		return pct
	}
	var running int64
	for i, f := range b.Frequency {
		running += f
		pct[i] = float64(running) * 100 / float64(b.Accumulated)
	}
	return pct
}

// MinNPercent walks band from the lowest bin and returns the lower bound of
// the first bin at which the cumulative percentage exceeds percent. The last
// bin is returned when it never does; an empty band returns its minimum.
func (h *Histogram) MinNPercent(band int, percent float64) float64 {
	b := &h.bands[band]
	if b.Accumulated == 0 {
		return b.Min
	}
	var running int64
	for i, f := range b.Frequency {
		running += f
		if float64(running)*100/float64(b.Accumulated) > percent {
			return h.BinLower(band, i)
		}
	}
	return h.BinLower(band, h.bins-1)
}

// MaxNPercent returns the cutoff leaving percent of the samples above it.
// It is MinNPercent(100-percent), which keeps both ends consistent.
func (h *Histogram) MaxNPercent(band int, percent float64) float64 {
	return h.MinNPercent(band, 100-percent)
}

// Stretch returns, per band, the low and high cutoffs trimming lowPercent
// and highPercent of the samples from each end.
func (h *Histogram) Stretch(lowPercent, highPercent float64) (lows, highs []float64) {
	lows = make([]float64, len(h.bands))
	highs = make([]float64, len(h.bands))
	for band := range h.bands {
		lows[band] = h.MinNPercent(band, lowPercent)
		highs[band] = h.MaxNPercent(band, highPercent)
	}
	return lows, highs
}

// Entropy returns the Shannon entropy in bits of every band.
func (h *Histogram) Entropy() []float64 {
	out := make([]float64, len(h.bands))
	for band := range h.bands {
		b := &h.bands[band]
		if b.Accumulated == 0 {
			continue
		}
		total := float64(b.Accumulated)
		entropy := 0.0
		for _, f := range b.Frequency {
			if f > 0 {
				p := float64(f) / total
				entropy -= p * math.Log2(p)
			}
		}
		out[band] = entropy
	}
	return out
}

// Mode is the most populated bin of a band.
type Mode struct {
	Bin   int
	Value float64
	Count int64
}

// Mode returns the bin with the highest frequency of band, the first one on
// ties. ok is false when every bin is empty.
func (h *Histogram) Mode(band int) (m Mode, ok bool) {
	b := &h.bands[band]
	best := -1
	for i, f := range b.Frequency {
		if f > 0 && (best < 0 || f > b.Frequency[best]) {
			best = i
		}
	}
	if best < 0 {
		return Mode{}, false
	}
	return Mode{Bin: best, Value: h.BinMidpoint(band, best), Count: b.Frequency[best]}, true
}

package models

import "math"

// NoDataValue is an optional sentinel sample value.
type NoDataValue struct {
	Value float64 `yaml:"value"`
	Valid bool    `yaml:"valid"`
}

// NoData holds the global no-data value and per-band overrides.
// A valid per-band entry takes precedence over the global one.
type NoData struct {
	Global  NoDataValue   `yaml:"global"`
	PerBand []NoDataValue `yaml:"perBand,omitempty"`
}

// SetNoData returns a valid NoDataValue for v
func SetNoData(v float64) NoDataValue {
	return NoDataValue{Value: v, Valid: true}
}

// ForBand returns the effective no-data value of band b.
func (n NoData) ForBand(b int) NoDataValue {
	if b >= 0 && b < len(n.PerBand) && n.PerBand[b].Valid {
		return n.PerBand[b]
	}
	return n.Global
}

// Mask reports whether samples are excluded for one band. It is built once per
// band and tile so that the sentinel is converted to the sample precision
// only once.
type Mask struct {
	value float64
	valid bool
}

// MaskFor prepares the exclusion rule of band b for samples of the given kind.
func (n NoData) MaskFor(b int, kind NumericKind) Mask {
	nd := n.ForBand(b)
	m := Mask{value: nd.Value, valid: nd.Valid}
	if kind == KindFloat32 {
		m.value = float64(float32(nd.Value))
	}
	return m
}

// Excludes reports whether x must be left out of every statistic:
// NaN, +/-Inf, or equal to the no-data value.
func (m Mask) Excludes(x float64) bool {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return true
	}
	return m.valid && x == m.value
}

package models

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
	"gopkg.in/yaml.v3"
)

// NumericKind identifies the sample type carried by a tile's band buffers.
// The set is closed: every accumulator is instantiated for exactly these kinds.
type NumericKind int

const (
	KindUnknown NumericKind = iota
	KindUint8
	KindUint16
	KindInt16
	KindUint32
	KindInt32
	KindFloat32
	KindFloat64
)

var kindNames = map[NumericKind]string{
	KindUint8:   "u8",
	KindUint16:  "u16",
	KindInt16:   "s16",
	KindUint32:  "u32",
	KindInt32:   "s32",
	KindFloat32: "f32",
	KindFloat64: "f64",
}

// String implements fmt.Stringer
func (k NumericKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Size returns the number of bytes used by one sample of kind k.
func (k NumericKind) Size() int {
	switch k {
	case KindUint8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint32, KindInt32, KindFloat32:
		return 4
	case KindFloat64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether samples of kind k can hold NaN or Inf.
func (k NumericKind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// ParseNumericKind converts a kind tag ("u8", "f32", ...) back to a NumericKind.
// GDAL style names such as "Byte" or "Float32" are accepted as well.
func ParseNumericKind(s string) (NumericKind, error) {
	switch strings.ToLower(s) {
	case "u8", "uint8", "byte":
		return KindUint8, nil
	case "u16", "uint16":
		return KindUint16, nil
	case "s16", "int16":
		return KindInt16, nil
	case "u32", "uint32":
		return KindUint32, nil
	case "s32", "int32":
		return KindInt32, nil
	case "f32", "float32":
		return KindFloat32, nil
	case "f64", "float64":
		return KindFloat64, nil
	}
	return KindUnknown, fmt.Errorf("%w: unsupported numeric kind %q", ErrConfiguration, s)
}

// MarshalYAML stores the kind as its short tag
func (k NumericKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML parses a short kind tag. "unknown" is kept for results
// that never saw a tile.
func (k *NumericKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" || s == KindUnknown.String() {
		*k = KindUnknown
		return nil
	}
	kind, err := ParseNumericKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Sample is the set of Go types a band buffer can hold.
type Sample interface {
	constraints.Integer | constraints.Float
}

// KindOf returns the NumericKind matching T, or KindUnknown for types outside
// the supported set (int8, int64, ...).
func KindOf[T Sample]() NumericKind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return KindUint8
	case uint16:
		return KindUint16
	case int16:
		return KindInt16
	case uint32:
		return KindUint32
	case int32:
		return KindInt32
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	}
	return KindUnknown
}

// Window is a rectangular region of a raster, starting at pixel X0,Y0 and
// spanning W,H pixels.
type Window struct {
	X0, Y0 int
	W, H   int
}

// Pixels returns the number of pixel positions covered by the window
func (w Window) Pixels() int {
	return w.W * w.H
}

// Tile is one rectangular chunk of a raster. Each entry of Bands is a []T
// where T matches Kind, laid out row-major with len == Window.Pixels().
//
// Tiles are owned by the tile source. Accumulators borrow them for the
// duration of a single call and never retain the buffers.
type Tile struct {
	// Window locates the tile inside the raster extent
	Window Window

	// Kind is the numeric kind shared by every band buffer
	Kind NumericKind

	// BandIndices maps the position of a buffer in Bands back to the raster
	// band it was read from. Nil means Bands[i] is raster band i.
	BandIndices []int

	// Bands holds one typed sample buffer per band
	Bands []any
}

// NewTile builds a tile from typed band buffers.
func NewTile[T Sample](window Window, bands ...[]T) (*Tile, error) {
	kind := KindOf[T]()
	if kind == KindUnknown {
		var zero T
		return nil, fmt.Errorf("%w: unsupported sample type %T", ErrConfiguration, zero)
	}
	t := &Tile{
		Window: window,
		Kind:   kind,
		Bands:  make([]any, len(bands)),
	}
	for i, b := range bands {
		t.Bands[i] = b
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// BandCount returns the number of band buffers carried by the tile
func (t *Tile) BandCount() int {
	return len(t.Bands)
}

// Validate checks that the tile is non-empty and that every buffer has the
// declared kind and the window's pixel count.
func (t *Tile) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil tile", ErrData)
	}
	if t.Window.W <= 0 || t.Window.H <= 0 {
		return fmt.Errorf("%w: zero-size tile %dx%d", ErrData, t.Window.W, t.Window.H)
	}
	if len(t.Bands) == 0 {
		return fmt.Errorf("%w: tile carries no bands", ErrData)
	}
	if t.BandIndices != nil && len(t.BandIndices) != len(t.Bands) {
		return fmt.Errorf("%w: %d band indices for %d buffers", ErrData, len(t.BandIndices), len(t.Bands))
	}
	n := t.Window.Pixels()
	for i, b := range t.Bands {
		kind, length := bufferInfo(b)
		if kind != t.Kind {
			return fmt.Errorf("%w: band %d holds %s samples, tile declares %s", ErrData, i, kind, t.Kind)
		}
		if length != n {
			return fmt.Errorf("%w: band %d holds %d samples, window needs %d", ErrData, i, length, n)
		}
	}
	return nil
}

// RasterBand returns the raster band index of buffer i.
func (t *Tile) RasterBand(i int) int {
	if t.BandIndices == nil {
		return i
	}
	return t.BandIndices[i]
}

func bufferInfo(b any) (NumericKind, int) {
	switch v := b.(type) {
	case []uint8:
		return KindUint8, len(v)
	case []uint16:
		return KindUint16, len(v)
	case []int16:
		return KindInt16, len(v)
	case []uint32:
		return KindUint32, len(v)
	case []int32:
		return KindInt32, len(v)
	case []float32:
		return KindFloat32, len(v)
	case []float64:
		return KindFloat64, len(v)
	}
	return KindUnknown, 0
}

// Band returns buffer i of t as a []T.
func Band[T Sample](t *Tile, i int) ([]T, error) {
	if i < 0 || i >= len(t.Bands) {
		return nil, fmt.Errorf("%w: band %d out of range [0,%d)", ErrConfiguration, i, len(t.Bands))
	}
	data, ok := t.Bands[i].([]T)
	if !ok {
		var zero T
		return nil, fmt.Errorf("%w: band %d is not a []%T", ErrData, i, zero)
	}
	return data, nil
}

// Bands returns every buffer of t as [][]T.
func Bands[T Sample](t *Tile) ([][]T, error) {
	out := make([][]T, len(t.Bands))
	for i := range t.Bands {
		data, err := Band[T](t, i)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

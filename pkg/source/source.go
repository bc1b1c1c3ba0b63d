// Package source defines the tile source contract consumed by the engine and
// provides an in-memory implementation.
package source

import (
	"context"
	"fmt"

	"rasterstats/internal/models"
)

// TileSource supplies per-band sample buffers for rectangular regions of a
// raster. Retry of failed reads, if any, is the source's business.
type TileSource interface {
	// Size returns the raster extent in pixels
	Size() (width, height int)

	// BandCount returns the number of bands of the raster
	BandCount() int

	// NumericKind returns the sample kind of every band
	NumericKind() models.NumericKind

	// ReadTile returns the buffers of the requested bands over window. The
	// returned tile is only valid until the next call to ReadTile.
	ReadTile(ctx context.Context, window models.Window, bands []int) (*models.Tile, error)
}

// NoDataProvider is implemented by sources that know their band sentinels.
type NoDataProvider interface {
	NoData() models.NoData
}

// Memory is a TileSource over fully loaded band arrays.
type Memory[T models.Sample] struct {
	width, height int
	bands         [][]T
	nodata        models.NoData
}

// NewMemory wraps row-major band arrays of width*height samples each.
func NewMemory[T models.Sample](width, height int, bands ...[]T) (*Memory[T], error) {
	if models.KindOf[T]() == models.KindUnknown {
		var zero T
		return nil, fmt.Errorf("%w: unsupported sample type %T", models.ErrConfiguration, zero)
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", models.ErrConfiguration)
	}
	for i, b := range bands {
		if len(b) != width*height {
			return nil, fmt.Errorf("%w: band %d holds %d samples, %dx%d raster needs %d",
				models.ErrData, i, len(b), width, height, width*height)
		}
	}
	return &Memory[T]{width: width, height: height, bands: bands}, nil
}

// WithNoData attaches band sentinels reported through NoDataProvider
func (m *Memory[T]) WithNoData(nd models.NoData) *Memory[T] {
	m.nodata = nd
	return m
}

// Size returns the raster width and height
func (m *Memory[T]) Size() (int, int) {
	return m.width, m.height
}

// BandCount returns the number of bands
func (m *Memory[T]) BandCount() int {
	return len(m.bands)
}

// NumericKind returns the kind of T
func (m *Memory[T]) NumericKind() models.NumericKind {
	return models.KindOf[T]()
}

// NoData returns the sentinels set with WithNoData
func (m *Memory[T]) NoData() models.NoData {
	return m.nodata
}

// ReadTile copies window of the requested bands into a new tile
func (m *Memory[T]) ReadTile(ctx context.Context, window models.Window, bands []int) (*models.Tile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if window.X0 < 0 || window.Y0 < 0 || window.W <= 0 || window.H <= 0 ||
		window.X0+window.W > m.width || window.Y0+window.H > m.height {
		return nil, fmt.Errorf("%w: window %+v outside %dx%d raster", models.ErrData, window, m.width, m.height)
	}
	tile := &models.Tile{
		Window:      window,
		Kind:        models.KindOf[T](),
		BandIndices: bands,
		Bands:       make([]any, len(bands)),
	}
	for i, b := range bands {
		if b < 0 || b >= len(m.bands) {
			return nil, fmt.Errorf("%w: band %d out of range [0,%d)", models.ErrConfiguration, b, len(m.bands))
		}
		tile.Bands[i] = m.extract(m.bands[b], window)
	}
	return tile, nil
}

// extract returns the window samples. Full-width windows are contiguous and
// are returned without copying.
func (m *Memory[T]) extract(band []T, w models.Window) []T {
	if w.X0 == 0 && w.W == m.width {
		return band[w.Y0*m.width : (w.Y0+w.H)*m.width]
	}
	out := make([]T, 0, w.Pixels())
	for y := w.Y0; y < w.Y0+w.H; y++ {
		row := y * m.width
		out = append(out, band[row+w.X0:row+w.X0+w.W]...)
	}
	return out
}

// AllBands returns the indices 0..n-1
func AllBands(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

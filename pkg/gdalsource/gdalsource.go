// Package gdalsource reads raster tiles through GDAL.
package gdalsource

import (
	"context"
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"rasterstats/internal/models"
)

var registerOnce sync.Once

// Register loads every GDAL driver. It is safe to call more than once.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// KindOf maps a GDAL data type to a numeric kind. Complex and unknown types
// map to KindUnknown.
func KindOf(dt godal.DataType) models.NumericKind {
	switch dt {
	case godal.Byte:
		return models.KindUint8
	case godal.UInt16:
		return models.KindUint16
	case godal.Int16:
		return models.KindInt16
	case godal.UInt32:
		return models.KindUint32
	case godal.Int32:
		return models.KindInt32
	case godal.Float32:
		return models.KindFloat32
	case godal.Float64:
		return models.KindFloat64
	}
	return models.KindUnknown
}

// Source is a TileSource over a GDAL dataset. Band buffers are reused
// between reads, so a tile is only valid until the next ReadTile call.
type Source struct {
	ds     *godal.Dataset
	owned  bool
	bands  []godal.Band
	width  int
	height int
	kind   models.NumericKind
	nodata models.NoData

	buffers []any
}

// Open opens name read-only. gs:// names need RegisterGCS first.
func Open(name string) (*Source, error) {
	Register()
	ds, err := godal.Open(name, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	s, err := FromDataset(ds)
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	s.owned = true
	return s, nil
}

// FromDataset wraps an already opened dataset. Closing the source leaves ds
// open.
func FromDataset(ds *godal.Dataset) (*Source, error) {
	st := ds.Structure()
	if st.NBands == 0 {
		return nil, fmt.Errorf("%w: dataset has no bands", models.ErrConfiguration)
	}
	kind := KindOf(st.DataType)
	if kind == models.KindUnknown {
		return nil, fmt.Errorf("%w: unsupported data type %s", models.ErrConfiguration, st.DataType)
	}
	s := &Source{
		ds:     ds,
		bands:  ds.Bands(),
		width:  st.SizeX,
		height: st.SizeY,
		kind:   kind,
	}
	s.nodata.PerBand = make([]models.NoDataValue, len(s.bands))
	for i, b := range s.bands {
		if nd, ok := b.NoData(); ok {
			s.nodata.PerBand[i] = models.SetNoData(nd)
		}
	}
	return s, nil
}

// Close releases the dataset when the source opened it
func (s *Source) Close() error {
	if !s.owned {
		return nil
	}
	return s.ds.Close()
}

// Size returns the raster width and height
func (s *Source) Size() (int, int) {
	return s.width, s.height
}

// BandCount returns the number of raster bands
func (s *Source) BandCount() int {
	return len(s.bands)
}

// NumericKind returns the kind of the first band
func (s *Source) NumericKind() models.NumericKind {
	return s.kind
}

// NoData returns the sentinels declared on each band
func (s *Source) NoData() models.NoData {
	return s.nodata
}

// ReadTile reads window of the requested bands. The returned tile reuses
// the source buffers and is only valid until the next call.
func (s *Source) ReadTile(ctx context.Context, window models.Window, bands []int) (*models.Tile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if window.X0 < 0 || window.Y0 < 0 || window.W <= 0 || window.H <= 0 ||
		window.X0+window.W > s.width || window.Y0+window.H > s.height {
		return nil, fmt.Errorf("%w: window %+v outside %dx%d raster", models.ErrData, window, s.width, s.height)
	}
	for len(s.buffers) < len(bands) {
		s.buffers = append(s.buffers, nil)
	}
	tile := &models.Tile{
		Window:      window,
		Kind:        s.kind,
		BandIndices: bands,
		Bands:       make([]any, len(bands)),
	}
	for i, b := range bands {
		if b < 0 || b >= len(s.bands) {
			return nil, fmt.Errorf("%w: band %d out of range [0,%d)", models.ErrConfiguration, b, len(s.bands))
		}
		buf := s.buffer(i, window.Pixels())
		if err := s.bands[b].Read(window.X0, window.Y0, buf, window.W, window.H); err != nil {
			return nil, fmt.Errorf("read band %d: %w", b, err)
		}
		tile.Bands[i] = buf
	}
	return tile, nil
}

// buffer returns the reusable slot i resized to n samples
func (s *Source) buffer(i, n int) any {
	switch s.kind {
	case models.KindUint8:
		return resize[uint8](s.buffers, i, n)
	case models.KindUint16:
		return resize[uint16](s.buffers, i, n)
	case models.KindInt16:
		return resize[int16](s.buffers, i, n)
	case models.KindUint32:
		return resize[uint32](s.buffers, i, n)
	case models.KindInt32:
		return resize[int32](s.buffers, i, n)
	case models.KindFloat32:
		return resize[float32](s.buffers, i, n)
	default:
		return resize[float64](s.buffers, i, n)
	}
}

func resize[T models.Sample](slots []any, i, n int) []T {
	buf, _ := slots[i].([]T)
	if cap(buf) < n {
		buf = make([]T, n)
	}
	buf = buf[:n]
	slots[i] = buf
	return buf
}

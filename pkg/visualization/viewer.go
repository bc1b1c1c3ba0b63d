// Package visualization renders raster bands through an enhancement lookup
// table into 8-bit grayscale previews.
package visualization

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"rasterstats/internal/models"
	"rasterstats/pkg/enhancement"
	"rasterstats/pkg/histogram"
	"rasterstats/pkg/source"
	"rasterstats/pkg/tiling"
)

// Viewer maps band samples to display intensities: a sample is binned with
// the histogram, the bin goes through the LUT and the LUT level is scaled to
// 0..255.
type Viewer struct {
	hist   *histogram.Histogram
	lut    enhancement.LUT
	nodata models.NoData

	// sizer decides the windows read while rendering a whole band
	sizer tiling.Sizer
}

// Option configures a Viewer
type Option func(v *Viewer)

// WithNoData paints excluded samples black
func WithNoData(nd models.NoData) Option {
	return func(v *Viewer) {
		v.nodata = nd
	}
}

// WithSizer sets the windows read by ExtractBand
func WithSizer(s tiling.Sizer) Option {
	return func(v *Viewer) {
		v.sizer = s
	}
}

// NewViewer creates a viewer for the bands of h using lut
func NewViewer(h *histogram.Histogram, lut enhancement.LUT, opts ...Option) (*Viewer, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: viewer needs a histogram", models.ErrUnavailable)
	}
	if len(lut.Bands) != h.BandCount() {
		return nil, fmt.Errorf("%w: lookup table has %d bands, histogram has %d", models.ErrConfiguration, len(lut.Bands), h.BandCount())
	}
	if lut.Levels < 1 {
		return nil, fmt.Errorf("%w: lookup table has no output levels", models.ErrConfiguration)
	}
	v := &Viewer{
		hist:  h,
		lut:   lut,
		sizer: tiling.MemoryBudget{Bytes: 4 << 20},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Intensity returns the display value of sample x of band
func (v *Viewer) Intensity(band int, x float64) uint8 {
	bin, _ := v.hist.BinOf(band, x)
	level := v.lut.Lookup(band, bin)
	if v.lut.Levels == 1 {
		return 0
	}
	out := level * 255 / (v.lut.Levels - 1)
	if out < 0 {
		return 0
	}
	if out > 255 {
		return 255
	}
	return uint8(out)
}

// PaintTile draws buffer of tile as band into img at the tile's window.
// img must cover the raster extent.
func (v *Viewer) PaintTile(img *image.Gray, band int, tile *models.Tile, buffer int) error {
	if err := tile.Validate(); err != nil {
		return err
	}
	if band < 0 || band >= v.hist.BandCount() {
		return fmt.Errorf("%w: band %d out of range [0,%d)", models.ErrConfiguration, band, v.hist.BandCount())
	}
	w := tile.Window
	if !image.Rect(w.X0, w.Y0, w.X0+w.W, w.Y0+w.H).In(img.Bounds()) {
		return fmt.Errorf("%w: window %+v outside image %v", models.ErrData, w, img.Bounds())
	}
	mask := v.nodata.MaskFor(tile.RasterBand(buffer), tile.Kind)

	switch tile.Kind {
	case models.KindUint8:
		return paint[uint8](v, img, band, tile, buffer, mask)
	case models.KindUint16:
		return paint[uint16](v, img, band, tile, buffer, mask)
	case models.KindInt16:
		return paint[int16](v, img, band, tile, buffer, mask)
	case models.KindUint32:
		return paint[uint32](v, img, band, tile, buffer, mask)
	case models.KindInt32:
		return paint[int32](v, img, band, tile, buffer, mask)
	case models.KindFloat32:
		return paint[float32](v, img, band, tile, buffer, mask)
	case models.KindFloat64:
		return paint[float64](v, img, band, tile, buffer, mask)
	}
	return fmt.Errorf("%w: unsupported numeric kind %s", models.ErrConfiguration, tile.Kind)
}

func paint[T models.Sample](v *Viewer, img *image.Gray, band int, tile *models.Tile, buffer int, mask models.Mask) error {
	data, err := models.Band[T](tile, buffer)
	if err != nil {
		return err
	}
	w := tile.Window
	for y := 0; y < w.H; y++ {
		row := img.PixOffset(w.X0, w.Y0+y)
		for x := 0; x < w.W; x++ {
			s := float64(data[y*w.W+x])
			if mask.Excludes(s) {
				img.Pix[row+x] = 0
				continue
			}
			img.Pix[row+x] = v.Intensity(band, s)
		}
	}
	return nil
}

// ExtractBand renders histogram band band, read from raster band rasterBand
// of src, into a new image covering the whole extent.
func (v *Viewer) ExtractBand(ctx context.Context, src source.TileSource, band, rasterBand int) (*image.Gray, error) {
	width, height := src.Size()
	tileX, tileY := v.sizer.TileSize(width, height, 1, src.NumericKind())
	it, err := tiling.NewIterator(width, height, tileX, tileY)
	if err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for ok := true; ok; it, ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tile, err := src.ReadTile(ctx, it.Window, []int{rasterBand})
		if err != nil {
			return nil, fmt.Errorf("reading window %+v: %w", it.Window, err)
		}
		if err := v.PaintTile(img, band, tile, 0); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// SaveImage writes img as PNG or JPEG depending on the file extension
func SaveImage(img image.Image, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		return fmt.Errorf("%w: unsupported image extension %q", models.ErrConfiguration, ext)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if ext == ".png" {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveBandSequence renders every histogram band and writes it to outputDir
// as band_NNN.png. bands maps histogram bands to raster bands.
func (v *Viewer) SaveBandSequence(ctx context.Context, src source.TileSource, bands []int, outputDir string) error {
	if len(bands) != v.hist.BandCount() {
		return fmt.Errorf("%w: %d raster bands for %d histogram bands", models.ErrConfiguration, len(bands), v.hist.BandCount())
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for b, rb := range bands {
		img, err := v.ExtractBand(ctx, src, b, rb)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("band_%03d.png", rb))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}
	return nil
}

// Package tiling splits a raster extent into a row-major sequence of windows.
package tiling

import (
	"fmt"

	"rasterstats/internal/models"
)

// Iterator walks the windows covering a sizeX,sizeY extent in scanline order.
// Edge windows are clipped to the extent so every pixel is visited exactly once.
type Iterator struct {
	models.Window
	bw, bh int //tile size
	sx, sy int //extent size
	nx, ny int //num tiles
	i, j   int //cur
}

// NewIterator returns the first window covering a sizeX,sizeY extent with
// tiles of tileX,tileY pixels. All sizes must be strictly positive.
func NewIterator(sizeX, sizeY, tileX, tileY int) (Iterator, error) {
	if sizeX <= 0 || sizeY <= 0 {
		return Iterator{}, fmt.Errorf("%w: extent %dx%d", models.ErrData, sizeX, sizeY)
	}
	if tileX <= 0 || tileY <= 0 {
		return Iterator{}, fmt.Errorf("%w: tile size %dx%d", models.ErrConfiguration, tileX, tileY)
	}
	it := Iterator{
		bw: tileX,
		bh: tileY,
		sx: sizeX,
		sy: sizeY,
	}
	it.nx, it.ny = (sizeX+tileX-1)/tileX, (sizeY+tileY-1)/tileY
	it.W, it.H = it.actualSize(0, 0)
	return it, nil
}

// Next returns the following window in scanline order. It returns
// Iterator{},false when the extent is exhausted.
func (it Iterator) Next() (Iterator, bool) {
	nb := it
	nb.i++
	if nb.i >= nb.nx {
		nb.i = 0
		nb.j++
	}
	if nb.j >= nb.ny {
		return Iterator{}, false
	}
	nb.X0 = nb.i * nb.bw
	nb.Y0 = nb.j * nb.bh
	nb.W, nb.H = nb.actualSize(nb.i, nb.j)
	return nb, true
}

// Count returns the number of tiles in the x and y dimensions
func (it Iterator) Count() (int, int) {
	return it.nx, it.ny
}

func (it Iterator) actualSize(i, j int) (int, int) {
	w, h := it.bw, it.bh
	if (i+1)*it.bw > it.sx {
		w = it.sx - i*it.bw
	}
	if (j+1)*it.bh > it.sy {
		h = it.sy - j*it.bh
	}
	return w, h
}

// Windows returns every window of the extent in traversal order.
func Windows(sizeX, sizeY, tileX, tileY int) ([]models.Window, error) {
	it, err := NewIterator(sizeX, sizeY, tileX, tileY)
	if err != nil {
		return nil, err
	}
	nx, ny := it.Count()
	out := make([]models.Window, 0, nx*ny)
	for ok := true; ok; it, ok = it.Next() {
		out = append(out, it.Window)
	}
	return out, nil
}

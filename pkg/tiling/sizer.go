package tiling

import "rasterstats/internal/models"

// Sizer decides the tile dimensions used to traverse a raster. It stands in
// for the buffering heuristic of the caller.
type Sizer interface {
	TileSize(width, height, bands int, kind models.NumericKind) (int, int)
}

// FixedTiles always returns the same tile size, clipped to the extent.
type FixedTiles struct {
	Cols, Rows int
}

// TileSize returns the fixed size clipped to the raster extent
func (f FixedTiles) TileSize(width, height, _ int, _ models.NumericKind) (int, int) {
	return clip(f.Cols, width), clip(f.Rows, height)
}

// MemoryBudget reads full-width strips holding at most Bytes bytes across
// all bands. At least one row is always read.
type MemoryBudget struct {
	Bytes int
}

// TileSize returns full-width strips whose rows fit in the byte budget
func (m MemoryBudget) TileSize(width, height, bands int, kind models.NumericKind) (int, int) {
	rowBytes := width * bands * kind.Size()
	if rowBytes <= 0 {
		return clip(width, width), 1
	}
	rows := m.Bytes / rowBytes
	return clip(width, width), clip(rows, height)
}

func clip(v, limit int) int {
	if v < 1 {
		return 1
	}
	if v > limit {
		return limit
	}
	return v
}

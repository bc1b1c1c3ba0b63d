package tiling

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasterstats/internal/models"
)

func TestIteratorVisitsEveryPixelOnce(t *testing.T) {
	width, height := 10, 7
	seen := make([]int, width*height)

	windows, err := Windows(width, height, 4, 3)
	require.NoError(t, err)
	assert.Len(t, windows, 3*3)

	for _, w := range windows {
		for y := w.Y0; y < w.Y0+w.H; y++ {
			for x := w.X0; x < w.X0+w.W; x++ {
				seen[y*width+x]++
			}
		}
	}
	for i, n := range seen {
		assert.Equal(t, 1, n, "pixel %d visited %d times", i, n)
	}
}

func TestIteratorRowMajorOrder(t *testing.T) {
	windows, err := Windows(5, 4, 2, 2)
	require.NoError(t, err)

	expected := []models.Window{
		{X0: 0, Y0: 0, W: 2, H: 2}, {X0: 2, Y0: 0, W: 2, H: 2}, {X0: 4, Y0: 0, W: 1, H: 2},
		{X0: 0, Y0: 2, W: 2, H: 2}, {X0: 2, Y0: 2, W: 2, H: 2}, {X0: 4, Y0: 2, W: 1, H: 2},
	}
	assert.Equal(t, expected, windows)
}

func TestIteratorRejectsBadSizes(t *testing.T) {
	_, err := NewIterator(0, 10, 1, 1)
	assert.True(t, errors.Is(err, models.ErrData))

	_, err = NewIterator(10, 10, 0, 1)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestSizers(t *testing.T) {
	w, h := FixedTiles{Cols: 512, Rows: 64}.TileSize(100, 1000, 3, models.KindUint8)
	assert.Equal(t, 100, w)
	assert.Equal(t, 64, h)

	w, h = MemoryBudget{Bytes: 100 * 4 * 2 * 10}.TileSize(100, 1000, 2, models.KindFloat32)
	assert.Equal(t, 100, w)
	assert.Equal(t, 10, h)

	w, h = MemoryBudget{Bytes: 1}.TileSize(100, 1000, 2, models.KindFloat64)
	assert.Equal(t, 100, w)
	assert.Equal(t, 1, h)
}

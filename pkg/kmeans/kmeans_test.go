package kmeans

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasterstats/internal/models"
)

func TestCountsCoverEveryPixel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const w, h = 13, 9
	r := make([]uint16, w*h)
	g := make([]uint16, w*h)
	for i := range r {
		r[i] = uint16(rng.Intn(1000))
		g[i] = uint16(rng.Intn(1000))
	}
	tile, err := models.NewTile(models.Window{W: w, H: h}, r, g)
	require.NoError(t, err)

	a := New()
	require.NoError(t, a.SetInitialMeans(SpreadSeeds([]float64{0, 0}, []float64{999, 999}, 4)))
	require.NoError(t, a.ProcessTile(tile))

	var sum int64
	for _, c := range a.Counts() {
		sum += c
	}
	assert.Equal(t, int64(w*h), sum)
}

func TestUpdatedMeans(t *testing.T) {
	tile, err := models.NewTile(models.Window{W: 5, H: 1}, []float64{0, 2, 10, 12, 14})
	require.NoError(t, err)

	a := New()
	require.NoError(t, a.SetInitialMeans([][]float64{{1}, {11}, {100}}))
	require.NoError(t, a.ProcessTile(tile))

	assert.Equal(t, []int64{2, 3, 0}, a.Counts())
	means := a.UpdatedMeans()
	assert.Equal(t, []float64{1}, means[0])
	assert.Equal(t, []float64{12}, means[1])
	// empty class keeps its centroid
	assert.Equal(t, []float64{100}, means[2])
}

func TestTiesKeepFirstClass(t *testing.T) {
	a := New()
	require.NoError(t, a.SetInitialMeans([][]float64{{0, 0}, {2, 2}}))
	assert.Equal(t, 0, a.Nearest([]float64{1, 1}))
	assert.Equal(t, 1, a.Nearest([]float64{1.5, 1}))
}

func TestSkipNoData(t *testing.T) {
	tile, err := models.NewTile(models.Window{W: 4, H: 1},
		[]int16{-1, -1, 5, 6},
		[]int16{-1, 3, 5, 6})
	require.NoError(t, err)

	a := New(WithNoDataSkipping(models.NoData{Global: models.SetNoData(-1)}))
	require.NoError(t, a.SetInitialMeans([][]float64{{0, 0}, {6, 6}}))
	require.NoError(t, a.ProcessTile(tile))

	// only the first position has every band invalid
	assert.Equal(t, []int64{1, 2}, a.Counts())
}

func TestSetInitialMeansResets(t *testing.T) {
	tile, err := models.NewTile(models.Window{W: 2, H: 1}, []uint8{1, 2})
	require.NoError(t, err)

	a := New()
	require.NoError(t, a.SetInitialMeans([][]float64{{0}}))
	require.NoError(t, a.ProcessTile(tile))
	require.NoError(t, a.SetInitialMeans(a.UpdatedMeans()))
	assert.Equal(t, []int64{0}, a.Counts())
	assert.Equal(t, [][]float64{{1.5}}, a.UpdatedMeans())
}

func TestErrors(t *testing.T) {
	tile, err := models.NewTile(models.Window{W: 1, H: 1}, []uint8{1})
	require.NoError(t, err)

	a := New()
	assert.True(t, errors.Is(a.ProcessTile(tile), models.ErrUnavailable))
	assert.True(t, errors.Is(a.SetInitialMeans(nil), models.ErrConfiguration))
	assert.True(t, errors.Is(a.SetInitialMeans([][]float64{{1, 2}, {3}}), models.ErrConfiguration))

	require.NoError(t, a.SetInitialMeans([][]float64{{1, 2}}))
	assert.True(t, errors.Is(a.ProcessTile(tile), models.ErrConfiguration))
}

func TestSpreadSeedsAndShift(t *testing.T) {
	seeds := SpreadSeeds([]float64{0, 10}, []float64{30, 40}, 4)
	assert.Equal(t, [][]float64{{0, 10}, {10, 20}, {20, 30}, {30, 40}}, seeds)
	assert.Equal(t, [][]float64{{15, 25}}, SpreadSeeds([]float64{0, 10}, []float64{30, 40}, 1))

	moved := [][]float64{{3, 14}, {10, 20}, {20, 30}, {30, 40}}
	assert.InDelta(t, 5.0, MaxShift(seeds, moved), 1e-12)
	assert.Equal(t, 0.0, MaxShift(seeds, seeds))
	assert.False(t, math.IsNaN(MaxShift(nil, nil)))
}

package stats

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"rasterstats/internal/models"
)

func tileOf[T models.Sample](t *testing.T, w, h int, bands ...[]T) *models.Tile {
	t.Helper()
	tile, err := models.NewTile(models.Window{W: w, H: h}, bands...)
	require.NoError(t, err)
	return tile
}

func TestSingleBandScenario(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)
	require.NoError(t, s.ProcessBand(0, tileOf(t, 4, 1, []uint8{10, 20, 30, 40})))

	assert.Equal(t, int64(4), s.Count(0))
	assert.Equal(t, 25.0, s.Mean(0))
	assert.Equal(t, 10.0, s.Min(0))
	assert.Equal(t, 40.0, s.Max(0))
	assert.InDelta(t, 500.0/3.0, s.Variance(0), 1e-9)
	assert.InDelta(t, math.Sqrt(500.0/3.0), s.StdDev(0), 1e-9)
}

func TestNoDataScenario(t *testing.T) {
	s, err := New(1, WithNoData(models.NoData{Global: models.SetNoData(30)}))
	require.NoError(t, err)
	require.NoError(t, s.ProcessBand(0, tileOf(t, 4, 1, []int16{10, 20, 30, 40})))

	assert.Equal(t, int64(3), s.Count(0))
	assert.InDelta(t, 70.0/3.0, s.Mean(0), 1e-12)
	assert.Equal(t, 40.0, s.Max(0))
}

func TestPerBandNoDataOverridesGlobal(t *testing.T) {
	nd := models.NoData{
		Global:  models.SetNoData(0),
		PerBand: []models.NoDataValue{{}, models.SetNoData(5)},
	}
	s, err := New(2, WithNoData(nd))
	require.NoError(t, err)

	tile := tileOf(t, 3, 1, []uint16{0, 5, 7}, []uint16{0, 5, 7})
	require.NoError(t, s.ProcessBand(0, tile))
	require.NoError(t, s.ProcessBand(1, tile))

	assert.Equal(t, int64(2), s.Count(0))
	assert.Equal(t, 5.0, s.Min(0))
	assert.Equal(t, int64(2), s.Count(1))
	assert.Equal(t, 0.0, s.Min(1))
}

func TestInvalidSamplesAreExcluded(t *testing.T) {
	data := []float64{1, math.NaN(), 2, math.Inf(1), 3, math.Inf(-1), -9999}
	s, err := New(1, WithNoData(models.NoData{Global: models.SetNoData(-9999)}))
	require.NoError(t, err)
	require.NoError(t, s.ProcessBand(0, tileOf(t, len(data), 1, data)))

	assert.Equal(t, int64(3), s.Count(0))
	assert.Equal(t, 1.0, s.Min(0))
	assert.Equal(t, 3.0, s.Max(0))
	assert.Equal(t, 2.0, s.Mean(0))
}

func TestFloat32NoDataMatchesSamplePrecision(t *testing.T) {
	nd := -3.4028234663852886e+38
	data := []float32{float32(nd), 1, 2}
	s, err := New(1, WithNoData(models.NoData{Global: models.SetNoData(nd)}))
	require.NoError(t, err)
	require.NoError(t, s.ProcessBand(0, tileOf(t, 3, 1, data)))
	assert.Equal(t, int64(2), s.Count(0))
}

func TestWelfordMatchesTwoPass(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := make([]float64, 10000)
	for i := range data {
		data[i] = 1e6 + rng.NormFloat64()*3
	}

	s, err := New(1)
	require.NoError(t, err)
	// feed in uneven chunks to exercise tile boundaries
	for start := 0; start < len(data); {
		end := start + 1 + rng.Intn(700)
		if end > len(data) {
			end = len(data)
		}
		require.NoError(t, s.ProcessBand(0, tileOf(t, end-start, 1, data[start:end])))
		start = end
	}

	mean, variance := stat.MeanVariance(data, nil)
	assert.InEpsilon(t, mean, s.Mean(0), 1e-12)
	assert.InEpsilon(t, variance, s.Variance(0), 1e-9)
	assert.Equal(t, floats.Min(data), s.Min(0))
	assert.Equal(t, floats.Max(data), s.Max(0))
}

func TestDegenerateVariance(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Variance(0))

	require.NoError(t, s.ProcessBand(0, tileOf(t, 1, 1, []float32{7})))
	assert.Equal(t, 0.0, s.Variance(0))
	assert.Equal(t, 0.0, s.StdDev(0))
	assert.False(t, math.IsNaN(s.Variance(0)))
}

func randomBands(rng *rand.Rand, n int) ([]float64, []float64, []float64) {
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = rng.Float64() * 100
		b[i] = 0.5*a[i] + rng.NormFloat64()*4
		c[i] = -0.2*a[i] + 0.7*b[i] + rng.NormFloat64()
	}
	return a, b, c
}

func TestCovarianceMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a, b, c := randomBands(rng, 500)

	s, err := New(3)
	require.NoError(t, err)
	require.NoError(t, s.ProcessAllBands(tileOf(t, 25, 20, a, b, c)))
	assert.True(t, s.InterBand())
	assert.Equal(t, int64(500), s.CrossCount())

	cov := s.CovarianceMatrix()
	cross := s.CrossProducts()
	data := mat.NewDense(500, 3, nil)
	for i := 0; i < 500; i++ {
		data.SetRow(i, []float64{a[i], b[i], c[i]})
	}
	var ref mat.SymDense
	stat.CovarianceMatrix(&ref, data, nil)

	n := float64(s.CrossCount())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, cov.At(i, j), cov.At(j, i))
			naive := (cross[i][j] - n*s.Mean(i)*s.Mean(j)) / n
			assert.InEpsilon(t, naive, cov.At(i, j), 1e-6)
			assert.InEpsilon(t, ref.At(i, j)*(n-1)/n, cov.At(i, j), 1e-9)
		}
	}

	var refCorr mat.SymDense
	stat.CorrelationMatrix(&refCorr, data, nil)
	corr := s.CorrelationMatrix()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, corr.At(i, i), 1e-12)
		for j := 0; j < 3; j++ {
			assert.InDelta(t, refCorr.At(i, j), corr.At(i, j), 1e-9)
		}
	}
}

func TestCorrelationOfConstantBandIsZero(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	require.NoError(t, s.ProcessAllBands(tileOf(t, 3, 1, []int32{4, 4, 4}, []int32{1, 2, 3})))

	corr := s.CorrelationMatrix()
	assert.Equal(t, 0.0, corr.At(0, 1))
	assert.Equal(t, 0.0, corr.At(0, 0))
	assert.InDelta(t, 1.0, corr.At(1, 1), 1e-12)
}

func TestEigenDecomposition(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a, b, c := randomBands(rng, 300)
	s, err := New(3, WithEigenMode(EigenCovariance))
	require.NoError(t, err)
	require.NoError(t, s.ProcessAllBands(tileOf(t, 300, 1, a, b, c)))

	for _, mode := range []EigenMode{EigenCovariance, EigenCorrelation} {
		values, vectors, err := s.Eigen(mode)
		require.NoError(t, err)
		require.Len(t, values, 3)
		for k := 1; k < len(values); k++ {
			assert.GreaterOrEqual(t, values[k-1], values[k])
		}

		m, err := s.Matrix(mode)
		require.NoError(t, err)
		for k := 0; k < 3; k++ {
			v := mat.NewVecDense(3, []float64{vectors.At(0, k), vectors.At(1, k), vectors.At(2, k)})
			var mv mat.VecDense
			mv.MulVec(m, v)
			for r := 0; r < 3; r++ {
				assert.InDelta(t, values[k]*v.AtVec(r), mv.AtVec(r), 1e-8)
			}
		}
	}

	_, err = s.EigenValues(EigenNone)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestMaskPolicies(t *testing.T) {
	nd := models.NoData{Global: models.SetNoData(0)}
	a := []uint8{0, 10, 0, 30}
	b := []uint8{0, 20, 50, 40}

	all, err := New(2, WithNoData(nd))
	require.NoError(t, err)
	require.NoError(t, all.ProcessAllBands(tileOf(t, 4, 1, a, b)))
	// position 0 is invalid in both bands, position 2 only in band 0
	assert.Equal(t, int64(3), all.CrossCount())
	assert.Equal(t, int64(3), all.Count(0))
	assert.Equal(t, 0.0, all.Min(0))

	anyPolicy, err := New(2, WithNoData(nd), WithMaskPolicy(MaskAnyInvalid))
	require.NoError(t, err)
	require.NoError(t, anyPolicy.ProcessAllBands(tileOf(t, 4, 1, a, b)))
	assert.Equal(t, int64(2), anyPolicy.CrossCount())
	assert.Equal(t, 10.0, anyPolicy.Min(0))
	assert.Equal(t, 20.0, anyPolicy.Min(1))
}

func TestAllInvalidPolicyCarriesNonFiniteSamples(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	forward, err := New(2)
	require.NoError(t, err)
	require.NoError(t, forward.ProcessAllBands(tileOf(t, 4, 1, []float32{nan, 1, 2, 3}, []float32{5, 6, 7, 8})))

	backward, err := New(2)
	require.NoError(t, err)
	require.NoError(t, backward.ProcessAllBands(tileOf(t, 4, 1, []float32{3, 2, 1, nan}, []float32{8, 7, 6, 5})))

	for _, s := range []*Statistics{forward, backward} {
		// only band 0 is invalid at the NaN position, so it is kept
		assert.Equal(t, int64(4), s.CrossCount())
		assert.Equal(t, int64(4), s.Count(0))
		assert.True(t, math.IsNaN(s.Mean(0)))
		assert.Equal(t, 1.0, s.Min(0))
		assert.Equal(t, 3.0, s.Max(0))
		assert.Equal(t, 5.0, s.Min(1))
		assert.Equal(t, 8.0, s.Max(1))
		assert.InDelta(t, 6.5, s.Mean(1), 1e-12)
	}

	withInf, err := New(2)
	require.NoError(t, err)
	require.NoError(t, withInf.ProcessAllBands(tileOf(t, 4, 1, []float32{1, inf, 2, 3}, []float32{5, 6, 7, 8})))
	assert.Equal(t, int64(4), withInf.Count(0))
	assert.Equal(t, 1.0, withInf.Min(0))
	assert.Equal(t, 3.0, withInf.Max(0))
}

func TestMergeIgnoresNonFiniteBounds(t *testing.T) {
	nan := math.NaN()

	left, err := New(2)
	require.NoError(t, err)
	require.NoError(t, left.ProcessAllBands(tileOf(t, 1, 1, []float64{nan}, []float64{5})))
	assert.True(t, math.IsNaN(left.Min(0)))

	right, err := New(2)
	require.NoError(t, err)
	require.NoError(t, right.ProcessAllBands(tileOf(t, 2, 1, []float64{4, 9}, []float64{6, 7})))

	require.NoError(t, left.Merge(right))
	assert.Equal(t, int64(3), left.Count(0))
	assert.Equal(t, 4.0, left.Min(0))
	assert.Equal(t, 9.0, left.Max(0))
	assert.Equal(t, 5.0, left.Min(1))
	assert.Equal(t, 7.0, left.Max(1))
}

func TestMergeMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	a, b, c := randomBands(rng, 400)

	whole, err := New(3)
	require.NoError(t, err)
	require.NoError(t, whole.ProcessAllBands(tileOf(t, 400, 1, a, b, c)))

	left, err := New(3)
	require.NoError(t, err)
	right, err := New(3)
	require.NoError(t, err)
	require.NoError(t, left.ProcessAllBands(tileOf(t, 150, 1, a[:150], b[:150], c[:150])))
	require.NoError(t, right.ProcessAllBands(tileOf(t, 250, 1, a[150:], b[150:], c[150:])))
	require.NoError(t, left.Merge(right))

	assert.Equal(t, whole.CrossCount(), left.CrossCount())
	for i := 0; i < 3; i++ {
		assert.Equal(t, whole.Count(i), left.Count(i))
		assert.InEpsilon(t, whole.Mean(i), left.Mean(i), 1e-12)
		assert.InEpsilon(t, whole.Variance(i), left.Variance(i), 1e-9)
		assert.Equal(t, whole.Min(i), left.Min(i))
		assert.Equal(t, whole.Max(i), left.Max(i))
		for j := 0; j < 3; j++ {
			assert.InEpsilon(t, whole.CovarianceMatrix().At(i, j), left.CovarianceMatrix().At(i, j), 1e-9)
		}
	}
}

func TestRestoreResumesAccumulation(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6}
	b := []float64{2, 1, 4, 3, 6, 5}

	whole, err := New(2)
	require.NoError(t, err)
	require.NoError(t, whole.ProcessAllBands(tileOf(t, 6, 1, a, b)))

	first, err := New(2)
	require.NoError(t, err)
	require.NoError(t, first.ProcessAllBands(tileOf(t, 3, 1, a[:3], b[:3])))

	resumed, err := Restore(first.Bands(), first.CrossProducts(), first.CrossCount(), first.Kind())
	require.NoError(t, err)
	require.NoError(t, resumed.ProcessAllBands(tileOf(t, 3, 1, a[3:], b[3:])))

	for i := 0; i < 2; i++ {
		assert.InDelta(t, whole.Mean(i), resumed.Mean(i), 1e-12)
		assert.InDelta(t, whole.Variance(i), resumed.Variance(i), 1e-12)
		for j := 0; j < 2; j++ {
			assert.InDelta(t, whole.CovarianceMatrix().At(i, j), resumed.CovarianceMatrix().At(i, j), 1e-12)
			assert.InDelta(t, whole.CrossProducts()[i][j], resumed.CrossProducts()[i][j], 1e-12)
		}
	}
}

func TestConfigurationErrors(t *testing.T) {
	_, err := New(0)
	assert.True(t, errors.Is(err, models.ErrConfiguration))

	s, err := New(2)
	require.NoError(t, err)

	err = s.ProcessAllBands(tileOf(t, 2, 1, []uint8{1, 2}, []uint8{1, 2}, []uint8{1, 2}))
	assert.True(t, errors.Is(err, models.ErrConfiguration))

	require.NoError(t, s.ProcessBand(0, tileOf(t, 2, 1, []uint8{1, 2})))
	err = s.ProcessBand(1, tileOf(t, 2, 1, []float32{1, 2}))
	assert.True(t, errors.Is(err, models.ErrConfiguration), "kind change")

	err = s.ProcessAllBands(tileOf(t, 2, 1, []uint8{1, 2}, []uint8{1, 2}))
	assert.True(t, errors.Is(err, models.ErrConfiguration), "mode change")

	s.Finalize()
	err = s.ProcessBand(0, tileOf(t, 2, 1, []uint8{1, 2}))
	assert.True(t, errors.Is(err, models.ErrConfiguration), "finalized")
}

func TestMalformedTileIsDataError(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)
	tile := &models.Tile{Window: models.Window{W: 2, H: 2}, Kind: models.KindUint8, Bands: []any{[]uint8{1}}}
	err = s.ProcessBand(0, tile)
	assert.True(t, errors.Is(err, models.ErrData))
}

package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasterstats/internal/models"
	"rasterstats/pkg/histogram"
	"rasterstats/pkg/stats"
)

func byteTile(t *testing.T) *models.Tile {
	t.Helper()
	tile, err := models.NewTile(models.Window{W: 4, H: 1},
		[]uint8{0, 255, 128, 128},
		[]uint8{10, 200, 100, 120})
	require.NoError(t, err)
	return tile
}

func inputs(t *testing.T, interBand bool) (*stats.Statistics, *histogram.Histogram) {
	t.Helper()
	st, err := stats.New(2)
	require.NoError(t, err)
	if interBand {
		require.NoError(t, st.ProcessAllBands(byteTile(t)))
	} else {
		require.NoError(t, st.ProcessBand(0, byteTile(t)))
		require.NoError(t, st.ProcessBand(1, byteTile(t)))
	}
	h, err := histogram.New(256, []float64{0, 0}, []float64{255, 255})
	require.NoError(t, err)
	require.NoError(t, h.CountTile(byteTile(t)))
	return st, h
}

func TestParseSections(t *testing.T) {
	s, err := ParseSections("basic, Eigen")
	require.NoError(t, err)
	assert.Equal(t, SectionBasic|SectionEigen, s)
	assert.Equal(t, "basic,eigen", s.String())

	s, err = ParseSections("all")
	require.NoError(t, err)
	assert.Equal(t, SectionAll, s)
	assert.True(t, s.Has(SectionEntropy|SectionMode))

	_, err = ParseSections("basic,spectrum")
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestBasicOnly(t *testing.T) {
	st, _ := inputs(t, false)
	r, err := Build(st, nil, SectionBasic, Options{})
	require.NoError(t, err)

	require.Len(t, r.Bands, 2)
	assert.Equal(t, int64(4), r.Bands[0].Count)
	assert.Equal(t, 255.0, r.Bands[0].Max)
	assert.Equal(t, 10.0, r.Bands[1].Min)
	assert.Nil(t, r.Covariance)
	assert.Nil(t, r.Histograms)
}

func TestUnavailableSections(t *testing.T) {
	st, _ := inputs(t, false)
	_, err := Build(st, nil, SectionCorrelation, Options{})
	assert.True(t, errors.Is(err, models.ErrUnavailable))

	_, err = Build(st, nil, SectionMode, Options{})
	assert.True(t, errors.Is(err, models.ErrUnavailable))

	_, err = Build(nil, nil, SectionBasic, Options{})
	assert.True(t, errors.Is(err, models.ErrUnavailable))
}

func TestFullReport(t *testing.T) {
	st, h := inputs(t, true)
	r, err := Build(st, h, SectionAll, Options{Percent: 10})
	require.NoError(t, err)

	assert.Len(t, r.Covariance, 2)
	assert.Equal(t, r.Covariance[0][1], r.Covariance[1][0])
	assert.InDelta(t, 1.0, r.Correlation[0][0], 1e-12)
	assert.Equal(t, "covariance", r.EigenMode)
	require.Len(t, r.EigenValues, 2)
	assert.GreaterOrEqual(t, r.EigenValues[0], r.EigenValues[1])

	require.Len(t, r.Histograms, 2)
	require.NotNil(t, r.Histograms[0].Mode)
	assert.Equal(t, 128, r.Histograms[0].Mode.Bin)
	assert.Equal(t, 128.5, r.Histograms[0].Mode.Value)
	assert.Equal(t, int64(2), r.Histograms[0].Frequency[128])
	require.NotNil(t, r.Histograms[0].Entropy)
	assert.InDelta(t, 1.5, *r.Histograms[0].Entropy, 1e-12)
	require.NotNil(t, r.Histograms[0].Low)
	assert.LessOrEqual(t, *r.Histograms[0].Low, *r.Histograms[0].High)

	var text bytes.Buffer
	require.NoError(t, r.WriteText(&text))
	assert.Contains(t, text.String(), "covariance")
	assert.Contains(t, text.String(), "eigen (covariance)")
	assert.Contains(t, text.String(), "entropy")
	assert.Contains(t, text.String(), "mode bin")
	assert.Regexp(t, `\b128\s+128\.5\b`, text.String())

	var doc bytes.Buffer
	require.NoError(t, r.WriteYAML(&doc))
	assert.Contains(t, doc.String(), "eigenValues:")
	assert.Contains(t, doc.String(), "mode:")
}

func TestEigenModeOverride(t *testing.T) {
	st, _ := inputs(t, true)
	r, err := Build(st, nil, SectionEigen, Options{EigenMode: stats.EigenCorrelation})
	require.NoError(t, err)
	assert.Equal(t, "correlation", r.EigenMode)
	// eigenvalues of a correlation matrix sum to the band count
	assert.InDelta(t, 2.0, r.EigenValues[0]+r.EigenValues[1], 1e-9)
}

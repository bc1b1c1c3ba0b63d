package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"rasterstats/internal/models"
	"rasterstats/pkg/config"
	"rasterstats/pkg/enhancement"
	"rasterstats/pkg/histogram"
	"rasterstats/pkg/record"
	"rasterstats/pkg/source"
	"rasterstats/pkg/stats"
)

func TestHasNoData(t *testing.T) {
	assert.False(t, hasNoData(models.NoData{}))
	assert.True(t, hasNoData(models.NoData{Global: models.SetNoData(0)}))
	assert.True(t, hasNoData(models.NoData{PerBand: []models.NoDataValue{{}, models.SetNoData(-1)}}))
}

func TestWriteLUT(t *testing.T) {
	h, err := histogram.Restore([]float64{0}, []float64{3}, [][]int64{{1, 1, 1, 1}})
	require.NoError(t, err)
	gen, err := enhancement.NewEqualization(h, nil, enhancement.DefaultParams())
	require.NoError(t, err)
	lut, err := gen.CreateLUT()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "luts", "eq.yaml")
	require.NoError(t, writeLUT(path, enhancement.MethodEqualization, h, lut))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got lutFile
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "equalization", got.Method)
	assert.Equal(t, 4, got.Bins)
	assert.Equal(t, 4, got.LUT.Levels)
	assert.Equal(t, [][]int{{0, 1, 2, 3}}, got.LUT.Bands)
}

func TestAppFromConfig(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "rasterstats.yaml")
	bandList = []int{2, 0}
	defer func() { bandList = nil }()

	cfg := config.DefaultConfig()
	cfg.Statistics.MaskPolicy = "any"
	cfg.Statistics.NoData.Global = models.SetNoData(-9999)
	cfg.Tiling.TileCols, cfg.Tiling.TileRows = 64, 64
	require.NoError(t, config.SaveConfig(cfg, configPath))

	a, err := newApp()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, a.bandIndices(5))
	assert.Equal(t, []int{2, 0}, a.selection().Bands)

	opts, err := a.statsOptions(false, "correlation")
	require.NoError(t, err)
	assert.True(t, opts.InterBand)
	require.NotNil(t, opts.NoData)
	assert.Equal(t, -9999.0, opts.NoData.Global.Value)
	assert.Len(t, a.registry.Methods(), 4)
}

func TestResumeOptionsKeepNoData(t *testing.T) {
	st, err := stats.New(1)
	require.NoError(t, err)
	tile, err := models.NewTile(models.Window{W: 4, H: 1}, []uint8{10, 20, 30, 40})
	require.NoError(t, err)
	require.NoError(t, st.ProcessBand(0, tile))
	rec := record.FromStatistics(st)

	src, err := source.NewMemory(4, 1, []uint8{10, 20, 30, 40})
	require.NoError(t, err)
	src.WithNoData(models.NoData{Global: models.SetNoData(30)})

	a := &app{cfg: config.DefaultConfig()}
	restored, err := rec.ToStatistics(a.resumeOptions(rec, src)...)
	require.NoError(t, err)
	assert.Equal(t, 30.0, restored.NoData().Global.Value)
	assert.True(t, restored.NoData().Global.Valid)

	rec.NoData = models.NoData{Global: models.SetNoData(10)}
	restored, err = rec.ToStatistics(a.resumeOptions(rec, src)...)
	require.NoError(t, err)
	assert.Equal(t, 10.0, restored.NoData().Global.Value)

	a.cfg.Statistics.NoData.Global = models.SetNoData(40)
	restored, err = rec.ToStatistics(a.resumeOptions(rec, src)...)
	require.NoError(t, err)
	assert.Equal(t, 40.0, restored.NoData().Global.Value)
}

func TestWriteClustersLabelsPass(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeClusters(&out, []int64{3, 0},
		[][]float64{{1}, {9}}, [][]float64{{2}, {9}}))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "assigned to")
	assert.Contains(t, string(lines[0]), "updated centroid")
	assert.Regexp(t, `^0\s+3\s+\[1\]\s+\[2\]$`, string(lines[1]))
	assert.Regexp(t, `^1\s+0\s+\[9\]\s+\[9\]$`, string(lines[2]))
}

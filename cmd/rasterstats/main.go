package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rasterstats/internal/logger"
	"rasterstats/internal/models"
	"rasterstats/pkg/config"
	"rasterstats/pkg/enhancement"
	"rasterstats/pkg/engine"
	"rasterstats/pkg/gdalsource"
	"rasterstats/pkg/stats"
	"rasterstats/pkg/tiling"
)

var (
	configPath      string
	verbose         bool
	bandList        []int
	blockSize       string
	numCachedBlocks int
)

var rootCommand = &cobra.Command{
	Use:           "rasterstats",
	Short:         "streaming statistics, histograms and enhancement tables for multi-band rasters",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCommand.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "rasterstats.yaml", "configuration file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.IntSliceVarP(&bandList, "bands", "b", nil, "raster bands to process (default: all)")
	pf.StringVar(&blockSize, "gs.blocksize", "512k", "gs:// block size")
	pf.IntVar(&numCachedBlocks, "gs.numblocks", 512, "number of gs:// blocks to cache")

	rootCommand.AddCommand(statsCommand, histogramCommand, enhanceCommand, kmeansCommand, configCommand)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCommand.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs, built once from the config file
// and the persistent flags.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	engine   *engine.Engine
	registry *enhancement.Registry
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	if len(bandList) > 0 {
		cfg.Statistics.Bands = bandList
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := zerolog.InfoLevel
	if cfg.Output.Verbose {
		level = zerolog.DebugLevel
	}
	var log logger.Logger
	if cfg.Output.LogJSON {
		log = logger.NewZerolog(os.Stderr, level)
	} else {
		log = logger.NewConsoleLogger(level)
	}

	var sizer tiling.Sizer = tiling.MemoryBudget{Bytes: cfg.Tiling.MaxTileBytes}
	if cfg.Tiling.TileCols > 0 && cfg.Tiling.TileRows > 0 {
		sizer = tiling.FixedTiles{Cols: cfg.Tiling.TileCols, Rows: cfg.Tiling.TileRows}
	}

	return &app{
		cfg:      cfg,
		log:      log,
		engine:   engine.New(engine.WithSizer(sizer), engine.WithLogger(log)),
		registry: enhancement.NewRegistry(),
	}, nil
}

func (a *app) open(ctx context.Context, name string) (*gdalsource.Source, error) {
	if gdalsource.IsGCS(name) {
		opts := gdalsource.GCSOptions{BlockSize: blockSize, NumCachedBlocks: numCachedBlocks}
		if err := gdalsource.RegisterGCS(ctx, opts); err != nil {
			return nil, err
		}
	}
	src, err := gdalsource.Open(name)
	if err != nil {
		return nil, err
	}
	w, h := src.Size()
	a.log.Debug("cli", "raster opened", map[string]interface{}{
		"name": name, "width": w, "height": h, "bands": src.BandCount(), "kind": src.NumericKind().String(),
	})
	return src, nil
}

func (a *app) selection() engine.Selection {
	if len(a.cfg.Statistics.Bands) == 0 {
		return engine.Selection{AllBands: true}
	}
	return engine.Selection{Bands: a.cfg.Statistics.Bands}
}

// bandIndices resolves the selection against a source with n bands
func (a *app) bandIndices(n int) []int {
	if len(a.cfg.Statistics.Bands) > 0 {
		return a.cfg.Statistics.Bands
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (a *app) statsOptions(interBand bool, eigen string) (engine.Options, error) {
	policy, err := stats.ParseMaskPolicy(a.cfg.Statistics.MaskPolicy)
	if err != nil {
		return engine.Options{}, err
	}
	mode, err := stats.ParseEigenMode(eigen)
	if err != nil {
		return engine.Options{}, err
	}
	opts := engine.Options{
		Selection:  a.selection(),
		InterBand:  interBand || a.cfg.Statistics.InterBand || mode != stats.EigenNone,
		MaskPolicy: policy,
		EigenMode:  mode,
	}
	if nd := a.cfg.Statistics.NoData; hasNoData(nd) {
		opts.NoData = &nd
	}
	return opts, nil
}

func hasNoData(nd models.NoData) bool {
	if nd.Global.Valid {
		return true
	}
	for _, v := range nd.PerBand {
		if v.Valid {
			return true
		}
	}
	return false
}

func (a *app) histogramOptions() engine.HistogramOptions {
	return engine.HistogramOptions{
		Selection: a.selection(),
		Bins:      a.cfg.Histogram.Bins,
		Min:       a.cfg.Histogram.Min,
		Max:       a.cfg.Histogram.Max,
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rasterstats/pkg/enhancement"
	"rasterstats/pkg/histogram"
	"rasterstats/pkg/source"
	"rasterstats/pkg/visualization"
)

var (
	method     string
	reference  string
	lutOut     string
	previewDir string
)

func init() {
	enhanceCommand.Flags().StringVarP(&method, "method", "m", "", "linear, gaussian, equalization or matching (default from config)")
	enhanceCommand.Flags().StringVarP(&reference, "reference", "r", "", "reference raster for histogram matching")
	enhanceCommand.Flags().StringVarP(&lutOut, "out", "o", "lut.yaml", "lookup table output file")
	enhanceCommand.Flags().StringVarP(&previewDir, "preview", "p", "", "write enhanced band previews to this directory")
}

// lutFile is the on-disk form of a lookup table
type lutFile struct {
	Method string          `yaml:"method"`
	Bins   int             `yaml:"bins"`
	Min    []float64       `yaml:"min"`
	Max    []float64       `yaml:"max"`
	LUT    enhancement.LUT `yaml:",inline"`
}

var enhanceCommand = &cobra.Command{
	Use:   "enhance raster",
	Short: "build a contrast enhancement lookup table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		m := enhancement.Method(a.cfg.Enhancement.Method)
		if method != "" {
			m = enhancement.Method(method)
		}
		ctx := cmd.Context()

		src, err := a.open(ctx, args[0])
		if err != nil {
			return err
		}
		defer src.Close()
		h, err := a.histogramOf(ctx, src)
		if err != nil {
			return err
		}

		var ref *histogram.Histogram
		if m == enhancement.MethodMatching {
			if reference == "" {
				return fmt.Errorf("matching needs --reference")
			}
			refSrc, err := a.open(ctx, reference)
			if err != nil {
				return err
			}
			defer refSrc.Close()
			if ref, err = a.histogramOf(ctx, refSrc); err != nil {
				return fmt.Errorf("reference: %w", err)
			}
		}

		params := enhancement.Params{
			GaussianMean:   a.cfg.Enhancement.GaussianMean,
			GaussianStdDev: a.cfg.Enhancement.GaussianStdDev,
			OutputLevels:   a.cfg.Enhancement.OutputLevels,
		}
		gen, err := a.registry.New(m, h, ref, params)
		if err != nil {
			return err
		}
		lut, err := gen.CreateLUT()
		if err != nil {
			return err
		}
		if err := writeLUT(lutOut, m, h, lut); err != nil {
			return err
		}
		a.log.Info("cli", "lookup table written", map[string]interface{}{"path": lutOut, "method": string(m)})

		if previewDir != "" {
			viewer, err := visualization.NewViewer(h, lut, visualization.WithNoData(src.NoData()))
			if err != nil {
				return err
			}
			if err := viewer.SaveBandSequence(ctx, src, a.bandIndices(src.BandCount()), previewDir); err != nil {
				return fmt.Errorf("preview: %w", err)
			}
			a.log.Info("cli", "previews written", map[string]interface{}{"dir": previewDir})
		}
		return nil
	},
}

// histogramOf runs the statistics pass then the histogram pass over src
func (a *app) histogramOf(ctx context.Context, src source.TileSource) (*histogram.Histogram, error) {
	opts, err := a.statsOptions(false, "none")
	if err != nil {
		return nil, err
	}
	st, err := a.engine.ComputeStatistics(ctx, src, opts)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return a.engine.ComputeHistogram(ctx, src, st, a.histogramOptions())
}

func writeLUT(path string, m enhancement.Method, h *histogram.Histogram, lut enhancement.LUT) error {
	out := lutFile{Method: string(m), Bins: h.Bins(), LUT: lut}
	for b := 0; b < h.BandCount(); b++ {
		band := h.Band(b)
		out.Min = append(out.Min, band.Min)
		out.Max = append(out.Max, band.Max)
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("error marshaling lookup table: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rasterstats/pkg/histogram"
	"rasterstats/pkg/record"
	"rasterstats/pkg/report"
	"rasterstats/pkg/source"
	"rasterstats/pkg/stats"
)

var (
	interBand   bool
	eigenMode   string
	sectionList string
	format      string
	recordOut   string
	recordIn    string
	percent     float64
)

func init() {
	for _, c := range []*cobra.Command{statsCommand, histogramCommand} {
		c.Flags().StringVarP(&format, "format", "f", "text", "report format: text or yaml")
		c.Flags().StringVarP(&recordOut, "out", "o", "", "write the result record to this file")
		c.Flags().Float64Var(&percent, "percent", 2, "tail percentage cut for the percentile section")
	}
	statsCommand.Flags().BoolVar(&interBand, "interband", false, "accumulate covariance and correlation")
	statsCommand.Flags().StringVar(&eigenMode, "eigen", "none", "eigen decomposition: none, covariance or correlation")
	statsCommand.Flags().StringVarP(&sectionList, "sections", "s", "basic", "report sections (basic,covariance,correlation,eigen,histogram,percentiles,mode,entropy,all)")
	histogramCommand.Flags().StringVar(&recordIn, "record", "", "take the statistics from this record instead of a first pass")
}

var statsCommand = &cobra.Command{
	Use:   "stats raster",
	Short: "compute per-band and cross-band statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sections, err := report.ParseSections(sectionList)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.runStats(cmd, args[0], sections, interBand, eigenMode, "")
	},
}

var histogramCommand = &cobra.Command{
	Use:   "histogram raster",
	Short: "compute per-band histograms with percentiles, mode and entropy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		sections := report.SectionBasic | report.SectionHistogram | report.SectionPercentiles |
			report.SectionMode | report.SectionEntropy
		return a.runStats(cmd, args[0], sections, false, "none", recordIn)
	},
}

func (a *app) runStats(cmd *cobra.Command, name string, sections report.Section, inter bool, eigen, fromRecord string) error {
	ctx := cmd.Context()
	src, err := a.open(ctx, name)
	if err != nil {
		return err
	}
	defer src.Close()

	var st *stats.Statistics
	if fromRecord != "" {
		rec, err := record.Load(fromRecord)
		if err != nil {
			return err
		}
		if st, err = rec.ToStatistics(a.resumeOptions(rec, src)...); err != nil {
			return err
		}
	} else {
		opts, err := a.statsOptions(inter, eigen)
		if err != nil {
			return err
		}
		if st, err = a.engine.ComputeStatistics(ctx, src, opts); err != nil {
			return fmt.Errorf("statistics: %w", err)
		}
	}

	var h *histogram.Histogram
	needHistogram := report.SectionHistogram | report.SectionPercentiles | report.SectionMode | report.SectionEntropy
	if sections&needHistogram != 0 {
		if h, err = a.engine.ComputeHistogram(ctx, src, st, a.histogramOptions()); err != nil {
			return fmt.Errorf("histogram: %w", err)
		}
	}

	rep, err := report.Build(st, h, sections, report.Options{Percent: percent})
	if err != nil {
		return err
	}
	switch format {
	case "yaml":
		err = rep.WriteYAML(os.Stdout)
	case "text":
		err = rep.WriteText(os.Stdout)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}

	if recordOut != "" {
		if err := record.FromStatistics(st, h).Save(recordOut); err != nil {
			return err
		}
		a.log.Info("cli", "record saved", map[string]interface{}{"path": recordOut})
	}
	return nil
}

// resumeOptions picks the no-data rules of statistics restored from rec: the
// configured sentinels win, then the ones stored in the record, then the
// ones declared by the source.
func (a *app) resumeOptions(rec *record.Record, src source.NoDataProvider) []stats.Option {
	switch {
	case hasNoData(a.cfg.Statistics.NoData):
		return []stats.Option{stats.WithNoData(a.cfg.Statistics.NoData)}
	case !hasNoData(rec.NoData):
		return []stats.Option{stats.WithNoData(src.NoData())}
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rasterstats/pkg/kmeans"
)

var (
	classes    int
	iterations int
	threshold  float64
)

func init() {
	kmeansCommand.Flags().IntVarP(&classes, "classes", "k", 0, "number of classes (default from config)")
	kmeansCommand.Flags().IntVarP(&iterations, "iterations", "i", 10, "maximum number of iterations")
	kmeansCommand.Flags().Float64VarP(&threshold, "threshold", "t", 0.5, "stop when no centroid moves further than this")
}

var kmeansCommand = &cobra.Command{
	Use:   "kmeans raster",
	Short: "cluster pixels with K-Means",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if iterations < 1 {
			return fmt.Errorf("iterations must be positive, got %d", iterations)
		}
		k := a.cfg.KMeans.Classes
		if classes > 0 {
			k = classes
		}
		ctx := cmd.Context()

		src, err := a.open(ctx, args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		opts, err := a.statsOptions(false, "none")
		if err != nil {
			return err
		}
		st, err := a.engine.ComputeStatistics(ctx, src, opts)
		if err != nil {
			return fmt.Errorf("statistics: %w", err)
		}
		mins := make([]float64, st.BandCount())
		maxs := make([]float64, st.BandCount())
		for b := range mins {
			mins[b], maxs[b] = st.Min(b), st.Max(b)
		}

		var kopts []kmeans.Option
		if a.cfg.KMeans.SkipNoData {
			kopts = append(kopts, kmeans.WithNoDataSkipping(st.NoData()))
		}
		acc := kmeans.New(kopts...)
		means := kmeans.SpreadSeeds(mins, maxs, k)
		// assigned holds the centroids the last pass assigned pixels to
		var assigned [][]float64
		for it := 1; it <= iterations; it++ {
			assigned = means
			if err := acc.SetInitialMeans(means); err != nil {
				return err
			}
			if err := a.engine.ComputeClusterIteration(ctx, src, acc, a.selection()); err != nil {
				return fmt.Errorf("iteration %d: %w", it, err)
			}
			next := acc.UpdatedMeans()
			shift := kmeans.MaxShift(means, next)
			means = next
			a.log.Info("cli", "kmeans iteration", map[string]interface{}{"iteration": it, "shift": shift})
			if shift < threshold {
				break
			}
		}

		return writeClusters(os.Stdout, acc.Counts(), assigned, means)
	},
}

// writeClusters prints one row per class. counts come from the pass that
// assigned pixels to the assigned centroids; updated are the means that pass
// produced.
func writeClusters(w io.Writer, counts []int64, assigned, updated [][]float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "class\tpixels\tassigned to\tupdated centroid")
	for c, count := range counts {
		fmt.Fprintf(tw, "%d\t%d\t%v\t%v\n", c, count, assigned[c], updated[c])
	}
	return tw.Flush()
}

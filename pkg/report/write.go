package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// WriteYAML writes the selected tables as a YAML document
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}
	return enc.Close()
}

// WriteText writes the selected tables as aligned plain text
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	if r.Sections.Has(SectionBasic) {
		fmt.Fprintln(tw, "band\tcount\tmin\tmax\tmean\tvariance\tstddev\t")
		for b, bs := range r.Bands {
			fmt.Fprintf(tw, "%d\t%d\t%g\t%g\t%.6g\t%.6g\t%.6g\t\n", b, bs.Count, bs.Min, bs.Max, bs.Mean, bs.Variance, bs.StdDev)
		}
		fmt.Fprintln(tw)
	}
	writeMatrix(tw, "covariance", r.Covariance)
	writeMatrix(tw, "correlation", r.Correlation)
	if r.EigenValues != nil {
		fmt.Fprintf(tw, "eigen (%s)\t\n", r.EigenMode)
		for i, v := range r.EigenValues {
			fmt.Fprintf(tw, "%d\t%.6g\t", i, v)
			for _, x := range r.EigenVectors {
				fmt.Fprintf(tw, "%.4f\t", x[i])
			}
			fmt.Fprintln(tw)
		}
		fmt.Fprintln(tw)
	}

	if r.Histograms != nil {
		fmt.Fprintln(tw, "band\tbins\tmin\tmax\tlow\thigh\tmode bin\tmode midpoint\tentropy\t")
		for b, hb := range r.Histograms {
			fmt.Fprintf(tw, "%d\t%d\t%g\t%g\t%s\t%s\t%s\t%s\t\n", b, hb.Bins, hb.Min, hb.Max,
				optional(hb.Low), optional(hb.High), mode(hb.Mode), optional(hb.Entropy))
		}
		for b, hb := range r.Histograms {
			if hb.Frequency != nil {
				fmt.Fprintf(tw, "frequency[%d]\t%v\t\n", b, hb.Frequency)
			}
		}
	}
	return tw.Flush()
}

func writeMatrix(w io.Writer, title string, m [][]float64) {
	if m == nil {
		return
	}
	fmt.Fprintf(w, "%s\t\n", title)
	for _, row := range m {
		for _, v := range row {
			fmt.Fprintf(w, "%.6g\t", v)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.6g", *v)
}

// mode fills the bin index and bin midpoint columns
func mode(m *Mode) string {
	if m == nil {
		return "-\t-"
	}
	return fmt.Sprintf("%d\t%g", m.Bin, m.Value)
}

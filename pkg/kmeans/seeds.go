package kmeans

// SpreadSeeds places classes centroids evenly along the diagonal between the
// per-band minimum and maximum vectors, endpoints included. A single class
// sits at the midpoint.
func SpreadSeeds(mins, maxs []float64, classes int) [][]float64 {
	out := make([][]float64, classes)
	for c := range out {
		out[c] = make([]float64, len(mins))
		for b := range mins {
			span := maxs[b] - mins[b]
			if classes == 1 {
				out[c][b] = mins[b] + span/2
				continue
			}
			out[c][b] = mins[b] + float64(c)*span/float64(classes-1)
		}
	}
	return out
}

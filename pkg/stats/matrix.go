package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"rasterstats/internal/models"
)

// EigenMode selects the matrix principal components are derived from.
type EigenMode int

const (
	EigenNone EigenMode = iota
	EigenCovariance
	EigenCorrelation
)

// String implements fmt.Stringer
func (m EigenMode) String() string {
	switch m {
	case EigenCovariance:
		return "covariance"
	case EigenCorrelation:
		return "correlation"
	default:
		return "none"
	}
}

// ParseEigenMode converts "none", "covariance" or "correlation" to an EigenMode
func ParseEigenMode(s string) (EigenMode, error) {
	switch s {
	case "", "none":
		return EigenNone, nil
	case "covariance":
		return EigenCovariance, nil
	case "correlation":
		return EigenCorrelation, nil
	}
	return EigenNone, fmt.Errorf("%w: unknown eigen mode %q", models.ErrConfiguration, s)
}

// CovarianceMatrix returns Cov[i][j] = (Σx_i·x_j − n·mean_i·mean_j)/n over the
// positions accumulated in inter-band mode. The value is obtained from the
// co-moment matrix, which is algebraically identical but does not suffer
// from cancellation. Without inter-band data the matrix is all zeros.
func (s *Statistics) CovarianceMatrix() *mat.SymDense {
	n := len(s.bands)
	cov := mat.NewSymDense(n, nil)
	if s.crossCount == 0 {
		return cov
	}
	count := float64(s.crossCount)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, s.comoment[i*n+j]/count)
		}
	}
	return cov
}

// CorrelationMatrix returns Cov[i][j]/sqrt(Cov[i][i]·Cov[j][j]). Entries whose
// denominator is zero resolve to 0.
func (s *Statistics) CorrelationMatrix() *mat.SymDense {
	cov := s.CovarianceMatrix()
	n := cov.SymmetricDim()
	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			den := math.Sqrt(cov.At(i, i) * cov.At(j, j))
			if den == 0 || math.IsNaN(den) {
				continue
			}
			corr.SetSym(i, j, cov.At(i, j)/den)
		}
	}
	return corr
}

// Matrix returns the matrix selected by mode
func (s *Statistics) Matrix(mode EigenMode) (*mat.SymDense, error) {
	switch mode {
	case EigenCovariance:
		return s.CovarianceMatrix(), nil
	case EigenCorrelation:
		return s.CorrelationMatrix(), nil
	}
	return nil, fmt.Errorf("%w: no matrix selected for eigen decomposition", models.ErrConfiguration)
}

// Eigen decomposes the selected matrix. Values are sorted in descending order
// and column k of vectors is the eigenvector of values[k].
func (s *Statistics) Eigen(mode EigenMode) ([]float64, *mat.Dense, error) {
	m, err := s.Matrix(mode)
	if err != nil {
		return nil, nil, err
	}
	var es mat.EigenSym
	if ok := es.Factorize(m, true); !ok {
		return nil, nil, fmt.Errorf("eigen decomposition of %s matrix did not converge", mode)
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})

	sorted := make([]float64, n)
	out := mat.NewDense(n, n, nil)
	for k, idx := range order {
		sorted[k] = values[idx]
		for r := 0; r < n; r++ {
			out.Set(r, k, vectors.At(r, idx))
		}
	}
	return sorted, out, nil
}

// EigenValues returns the eigenvalues of the selected matrix, largest first
func (s *Statistics) EigenValues(mode EigenMode) ([]float64, error) {
	values, _, err := s.Eigen(mode)
	return values, err
}

// EigenVectors returns the eigenvectors of the selected matrix as columns,
// in the order of EigenValues
func (s *Statistics) EigenVectors(mode EigenMode) (*mat.Dense, error) {
	_, vectors, err := s.Eigen(mode)
	return vectors, err
}

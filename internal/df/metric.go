// metric.go --  This file is part of goHF project.
// Mirzaeva Irina, 2023
//
//	goHF is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty
//	of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//	See the GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see http://www.gnu.org/licenses/
//
// ------------------------------------------------

// Package df builds the density-fitted three-index Coulomb tensor and the
// Coulomb and exchange matrices contracted from it.
package df

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/errs"
)

// Options control the metric decomposition and logging.
type Options struct {
	// CholeskyRcond is the reciprocal condition number below which the
	// eigen-decomposition replaces the Cholesky factor.
	CholeskyRcond float64 `yaml:"cholesky_rcond" validate:"gte=0"`
	// EigenFloor drops metric eigenvalues below it.
	EigenFloor float64 `yaml:"eigen_floor" validate:"gte=0"`
	// MinRetained is the smallest fraction of auxiliary directions that
	// must survive the floor.
	MinRetained float64     `yaml:"min_retained" validate:"gte=0,lte=1"`
	Log         *zap.Logger `yaml:"-"`
}

func DefaultOptions() Options {
	return Options{CholeskyRcond: 1e-14, EigenFloor: 1e-7, MinRetained: 0.5}
}

func (o Options) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

// Method names how the metric was decomposed.
type Method string

const (
	MethodCholesky Method = "cholesky"
	MethodEigen    Method = "eigen"
)

// Metric is the decomposed auxiliary metric M: TᵀT = M⁻¹ on the retained
// space. T has one row per fitted direction L.
type Metric struct {
	T        *mat.Dense
	Method   Method
	Retained int
	NAux     int
}

// DecomposeMetric factorises M by Cholesky when its smallest eigenvalue is
// above the floor and by a floored eigen-decomposition otherwise, so that
// near-zero directions are dropped rather than inverted.
func DecomposeMetric(m *mat.SymDense, opts Options) (*Metric, error) {
	n := m.SymmetricDim()
	if n == 0 {
		return nil, errs.New(errs.KindIllConditionedFit, "df.DecomposeMetric", "empty auxiliary basis")
	}
	var eig mat.EigenSym
	if !eig.Factorize(m, true) {
		return nil, errs.New(errs.KindNumerical, "df.DecomposeMetric", "eigen-decomposition of the %dx%d metric failed", n, n)
	}
	vals := eig.Values(nil)
	// values are ascending
	if lo, hi := vals[0], vals[n-1]; lo > opts.EigenFloor && lo > opts.CholeskyRcond*hi {
		var chol mat.Cholesky
		if chol.Factorize(m) {
			var l mat.TriDense
			chol.LTo(&l)
			var inv mat.TriDense
			if err := inv.InverseTri(&l); err == nil {
				return &Metric{T: mat.DenseCopyOf(&inv), Method: MethodCholesky, Retained: n, NAux: n}, nil
			}
		}
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	var keep []int
	for i, v := range vals {
		if v > opts.EigenFloor {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 || float64(len(keep)) < opts.MinRetained*float64(n) {
		return nil, errs.New(errs.KindIllConditionedFit, "df.DecomposeMetric",
			"%d of %d metric eigenvalues above %g", len(keep), n, opts.EigenFloor)
	}
	t := mat.NewDense(len(keep), n, nil)
	for r, i := range keep {
		s := 1 / math.Sqrt(vals[i])
		for p := 0; p < n; p++ {
			t.Set(r, p, s*vecs.At(p, i))
		}
	}
	opts.logger().Debug("metric eigen-decomposed",
		zap.Int("naux", n), zap.Int("retained", len(keep)), zap.Float64("floor", opts.EigenFloor))
	return &Metric{T: t, Method: MethodEigen, Retained: len(keep), NAux: n}, nil
}

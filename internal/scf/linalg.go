// linalg.go --  This file is part of goHF project.
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

package scf

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/errs"
)

// LinDepThreshold is the smallest overlap eigenvalue accepted.
const LinDepThreshold = 1e-10

// MatrixSqrtInverse returns S^-1/2 by eigen-decomposition.
func MatrixSqrtInverse(s mat.Symmetric) (*mat.SymDense, error) {
	n := s.SymmetricDim()
	var eig mat.EigenSym
	if !eig.Factorize(s, true) {
		return nil, errs.New(errs.KindNumerical, "scf.MatrixSqrtInverse", "overlap eigendecomposition failed")
	}
	vals := eig.Values(nil)
	if vals[0] < LinDepThreshold {
		return nil, errs.New(errs.KindInvalidInput, "scf.MatrixSqrtInverse", "basis is linearly dependent: smallest overlap eigenvalue %.3e", vals[0])
	}
	var ev mat.Dense
	eig.VectorsTo(&ev)
	inv := make([]float64, n)
	for i, v := range vals {
		inv[i] = 1 / math.Sqrt(v)
	}
	var tmp mat.Dense
	tmp.Mul(&ev, mat.NewDiagDense(n, inv))
	var full mat.Dense
	full.Mul(&tmp, ev.T())
	return symOf(&full), nil
}

// symOf symmetrises a square matrix.
func symOf(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}

// Eigen solves F C = S C ε through the orthogonaliser x = S^-1/2.
func Eigen(f mat.Symmetric, x *mat.SymDense) (*mat.Dense, []float64, error) {
	var t, fp mat.Dense
	t.Mul(x, f)
	fp.Mul(&t, x)
	var eig mat.EigenSym
	if !eig.Factorize(symOf(&fp), true) {
		return nil, nil, errs.New(errs.KindNumerical, "scf.Eigen", "Fock eigendecomposition failed")
	}
	var ev mat.Dense
	eig.VectorsTo(&ev)
	var c mat.Dense
	c.Mul(x, &ev)
	return &c, eig.Values(nil), nil
}

// Occupied returns √2 times the first nocc columns of c, so that the total
// density is occ·occᵀ.
func Occupied(c *mat.Dense, nocc int) *mat.Dense {
	n, _ := c.Dims()
	occ := mat.NewDense(n, nocc, nil)
	occ.Scale(math.Sqrt2, c.Slice(0, n, 0, nocc))
	return occ
}

// Density is D = occ·occᵀ.
func Density(occ *mat.Dense) *mat.SymDense {
	n, _ := occ.Dims()
	d := mat.NewSymDense(n, nil)
	d.SymOuterK(1, occ)
	return d
}

// Commutator is xᵀ(FDS - SDF)x, the orbital gradient in the orthogonal basis.
func Commutator(f, d, s mat.Symmetric, x *mat.SymDense) *mat.Dense {
	var fd, fds, sd, sdf mat.Dense
	fd.Mul(f, d)
	fds.Mul(&fd, s)
	sd.Mul(s, d)
	sdf.Mul(&sd, f)
	fds.Sub(&fds, &sdf)
	var t mat.Dense
	t.Mul(x, &fds)
	fds.Mul(&t, x)
	return &fds
}

// EnergyWeighted is W = ½ D F D, equal to 2 Σ_i ε_i c_i c_iᵀ at convergence.
func EnergyWeighted(d, f mat.Symmetric) *mat.SymDense {
	var t, w mat.Dense
	t.Mul(d, f)
	w.Mul(&t, d)
	w.Scale(0.5, &w)
	return symOf(&w)
}

// LevelShift returns F + shift·(S - ½SDS), raising the virtual orbitals.
func LevelShift(f, d, s mat.Symmetric, shift float64) *mat.SymDense {
	var sd, sds mat.Dense
	sd.Mul(s, d)
	sds.Mul(&sd, s)
	n := f.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			out.SetSym(i, j, f.At(i, j)+shift*(s.At(i, j)-0.25*(sds.At(i, j)+sds.At(j, i))))
		}
	}
	return out
}

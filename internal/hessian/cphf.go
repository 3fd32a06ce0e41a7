// cphf.go --  This file is part of goHF project.
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

package hessian

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/errs"
	"gohf/internal/fock"
	"gohf/internal/scf"
)

// Options control the coupled-perturbed solver.
type Options struct {
	CPHFTol      float64 `yaml:"cphf_tol" validate:"gt=0"`
	CPHFMaxCycle int     `yaml:"cphf_max_cycle" validate:"gte=1"`
	DIISSpace    int     `yaml:"diis_space" validate:"gte=1"`
}

func DefaultOptions() Options {
	return Options{CPHFTol: 1e-9, CPHFMaxCycle: 100, DIISSpace: 8}
}

// cphf solves the coupled-perturbed Hartree-Fock equations for one nuclear
// coordinate in the canonical orbital basis.
type cphf struct {
	jk   fock.JKBuilder
	k    float64 // exchange fraction
	cmo  *mat.Dense
	cocc *mat.Dense
	eps  []float64
	nocc int
	opts Options
}

// response is Cᵀ(J - ½k K)[dD]C_occ for dD = 2(C U C_occᵀ + transpose).
func (s *cphf) response(ctx context.Context, u *mat.Dense) (*mat.Dense, error) {
	var cu, dd mat.Dense
	cu.Mul(s.cmo, u)
	dd.Mul(&cu, s.cocc.T())
	n, _ := dd.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sym.SetSym(i, j, 2*(dd.At(i, j)+dd.At(j, i)))
		}
	}
	j, k, err := s.jk.JK(ctx, sym, nil, true, s.k != 0)
	if err != nil {
		return nil, err
	}
	g := mat.NewDense(n, n, nil)
	g.Copy(j)
	if s.k != 0 {
		var hk mat.Dense
		hk.Scale(-0.5*s.k, k)
		g.Add(g, &hk)
	}
	var t, v mat.Dense
	t.Mul(s.cmo.T(), g)
	v.Mul(&t, s.cocc)
	return &v, nil
}

// solve returns the orbital response U (nmo×nocc), the occupied-block
// derivative of the orbital energies and the iteration count. h1 and s1 are
// Cᵀ F^x C_occ and Cᵀ S^x C_occ.
func (s *cphf) solve(ctx context.Context, h1, s1 *mat.Dense) (*mat.Dense, *mat.Dense, int, error) {
	nmo, nocc := h1.Dims()
	base := mat.NewDense(nmo, nocc, nil)
	for p := 0; p < nmo; p++ {
		for i := 0; i < nocc; i++ {
			if p < nocc {
				base.Set(p, i, -0.5*s1.At(p, i))
				continue
			}
			base.Set(p, i, -(h1.At(p, i)-s1.At(p, i)*s.eps[i])/(s.eps[p]-s.eps[i]))
		}
	}
	u := mat.DenseCopyOf(base)
	diis := scf.NewDIIS(s.opts.DIISSpace)
	next := mat.NewDense(nmo, nocc, nil)
	diff := mat.NewDense(nmo, nocc, nil)
	for cycle := 1; cycle <= s.opts.CPHFMaxCycle; cycle++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, cycle, err
		}
		v, err := s.response(ctx, u)
		if err != nil {
			return nil, nil, cycle, err
		}
		next.Copy(base)
		for a := nocc; a < nmo; a++ {
			for i := 0; i < nocc; i++ {
				next.Set(a, i, base.At(a, i)-v.At(a, i)/(s.eps[a]-s.eps[i]))
			}
		}
		diff.Sub(next, u)
		resid := mat.Norm(diff, math.Inf(1))
		diis.Push(next.RawMatrix().Data, diff.RawMatrix().Data)
		u = mat.NewDense(nmo, nocc, diis.Extrapolate())
		if resid < s.opts.CPHFTol {
			u.Copy(next)
			v, err := s.response(ctx, u)
			if err != nil {
				return nil, nil, cycle, err
			}
			e1 := mat.NewDense(nocc, nocc, nil)
			for p := 0; p < nocc; p++ {
				for q := 0; q < nocc; q++ {
					e1.Set(p, q, h1.At(p, q)+v.At(p, q)-0.5*s1.At(p, q)*(s.eps[p]+s.eps[q]))
				}
			}
			return u, e1, cycle, nil
		}
	}
	return nil, nil, s.opts.CPHFMaxCycle, errs.New(errs.KindNumerical, "hessian.cphf", "no convergence in %d cycles", s.opts.CPHFMaxCycle)
}

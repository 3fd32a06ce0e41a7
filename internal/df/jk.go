// jk.go --  This file is part of goHF project.
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

package df

import (
	"context"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/device"
	"gohf/internal/integral"
)

// PackDensity folds a symmetric matrix onto packed pairs, doubling the
// off-diagonal entries so that a dot product with a packed row is the full
// trace.
func PackDensity(dm mat.Symmetric) []float64 {
	n := dm.SymmetricDim()
	out := make([]float64, integral.NPair(n))
	for mu := 0; mu < n; mu++ {
		for nu := 0; nu <= mu; nu++ {
			v := dm.At(mu, nu)
			if mu != nu {
				v *= 2
			}
			out[integral.PairIndex(mu, nu)] = v
		}
	}
	return out
}

// Rho is ρ_L = Σ_μν cderi[L,μν] D_μν.
func (t *Tensor) Rho(ctx context.Context, dm mat.Symmetric) ([]float64, error) {
	dp := PackDensity(dm)
	rho := make([]float64, t.NL)
	err := t.Loop(ctx, 0, func(l0, l1 int, rows []float64) error {
		for l := l0; l < l1; l++ {
			rho[l] = floats.Dot(rows[(l-l0)*t.NPair:(l-l0+1)*t.NPair], dp)
		}
		return nil
	})
	return rho, err
}

// JK builds the Coulomb and exchange matrices of a total density dm. When
// occ is given it must satisfy dm = occ·occᵀ and the exchange pass uses
// X_L = B_L·occ, K = Σ X_L X_Lᵀ; otherwise K = Σ B_L D B_L.
func (t *Tensor) JK(ctx context.Context, dm *mat.SymDense, occ *mat.Dense, withJ, withK bool) (*mat.SymDense, *mat.SymDense, error) {
	nao := t.NAO
	var rho []float64
	if withJ {
		var err error
		if rho, err = t.Rho(ctx, dm); err != nil {
			return nil, nil, err
		}
	}
	ncol := nao
	if occ != nil {
		_, ncol = occ.Dims()
	}
	perWorker := 2*nao*nao + nao*ncol + t.NPair
	workers := t.arena.Workers()
	scratch := make([]*device.Buffer, workers)
	defer func() {
		for _, b := range scratch {
			if b != nil {
				t.arena.Free(b)
			}
		}
	}()
	for w := range scratch {
		b, err := t.arena.Alloc(perWorker)
		if err != nil {
			return nil, nil, err
		}
		scratch[w] = b
	}
	type work struct {
		b, x, k *mat.Dense
		j       []float64
	}
	ws := make([]work, workers)
	for w := range ws {
		d := scratch[w].Float64()
		ws[w] = work{
			b: mat.NewDense(nao, nao, d[:nao*nao]),
			k: mat.NewDense(nao, nao, d[nao*nao:2*nao*nao]),
			x: mat.NewDense(nao, ncol, d[2*nao*nao:2*nao*nao+nao*ncol]),
			j: d[2*nao*nao+nao*ncol:],
		}
	}
	var dense *mat.Dense
	if withK && occ == nil {
		dense = mat.DenseCopyOf(dm)
	}

	err := t.Loop(ctx, 0, func(l0, l1 int, rows []float64) error {
		_, err := t.arena.LaunchPartial(ctx, l1-l0, func(w, i int) error {
			row := rows[i*t.NPair : (i+1)*t.NPair]
			s := &ws[w]
			if withJ {
				r := rho[l0+i]
				for p, v := range row {
					s.j[p] += r * v
				}
			}
			if !withK {
				return nil
			}
			Unpack(nao, row, s.b)
			if occ != nil {
				s.x.Mul(s.b, occ)
				blas64.Gemm(blas.NoTrans, blas.Trans, 1, s.x.RawMatrix(), s.x.RawMatrix(), 1, s.k.RawMatrix())
				return nil
			}
			s.x.Mul(s.b, dense)
			blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, s.x.RawMatrix(), s.b.RawMatrix(), 1, s.k.RawMatrix())
			return nil
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var j, k *mat.SymDense
	if withJ {
		jp := make([]float64, t.NPair)
		for w := range ws {
			for p, v := range ws[w].j {
				jp[p] += v
			}
		}
		j = mat.NewSymDense(nao, nil)
		for mu := 0; mu < nao; mu++ {
			for nu := 0; nu <= mu; nu++ {
				j.SetSym(mu, nu, jp[integral.PairIndex(mu, nu)])
			}
		}
	}
	if withK {
		sum := mat.NewDense(nao, nao, nil)
		for w := range ws {
			sum.Add(sum, ws[w].k)
		}
		k = integral.SymFromDense(sum)
	}
	return j, k, nil
}

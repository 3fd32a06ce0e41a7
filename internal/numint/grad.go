// grad.go --  This file is part of goHF project.
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

package numint

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/device"
	"gohf/internal/grid"
)

// Grad returns the nuclear gradient of the exchange-correlation energy of dm.
// Grid points move with their atoms, so the result contains the basis term,
// the point-motion term and the Becke weight derivatives.
func (n *Integrator) Grad(ctx context.Context, dm *mat.SymDense) ([][3]float64, error) {
	natm := n.Mol.NAtoms()
	gga := n.gga()
	deriv, xcomp := 1, 1
	if gga {
		deriv, xcomp = 2, 4
	}
	blocks := n.blocks(n.Grid)
	workers := n.arena.Workers()
	bufs := make([]*device.Buffer, 0, workers)
	defer func() { n.arena.Free(bufs...) }()
	parts := make([][]float64, workers)
	for w := range parts {
		b, err := n.arena.Alloc(3 * natm)
		if err != nil {
			return nil, err
		}
		bufs = append(bufs, b)
		parts[w] = b.Float64()
		clear(parts[w])
	}
	_, err := n.arena.LaunchPartial(ctx, len(blocks), func(w, ib int) error {
		lo, hi := blocks[ib][0], blocks[ib][1]
		ao := grid.EvalAO(n.Orb, n.Grid.Coords[lo:hi], deriv)
		d := evalDensity(ao, dm, gga, xcomp)
		out, err := n.Func.Eval(d.rho, d.sigma, 1)
		if err != nil {
			return err
		}
		var vsigma []float64
		if gga {
			vsigma = out.Vsigma
		}
		n.semilocalGrad(parts[w], ao, d, lo, out.E, out.Vrho, vsigma, n.Grid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	g := make([][3]float64, natm)
	for _, p := range parts {
		for a := range g {
			for k := 0; k < 3; k++ {
				g[a][k] += p[3*a+k]
			}
		}
	}
	if n.NLC != nil {
		gn, err := n.nlcGrad(ctx, dm)
		if err != nil {
			return nil, err
		}
		for a := range g {
			for k := 0; k < 3; k++ {
				g[a][k] += gn[a][k]
			}
		}
	}
	return g, nil
}

// semilocalGrad adds the gradient of Σ_i w_i e_i for the points [lo, lo+npt)
// of gr. wexc multiplies the weight derivatives; vsigma is nil for LDA.
func (n *Integrator) semilocalGrad(acc []float64, ao *grid.AO, d *density, lo int, wexc, vrho, vsigma []float64, gr *grid.Grid) {
	nao := n.Orb.NAO
	natm := n.Mol.NAtoms()
	wg := make([][3]float64, natm)
	x0 := d.x[0]
	for i := range d.rho {
		w := gr.Weights[lo+i]
		owner := gr.Atom[lo+i]
		if vrho[i] != 0 || (vsigma != nil && vsigma[i] != 0) {
			var hess [3][3]float64
			for mu := 0; mu < nao; mu++ {
				at := n.Orb.AOAtom(mu)
				xm := x0.At(i, mu)
				for j := 0; j < 3; j++ {
					dj := ao.Comp[grid.DX+j].At(i, mu)
					v := vrho[i] * dj * xm
					if vsigma != nil {
						for k := 0; k < 3; k++ {
							t := ao.Comp[grid.Second[j][k]].At(i, mu)*xm + dj*d.x[1+k].At(i, mu)
							v += 2 * vsigma[i] * d.grad[i][k] * t
							hess[j][k] += 2 * t
						}
					}
					acc[3*at+j] -= 2 * w * v
				}
			}
			// the point moves with its atom
			for j := 0; j < 3; j++ {
				v := 0.0
				if vsigma != nil {
					for k := 0; k < 3; k++ {
						v += 2 * vsigma[i] * hess[j][k] * d.grad[i][k]
					}
					v += vrho[i] * d.grad[i][j]
				} else {
					v = vrho[i] * n.gradRho(ao, x0, i, j)
				}
				acc[3*owner+j] += w * v
			}
		}
		if wexc[i] == 0 {
			continue
		}
		gr.WeightGrad(lo+i, wg)
		for a := range wg {
			for k := 0; k < 3; k++ {
				acc[3*a+k] += wexc[i] * wg[a][k]
			}
		}
	}
}

func (n *Integrator) gradRho(ao *grid.AO, x0 *mat.Dense, i, k int) float64 {
	s := 0.0
	for mu := 0; mu < n.Orb.NAO; mu++ {
		s += x0.At(i, mu) * ao.Comp[grid.DX+k].At(i, mu)
	}
	return 2 * s
}

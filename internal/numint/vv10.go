// vv10.go --  This file is part of goHF project.
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
	"math"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/device"
	"gohf/internal/grid"
)

// vvThreshold drops low-density points from both sides of the VV10 kernel.
const vvThreshold = 1e-8

// vv10 holds the nonlocal kernel sums of every point of the NLC grid.
type vv10 struct {
	rho, sigma []float64
	grad       [][3]float64
	e          []float64 // ρ(β + F/2)
	wexc       []float64 // ρ(β + F), multiplies the weight derivatives
	vrho       []float64
	vsigma     []float64
	q          [][3]float64 // Σ_j w_jρ_j ∂Φ_ij/∂|r_i-r_j|² (r_i - r_j)
}

func (n *Integrator) nlcDensity(ctx context.Context, dm mat.Symmetric) (*vv10, error) {
	g := n.NLC
	v := &vv10{rho: make([]float64, g.Len()), sigma: make([]float64, g.Len()), grad: make([][3]float64, g.Len())}
	blocks := n.blocks(g)
	err := n.arena.Launch(ctx, len(blocks), func(ib int) error {
		lo, hi := blocks[ib][0], blocks[ib][1]
		d := evalDensity(grid.EvalAO(n.Orb, g.Coords[lo:hi], 1), dm, true, 1)
		copy(v.rho[lo:hi], d.rho)
		copy(v.sigma[lo:hi], d.sigma)
		copy(v.grad[lo:hi], d.grad)
		return nil
	})
	return v, err
}

// kernel evaluates the VV10 sums with the same grid on both sides.
func (n *Integrator) kernel(ctx context.Context, v *vv10, withQ bool) error {
	g := n.NLC
	np := g.Len()
	par := n.Func.NLC()
	kvv := par.B * 1.5 * math.Pi * math.Pow(9*math.Pi, -1.0/6)
	beta := math.Pow(3/(par.B*par.B), 0.75) / 32
	pi43 := 4 * math.Pi / 3

	w0 := make([]float64, np)
	kk := make([]float64, np)
	rw := make([]float64, np)
	var inner []int
	for i := 0; i < np; i++ {
		r := v.rho[i]
		if r < vvThreshold {
			continue
		}
		t := v.sigma[i] / (r * r)
		w0[i] = math.Sqrt(par.C*t*t + pi43*r)
		kk[i] = kvv * math.Pow(r, 1.0/6)
		rw[i] = r * g.Weights[i]
		inner = append(inner, i)
	}
	v.e = make([]float64, np)
	v.wexc = make([]float64, np)
	v.vrho = make([]float64, np)
	v.vsigma = make([]float64, np)
	if withQ {
		v.q = make([][3]float64, np)
	}
	const chunk = 256
	nchunk := (len(inner) + chunk - 1) / chunk
	return n.arena.Launch(ctx, nchunk, func(c int) error {
		for _, i := range inner[c*chunk : min((c+1)*chunk, len(inner))] {
			ri := g.Coords[i]
			var f, u, w float64
			var q [3]float64
			for _, j := range inner {
				rj := g.Coords[j]
				dx, dy, dz := ri[0]-rj[0], ri[1]-rj[1], ri[2]-rj[2]
				r2 := dx*dx + dy*dy + dz*dz
				gi := r2*w0[i] + kk[i]
				gj := r2*w0[j] + kk[j]
				gt := gi + gj
				t := rw[j] / (gi * gj * gt)
				f += t
				t2 := t * (1/gi + 1/gt)
				u += t2
				w += t2 * r2
				if withQ {
					s := 1.5 * (t2*w0[i] + t*(1/gj+1/gt)*w0[j])
					q[0] += s * dx
					q[1] += s * dy
					q[2] += s * dz
				}
			}
			f *= -1.5
			r := v.rho[i]
			tmp := v.sigma[i] / (r * r)
			tmp = par.C * tmp * tmp
			dw0dr := (0.5*pi43*r - 2*tmp) / w0[i]
			dw0ds := par.C * v.sigma[i] / (r * r * r * w0[i])
			dkdr := kk[i] / 6
			v.e[i] = r * (beta + 0.5*f)
			v.wexc[i] = r * (beta + f)
			v.vrho[i] = beta + f + 1.5*(u*dkdr+w*dw0dr)
			v.vsigma[i] = 1.5 * w * dw0ds
			if withQ {
				v.q[i] = q
			}
		}
		return nil
	})
}

// nlcPotential returns the VV10 energy and potential matrix.
func (n *Integrator) nlcPotential(ctx context.Context, dm mat.Symmetric) (float64, *mat.SymDense, error) {
	v, err := n.nlcDensity(ctx, dm)
	if err != nil {
		return 0, nil, err
	}
	if err := n.kernel(ctx, v, false); err != nil {
		return 0, nil, err
	}
	g := n.NLC
	nao := n.Orb.NAO
	e := 0.0
	for i, w := range g.Weights {
		e += w * v.e[i]
	}
	blocks := n.blocks(g)
	workers := n.arena.Workers()
	bufs := make([]*device.Buffer, 0, workers)
	defer func() { n.arena.Free(bufs...) }()
	parts := make([][]float64, workers)
	for w := range parts {
		b, err := n.arena.Alloc(nao * nao)
		if err != nil {
			return 0, nil, err
		}
		bufs = append(bufs, b)
		parts[w] = b.Float64()
		clear(parts[w])
	}
	_, err = n.arena.LaunchPartial(ctx, len(blocks), func(w, ib int) error {
		lo, hi := blocks[ib][0], blocks[ib][1]
		ao := grid.EvalAO(n.Orb, g.Coords[lo:hi], 1)
		d := &density{rho: v.rho[lo:hi], grad: v.grad[lo:hi]}
		addPotential(parts[w], nao, ao, g.Weights[lo:hi], d, v.vrho[lo:hi], v.vsigma[lo:hi])
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return e, symmetrise(nao, parts), nil
}

// nlcGrad is the nuclear gradient of the VV10 energy including the motion
// of both points of every pair.
func (n *Integrator) nlcGrad(ctx context.Context, dm *mat.SymDense) ([][3]float64, error) {
	v, err := n.nlcDensity(ctx, dm)
	if err != nil {
		return nil, err
	}
	if err := n.kernel(ctx, v, true); err != nil {
		return nil, err
	}
	g := n.NLC
	natm := n.Mol.NAtoms()
	blocks := n.blocks(g)
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
	_, err = n.arena.LaunchPartial(ctx, len(blocks), func(w, ib int) error {
		lo, hi := blocks[ib][0], blocks[ib][1]
		ao := grid.EvalAO(n.Orb, g.Coords[lo:hi], 2)
		d := evalDensity(ao, dm, true, 4)
		n.semilocalGrad(parts[w], ao, d, lo, v.wexc[lo:hi], v.vrho[lo:hi], v.vsigma[lo:hi], g)
		for i := lo; i < hi; i++ {
			s := 2 * g.Weights[i] * v.rho[i]
			if v.rho[i] < vvThreshold {
				continue
			}
			a := g.Atom[i]
			for k := 0; k < 3; k++ {
				parts[w][3*a+k] += s * v.q[i][k]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([][3]float64, natm)
	for _, p := range parts {
		for a := range out {
			for k := 0; k < 3; k++ {
				out[a][k] += p[3*a+k]
			}
		}
	}
	return out, nil
}

// numint.go --  This file is part of goHF project.
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

// Package numint integrates exchange-correlation functionals on molecular
// grids: energies, Kohn-Sham potential matrices and nuclear gradients.
package numint

import (
	"context"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/device"
	"gohf/internal/errs"
	"gohf/internal/grid"
	"gohf/internal/molecule"
	"gohf/internal/xc"
)

type Options struct {
	Grid      grid.Options `yaml:"grid"`
	NLCGrid   grid.Options `yaml:"nlc_grid"`
	BlockSize int          `yaml:"block_size" validate:"gte=0"`
	Log       *zap.Logger  `yaml:"-"`
}

func DefaultOptions() Options {
	return Options{Grid: grid.DefaultOptions(), NLCGrid: grid.Coarse(), BlockSize: 512}
}

// Integrator evaluates one functional for one molecule and basis.
type Integrator struct {
	Func  xc.Functional
	Orb   *basis.Set
	Mol   *molecule.Molecule
	Grid  *grid.Grid
	NLC   *grid.Grid
	arena *device.Arena
	block int
	log   *zap.Logger
}

// New builds the integration grids of mol. Hartree-Fock needs no grid and
// is rejected.
func New(arena *device.Arena, orb *basis.Set, mol *molecule.Molecule, f xc.Functional, opts Options) (*Integrator, error) {
	if f.Family() == xc.FamilyHF {
		return nil, errs.New(errs.KindInvalidInput, "numint.New", "%s has no exchange-correlation part", f.Name())
	}
	if f.Family() == xc.FamilyMGGA {
		return nil, errs.New(errs.KindUnsupportedCombination, "numint.New", "%s needs the kinetic-energy density", f.Name())
	}
	if f.NeedsLaplacian() {
		return nil, errs.New(errs.KindUnsupportedCombination, "numint.New", "%s needs the density Laplacian", f.Name())
	}
	g, err := grid.Build(mol, opts.Grid)
	if err != nil {
		return nil, err
	}
	n := &Integrator{Func: f, Orb: orb, Mol: mol, Grid: g, arena: arena, block: opts.BlockSize, log: opts.Log}
	if n.block <= 0 {
		n.block = 512
	}
	if n.log == nil {
		n.log = zap.NewNop()
	}
	if f.NLC() != nil {
		if n.NLC, err = grid.Build(mol, opts.NLCGrid); err != nil {
			return nil, err
		}
	}
	n.log.Debug("xc grid", zap.String("functional", f.Name()), zap.Int("points", g.Len()))
	return n, nil
}

func (n *Integrator) gga() bool { return n.Func.Family() == xc.FamilyGGA }

func (n *Integrator) blocks(g *grid.Grid) [][2]int {
	var out [][2]int
	for lo := 0; lo < g.Len(); lo += n.block {
		out = append(out, [2]int{lo, min(lo+n.block, g.Len())})
	}
	return out
}

// density is ρ and ∇ρ on a block, with X = φD kept for the potential.
type density struct {
	rho   []float64
	grad  [][3]float64
	sigma []float64
	x     []*mat.Dense
}

// evalDensity contracts dm with the AO values; xcomp is the number of AO
// components for which φ_c·D is kept.
func evalDensity(ao *grid.AO, dm mat.Symmetric, gga bool, xcomp int) *density {
	npt, _ := ao.Comp[grid.Val].Dims()
	d := &density{rho: make([]float64, npt), x: make([]*mat.Dense, xcomp)}
	for c := range d.x {
		d.x[c] = &mat.Dense{}
		d.x[c].Mul(ao.Comp[c], dm)
	}
	x0 := d.x[0].RawMatrix()
	phi := ao.Comp[grid.Val].RawMatrix()
	for i := 0; i < npt; i++ {
		d.rho[i] = blas64.Dot(blas64.Vector{N: x0.Cols, Data: x0.Data[i*x0.Stride:], Inc: 1},
			blas64.Vector{N: phi.Cols, Data: phi.Data[i*phi.Stride:], Inc: 1})
	}
	if !gga {
		return d
	}
	d.grad = make([][3]float64, npt)
	d.sigma = make([]float64, npt)
	for k := 0; k < 3; k++ {
		dk := ao.Comp[grid.DX+k].RawMatrix()
		for i := 0; i < npt; i++ {
			d.grad[i][k] = 2 * blas64.Dot(blas64.Vector{N: x0.Cols, Data: x0.Data[i*x0.Stride:], Inc: 1},
				blas64.Vector{N: dk.Cols, Data: dk.Data[i*dk.Stride:], Inc: 1})
		}
	}
	for i, g := range d.grad {
		d.sigma[i] = g[0]*g[0] + g[1]*g[1] + g[2]*g[2]
	}
	return d
}

// addPotential accumulates φᵀA into part, with
// A_iμ = w_i(½v_ρ φ_iμ + 2v_σ ∇ρ·∇φ_iμ); the caller symmetrises.
func addPotential(part []float64, nao int, ao *grid.AO, w []float64, d *density, vrho, vsigma []float64) {
	npt := len(w)
	a := mat.NewDense(npt, nao, nil)
	phi := ao.Comp[grid.Val]
	for i := 0; i < npt; i++ {
		for mu := 0; mu < nao; mu++ {
			v := 0.5 * vrho[i] * phi.At(i, mu)
			if vsigma != nil {
				for k := 0; k < 3; k++ {
					v += 2 * vsigma[i] * d.grad[i][k] * ao.Comp[grid.DX+k].At(i, mu)
				}
			}
			a.Set(i, mu, w[i]*v)
		}
	}
	p := phi.RawMatrix()
	ar := a.RawMatrix()
	blas64.Gemm(blas.Trans, blas.NoTrans, 1, p, ar, 1,
		blas64.General{Rows: nao, Cols: nao, Stride: nao, Data: part})
}

// Vxc returns the exchange-correlation energy and potential matrix of the
// total density dm, including a nonlocal correction when the functional has one.
func (n *Integrator) Vxc(ctx context.Context, dm *mat.SymDense) (float64, *mat.SymDense, error) {
	nao := n.Orb.NAO
	gga := n.gga()
	deriv := 0
	if gga {
		deriv = 1
	}
	blocks := n.blocks(n.Grid)
	workers := n.arena.Workers()
	bufs := make([]*device.Buffer, 0, workers)
	defer func() { n.arena.Free(bufs...) }()
	parts := make([][]float64, workers)
	energy := make([]float64, workers)
	for w := range parts {
		b, err := n.arena.Alloc(nao * nao)
		if err != nil {
			return 0, nil, err
		}
		bufs = append(bufs, b)
		parts[w] = b.Float64()
		clear(parts[w])
	}
	_, err := n.arena.LaunchPartial(ctx, len(blocks), func(w, ib int) error {
		lo, hi := blocks[ib][0], blocks[ib][1]
		ao := grid.EvalAO(n.Orb, n.Grid.Coords[lo:hi], deriv)
		d := evalDensity(ao, dm, gga, 1)
		out, err := n.Func.Eval(d.rho, d.sigma, 1)
		if err != nil {
			return err
		}
		wts := n.Grid.Weights[lo:hi]
		for i, e := range out.E {
			energy[w] += wts[i] * e
		}
		addPotential(parts[w], nao, ao, wts, d, out.Vrho, out.Vsigma)
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	exc := 0.0
	for _, e := range energy {
		exc += e
	}
	v := symmetrise(nao, parts)
	if n.NLC != nil {
		enl, vnl, err := n.nlcPotential(ctx, dm)
		if err != nil {
			return 0, nil, err
		}
		exc += enl
		v.AddSym(v, vnl)
	}
	return exc, v, nil
}

// symmetrise returns A + Aᵀ of the summed partials.
func symmetrise(nao int, parts [][]float64) *mat.SymDense {
	v := mat.NewSymDense(nao, nil)
	for mu := 0; mu < nao; mu++ {
		for nu := 0; nu <= mu; nu++ {
			s := 0.0
			for _, p := range parts {
				s += p[mu*nao+nu] + p[nu*nao+mu]
			}
			v.SetSym(mu, nu, s)
		}
	}
	return v
}

// Rho returns the density of dm on the main grid.
func (n *Integrator) Rho(ctx context.Context, dm mat.Symmetric) ([]float64, error) {
	rho := make([]float64, n.Grid.Len())
	blocks := n.blocks(n.Grid)
	err := n.arena.Launch(ctx, len(blocks), func(ib int) error {
		lo, hi := blocks[ib][0], blocks[ib][1]
		d := evalDensity(grid.EvalAO(n.Orb, n.Grid.Coords[lo:hi], 0), dm, false, 1)
		copy(rho[lo:hi], d.rho)
		return nil
	})
	return rho, err
}

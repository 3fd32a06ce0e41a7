// hessian.go --  This file is part of goHF project.
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

// Package hessian computes analytic nuclear Hessians of converged
// density-fitted restricted Hartree-Fock states.
package hessian

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/errs"
	"gohf/internal/grad"
	"gohf/internal/integral"
	"gohf/internal/scf"
	"gohf/internal/xc"
)

var tracer = otel.Tracer("gohf/hessian")

// Hessian is the 3N×3N matrix d²E/dR², index 3·atom+axis.
type Hessian struct {
	Matrix *mat.SymDense
	// CPHFCycles is the solver iteration count per coordinate.
	CPHFCycles []int
}

// check rejects states without second-derivative support.
func check(res *scf.Result) error {
	const op = "hessian.Compute"
	if res == nil || res.DM == nil || res.Calc == nil {
		return errs.New(errs.KindInvalidInput, op, "no SCF state")
	}
	c := res.Calc
	switch {
	case c.IsDirect():
		return errs.New(errs.KindUnsupportedCombination, op, "Hessian of a direct SCF state")
	case c.Func.Family() != xc.FamilyHF:
		return errs.New(errs.KindUnsupportedCombination, op, "Hessian of functional %s", c.Func.Name())
	case c.ECP != nil:
		return errs.New(errs.KindUnsupportedCombination, op, "ECP second derivatives")
	case len(c.Embedding) > 0:
		return errs.New(errs.KindUnsupportedCombination, op, "embedding second derivatives")
	case res.Outcome != scf.OutcomeConverged:
		return errs.New(errs.KindInvalidInput, op, "Hessian of a %s SCF state", res.Outcome)
	case c.Tensor == nil || !c.Tensor.Valid(c.Mol.Fingerprint()):
		return errs.New(errs.KindInvalidInput, op, "no fitted tensor for the current geometry")
	}
	return nil
}

// Compute returns the Hessian of a converged density-fitted RHF result.
func Compute(ctx context.Context, res *scf.Result, opts Options) (hs *Hessian, err error) {
	if err := check(res); err != nil {
		return nil, err
	}
	c := res.Calc
	ctx, span := tracer.Start(ctx, "hessian.Compute", trace.WithAttributes(
		attribute.String("calc.id", c.ID.String()),
		attribute.Int("atoms", c.Mol.NAtoms()),
	))
	defer span.End()
	t0 := time.Now()
	defer func() { c.Metrics.Derivative("hessian", time.Since(t0)) }()

	mol, orb := c.Mol, c.Orb
	natm := mol.NAtoms()
	n3 := 3 * natm
	nao, nocc := orb.NAO, res.NOcc
	kfac := c.Mix().Hyb
	dm, w := res.DM, res.W()
	h := mat.NewDense(n3, n3, nil)

	// second-derivative integrals contracted with D and W
	h.Add(h, integral.OneElectronHessian(orb, mol, integral.OpCore, dm))
	h.Sub(h, integral.OneElectronHessian(orb, mol, integral.OpOverlap, w))

	eng, err := integral.NewEngine(orb, c.Aux, 2)
	if err != nil {
		return nil, err
	}
	fit, err := grad.NewFit(ctx, c.Arena, c.Tensor, dm, 1, kfac)
	if err != nil {
		return nil, err
	}
	defer fit.Release()
	h3, err := eng.Hess3c(natm, func(p int) []float64 { return fit.Gamma[p] })
	if err != nil {
		return nil, err
	}
	h.Add(h, h3)
	h2, err := eng.Hess2c(natm, fit.Omega)
	if err != nil {
		return nil, err
	}
	h.Add(h, h2)

	fd, err := newFitDerivs(ctx, c, eng, fit, dm)
	if err != nil {
		return nil, err
	}
	h.Add(h, fd.cross(kfac))

	// skeleton derivative Fock matrices and the orbital response
	dh := integral.OneElectronDeriv(orb, mol, integral.OpCore)
	ds := integral.OneElectronDeriv(orb, mol, integral.OpOverlap)
	fx, err := fd.fock(ctx, c, dh, kfac)
	if err != nil {
		return nil, err
	}
	cmo := res.C
	cocc := mat.DenseCopyOf(cmo.Slice(0, nao, 0, nocc))
	eocc := res.MOEnergy[:nocc]
	solver := &cphf{jk: c.Tensor, k: kfac, cmo: cmo, cocc: cocc, eps: res.MOEnergy, nocc: nocc, opts: opts}

	mo1 := make([]*mat.Dense, n3)  // C U^y
	mo1e := make([]*mat.Dense, n3) // C U^y ε_occ
	e1 := make([]*mat.Dense, n3)
	s1oo := make([]*mat.Dense, n3)
	hs = &Hessian{CPHFCycles: make([]int, n3)}
	for y := 0; y < n3; y++ {
		h1 := project(cmo, fx[y], cocc)
		s1 := project(cmo, ds[y], cocc)
		u, e, cycles, err := solver.solve(ctx, h1, s1)
		if err != nil {
			return nil, fmt.Errorf("hessian: coordinate %d: %w", y, err)
		}
		hs.CPHFCycles[y] = cycles
		var m mat.Dense
		m.Mul(cmo, u)
		mo1[y] = &m
		me := mat.DenseCopyOf(&m)
		for i := 0; i < nocc; i++ {
			col := me.ColView(i).(*mat.VecDense)
			col.ScaleVec(eocc[i], col)
		}
		mo1e[y] = me
		e1[y] = e
		s1oo[y] = project(cocc, ds[y], cocc)
	}
	for x := 0; x < n3; x++ {
		for y := 0; y < n3; y++ {
			v := 4*contract(fx[x], mo1[y], cocc) -
				4*contract(ds[x], mo1e[y], cocc) -
				2*floats.Dot(s1oo[x].RawMatrix().Data, e1[y].RawMatrix().Data)
			h.Set(x, y, h.At(x, y)+v)
		}
	}

	out := mat.NewSymDense(n3, nil)
	nuc := mol.NucNucHessian()
	for i := 0; i < n3; i++ {
		for j := 0; j <= i; j++ {
			out.SetSym(i, j, 0.5*(h.At(i, j)+h.At(j, i))+nuc.At(i, j))
		}
	}
	for _, corr := range c.Corrections {
		hc, err := corr.Hessian(mol)
		if err != nil {
			return nil, fmt.Errorf("hessian: correction %s: %w", corr.Name(), err)
		}
		out.AddSym(out, hc)
	}
	hs.Matrix = out
	c.Log.Info("hessian", zap.Ints("cphf_cycles", hs.CPHFCycles), zap.Duration("took", time.Since(t0)))
	return hs, nil
}

// project is aᵀ M b.
func project(a *mat.Dense, m mat.Matrix, b *mat.Dense) *mat.Dense {
	var t, r mat.Dense
	t.Mul(a.T(), m)
	r.Mul(&t, b)
	return &r
}

// contract is Σ_pq M_pq (A Bᵀ)_pq.
func contract(m mat.Matrix, a, b *mat.Dense) float64 {
	var ab, mm mat.Dense
	ab.Mul(a, b.T())
	mm.CloneFrom(m)
	return floats.Dot(mm.RawMatrix().Data, ab.RawMatrix().Data)
}

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

// Package grad computes analytic nuclear gradients of converged restricted
// SCF states, for both fitted and direct two-electron integrals.
package grad

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/errs"
	"gohf/internal/fock"
	"gohf/internal/integral"
	"gohf/internal/scf"
)

var tracer = otel.Tracer("gohf/grad")

// Parts are the separate contributions to the gradient, each one vector
// per atom.
type Parts struct {
	Core        [][3]float64 // D·∂h, including the ECP
	Overlap     [][3]float64 // -W·∂S
	TwoElectron [][3]float64
	XC          [][3]float64
	Nuclear     [][3]float64
	External    [][3]float64 // embedding and post-hoc corrections
}

// Gradient is dE/dR in Hartree/Bohr.
type Gradient struct {
	Total [][3]float64
	Parts Parts
}

// Norm is the largest absolute component.
func (g *Gradient) Norm() float64 {
	m := 0.0
	for _, v := range g.Total {
		for _, x := range v {
			m = max(m, x, -x)
		}
	}
	return m
}

func zeros(n int) [][3]float64 { return make([][3]float64, n) }

func add(dst, src [][3]float64) {
	for a := range dst {
		for k := 0; k < 3; k++ {
			dst[a][k] += src[a][k]
		}
	}
}

// Compute returns the nuclear gradient of a converged SCF result. The fitted
// tensors of the calculation must not have been released.
func Compute(ctx context.Context, res *scf.Result) (g *Gradient, err error) {
	const op = "grad.Compute"
	if res == nil || res.DM == nil || res.Calc == nil {
		return nil, errs.New(errs.KindInvalidInput, op, "no SCF state")
	}
	if res.Outcome != scf.OutcomeConverged {
		return nil, errs.New(errs.KindInvalidInput, op, "gradient of a %s SCF state", res.Outcome)
	}
	c := res.Calc
	ctx, span := tracer.Start(ctx, "grad.Compute", trace.WithAttributes(
		attribute.String("calc.id", c.ID.String()),
		attribute.Bool("direct", c.IsDirect()),
	))
	defer span.End()
	t0 := time.Now()
	defer func() { c.Metrics.Derivative("gradient", time.Since(t0)) }()

	mol, orb := c.Mol, c.Orb
	natm := mol.NAtoms()
	dm := res.DM
	p := Parts{
		Core:        zeros(natm),
		Overlap:     zeros(natm),
		TwoElectron: zeros(natm),
		XC:          zeros(natm),
		External:    zeros(natm),
	}

	dh := integral.OneElectronDeriv(orb, mol, integral.OpCore)
	ds := integral.OneElectronDeriv(orb, mol, integral.OpOverlap)
	w := res.W()
	for x := range dh {
		p.Core[x/3][x%3] = fock.Trace(dm, dh[x])
		p.Overlap[x/3][x%3] = -fock.Trace(w, ds[x])
	}
	if c.ECP != nil {
		ge, err := c.ECP.Gradient(orb, mol, dm)
		if err != nil {
			return nil, fmt.Errorf("grad: ecp: %w", err)
		}
		add(p.Core, ge)
	}

	var two [][3]float64
	if c.IsDirect() {
		two, err = direct(ctx, c, dm)
	} else {
		two, err = fitted(ctx, c, dm)
	}
	if err != nil {
		return nil, err
	}
	add(p.TwoElectron, two)

	if c.XC != nil {
		gx, err := c.XC.Grad(ctx, dm)
		if err != nil {
			return nil, fmt.Errorf("grad: xc: %w", err)
		}
		add(p.XC, gx)
	}
	p.Nuclear = mol.NucNucGrad()

	for _, e := range c.Embedding {
		ge, err := e.Gradient(ctx, mol, dm)
		if err != nil {
			return nil, fmt.Errorf("grad: embedding %s: %w", e.Name(), err)
		}
		add(p.External, ge)
	}
	for _, corr := range c.Corrections {
		gc, err := corr.Gradient(mol)
		if err != nil {
			return nil, fmt.Errorf("grad: correction %s: %w", corr.Name(), err)
		}
		add(p.External, gc)
	}

	g = &Gradient{Total: zeros(natm), Parts: p}
	for _, part := range [][][3]float64{p.Core, p.Overlap, p.TwoElectron, p.XC, p.Nuclear, p.External} {
		add(g.Total, part)
	}
	c.Log.Info("gradient", zap.Float64("max", g.Norm()), zap.Duration("took", time.Since(t0)))
	for a, v := range g.Total {
		c.Log.Debug("gradient row", zap.Int("atom", a), zap.Float64s("g", v[:]))
	}
	return g, nil
}

// weights of the two-electron energy ½ Σ (ab|cd) Γ_abcd:
// Coulomb D_ab D_cd, exchange -½·k·½(D_ac D_bd + D_ad D_bc).
func exchangeFactors(c *scf.Calc) (sr, lr float64) {
	m := c.Mix()
	sr = m.Hyb
	if m.Omega > 0 && m.Alpha != m.Hyb {
		lr = m.Alpha - m.Hyb
	}
	return sr, lr
}

// dense returns a row-major copy of a symmetric matrix.
func dense(s mat.Symmetric) []float64 {
	n := s.SymmetricDim()
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = s.At(i, j)
		}
	}
	return out
}

// fitted.go --  This file is part of goHF project.
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

package grad

import (
	"context"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/device"
	"gohf/internal/df"
	"gohf/internal/errs"
	"gohf/internal/integral"
	"gohf/internal/scf"
)

// fitted differentiates the density-fitted two-electron energy, including
// the response of the auxiliary metric.
func fitted(ctx context.Context, c *scf.Calc, dm *mat.SymDense) ([][3]float64, error) {
	fp := c.Mol.Fingerprint()
	if c.Tensor == nil || !c.Tensor.Valid(fp) {
		return nil, errs.New(errs.KindInvalidInput, "grad.fitted", "no fitted tensor for the current geometry")
	}
	eng, err := integral.NewEngine(c.Orb, c.Aux, 1)
	if err != nil {
		return nil, err
	}
	sr, lr := exchangeFactors(c)
	g, err := response(ctx, c, c.Tensor, eng, dm, 1, sr)
	if err != nil || lr == 0 {
		return g, err
	}
	if c.TensorLR == nil || !c.TensorLR.Valid(fp) {
		return nil, errs.New(errs.KindInvalidInput, "grad.fitted", "no attenuated tensor for the current geometry")
	}
	glr, err := response(ctx, c, c.TensorLR, eng.Attenuated(c.Mix().Omega), dm, 0, lr)
	if err != nil {
		return nil, err
	}
	add(g, glr)
	return g, nil
}

// Fit holds the fitted quantities of a density that the gradient and the
// Hessian share. For the two-electron energy
//
//	E = ½ jfac dᵀM d - ¼ kfac Σ_PQ M⁻¹_PQ tr(B_P D B_Q D)
//
// with B_P = (··|P) and d = M⁻¹(B·D), and C_P = Σ_Q M⁻¹_PQ B_Q recovered
// from the tensor as Σ_L T_LP cderi_L, the three-centre weight is
// Γ_P = jfac d_P D - ½ kfac D C_P D and the metric weight is
// Ω_PQ = -½ jfac d_P d_Q + ¼ kfac tr(C_P D C_Q D).
type Fit struct {
	NAux  int
	NPair int
	Coef  []float64     // d
	C     []float64     // packed C_P, naux rows
	Gamma [][]float64   // Γ_P, row-major nao×nao
	Omega *mat.SymDense // Ω

	arena *device.Arena
	buf   *device.Buffer
}

// NewFit contracts the tensor with dm. The packed C_P live in the arena
// until Release.
func NewFit(ctx context.Context, arena *device.Arena, t *df.Tensor, dm *mat.SymDense, jfac, kfac float64) (*Fit, error) {
	nao, npair := t.NAO, t.NPair
	naux := t.Metric.NAux
	tm := t.Metric.T

	buf, err := arena.Alloc(naux * npair)
	if err != nil {
		return nil, err
	}
	f := &Fit{NAux: naux, NPair: npair, C: buf.Float64(), arena: arena, buf: buf}
	cp := f.C
	err = t.Loop(ctx, 0, func(l0, l1 int, rows []float64) error {
		for l := l0; l < l1; l++ {
			row := rows[(l-l0)*npair : (l-l0+1)*npair]
			for p := 0; p < naux; p++ {
				if v := tm.At(l, p); v != 0 {
					floats.AddScaled(cp[p*npair:(p+1)*npair], v, row)
				}
			}
		}
		return nil
	})
	if err != nil {
		f.Release()
		return nil, err
	}

	dp := df.PackDensity(dm)
	f.Coef = make([]float64, naux)
	for p := range f.Coef {
		f.Coef[p] = floats.Dot(cp[p*npair:(p+1)*npair], dp)
	}
	d := dense(dm)
	f.Gamma = make([][]float64, naux)
	var ys [][]float64
	if kfac != 0 {
		ys = make([][]float64, naux)
	}
	err = arena.Launch(ctx, naux, func(p int) error {
		gp := make([]float64, nao*nao)
		if jfac != 0 {
			floats.AddScaled(gp, jfac*f.Coef[p], d)
		}
		if kfac != 0 {
			y := make([]float64, nao*nao)
			gemm(nao, f.Unpack(p, nao), d, y, 1, 0)
			gemm(nao, d, y, gp, -0.5*kfac, 1)
			ys[p] = y
		}
		f.Gamma[p] = gp
		return nil
	})
	if err != nil {
		f.Release()
		return nil, err
	}

	f.Omega = mat.NewSymDense(naux, nil)
	for p := 0; p < naux; p++ {
		for q := 0; q <= p; q++ {
			v := -0.5 * jfac * f.Coef[p] * f.Coef[q]
			if kfac != 0 {
				v += 0.25 * kfac * traceProduct(nao, ys[p], ys[q])
			}
			f.Omega.SetSym(p, q, v)
		}
	}
	return f, nil
}

// Unpack returns C_P as a row-major nao×nao matrix.
func (f *Fit) Unpack(p, nao int) []float64 {
	m := mat.NewDense(nao, nao, nil)
	df.Unpack(nao, f.C[p*f.NPair:(p+1)*f.NPair], m)
	return m.RawMatrix().Data
}

// Release returns the packed C_P to the arena.
func (f *Fit) Release() {
	if f.buf != nil {
		f.arena.Free(f.buf)
		f.buf, f.C = nil, nil
	}
}

func response(ctx context.Context, c *scf.Calc, t *df.Tensor, eng *integral.Engine, dm *mat.SymDense, jfac, kfac float64) ([][3]float64, error) {
	f, err := NewFit(ctx, c.Arena, t, dm, jfac, kfac)
	if err != nil {
		return nil, err
	}
	defer f.Release()
	natm := c.Mol.NAtoms()
	g, err := eng.Grad3c(natm, func(p int) []float64 { return f.Gamma[p] })
	if err != nil {
		return nil, err
	}
	g2, err := eng.Grad2c(natm, f.Omega)
	if err != nil {
		return nil, err
	}
	add(g, g2)
	return g, nil
}

// gemm computes c = alpha·a·b + beta·c for square row-major matrices.
func gemm(n int, a, b, c []float64, alpha, beta float64) {
	blas64.Gemm(blas.NoTrans, blas.NoTrans, alpha,
		blas64.General{Rows: n, Cols: n, Stride: n, Data: a},
		blas64.General{Rows: n, Cols: n, Stride: n, Data: b},
		beta,
		blas64.General{Rows: n, Cols: n, Stride: n, Data: c})
}

// traceProduct is tr(A·B) for square row-major matrices.
func traceProduct(n int, a, b []float64) float64 {
	s := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s += a[i*n+j] * b[j*n+i]
		}
	}
	return s
}

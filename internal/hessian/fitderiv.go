// fitderiv.go --  This file is part of goHF project.
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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/grad"
	"gohf/internal/integral"
	"gohf/internal/scf"
)

// fitDerivs holds the nuclear derivatives of the fitted integrals. With
// C_P = Σ_Q M⁻¹_PQ B_Q and Z^x_P = Σ_Q M^x_PQ C_Q,
//
//	y[x]  = T (B^x - Z^x)     the full response, for products of derivatives
//	yh[x] = T (B^x - ½ Z^x)   the symmetric split, for first derivatives
//
// so that ∂(ab|cd)/∂x = Σ_L yh_L[ab] cderi_L[cd] + cderi_L[ab] yh_L[cd].
// Rows are indexed by the fitted direction L and hold nao×nao matrices.
type fitDerivs struct {
	nao, nl int
	y, yh   []*mat.Dense
	d       []float64 // row-major D
}

func newFitDerivs(ctx context.Context, c *scf.Calc, eng *integral.Engine, fit *grad.Fit, dm *mat.SymDense) (*fitDerivs, error) {
	natm := c.Mol.NAtoms()
	nao := c.Orb.NAO
	nn := nao * nao
	naux := fit.NAux
	tm := c.Tensor.Metric.T
	nl, _ := tm.Dims()

	b3, err := eng.Deriv3c(natm)
	if err != nil {
		return nil, err
	}
	m2, err := eng.Deriv2c(natm)
	if err != nil {
		return nil, err
	}
	cfull := mat.NewDense(naux, nn, nil)
	for p := 0; p < naux; p++ {
		cfull.SetRow(p, fit.Unpack(p, nao))
	}

	fd := &fitDerivs{nao: nao, nl: nl, y: make([]*mat.Dense, 3*natm), yh: make([]*mat.Dense, 3*natm)}
	fd.d = make([]float64, nn)
	for i := 0; i < nao; i++ {
		for j := 0; j < nao; j++ {
			fd.d[i*nao+j] = dm.At(i, j)
		}
	}
	err = c.Arena.Launch(ctx, 3*natm, func(x int) error {
		bx := mat.NewDense(naux, nn, nil)
		for p := 0; p < naux; p++ {
			bx.SetRow(p, b3[x][p])
		}
		var z, r mat.Dense
		z.Mul(m2[x], cfull)
		r.Sub(bx, &z)
		var y mat.Dense
		y.Mul(tm, &r)
		z.Scale(0.5, &z)
		r.Add(&r, &z)
		var yh mat.Dense
		yh.Mul(tm, &r)
		fd.y[x], fd.yh[x] = &y, &yh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fd, nil
}

func (fd *fitDerivs) row(m *mat.Dense, l int) *mat.Dense {
	return mat.NewDense(fd.nao, fd.nao, m.RawRowView(l))
}

// cross is the part of the two-electron Hessian made of products of first
// derivatives of the fitted integrals:
// Σ_L (Y^x_L·D)(Y^y_L·D) - ½k tr(Y^x_L D Y^y_L D).
func (fd *fitDerivs) cross(kfac float64) *mat.Dense {
	n3 := len(fd.y)
	nn := fd.nao * fd.nao
	yd := mat.NewDense(n3, fd.nl, nil)
	var ydd [][]float64
	if kfac != 0 {
		ydd = make([][]float64, n3)
	}
	dd := mat.NewDense(fd.nao, fd.nao, fd.d)
	for x := 0; x < n3; x++ {
		if kfac != 0 {
			ydd[x] = make([]float64, fd.nl*nn)
		}
		for l := 0; l < fd.nl; l++ {
			row := fd.y[x].RawRowView(l)
			yd.Set(x, l, floats.Dot(row, fd.d))
			if kfac != 0 {
				dst := mat.NewDense(fd.nao, fd.nao, ydd[x][l*nn:(l+1)*nn])
				dst.Mul(fd.row(fd.y[x], l), dd)
			}
		}
	}
	var h mat.Dense
	h.Mul(yd, yd.T())
	if kfac == 0 {
		return &h
	}
	for x := 0; x < n3; x++ {
		for y := 0; y <= x; y++ {
			s := 0.0
			for l := 0; l < fd.nl; l++ {
				a := ydd[x][l*nn : (l+1)*nn]
				b := ydd[y][l*nn : (l+1)*nn]
				for i := 0; i < fd.nao; i++ {
					for j := 0; j < fd.nao; j++ {
						s += a[i*fd.nao+j] * b[j*fd.nao+i]
					}
				}
			}
			v := -0.5 * kfac * s
			h.Set(x, y, h.At(x, y)+v)
			if x != y {
				h.Set(y, x, h.At(y, x)+v)
			}
		}
	}
	return &h
}

// fock returns the skeleton derivative Fock matrices h^x + J^x - ½k K^x,
// the integral derivatives contracted with the fixed density.
func (fd *fitDerivs) fock(ctx context.Context, c *scf.Calc, dh []*mat.SymDense, kfac float64) ([]*mat.SymDense, error) {
	t := c.Tensor
	nao := fd.nao
	rho, err := t.Rho(ctx, mat.NewSymDense(nao, append([]float64(nil), fd.d...)))
	if err != nil {
		return nil, err
	}
	cd := make([]*mat.SymDense, fd.nl)
	for l := range cd {
		cd[l] = t.Unpack(l)
	}
	dd := mat.NewDense(nao, nao, fd.d)
	out := make([]*mat.SymDense, len(fd.yh))
	err = c.Arena.Launch(ctx, len(fd.yh), func(x int) error {
		f := mat.NewDense(nao, nao, nil)
		f.Copy(dh[x])
		var k, tmp mat.Dense
		k.ReuseAs(nao, nao)
		for l := 0; l < fd.nl; l++ {
			yl := fd.row(fd.yh[x], l)
			// J
			var s mat.Dense
			s.Scale(rho[l], yl)
			f.Add(f, &s)
			s.Scale(floats.Dot(fd.yh[x].RawRowView(l), fd.d), cd[l])
			f.Add(f, &s)
			if kfac != 0 {
				tmp.Mul(yl, dd)
				s.Mul(&tmp, cd[l])
				k.Add(&k, &s)
			}
		}
		if kfac != 0 {
			var kt mat.Dense
			kt.CloneFrom(k.T())
			k.Add(&k, &kt)
			k.Scale(-0.5*kfac, &k)
			f.Add(f, &k)
		}
		out[x] = integral.SymFromDense(f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

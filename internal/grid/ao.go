// ao.go --  This file is part of goHF project.
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

package grid

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
)

// Component indices of AO values.
const (
	Val = iota
	DX
	DY
	DZ
	DXX
	DXY
	DXZ
	DYY
	DYZ
	DZZ
)

// NComp is the number of AO components evaluated for a derivative order.
func NComp(deriv int) int { return [...]int{1, 4, 10}[deriv] }

// Second maps a pair of Cartesian directions to its second-derivative component.
var Second = [3][3]int{{DXX, DXY, DXZ}, {DXY, DYY, DYZ}, {DXZ, DYZ, DZZ}}

// AO holds basis function values on a block of points, one npt×nao matrix per
// component.
type AO struct {
	Comp []*mat.Dense
}

// EvalAO evaluates the basis and its derivatives up to deriv (at most 2) on pts.
func EvalAO(b *basis.Set, pts [][3]float64, deriv int) *AO {
	nc := NComp(deriv)
	ao := &AO{Comp: make([]*mat.Dense, nc)}
	for c := range ao.Comp {
		ao.Comp[c] = mat.NewDense(len(pts), b.NAO, nil)
	}
	var fx, fy, fz [3]float64
	for ip, r := range pts {
		for is := range b.Shells {
			sh := &b.Shells[is]
			off := b.Offsets[is]
			dx, dy, dz := r[0]-sh.Center[0], r[1]-sh.Center[1], r[2]-sh.Center[2]
			r2 := dx*dx + dy*dy + dz*dz
			for ic, c := range basis.Cart(sh.L) {
				norm := basis.CompNorm(sh.L, c)
				var acc [10]float64
				for k, a := range sh.Exps {
					e := sh.Coefs[k] * norm * math.Exp(-a*r2)
					if e == 0 {
						continue
					}
					cart1d(dx, a, c[0], deriv, &fx)
					cart1d(dy, a, c[1], deriv, &fy)
					cart1d(dz, a, c[2], deriv, &fz)
					acc[Val] += e * fx[0] * fy[0] * fz[0]
					if deriv > 0 {
						acc[DX] += e * fx[1] * fy[0] * fz[0]
						acc[DY] += e * fx[0] * fy[1] * fz[0]
						acc[DZ] += e * fx[0] * fy[0] * fz[1]
					}
					if deriv > 1 {
						acc[DXX] += e * fx[2] * fy[0] * fz[0]
						acc[DXY] += e * fx[1] * fy[1] * fz[0]
						acc[DXZ] += e * fx[1] * fy[0] * fz[1]
						acc[DYY] += e * fx[0] * fy[2] * fz[0]
						acc[DYZ] += e * fx[0] * fy[1] * fz[1]
						acc[DZZ] += e * fx[0] * fy[0] * fz[2]
					}
				}
				for comp := 0; comp < nc; comp++ {
					ao.Comp[comp].Set(ip, off+ic, acc[comp])
				}
			}
		}
	}
	return ao
}

// cart1d writes x^l and its first two derivatives with the Gaussian factored
// out: d/dx (x^l e^{-ax²}) = (l x^{l-1} - 2a x^{l+1}) e^{-ax²}.
func cart1d(x, a float64, l, deriv int, out *[3]float64) {
	pw := func(n int) float64 {
		if n < 0 {
			return 0
		}
		return ipow(x, n)
	}
	fl := float64(l)
	out[0] = pw(l)
	if deriv > 0 {
		out[1] = fl*pw(l-1) - 2*a*pw(l+1)
	}
	if deriv > 1 {
		out[2] = fl*(fl-1)*pw(l-2) - 2*a*(2*fl+1)*pw(l) + 4*a*a*pw(l+2)
	}
}

func ipow(x float64, n int) float64 {
	r := 1.0
	for ; n > 0; n-- {
		r *= x
	}
	return r
}

// hermite.go --  This file is part of goHF project.
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

package integral

import "math"

// primPair holds the Hermite expansion of a product of two primitive
// Gaussians along each axis: e[d][i][j][t] for i <= imax, j <= jmax.
type primPair struct {
	a, b float64
	p    float64
	P    [3]float64
	e    [3][][][]float64
}

func newPrimPair(a float64, A [3]float64, b float64, B [3]float64, imax, jmax int) *primPair {
	pp := &primPair{a: a, b: b, p: a + b}
	for d := 0; d < 3; d++ {
		pp.P[d] = (a*A[d] + b*B[d]) / pp.p
		pp.e[d] = hermiteE(imax, jmax, a, b, A[d]-B[d])
	}
	return pp
}

// hermiteE builds the McMurchie-Davidson coefficients E^{ij}_t.
func hermiteE(imax, jmax int, a, b, xab float64) [][][]float64 {
	p := a + b
	mu := a * b / p
	xpa := -b * xab / p
	xpb := a * xab / p
	oo2p := 0.5 / p
	e := make([][][]float64, imax+1)
	for i := range e {
		e[i] = make([][]float64, jmax+1)
		for j := range e[i] {
			e[i][j] = make([]float64, i+j+1)
		}
	}
	at := func(c []float64, t int) float64 {
		if t < 0 || t >= len(c) {
			return 0
		}
		return c[t]
	}
	e[0][0][0] = math.Exp(-mu * xab * xab)
	for i := 0; i < imax; i++ {
		src, dst := e[i][0], e[i+1][0]
		for t := range dst {
			dst[t] = oo2p*at(src, t-1) + xpa*at(src, t) + float64(t+1)*at(src, t+1)
		}
	}
	for i := 0; i <= imax; i++ {
		for j := 0; j < jmax; j++ {
			src, dst := e[i][j], e[i][j+1]
			for t := range dst {
				dst[t] = oo2p*at(src, t-1) + xpb*at(src, t) + float64(t+1)*at(src, t+1)
			}
		}
	}
	return e
}

// rTable holds the Hermite Coulomb integrals R_{tuv} (n = 0) for
// t+u+v <= L.
type rTable struct {
	l    int
	dim  int
	data []float64
}

func (r *rTable) at(t, u, v int) float64 {
	return r.data[(t*r.dim+u)*r.dim+v]
}

// hermiteR evaluates R_{tuv}(alpha, X) by the downward-n recursion.
func hermiteR(L int, alpha float64, x [3]float64, fn []float64) *rTable {
	dim := L + 1
	size := dim * dim * dim
	cur := make([]float64, size)
	prev := make([]float64, size)
	t2 := alpha * (x[0]*x[0] + x[1]*x[1] + x[2]*x[2])
	boys(L, t2, fn)
	idx := func(t, u, v int) int { return (t*dim+u)*dim + v }
	m2a := -2 * alpha
	for n := L; n >= 0; n-- {
		cur, prev = prev, cur
		cur[0] = math.Pow(m2a, float64(n)) * fn[n]
		lim := L - n
		for t := 0; t <= lim; t++ {
			for u := 0; u <= lim-t; u++ {
				for v := 0; v <= lim-t-u; v++ {
					switch {
					case t+u+v == 0:
						continue
					case t > 0:
						val := x[0] * prev[idx(t-1, u, v)]
						if t > 1 {
							val += float64(t-1) * prev[idx(t-2, u, v)]
						}
						cur[idx(t, u, v)] = val
					case u > 0:
						val := x[1] * prev[idx(t, u-1, v)]
						if u > 1 {
							val += float64(u-1) * prev[idx(t, u-2, v)]
						}
						cur[idx(t, u, v)] = val
					default:
						val := x[2] * prev[idx(t, u, v-1)]
						if v > 1 {
							val += float64(v-1) * prev[idx(t, u, v-2)]
						}
						cur[idx(t, u, v)] = val
					}
				}
			}
		}
	}
	return &rTable{l: L, dim: dim, data: cur}
}

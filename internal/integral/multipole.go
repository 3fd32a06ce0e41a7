// multipole.go --  This file is part of goHF project.
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

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
)

// moments1D is ∫ x_C^k Λ_t summed over the Hermite coefficients e for
// k = 0, 1, 2, without the factor √(π/p). xpc is P - C.
func moments1D(e []float64, p, xpc float64) [3]float64 {
	at := func(t int) float64 {
		if t < len(e) {
			return e[t]
		}
		return 0
	}
	return [3]float64{
		e[0],
		xpc*e[0] + at(1),
		(xpc*xpc+0.5/p)*e[0] + 2*xpc*at(1) + 2*at(2),
	}
}

// SecondMoment returns the matrices ⟨μ|(r-O)_i (r-O)_j|ν⟩ about origin O.
// Entries [i][j] and [j][i] share one matrix.
func SecondMoment(b *basis.Set, origin [3]float64) [3][3]*mat.SymDense {
	var rr [3][3]*mat.SymDense
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			rr[i][j] = mat.NewSymDense(b.NAO, nil)
			rr[j][i] = rr[i][j]
		}
	}
	for i := range b.Shells {
		si := slotOf(&b.Shells[i])
		for j := 0; j <= i; j++ {
			sj := slotOf(&b.Shells[j])
			size := len(si.comps) * len(sj.comps)
			var blk [3][3][]float64
			for x := 0; x < 3; x++ {
				for y := x; y < 3; y++ {
					blk[x][y] = make([]float64, size)
				}
			}
			for i0, a0 := range si.exps {
				for i1, a1 := range sj.exps {
					pp := newPrimPair(a0, si.center, a1, sj.center, si.l, sj.l)
					c := si.coefs[i0] * sj.coefs[i1] * math.Pow(math.Pi/pp.p, 1.5)
					idx := 0
					for _, l0 := range si.comps {
						for _, l1 := range sj.comps {
							var m [3][3]float64
							for d := 0; d < 3; d++ {
								m[d] = moments1D(pp.e[d][l0[d]][l1[d]], pp.p, pp.P[d]-origin[d])
							}
							for x := 0; x < 3; x++ {
								for y := x; y < 3; y++ {
									v := c
									for d := 0; d < 3; d++ {
										k := 0
										if d == x {
											k++
										}
										if d == y {
											k++
										}
										v *= m[d][k]
									}
									blk[x][y][idx] += v
								}
							}
							idx++
						}
					}
				}
			}
			idx := 0
			for ci, n0 := range si.norms {
				for cj, n1 := range sj.norms {
					mu, nu := b.Offsets[i]+ci, b.Offsets[j]+cj
					for x := 0; x < 3; x++ {
						for y := x; y < 3; y++ {
							rr[x][y].SetSym(mu, nu, n0*n1*blk[x][y][idx])
						}
					}
					idx++
				}
			}
		}
	}
	return rr
}

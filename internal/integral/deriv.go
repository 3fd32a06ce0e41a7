// deriv.go --  This file is part of goHF project.
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

import "gonum.org/v1/gonum/mat"

// firstReqs differentiates each listed slot once in x, y and z; request
// 3*n+k belongs to slots[n], direction k.
func firstReqs(slots ...int) []Deriv {
	reqs := make([]Deriv, 0, 3*len(slots))
	for _, s := range slots {
		for k := 0; k < 3; k++ {
			var d Deriv
			d[s] = []int{k}
			reqs = append(reqs, d)
		}
	}
	return reqs
}

// secondReqs builds every second derivative over the listed slots. The
// returned index maps (slot a, slot b, k, l) to a request; entries with
// a > b or (a == b, k > l) point at the transposed request.
func secondReqs(slots ...int) ([]Deriv, [][][3][3]int) {
	n := len(slots)
	index := make([][][3][3]int, n)
	for a := range index {
		index[a] = make([][3][3]int, n)
	}
	var reqs []Deriv
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					if a == b && l < k {
						continue
					}
					var d Deriv
					if a == b {
						d[slots[a]] = []int{k, l}
					} else {
						d[slots[a]] = []int{k}
						d[slots[b]] = []int{l}
					}
					index[a][b][k][l] = len(reqs)
					index[b][a][l][k] = len(reqs)
					reqs = append(reqs, d)
				}
			}
		}
	}
	return reqs, index
}

// scatterFirst adds explicit slot derivatives raw[s][k] to the gradient of
// atoms[s]; the last atom gets the translational-invariance remainder.
func scatterFirst(g [][3]float64, atoms []int, raw [][3]float64) {
	last := atoms[len(atoms)-1]
	for s, a := range atoms[:len(atoms)-1] {
		for k := 0; k < 3; k++ {
			g[a][k] += raw[s][k]
			g[last][k] -= raw[s][k]
		}
	}
}

// scatterSecond adds explicit second derivatives raw[s][t][k][l] to the
// Hessian, completing the implicit last slot by translational invariance.
func scatterSecond(h *mat.Dense, atoms []int, raw [][][3][3]float64) {
	n := len(atoms)
	m := n - 1
	full := make([][][3][3]float64, n)
	for s := range full {
		full[s] = make([][3][3]float64, n)
	}
	for s := 0; s < m; s++ {
		for t := 0; t < m; t++ {
			full[s][t] = raw[s][t]
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					full[s][m][k][l] -= raw[s][t][k][l]
					full[m][t][k][l] -= raw[s][t][k][l]
					full[m][m][k][l] += raw[s][t][k][l]
				}
			}
		}
	}
	for s := 0; s < n; s++ {
		for t := 0; t < n; t++ {
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					i, j := 3*atoms[s]+k, 3*atoms[t]+l
					h.Set(i, j, h.At(i, j)+full[s][t][k][l])
				}
			}
		}
	}
}

// SymFromDense symmetrises a square matrix.
func SymFromDense(d *mat.Dense) *mat.SymDense {
	n, _ := d.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(d.At(i, j)+d.At(j, i)))
		}
	}
	return s
}

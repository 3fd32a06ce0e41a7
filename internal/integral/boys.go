// boys.go --  This file is part of goHF project.
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

	"gonum.org/v1/gonum/mathext"
)

// boys fills out[0..nmax] with F_n(x). The top order comes from the
// regularised incomplete gamma function, the rest from downward recursion.
func boys(nmax int, x float64, out []float64) {
	if x < 1e-13 {
		for n := 0; n <= nmax; n++ {
			nf := float64(n)
			out[n] = 1/(2*nf+1) - x/(2*nf+3)
		}
		return
	}
	nf := float64(nmax)
	out[nmax] = mathext.GammaIncReg(nf+0.5, x) * math.Gamma(nf+0.5) / (2 * math.Pow(x, nf+0.5))
	ex := math.Exp(-x)
	for n := nmax; n > 0; n-- {
		out[n-1] = (2*x*out[n] + ex) / float64(2*n-1)
	}
}

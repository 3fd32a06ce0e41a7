// etb.go --  This file is part of goHF project.
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

package basis

import (
	"math"

	"golang.org/x/exp/slices"

	"gohf/internal/errs"
)

// MaxAuxL is the highest auxiliary angular momentum the fitting kernels
// accept.
const MaxAuxL = 5

// EvenTempered generates an uncontracted even-tempered auxiliary set from the
// primitive products of the orbital set. For every atom and every L up to
// lmax (2·l_max of the atom when lmax < 0, and at least 1) the exponents run
// from the largest pair exponent down by factors of beta while they stay
// above the smallest. An L no primitive pair reaches, such as p on an atom
// with only s shells, reuses the range of the L below it.
func EvenTempered(orb *Set, beta float64, lmax int) (*Set, error) {
	if beta <= 1 {
		return nil, errs.New(errs.KindInvalidInput, "basis.EvenTempered", "beta must exceed 1, got %g", beta)
	}
	natm := 0
	for _, sh := range orb.Shells {
		if sh.Atom+1 > natm {
			natm = sh.Atom + 1
		}
	}
	var shells []Shell
	for atm := 0; atm < natm; atm++ {
		var prims [][2]float64 // exponent, l
		var center [3]float64
		atomL := -1
		for _, sh := range orb.Shells {
			if sh.Atom != atm {
				continue
			}
			center = sh.Center
			if sh.L > atomL {
				atomL = sh.L
			}
			for _, e := range sh.Exps {
				prims = append(prims, [2]float64{e, float64(sh.L)})
			}
		}
		if atomL < 0 {
			continue
		}
		top := max(2*atomL, 1)
		if lmax >= 0 && lmax < top {
			top = lmax
		}
		if top > MaxAuxL {
			top = MaxAuxL
		}
		lastMin, lastMax := 0.0, 0.0
		for L := 0; L <= top; L++ {
			emin, emax := math.Inf(1), 0.0
			for _, a := range prims {
				for _, b := range prims {
					lsum := int(a[1] + b[1])
					if lsum < L || (lsum-L)%2 != 0 {
						continue
					}
					e := a[0] + b[0]
					emin = math.Min(emin, e)
					emax = math.Max(emax, e)
				}
			}
			if emax == 0 {
				emin, emax = lastMin, lastMax
			}
			if emax == 0 {
				continue
			}
			lastMin, lastMax = emin, emax
			n := int(math.Floor(math.Log(emax/emin)/math.Log(beta))) + 1
			exps := make([]float64, n)
			for k := range exps {
				exps[k] = emax / math.Pow(beta, float64(k))
			}
			slices.Sort(exps)
			for _, e := range exps {
				shells = append(shells, NewShell(atm, center, L, []float64{e}, []float64{1}))
			}
		}
	}
	return NewSet("etb", shells), nil
}

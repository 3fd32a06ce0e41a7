// basis.go --  This file is part of goHF project.
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

// Package basis holds contracted Cartesian Gaussian shells and the embedded
// basis library used by the host side.
package basis

import (
	"math"

	"gohf/internal/errs"
	"gohf/internal/molecule"
)

// Shell is a contracted Cartesian Gaussian shell. Coefs already include the
// primitive and contraction normalisation of the x^L component; the other
// components are scaled with CompNorm.
type Shell struct {
	Atom   int
	Center [3]float64
	L      int
	Exps   []float64
	Coefs  []float64
}

// NComp is the number of Cartesian components of the shell.
func (s *Shell) NComp() int { return NCart(s.L) }

func NCart(l int) int { return (l + 1) * (l + 2) / 2 }

// Set is an immutable ordered list of shells.
type Set struct {
	Name    string
	Shells  []Shell
	Offsets []int
	NAO     int
	aoAtom  []int
}

// NewSet indexes shells; it does not copy them.
func NewSet(name string, shells []Shell) *Set {
	s := &Set{Name: name, Shells: shells, Offsets: make([]int, len(shells))}
	for i := range shells {
		s.Offsets[i] = s.NAO
		s.NAO += shells[i].NComp()
		for c := 0; c < shells[i].NComp(); c++ {
			s.aoAtom = append(s.aoAtom, shells[i].Atom)
		}
	}
	return s
}

// AOAtom maps a basis function to its atom.
func (s *Set) AOAtom(mu int) int { return s.aoAtom[mu] }

func (s *Set) MaxL() int {
	l := 0
	for i := range s.Shells {
		if s.Shells[i].L > l {
			l = s.Shells[i].L
		}
	}
	return l
}

// AtGeometry returns the same set re-centred on the atoms of mol.
func (s *Set) AtGeometry(mol *molecule.Molecule) (*Set, error) {
	shells := make([]Shell, len(s.Shells))
	for i, sh := range s.Shells {
		if sh.Atom >= mol.NAtoms() {
			return nil, errs.New(errs.KindInvalidInput, "basis.AtGeometry", "shell %d refers to atom %d of %d", i, sh.Atom, mol.NAtoms())
		}
		sh.Center = mol.Atoms[sh.Atom].Coords
		shells[i] = sh
	}
	return NewSet(s.Name, shells), nil
}

var cartTable = func() [][][3]int {
	t := make([][][3]int, 9)
	for l := range t {
		for lx := l; lx >= 0; lx-- {
			for ly := l - lx; ly >= 0; ly-- {
				t[l] = append(t[l], [3]int{lx, ly, l - lx - ly})
			}
		}
	}
	return t
}()

// Cart lists the Cartesian exponents of a shell of angular momentum l.
func Cart(l int) [][3]int { return cartTable[l] }

func doubleFactorial(n int) float64 {
	r := 1.0
	for ; n > 1; n -= 2 {
		r *= float64(n)
	}
	return r
}

// CompNorm rescales the x^l normalisation to component c.
func CompNorm(l int, c [3]int) float64 {
	return math.Sqrt(doubleFactorial(2*l-1) / (doubleFactorial(2*c[0]-1) * doubleFactorial(2*c[1]-1) * doubleFactorial(2*c[2]-1)))
}

// NewShell normalises raw contraction coefficients.
func NewShell(atom int, center [3]float64, l int, exps, coefs []float64) Shell {
	n := len(exps)
	c := make([]float64, n)
	for k := range exps {
		c[k] = coefs[k] * primNorm(exps[k], l)
	}
	df := doubleFactorial(2*l - 1)
	s := 0.0
	for k := 0; k < n; k++ {
		for m := 0; m < n; m++ {
			p := exps[k] + exps[m]
			s += c[k] * c[m] * math.Pow(math.Pi/p, 1.5) * df / math.Pow(2*p, float64(l))
		}
	}
	s = 1 / math.Sqrt(s)
	for k := range c {
		c[k] *= s
	}
	return Shell{
		Atom:   atom,
		Center: center,
		L:      l,
		Exps:   append([]float64(nil), exps...),
		Coefs:  c,
	}
}

func primNorm(a float64, l int) float64 {
	return math.Pow(2*a/math.Pi, 0.75) * math.Pow(4*a, float64(l)/2) / math.Sqrt(doubleFactorial(2*l-1))
}

// class.go --  This file is part of goHF project.
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
	"gohf/internal/basis"
	"gohf/internal/errs"
)

// ShellClass is the angular-momentum class of a shell. The set is closed:
// kernels exist for S through H only.
type ShellClass uint8

const (
	ClassS ShellClass = iota
	ClassP
	ClassD
	ClassF
	ClassG
	ClassH
)

func (c ShellClass) String() string {
	return [...]string{"s", "p", "d", "f", "g", "h"}[c]
}

const (
	// MaxOrbitalL is the highest orbital angular momentum (g).
	MaxOrbitalL = 4
	// MaxAuxL is the highest auxiliary angular momentum (h).
	MaxAuxL = 5
	// MaxRootsDF bounds the quadrature roots of 2c/3c kernels.
	MaxRootsDF = 8
	// MaxRootsDirect bounds the quadrature roots of 4c kernels.
	MaxRootsDirect = 9
)

// Roots is the quadrature root count of an integral class with total
// angular momentum ltot evaluated at derivative order deriv.
func Roots(ltot, deriv int) int {
	return (ltot+deriv)/2 + 1
}

func classOf(op string, l, lmax int) (ShellClass, error) {
	if l < 0 || l > lmax {
		return 0, errs.New(errs.KindUnsupportedBasis, op, "angular momentum %d exceeds the %d limit", l, lmax)
	}
	return ShellClass(l), nil
}

// CheckOrbital rejects orbital sets the kernels cannot evaluate at the given
// derivative order, for direct four-centre evaluation when direct is set and
// for density fitting otherwise.
func CheckOrbital(b *basis.Set, deriv int, direct bool) error {
	lmax := 0
	for i := range b.Shells {
		if _, err := classOf("integral.CheckOrbital", b.Shells[i].L, MaxOrbitalL); err != nil {
			return err
		}
		lmax = max(lmax, b.Shells[i].L)
	}
	if direct {
		return checkRoots("integral.CheckOrbital", 4*lmax, deriv, MaxRootsDirect)
	}
	return nil
}

// CheckFitting rejects an orbital/auxiliary pair the 2c and 3c kernels
// cannot evaluate.
func CheckFitting(orb, aux *basis.Set, deriv int) error {
	if err := CheckOrbital(orb, deriv, false); err != nil {
		return err
	}
	lmax := 0
	for i := range aux.Shells {
		if _, err := classOf("integral.CheckFitting", aux.Shells[i].L, MaxAuxL); err != nil {
			return err
		}
		lmax = max(lmax, aux.Shells[i].L)
	}
	if err := checkRoots("integral.CheckFitting", 2*orb.MaxL()+lmax, deriv, MaxRootsDF); err != nil {
		return err
	}
	return checkRoots("integral.CheckFitting", 2*lmax, deriv, MaxRootsDF)
}

func checkRoots(op string, ltot, deriv, limit int) error {
	if n := Roots(ltot, deriv); n > limit {
		return errs.New(errs.KindUnsupportedBasis, op, "%d quadrature roots needed for L=%d at derivative order %d, limit %d", n, ltot, deriv, limit)
	}
	return nil
}

// kernel is the evaluation path selected for a tuple of shell classes.
type kernel struct {
	classes [4]ShellClass
	roots   int
	allS    bool
}

// kernelFor picks the kernel of a shell tuple. ls holds the angular momenta
// of the four slots, auxiliary slots flagged in aux.
func kernelFor(op string, ls [4]int, aux [4]bool, deriv, rootLimit int) (kernel, error) {
	var k kernel
	ltot := 0
	for s, l := range ls {
		lmax := MaxOrbitalL
		if aux[s] {
			lmax = MaxAuxL
		}
		c, err := classOf(op, l, lmax)
		if err != nil {
			return k, err
		}
		k.classes[s] = c
		ltot += l
	}
	if err := checkRoots(op, ltot, deriv, rootLimit); err != nil {
		return k, err
	}
	k.roots = Roots(ltot, deriv)
	switch k.classes {
	case [4]ShellClass{ClassS, ClassS, ClassS, ClassS}:
		k.allS = deriv == 0
	}
	return k, nil
}

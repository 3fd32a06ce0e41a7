// library.go --  This file is part of goHF project.
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
	"embed"
	"strconv"
	"strings"

	"gohf/internal/errs"
	"gohf/internal/molecule"
)

//go:embed data/*.txt
var libraryFS embed.FS

// Orbital is one contracted function of a library entry.
type Orbital struct {
	N, L  int
	Exps  []float64
	Coefs []float64
}

// Library maps upper-case element symbols to their orbitals.
type Library struct {
	Name  string
	Atoms map[string][]Orbital
}

// Load reads an embedded library by name, e.g. "sto-3g".
func Load(name string) (*Library, error) {
	fname := "data/" + strings.ToLower(strings.Fields(name)[0]) + ".txt"
	raw, err := libraryFS.ReadFile(fname)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "basis.Load", err, "cannot read basis file %s", fname)
	}
	return ParseLibrary(name, strings.Split(string(raw), "\n"))
}

// ParseLibrary reads blocks of the form
//
//	ATOM O
//	description
//	nOrbs
//	n l nPrim
//	zeta coef   (nPrim lines)
func ParseLibrary(name string, data []string) (*Library, error) {
	lib := &Library{Name: name, Atoms: map[string][]Orbital{}}
	for j := 0; j < len(data); j++ {
		words := strings.Fields(data[j])
		if len(words) < 2 || len(words[0]) <= 2 || strings.HasPrefix(words[0], "#") {
			continue
		}
		if words[0] != "ATOM" {
			continue
		}
		orbs, next, err := parseAtom(data, j+2)
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, "basis.ParseLibrary", err, "element %s", words[1])
		}
		lib.Atoms[strings.ToUpper(words[1])] = orbs
		j = next - 1
	}
	return lib, nil
}

func field(data []string, pos, idx int) (string, error) {
	if pos >= len(data) {
		return "", errs.New(errs.KindInvalidInput, "basis.parseAtom", "unexpected end of data at line %d", pos)
	}
	w := strings.Fields(data[pos])
	if idx >= len(w) {
		return "", errs.New(errs.KindInvalidInput, "basis.parseAtom", "line %d: missing field %d", pos, idx)
	}
	return w[idx], nil
}

func parseAtom(data []string, pos int) ([]Orbital, int, error) {
	s, err := field(data, pos, 0)
	if err != nil {
		return nil, 0, err
	}
	nOrbs, err := strconv.Atoi(s)
	if err != nil {
		return nil, 0, err
	}
	pos++
	var result []Orbital
	for k := 0; k < nOrbs; k++ {
		var orb Orbital
		var nPrim int
		ints := []*int{&orb.N, &orb.L, &nPrim}
		for i, dst := range ints {
			if s, err = field(data, pos, i); err != nil {
				return nil, 0, err
			}
			if *dst, err = strconv.Atoi(s); err != nil {
				return nil, 0, err
			}
		}
		pos++
		for l := 0; l < nPrim; l++ {
			var zeta, coef float64
			for i, dst := range []*float64{&zeta, &coef} {
				if s, err = field(data, pos, i); err != nil {
					return nil, 0, err
				}
				if *dst, err = strconv.ParseFloat(s, 64); err != nil {
					return nil, 0, err
				}
			}
			orb.Exps = append(orb.Exps, zeta)
			orb.Coefs = append(orb.Coefs, coef)
			pos++
		}
		result = append(result, orb)
	}
	return result, pos, nil
}

// Build places the library functions on the atoms of mol.
func Build(mol *molecule.Molecule, lib *Library) (*Set, error) {
	var shells []Shell
	for i, atm := range mol.Atoms {
		sym := strings.ToUpper(molecule.ElemData.Symbol(atm.Z))
		orbs, ok := lib.Atoms[sym]
		if !ok {
			return nil, errs.New(errs.KindInvalidInput, "basis.Build", "no %s functions for element %s", lib.Name, sym)
		}
		for _, o := range orbs {
			shells = append(shells, NewShell(i, atm.Coords, o.L, o.Exps, o.Coefs))
		}
	}
	return NewSet(lib.Name, shells), nil
}

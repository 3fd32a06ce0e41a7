// elements.go --  This file is part of goHF project.
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

package molecule

import (
	_ "embed"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

//go:embed data/mendeleev.csv
var mendeleevCSV string

// Mendeleev is the element table indexed by atomic number.
type Mendeleev struct {
	Z          []int
	Symb, Name []string
	Mass       []float64
}

// ElemData is loaded once from the embedded table.
var ElemData = buildMendeleev(mendeleevCSV)

func buildMendeleev(csv string) Mendeleev {
	var m Mendeleev
	for i, str := range strings.Split(strings.TrimSpace(csv), "\n") {
		if i == 0 {
			continue
		}
		words := strings.Split(strings.TrimSpace(str), ",")
		if len(words) < 4 {
			continue
		}
		z, _ := strconv.Atoi(words[0])
		mass, _ := strconv.ParseFloat(words[3], 64)
		m.Z = append(m.Z, z)
		m.Mass = append(m.Mass, mass)
		m.Symb = append(m.Symb, words[1])
		m.Name = append(m.Name, words[2])
	}
	return m
}

// Lookup returns the atomic number of a case-insensitive element symbol.
func (m Mendeleev) Lookup(symbol string) (int, bool) {
	idx := slices.IndexFunc(m.Symb, func(s string) bool {
		return strings.EqualFold(s, symbol)
	})
	if idx < 0 {
		return 0, false
	}
	return m.Z[idx], true
}

// Symbol returns the element symbol for an atomic number.
func (m Mendeleev) Symbol(z int) string {
	if z < 0 || z >= len(m.Symb) {
		return "X"
	}
	return m.Symb[z]
}

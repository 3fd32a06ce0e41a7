// molecule.go --  This file is part of goHF project.
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

// Package molecule describes the nuclear framework of a calculation: atoms in
// Bohr, total charge and spin.
package molecule

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/errs"
)

// BohrAngstrom is the Bohr radius in Angstrom.
const BohrAngstrom = 0.52917720859

type Atom struct {
	Z      int
	Name   string
	Coords [3]float64 // Bohr
}

type Molecule struct {
	Atoms  []Atom
	Charge int
	Spin   int // 2S
}

// ParseAtoms reads "Symbol x y z" lines with coordinates in Angstrom.
func ParseAtoms(lines []string) (*Molecule, error) {
	var m Molecule
	for i, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		z, ok := ElemData.Lookup(words[0])
		if !ok {
			return nil, errs.New(errs.KindInvalidInput, "molecule.ParseAtoms", "unknown element %q", words[0])
		}
		if len(words) < 4 {
			return nil, errs.New(errs.KindInvalidInput, "molecule.ParseAtoms", "incorrect format of coordinates for atom %s%d", words[0], i+1)
		}
		var atm Atom
		atm.Z = z
		atm.Name = ElemData.Symbol(z) + strconv.Itoa(len(m.Atoms)+1)
		for k := 0; k < 3; k++ {
			x, err := strconv.ParseFloat(words[k+1], 64)
			if err != nil {
				return nil, errs.Wrap(errs.KindInvalidInput, "molecule.ParseAtoms", err, "atom %s", atm.Name)
			}
			atm.Coords[k] = x / BohrAngstrom
		}
		m.Atoms = append(m.Atoms, atm)
	}
	if len(m.Atoms) == 0 {
		return nil, errs.New(errs.KindInvalidInput, "molecule.ParseAtoms", "no atoms found")
	}
	return &m, nil
}

func (m *Molecule) NAtoms() int { return len(m.Atoms) }

// NElec is the number of electrons after the total charge.
func (m *Molecule) NElec() int {
	result := -m.Charge
	for _, a := range m.Atoms {
		result += a.Z
	}
	return result
}

// Clone returns a deep copy.
func (m *Molecule) Clone() *Molecule {
	c := *m
	c.Atoms = append([]Atom(nil), m.Atoms...)
	return &c
}

// Displaced returns a copy with one Cartesian coordinate shifted by h Bohr.
func (m *Molecule) Displaced(atom, k int, h float64) *Molecule {
	c := m.Clone()
	c.Atoms[atom].Coords[k] += h
	return c
}

// Translated returns a rigidly shifted copy.
func (m *Molecule) Translated(v [3]float64) *Molecule {
	c := m.Clone()
	for i := range c.Atoms {
		for k := 0; k < 3; k++ {
			c.Atoms[i].Coords[k] += v[k]
		}
	}
	return c
}

// Fingerprint identifies the geometry; derived data built for one geometry
// is only valid while the fingerprint matches.
func (m *Molecule) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	for _, a := range m.Atoms {
		binary.LittleEndian.PutUint64(buf[:], uint64(a.Z))
		h.Write(buf[:])
		for _, x := range a.Coords {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func dist(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// NucNuc is the nuclear repulsion energy.
func (m *Molecule) NucNuc() float64 {
	res := 0.0
	for i := range m.Atoms {
		for j := 0; j < i; j++ {
			res += float64(m.Atoms[i].Z*m.Atoms[j].Z) / dist(m.Atoms[i].Coords, m.Atoms[j].Coords)
		}
	}
	return res
}

// NucNucGrad is the nuclear repulsion gradient, one row per atom.
func (m *Molecule) NucNucGrad() [][3]float64 {
	g := make([][3]float64, len(m.Atoms))
	for i := range m.Atoms {
		for j := 0; j < i; j++ {
			r := dist(m.Atoms[i].Coords, m.Atoms[j].Coords)
			zz := float64(m.Atoms[i].Z*m.Atoms[j].Z) / (r * r * r)
			for k := 0; k < 3; k++ {
				d := m.Atoms[i].Coords[k] - m.Atoms[j].Coords[k]
				g[i][k] -= zz * d
				g[j][k] += zz * d
			}
		}
	}
	return g
}

// NucNucHessian is the 3N×3N nuclear repulsion Hessian.
func (m *Molecule) NucNucHessian() *mat.SymDense {
	n := 3 * len(m.Atoms)
	h := mat.NewSymDense(n, nil)
	for i := range m.Atoms {
		for j := 0; j < i; j++ {
			r := dist(m.Atoms[i].Coords, m.Atoms[j].Coords)
			zz := float64(m.Atoms[i].Z * m.Atoms[j].Z)
			var d [3]float64
			for k := 0; k < 3; k++ {
				d[k] = m.Atoms[i].Coords[k] - m.Atoms[j].Coords[k]
			}
			r5 := r * r * r * r * r
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					v := 3 * d[k] * d[l]
					if k == l {
						v -= r * r
					}
					v *= zz / r5
					// diagonal blocks gain, off-diagonal blocks lose
					if l >= k {
						h.SetSym(3*i+k, 3*i+l, h.At(3*i+k, 3*i+l)+v)
						h.SetSym(3*j+k, 3*j+l, h.At(3*j+k, 3*j+l)+v)
					}
					h.SetSym(3*i+k, 3*j+l, h.At(3*i+k, 3*j+l)-v)
				}
			}
		}
	}
	return h
}

func (a Atom) String() string {
	return fmt.Sprintf("%-4s %3d %14.8f %14.8f %14.8f", a.Name, a.Z, a.Coords[0], a.Coords[1], a.Coords[2])
}

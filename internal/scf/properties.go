// properties.go --  This file is part of goHF project.
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

package scf

import (
	"gohf/internal/fock"
	"gohf/internal/integral"
	"gohf/internal/molecule"
)

// AU2Debye converts a dipole in e·Bohr to Debye.
const AU2Debye = 2.541746473

// DebyeAngstrom converts a quadrupole in e·Bohr² to Debye·Angstrom.
const DebyeAngstrom = AU2Debye * molecule.BohrAngstrom

// Quadrupole is the second moment of the charge distribution about the
// coordinate origin in e·Bohr²: Σ_A Z_A R_Ai R_Aj - tr(D ⟨r_i r_j⟩).
func (r *Result) Quadrupole() [3][3]float64 {
	mol := r.Calc.Mol
	rr := integral.SecondMoment(r.Calc.Orb, [3]float64{})
	var q [3][3]float64
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			v := -fock.Trace(r.DM, rr[i][j])
			for _, a := range mol.Atoms {
				v += float64(a.Z) * a.Coords[i] * a.Coords[j]
			}
			q[i][j], q[j][i] = v, v
		}
	}
	return q
}

// basis_test.go --  This file is part of goHF project.
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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gohf/internal/molecule"
)

func water(t *testing.T) *molecule.Molecule {
	t.Helper()
	mol, err := molecule.ParseAtoms([]string{
		"O 0.000000 -0.075791844 0.000000",
		"H 0.866811829 0.601435779 0.000000",
		"H -0.866811829 0.601435779 0.000000",
	})
	require.NoError(t, err)
	return mol
}

func TestLoadSTO3G(t *testing.T) {
	lib, err := Load("STO-3G")
	require.NoError(t, err)
	require.Contains(t, lib.Atoms, "O")
	o := lib.Atoms["O"]
	require.Len(t, o, 3)
	assert.Equal(t, 1, o[2].L)
	assert.InDelta(t, 130.70932, o[0].Exps[0], 1e-4)
}

func TestBuildWaterSTO3G(t *testing.T) {
	lib, err := Load("sto-3g")
	require.NoError(t, err)
	set, err := Build(water(t), lib)
	require.NoError(t, err)
	assert.Len(t, set.Shells, 5)
	assert.Equal(t, 7, set.NAO)
	assert.Equal(t, []int{0, 1, 2, 5, 6}, set.Offsets)
	assert.Equal(t, 0, set.AOAtom(4))
	assert.Equal(t, 2, set.AOAtom(6))
	assert.Equal(t, 1, set.MaxL())
}

func TestBuildUnknownElement(t *testing.T) {
	lib, err := Load("6-31g")
	require.NoError(t, err)
	mol, err := molecule.ParseAtoms([]string{"Ne 0 0 0"})
	require.NoError(t, err)
	_, err = Build(mol, lib)
	assert.Error(t, err)
}

func TestCartOrderAndNorm(t *testing.T) {
	assert.Equal(t, [][3]int{{2, 0, 0}, {1, 1, 0}, {1, 0, 1}, {0, 2, 0}, {0, 1, 1}, {0, 0, 2}}, Cart(2))
	assert.InDelta(t, 1.0, CompNorm(2, [3]int{2, 0, 0}), 1e-15)
	assert.InDelta(t, 1.7320508075688772, CompNorm(2, [3]int{1, 1, 0}), 1e-15)
}

func TestEvenTemperedNested(t *testing.T) {
	lib, err := Load("sto-3g")
	require.NoError(t, err)
	orb, err := Build(water(t), lib)
	require.NoError(t, err)

	small, err := EvenTempered(orb, 2.0, 0)
	require.NoError(t, err)
	large, err := EvenTempered(orb, 2.0, -1)
	require.NoError(t, err)
	assert.Less(t, small.NAO, large.NAO)
	assert.Equal(t, 2, large.MaxL())
	for _, sh := range small.Shells {
		assert.Equal(t, 0, sh.L)
	}

	_, err = EvenTempered(orb, 1.0, -1)
	assert.Error(t, err)
}

func TestEvenTemperedHydrogenGetsP(t *testing.T) {
	lib, err := Load("sto-3g")
	require.NoError(t, err)
	orb, err := Build(water(t), lib)
	require.NoError(t, err)
	aux, err := EvenTempered(orb, 2.0, -1)
	require.NoError(t, err)
	var s, p []float64
	for _, sh := range aux.Shells {
		if sh.Atom != 1 {
			continue
		}
		switch sh.L {
		case 0:
			s = append(s, sh.Exps[0])
		case 1:
			p = append(p, sh.Exps[0])
		default:
			t.Fatalf("unexpected L=%d on hydrogen", sh.L)
		}
	}
	require.NotEmpty(t, p)
	assert.Equal(t, s, p)

	sOnly, err := EvenTempered(orb, 2.0, 0)
	require.NoError(t, err)
	assert.Less(t, sOnly.NAO, aux.NAO)
}

func TestAtGeometryRecentres(t *testing.T) {
	lib, err := Load("sto-3g")
	require.NoError(t, err)
	mol := water(t)
	orb, err := Build(mol, lib)
	require.NoError(t, err)
	moved, err := orb.AtGeometry(mol.Displaced(1, 0, 0.1))
	require.NoError(t, err)
	assert.InDelta(t, orb.Shells[3].Center[0]+0.1, moved.Shells[3].Center[0], 1e-15)
	assert.Equal(t, orb.Shells[0].Center, moved.Shells[0].Center)
}

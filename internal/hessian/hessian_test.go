// hessian_test.go --  This file is part of goHF project.
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

package hessian

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/device"
	"gohf/internal/errs"
	"gohf/internal/grad"
	"gohf/internal/molecule"
	"gohf/internal/scf"
	"gohf/internal/xc"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const fdStep = 1e-4

func water() *molecule.Molecule {
	return &molecule.Molecule{Atoms: []molecule.Atom{
		{Z: 8, Name: "O1", Coords: [3]float64{0, -0.143225816552, 0}},
		{Z: 1, Name: "H2", Coords: [3]float64{1.638036840407, 1.136548822547, 0}},
		{Z: 1, Name: "H3", Coords: [3]float64{-1.5, 1.2, 0.1}},
	}}
}

func converge(t *testing.T, mol *molecule.Molecule, fn string, direct bool) *scf.Result {
	t.Helper()
	lib, err := basis.Load("sto-3g")
	require.NoError(t, err)
	orb, err := basis.Build(mol, lib)
	require.NoError(t, err)
	aux, err := basis.EvenTempered(orb, 2.0, -1)
	require.NoError(t, err)
	f, err := xc.Lookup(fn)
	require.NoError(t, err)
	arena, err := device.New("test", 1<<26, 3).Acquire(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(arena.Release)
	o := scf.DefaultOptions()
	o.Direct = direct
	o.ConvTol = 1e-11
	o.ConvTolGrad = 1e-8
	o.MaxCycle = 100
	o.WantGradient = true
	res, err := scf.NewCalc(mol, orb, aux, f, arena, o).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, scf.OutcomeConverged, res.Outcome)
	t.Cleanup(res.Close)
	return res
}

func gradient(t *testing.T, mol *molecule.Molecule) [][3]float64 {
	t.Helper()
	g, err := grad.Compute(context.Background(), converge(t, mol, "hf", false))
	require.NoError(t, err)
	return g.Total
}

func TestHessianMatchesGradientDifferences(t *testing.T) {
	mol := water()
	res := converge(t, mol, "hf", false)
	hs, err := Compute(context.Background(), res, DefaultOptions())
	require.NoError(t, err)
	h := hs.Matrix
	n3 := 3 * mol.NAtoms()
	require.Equal(t, n3, h.SymmetricDim())

	for _, col := range []int{1, 3, 8} {
		atom, axis := col/3, col%3
		gp := gradient(t, mol.Displaced(atom, axis, fdStep))
		gm := gradient(t, mol.Displaced(atom, axis, -fdStep))
		for row := 0; row < n3; row++ {
			fd := (gp[row/3][row%3] - gm[row/3][row%3]) / (2 * fdStep)
			assert.InDelta(t, fd, h.At(row, col), 2e-4, "row %d col %d", row, col)
		}
	}

	// translating the whole molecule changes no force
	for row := 0; row < n3; row++ {
		for k := 0; k < 3; k++ {
			sum := 0.0
			for a := 0; a < mol.NAtoms(); a++ {
				sum += h.At(row, 3*a+k)
			}
			assert.InDelta(t, 0, sum, 1e-5)
		}
	}
	for _, c := range hs.CPHFCycles {
		assert.Positive(t, c)
	}
}

func TestHessianRejectsUnsupportedStates(t *testing.T) {
	mol := water()
	_, err := Compute(context.Background(), converge(t, mol, "hf", true), DefaultOptions())
	assert.ErrorIs(t, err, errs.ErrUnsupportedCombination)

	_, err = Compute(context.Background(), converge(t, mol, "svwn", false), DefaultOptions())
	assert.ErrorIs(t, err, errs.ErrUnsupportedCombination)

	_, err = Compute(context.Background(), nil, DefaultOptions())
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	res := converge(t, mol, "hf", false)
	res.Close()
	_, err = Compute(context.Background(), res, DefaultOptions())
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestCPHFNotConverged(t *testing.T) {
	res := converge(t, water(), "hf", false)
	o := DefaultOptions()
	o.CPHFMaxCycle = 1
	o.CPHFTol = 1e-30
	_, err := Compute(context.Background(), res, o)
	assert.ErrorIs(t, err, errs.ErrNumerical)
}

func TestProjectAndContract(t *testing.T) {
	a := mat.NewDense(2, 1, []float64{1, 2})
	m := mat.NewDense(2, 2, []float64{1, 0, 0, 3})
	assert.Equal(t, 13.0, project(a, m, a).At(0, 0))
	// Σ M ∘ (a aᵀ) = 1·1 + 3·4
	assert.Equal(t, 13.0, contract(m, a, a))

	b := mat.NewDense(2, 1, []float64{3, -1})
	general := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	// A Bᵀ = [[3, -1], [6, -2]]
	assert.Equal(t, 11.0, contract(general, a, b))
	assert.Equal(t, contract(general.T(), b, a), contract(general, a, b))
}

// fock_test.go --  This file is part of goHF project.
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

package fock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/device"
	"gohf/internal/integral"
	"gohf/internal/molecule"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func water() *molecule.Molecule {
	return &molecule.Molecule{Atoms: []molecule.Atom{
		{Z: 8, Name: "O1", Coords: [3]float64{0, -0.143225816552, 0}},
		{Z: 1, Name: "H2", Coords: [3]float64{1.638036840407, 1.136548822547, 0}},
		{Z: 1, Name: "H3", Coords: [3]float64{-1.638036840407, 1.136548822547, 0}},
	}}
}

func setup(t *testing.T) (*molecule.Molecule, *basis.Set, *device.Arena) {
	t.Helper()
	mol := water()
	lib, err := basis.Load("sto-3g")
	require.NoError(t, err)
	orb, err := basis.Build(mol, lib)
	require.NoError(t, err)
	arena, err := device.New("test", 1<<24, 3).Acquire(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(arena.Release)
	return mol, orb, arena
}

func density(n int, scale float64) *mat.SymDense {
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			d.SetSym(i, j, scale*math.Cos(float64(3*i+j)))
		}
	}
	return d
}

// exactJK contracts every function quartet without symmetry.
func exactJK(t *testing.T, orb *basis.Set, dm mat.Symmetric) (*mat.Dense, *mat.Dense) {
	eng, err := integral.NewEngine(orb, nil, 0)
	require.NoError(t, err)
	n := orb.NAO
	j, k := mat.NewDense(n, n, nil), mat.NewDense(n, n, nil)
	ns := len(orb.Shells)
	for a := 0; a < ns; a++ {
		for b := 0; b < ns; b++ {
			for c := 0; c < ns; c++ {
				for d := 0; d < ns; d++ {
					blk, err := eng.Int4c(a, b, c, d)
					require.NoError(t, err)
					idx := 0
					for ca := 0; ca < orb.Shells[a].NComp(); ca++ {
						for cb := 0; cb < orb.Shells[b].NComp(); cb++ {
							for cc := 0; cc < orb.Shells[c].NComp(); cc++ {
								for cd := 0; cd < orb.Shells[d].NComp(); cd++ {
									mu, nu := orb.Offsets[a]+ca, orb.Offsets[b]+cb
									la, si := orb.Offsets[c]+cc, orb.Offsets[d]+cd
									g := blk[idx]
									idx++
									j.Set(mu, nu, j.At(mu, nu)+g*dm.At(la, si))
									k.Set(mu, la, k.At(mu, la)+g*dm.At(nu, si))
								}
							}
						}
					}
				}
			}
		}
	}
	return j, k
}

func TestDirectJKMatchesFullContraction(t *testing.T) {
	_, orb, arena := setup(t)
	eng, err := integral.NewEngine(orb, nil, 0)
	require.NoError(t, err)
	direct, err := NewDirect(eng, arena, 0)
	require.NoError(t, err)
	dm := density(orb.NAO, 0.4)
	j, k, err := direct.JK(context.Background(), dm, nil, true, true)
	require.NoError(t, err)
	wantJ, wantK := exactJK(t, orb, dm)
	assert.True(t, mat.EqualApprox(j, wantJ, 1e-10))
	assert.True(t, mat.EqualApprox(k, wantK, 1e-10))
	_, screened := direct.Counts()
	assert.Zero(t, screened)
}

func TestSchwarzScreeningIsBoundedApproximation(t *testing.T) {
	_, orb, arena := setup(t)
	eng, err := integral.NewEngine(orb, nil, 0)
	require.NoError(t, err)
	tol := 1e-2
	direct, err := NewDirect(eng, arena, tol)
	require.NoError(t, err)
	dm := density(orb.NAO, 0.4)
	j, k, err := direct.JK(context.Background(), dm, nil, true, true)
	require.NoError(t, err)
	wantJ, wantK := exactJK(t, orb, dm)
	computed, screened := direct.Counts()
	assert.Positive(t, computed)
	assert.Positive(t, screened)
	bound := 2 * float64(orb.NAO*orb.NAO) * tol
	var dj, dk mat.Dense
	dj.Sub(j, wantJ)
	dk.Sub(k, wantK)
	assert.LessOrEqual(t, mat.Norm(&dj, math.Inf(1)), bound*float64(orb.NAO))
	assert.LessOrEqual(t, mat.Norm(&dk, math.Inf(1)), bound*float64(orb.NAO))
}

func TestIncrementalEqualsFull(t *testing.T) {
	_, orb, arena := setup(t)
	eng, err := integral.NewEngine(orb, nil, 0)
	require.NoError(t, err)
	direct, err := NewDirect(eng, arena, 0)
	require.NoError(t, err)
	inc := &Incremental{Base: direct, RebuildEvery: 10}
	ctx := context.Background()
	for step := 1; step <= 3; step++ {
		dm := density(orb.NAO, 0.1*float64(step))
		j, k, err := inc.JK(ctx, dm, nil, true, true)
		require.NoError(t, err)
		fj, fk, err := direct.JK(ctx, dm, nil, true, true)
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(j, fj, 1e-11), "step %d", step)
		assert.True(t, mat.EqualApprox(k, fk, 1e-11), "step %d", step)
	}
}

type constPotential struct{ v *mat.SymDense }

func (c constPotential) Potential(_ context.Context, dm *mat.SymDense) (float64, *mat.SymDense, error) {
	return Trace(dm, c.v), c.v, nil
}

func TestBuilderHartreeFockEnergyIdentity(t *testing.T) {
	mol, orb, arena := setup(t)
	eng, err := integral.NewEngine(orb, nil, 0)
	require.NoError(t, err)
	direct, err := NewDirect(eng, arena, 0)
	require.NoError(t, err)
	h := Core(orb, mol, nil)
	b := &Builder{H: h, JK: direct, Mix: HF}
	dm := density(orb.NAO, 0.3)
	f, en, err := b.Build(context.Background(), dm, nil)
	require.NoError(t, err)
	// E = ½ tr D(h + F) for Hartree-Fock
	var hf mat.SymDense
	hf.AddSym(h, f)
	assert.InDelta(t, 0.5*Trace(dm, &hf), en.Elec(), 1e-10)

	ext := constPotential{v: density(orb.NAO, 0.01)}
	b.Embed = []Potential{ext}
	f2, en2, err := b.Build(context.Background(), dm, nil)
	require.NoError(t, err)
	assert.InDelta(t, en.Elec()+Trace(dm, ext.v), en2.Elec(), 1e-10)
	assert.InDelta(t, f.At(0, 1)+ext.v.At(0, 1), f2.At(0, 1), 1e-12)
}

func TestBuilderRangeSeparatedNeedsAttenuatedKernel(t *testing.T) {
	mol, orb, arena := setup(t)
	eng, err := integral.NewEngine(orb, nil, 0)
	require.NoError(t, err)
	direct, err := NewDirect(eng, arena, 0)
	require.NoError(t, err)
	b := &Builder{H: Core(orb, mol, nil), JK: direct, Mix: Mix{Alpha: 1, Omega: 0.33}}
	dm := density(orb.NAO, 0.3)
	_, _, err = b.Build(context.Background(), dm, nil)
	require.Error(t, err)

	lr, err := NewDirect(eng.Attenuated(0.33), arena, 0)
	require.NoError(t, err)
	b.JKLR = lr
	_, en, err := b.Build(context.Background(), dm, nil)
	require.NoError(t, err)
	_, klr, err := lr.JK(context.Background(), dm, nil, false, true)
	require.NoError(t, err)
	assert.InDelta(t, -0.25*Trace(dm, klr), en.Exchange, 1e-12)
}

func TestCoreAddsOptionalECP(t *testing.T) {
	mol, orb, _ := setup(t)
	var none *mat.SymDense
	h := Core(orb, mol, none)
	assert.True(t, mat.EqualApprox(h, integral.OneElectron(orb, mol, integral.OpCore), 1e-14))

	ecp := density(orb.NAO, 0.05)
	withECP := Core(orb, mol, ecp)
	assert.InDelta(t, h.At(0, 1)+ecp.At(0, 1), withECP.At(0, 1), 1e-14)
}

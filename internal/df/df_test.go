// df_test.go --  This file is part of goHF project.
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

package df

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

func setup(t *testing.T, lmax int) (*molecule.Molecule, *integral.Engine) {
	t.Helper()
	mol := water()
	lib, err := basis.Load("sto-3g")
	require.NoError(t, err)
	orb, err := basis.Build(mol, lib)
	require.NoError(t, err)
	aux, err := basis.EvenTempered(orb, 2.5, lmax)
	require.NoError(t, err)
	eng, err := integral.NewEngine(orb, aux, 0)
	require.NoError(t, err)
	return mol, eng
}

func acquire(t *testing.T, floats int64) *device.Arena {
	t.Helper()
	arena, err := device.New("test", floats*8, 2).Acquire(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(arena.Release)
	return arena
}

func occupied(t *testing.T, nao, nocc int) (*mat.SymDense, *mat.Dense) {
	t.Helper()
	occ := mat.NewDense(nao, nocc, nil)
	for i := 0; i < nao; i++ {
		for j := 0; j < nocc; j++ {
			occ.Set(i, j, 0.1*float64((i*7+j*3)%5)-0.2)
		}
	}
	var d mat.Dense
	d.Mul(occ, occ.T())
	return integral.SymFromDense(&d), occ
}

func TestDecomposeMetricCholesky(t *testing.T) {
	_, eng := setup(t, 0)
	m, err := eng.Int2c()
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.EigenFloor = 0
	met, err := DecomposeMetric(m, opts)
	require.NoError(t, err)
	assert.Equal(t, MethodCholesky, met.Method)
	assert.Equal(t, m.SymmetricDim(), met.Retained)

	// TᵀT M = 1
	var tt, id mat.Dense
	tt.Mul(met.T.T(), met.T)
	id.Mul(&tt, m)
	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, id.At(i, j), 1e-8)
		}
	}
}

func singular() *mat.SymDense {
	// rank 2 in 4 dimensions plus one tiny direction
	v := [][]float64{{1, 1, 0, 0}, {0, 1, 1, 1}}
	m := mat.NewSymDense(4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j <= i; j++ {
			s := 1e-12 * b2f(i == j)
			for _, r := range v {
				s += r[i] * r[j]
			}
			m.SetSym(i, j, s)
		}
	}
	return m
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func TestDecomposeMetricEigenFloor(t *testing.T) {
	opts := DefaultOptions()
	met, err := DecomposeMetric(singular(), opts)
	require.NoError(t, err)
	assert.Equal(t, MethodEigen, met.Method)
	assert.Equal(t, 2, met.Retained)
	r, c := met.T.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 4, c)

	opts.MinRetained = 0.75
	_, err = DecomposeMetric(singular(), opts)
	require.ErrorIs(t, err, errs.ErrIllConditionedFit)

	_, err = DecomposeMetric(mat.NewSymDense(3, nil), DefaultOptions())
	require.ErrorIs(t, err, errs.ErrIllConditionedFit)

	// positive definite with a condition number near 1e12: Cholesky would
	// succeed, but the smallest direction sits below the floor
	m := mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1e-12})
	met, err = DecomposeMetric(m, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, MethodEigen, met.Method)
	assert.Equal(t, 2, met.Retained)
	opts.MinRetained = 0.9
	_, err = DecomposeMetric(m, opts)
	require.ErrorIs(t, err, errs.ErrIllConditionedFit)
}

// fitError is Σ_μν [(μν|μν) - fitted(μν|μν)], the Coulomb-norm residual of
// every pair density.
func fitError(t *testing.T, ctx context.Context, lmax int) float64 {
	mol, eng := setup(t, lmax)
	arena := acquire(t, 1<<22)
	ten, err := Build(ctx, arena, eng, mol.Fingerprint(), DefaultOptions())
	require.NoError(t, err)
	defer ten.Release()

	direct, err := integral.NewEngine(eng.Orb, nil, 0)
	require.NoError(t, err)
	sum := 0.0
	orb := eng.Orb
	for i := range orb.Shells {
		for j := 0; j <= i; j++ {
			blk, err := direct.Int4c(i, j, i, j)
			require.NoError(t, err)
			ni, nj := orb.Shells[i].NComp(), orb.Shells[j].NComp()
			for ci := 0; ci < ni; ci++ {
				for cj := 0; cj < nj; cj++ {
					mu, nu := orb.Offsets[i]+ci, orb.Offsets[j]+cj
					if i == j && cj > ci {
						continue
					}
					exact := blk[((ci*nj+cj)*ni+ci)*nj+cj]
					residual := exact - ten.Approx4c(mu, nu, mu, nu)
					assert.GreaterOrEqual(t, residual, -1e-10)
					sum += residual
				}
			}
		}
	}
	return sum
}

func TestFittingErrorShrinksWithAuxiliaryBasis(t *testing.T) {
	ctx := context.Background()
	var errsByL []float64
	for lmax := 0; lmax <= 2; lmax++ {
		errsByL = append(errsByL, fitError(t, ctx, lmax))
	}
	for i := 1; i < len(errsByL); i++ {
		assert.Less(t, errsByL[i], errsByL[i-1], "lmax %d", i)
	}
	assert.Less(t, errsByL[2], 0.05)
}

func TestTensorSymmetricAndGeometryBound(t *testing.T) {
	mol, eng := setup(t, 1)
	ten, err := Build(context.Background(), acquire(t, 1<<22), eng, mol.Fingerprint(), DefaultOptions())
	require.NoError(t, err)
	defer ten.Release()
	assert.True(t, ten.Resident())
	assert.True(t, ten.Valid(mol.Fingerprint()))
	assert.False(t, ten.Valid(mol.Displaced(0, 2, 0.01).Fingerprint()))
	for l := 0; l < ten.NL; l += 5 {
		u := ten.Unpack(l)
		assert.Equal(t, u.At(1, 4), u.At(4, 1))
	}
	assert.InDelta(t, ten.Approx4c(1, 3, 2, 5), ten.Approx4c(3, 1, 5, 2), 1e-15)
}

func bruteJK(ten *Tensor, dm mat.Symmetric) (*mat.Dense, *mat.Dense) {
	n := ten.NAO
	j, k := mat.NewDense(n, n, nil), mat.NewDense(n, n, nil)
	for mu := 0; mu < n; mu++ {
		for nu := 0; nu < n; nu++ {
			for la := 0; la < n; la++ {
				for si := 0; si < n; si++ {
					j.Set(mu, nu, j.At(mu, nu)+ten.Approx4c(mu, nu, la, si)*dm.At(la, si))
					k.Set(mu, nu, k.At(mu, nu)+ten.Approx4c(mu, la, nu, si)*dm.At(la, si))
				}
			}
		}
	}
	return j, k
}

func TestJKMatchesFittedIntegrals(t *testing.T) {
	mol, eng := setup(t, 1)
	ctx := context.Background()
	ten, err := Build(ctx, acquire(t, 1<<22), eng, mol.Fingerprint(), DefaultOptions())
	require.NoError(t, err)
	defer ten.Release()
	dm, occ := occupied(t, ten.NAO, 5)
	wantJ, wantK := bruteJK(ten, dm)

	j, k, err := ten.JK(ctx, dm, occ, true, true)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(j, wantJ, 1e-10))
	assert.True(t, mat.EqualApprox(k, wantK, 1e-10))

	_, kGeneral, err := ten.JK(ctx, dm, nil, false, true)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(kGeneral, wantK, 1e-10))
}

func TestStreamingMatchesResident(t *testing.T) {
	mol, eng := setup(t, 1)
	ctx := context.Background()
	resident, err := Build(ctx, acquire(t, 1<<22), eng, mol.Fingerprint(), DefaultOptions())
	require.NoError(t, err)
	defer resident.Release()
	require.True(t, resident.Resident())

	small := acquire(t, 900)
	streamed, err := Build(ctx, small, eng, mol.Fingerprint(), DefaultOptions())
	require.NoError(t, err)
	defer streamed.Release()
	require.False(t, streamed.Resident())

	dm, occ := occupied(t, resident.NAO, 5)
	j1, k1, err := resident.JK(ctx, dm, occ, true, true)
	require.NoError(t, err)
	j2, k2, err := streamed.JK(ctx, dm, occ, true, true)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(j1, j2, 1e-12))
	assert.True(t, mat.EqualApprox(k1, k2, 1e-12))
	assert.Greater(t, small.Stats().Copies, 0)
}

func TestBuildAttenuatedMetricAppliesOnlyTheFloor(t *testing.T) {
	mol, eng := setup(t, 1)
	lr := eng.Attenuated(0.05)
	m, err := lr.Int2c()
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.MinRetained = 1
	_, err = DecomposeMetric(m, opts)
	require.ErrorIs(t, err, errs.ErrIllConditionedFit)

	ten, err := Build(context.Background(), acquire(t, 1<<22), lr, mol.Fingerprint(), opts)
	require.NoError(t, err)
	defer ten.Release()
	assert.Equal(t, MethodEigen, ten.Metric.Method)
	assert.Positive(t, ten.NL)
	assert.Less(t, ten.NL, ten.Metric.NAux)
	assert.Equal(t, 0.05, ten.Omega)
}

func TestBuildResourceExhausted(t *testing.T) {
	mol, eng := setup(t, 1)
	_, err := Build(context.Background(), acquire(t, 10), eng, mol.Fingerprint(), DefaultOptions())
	require.ErrorIs(t, err, errs.ErrResourceExhausted)
}

func TestJKCancelled(t *testing.T) {
	mol, eng := setup(t, 1)
	ten, err := Build(context.Background(), acquire(t, 1<<22), eng, mol.Fingerprint(), DefaultOptions())
	require.NoError(t, err)
	defer ten.Release()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dm, occ := occupied(t, ten.NAO, 5)
	_, _, err = ten.JK(ctx, dm, occ, true, true)
	require.ErrorIs(t, err, context.Canceled)
}

// integral_test.go --  This file is part of goHF project.
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
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/errs"
	"gohf/internal/molecule"
)

func h2() *molecule.Molecule {
	return &molecule.Molecule{Atoms: []molecule.Atom{
		{Z: 1, Name: "H1", Coords: [3]float64{0, 0, 0}},
		{Z: 1, Name: "H2", Coords: [3]float64{0, 0, 1.4}},
	}}
}

func water() *molecule.Molecule {
	return &molecule.Molecule{Atoms: []molecule.Atom{
		{Z: 8, Name: "O1", Coords: [3]float64{0, -0.143225816552, 0}},
		{Z: 1, Name: "H2", Coords: [3]float64{1.638036840407, 1.136548822547, 0}},
		{Z: 1, Name: "H3", Coords: [3]float64{-1.638036840407, 1.136548822547, 0.1}},
	}}
}

func build(t *testing.T, mol *molecule.Molecule, name string) *basis.Set {
	t.Helper()
	lib, err := basis.Load(name)
	require.NoError(t, err)
	set, err := basis.Build(mol, lib)
	require.NoError(t, err)
	return set
}

func fitting(t *testing.T, orb *basis.Set) *basis.Set {
	t.Helper()
	aux, err := basis.EvenTempered(orb, 2.5, 1)
	require.NoError(t, err)
	return aux
}

func randomSym(n int, seed uint64) *mat.SymDense {
	r := rand.New(rand.NewPCG(seed, 7))
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			s.SetSym(i, j, r.Float64()-0.5)
		}
	}
	return s
}

func contractSym(a, b mat.Symmetric) float64 {
	n := a.SymmetricDim()
	s := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s += a.At(i, j) * b.At(i, j)
		}
	}
	return s
}

func TestBoys(t *testing.T) {
	out := make([]float64, 6)
	boys(5, 0, out)
	for n := 0; n <= 5; n++ {
		assert.InDelta(t, 1/float64(2*n+1), out[n], 1e-14)
	}
	for _, x := range []float64{1e-6, 0.3, 2.5, 17, 60} {
		boys(5, x, out)
		assert.InDelta(t, 0.5*math.Sqrt(math.Pi/x)*math.Erf(math.Sqrt(x)), out[0], 1e-12, "x=%g", x)
		// F_n(x) = (2x F_{n+1} + e^{-x}) / (2n+1)
		for n := 0; n < 5; n++ {
			assert.InDelta(t, out[n], (2*x*out[n+1]+math.Exp(-x))/float64(2*n+1), 1e-12)
		}
	}
}

func TestH2ReferenceIntegrals(t *testing.T) {
	mol := h2()
	b := build(t, mol, "sto-3g")
	s := Overlap(b, mol)
	k := Kinetic(b, mol)
	v := Nuclear(b, mol)
	assert.InDelta(t, 1.0, s.At(0, 0), 1e-6)
	assert.InDelta(t, 0.6593, s.At(0, 1), 1e-4)
	assert.InDelta(t, 0.7600, k.At(0, 0), 1e-4)
	assert.InDelta(t, 0.2365, k.At(0, 1), 1e-4)
	assert.InDelta(t, -1.8804, v.At(0, 0), 1e-4)
	assert.InDelta(t, -1.1948, v.At(0, 1), 1e-4)

	eng, err := NewEngine(b, nil, 0)
	require.NoError(t, err)
	eri := func(i, j, k, l int) float64 {
		blk, err := eng.Int4c(i, j, k, l)
		require.NoError(t, err)
		return blk[0]
	}
	assert.InDelta(t, 0.7746, eri(0, 0, 0, 0), 1e-4)
	assert.InDelta(t, 0.5697, eri(0, 0, 1, 1), 1e-4)
	assert.InDelta(t, 0.2970, eri(1, 0, 1, 0), 1e-4)
	assert.InDelta(t, 0.4441, eri(1, 0, 0, 0), 1e-4)
}

func TestAllSFastPathMatchesGeneral(t *testing.T) {
	mol := water()
	b := build(t, mol, "sto-3g")
	s := [4]slot{slotOf(&b.Shells[0]), slotOf(&b.Shells[1]), slotOf(&b.Shells[3]), slotOf(&b.Shells[4])}
	k, err := kernelFor("test", [4]int{}, [4]bool{}, 0, MaxRootsDirect)
	require.NoError(t, err)
	require.True(t, k.allS)
	fast := newBlocks(1, 1)
	eri(s, k, 0, []Deriv{{}}, fast)
	k.allS = false
	slow := newBlocks(1, 1)
	eri(s, k, 0, []Deriv{{}}, slow)
	assert.InDelta(t, slow[0][0], fast[0][0], 1e-13)
}

func TestAttenuatedCoulomb(t *testing.T) {
	mol := h2()
	b := build(t, mol, "sto-3g")
	eng, err := NewEngine(b, nil, 0)
	require.NoError(t, err)
	full, err := eng.Int4c(0, 0, 1, 1)
	require.NoError(t, err)
	lr, err := eng.Attenuated(1e4).Int4c(0, 0, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, full[0], lr[0], 1e-8)
	weak, err := eng.Attenuated(0.3).Int4c(0, 0, 1, 1)
	require.NoError(t, err)
	assert.Less(t, weak[0], full[0])
	assert.Greater(t, weak[0], 0.0)
}

func TestUnsupportedBasis(t *testing.T) {
	mol := h2()
	g := basis.NewShell(0, mol.Atoms[0].Coords, 4, []float64{1.2}, []float64{1})
	h := basis.NewShell(1, mol.Atoms[1].Coords, 5, []float64{0.8}, []float64{1})

	_, err := NewEngine(basis.NewSet("g", []basis.Shell{g}), nil, 0)
	require.NoError(t, err)
	_, err = NewEngine(basis.NewSet("g", []basis.Shell{g}), nil, 2)
	require.ErrorIs(t, err, errs.ErrUnsupportedBasis)

	_, err = NewEngine(basis.NewSet("h", []basis.Shell{h}), nil, 0)
	require.ErrorIs(t, err, errs.ErrUnsupportedBasis)

	orb := basis.NewSet("g", []basis.Shell{g})
	aux := basis.NewSet("aux-h", []basis.Shell{h})
	_, err = NewEngine(orb, aux, 2)
	require.NoError(t, err)
	_, err = NewEngine(orb, aux, 3)
	require.ErrorIs(t, err, errs.ErrUnsupportedBasis)

	i := basis.NewShell(1, mol.Atoms[1].Coords, 6, []float64{0.8}, []float64{1})
	_, err = NewEngine(orb, basis.NewSet("aux-i", []basis.Shell{i}), 0)
	require.ErrorIs(t, err, errs.ErrUnsupportedBasis)
	assert.Equal(t, errs.KindUnsupportedBasis, errs.KindOf(err))
}

const fdStep = 1e-4

func TestOneElectronDerivFiniteDifference(t *testing.T) {
	mol := water()
	b := build(t, mol, "6-31g")
	for _, op := range []Operator{OpOverlap, OpKinetic, OpNuclear} {
		d := OneElectronDeriv(b, mol, op)
		var sum *mat.Dense
		for atom := 0; atom < mol.NAtoms(); atom++ {
			for k := 0; k < 3; k++ {
				plus, minus := mol.Displaced(atom, k, fdStep), mol.Displaced(atom, k, -fdStep)
				bp, err := b.AtGeometry(plus)
				require.NoError(t, err)
				bm, err := b.AtGeometry(minus)
				require.NoError(t, err)
				var fd mat.Dense
				fd.Sub(OneElectron(bp, plus, op), OneElectron(bm, minus, op))
				fd.Scale(0.5/fdStep, &fd)
				require.True(t, mat.EqualApprox(&fd, d[3*atom+k], 1e-6), "op %d coord %d", op, 3*atom+k)
			}
		}
		// translational invariance
		for k := 0; k < 3; k++ {
			sum = mat.NewDense(b.NAO, b.NAO, nil)
			for atom := 0; atom < mol.NAtoms(); atom++ {
				sum.Add(sum, d[3*atom+k])
			}
			assert.InDelta(t, 0, mat.Norm(sum, math.Inf(1)), 1e-10)
		}
	}
}

func TestOneElectronHessianFiniteDifference(t *testing.T) {
	mol := water()
	b := build(t, mol, "sto-3g")
	dm := randomSym(b.NAO, 1)
	for _, op := range []Operator{OpOverlap, OpCore} {
		h := OneElectronHessian(b, mol, op, dm)
		for atom := 0; atom < mol.NAtoms(); atom++ {
			for k := 0; k < 3; k++ {
				plus, minus := mol.Displaced(atom, k, fdStep), mol.Displaced(atom, k, -fdStep)
				bp, _ := b.AtGeometry(plus)
				bm, _ := b.AtGeometry(minus)
				dp, dmn := OneElectronDeriv(bp, plus, op), OneElectronDeriv(bm, minus, op)
				y := 3*atom + k
				for x := range dp {
					fd := (contractSym(dm, dp[x]) - contractSym(dm, dmn[x])) / (2 * fdStep)
					assert.InDelta(t, fd, h.At(x, y), 1e-5, "op %d (%d,%d)", op, x, y)
				}
			}
		}
	}
}

func fitEngine(t *testing.T, mol *molecule.Molecule, orb, aux *basis.Set, deriv int) *Engine {
	t.Helper()
	o, err := orb.AtGeometry(mol)
	require.NoError(t, err)
	a, err := aux.AtGeometry(mol)
	require.NoError(t, err)
	eng, err := NewEngine(o, a, deriv)
	require.NoError(t, err)
	return eng
}

// weighted3c is Σ_{Pμν} Γ^P_μν (μν|P).
func weighted3c(t *testing.T, eng *Engine, gam [][]float64) float64 {
	nao := eng.Orb.NAO
	sum := 0.0
	for p := range eng.Aux.Shells {
		np := eng.Aux.Shells[p].NComp()
		rows := make([][]float64, np)
		for i := range rows {
			rows[i] = make([]float64, NPair(nao))
		}
		require.NoError(t, eng.Int3cPacked(p, rows))
		for cp := 0; cp < np; cp++ {
			g := gam[eng.Aux.Offsets[p]+cp]
			for mu := 0; mu < nao; mu++ {
				for nu := 0; nu < nao; nu++ {
					sum += g[mu*nao+nu] * rows[cp][PairIndex(mu, nu)]
				}
			}
		}
	}
	return sum
}

func randomGamma(naux, nao int) [][]float64 {
	gam := make([][]float64, naux)
	for p := range gam {
		s := randomSym(nao, uint64(p+3))
		gam[p] = make([]float64, nao*nao)
		for i := 0; i < nao; i++ {
			for j := 0; j < nao; j++ {
				gam[p][i*nao+j] = s.At(i, j)
			}
		}
	}
	return gam
}

func TestThreeCenterDerivatives(t *testing.T) {
	mol := water()
	orb := build(t, mol, "sto-3g")
	aux := fitting(t, orb)
	eng := fitEngine(t, mol, orb, aux, 2)
	gam := randomGamma(aux.NAO, orb.NAO)
	get := func(p int) []float64 { return gam[p] }

	g, err := eng.Grad3c(mol.NAtoms(), get)
	require.NoError(t, err)
	h, err := eng.Hess3c(mol.NAtoms(), get)
	require.NoError(t, err)
	d3, err := eng.Deriv3c(mol.NAtoms())
	require.NoError(t, err)

	var total [3]float64
	for atom := 0; atom < mol.NAtoms(); atom++ {
		for k := 0; k < 3; k++ {
			total[k] += g[atom][k]
			plus, minus := mol.Displaced(atom, k, fdStep), mol.Displaced(atom, k, -fdStep)
			ep, em := fitEngine(t, plus, orb, aux, 1), fitEngine(t, minus, orb, aux, 1)
			fd := (weighted3c(t, ep, gam) - weighted3c(t, em, gam)) / (2 * fdStep)
			assert.InDelta(t, fd, g[atom][k], 1e-6)

			x := 3*atom + k
			viaDeriv := 0.0
			for p := range gam {
				for i, v := range gam[p] {
					viaDeriv += v * d3[x][p][i]
				}
			}
			assert.InDelta(t, g[atom][k], viaDeriv, 1e-9)

			gp, err := ep.Grad3c(mol.NAtoms(), get)
			require.NoError(t, err)
			gm, err := em.Grad3c(mol.NAtoms(), get)
			require.NoError(t, err)
			for b := 0; b < mol.NAtoms(); b++ {
				for l := 0; l < 3; l++ {
					fd := (gp[b][l] - gm[b][l]) / (2 * fdStep)
					assert.InDelta(t, fd, h.At(3*b+l, x), 1e-5)
				}
			}
		}
	}
	for k := 0; k < 3; k++ {
		assert.InDelta(t, 0, total[k], 1e-10)
	}
}

func TestTwoCenterDerivatives(t *testing.T) {
	mol := water()
	orb := build(t, mol, "sto-3g")
	aux := fitting(t, orb)
	eng := fitEngine(t, mol, orb, aux, 2)
	om := randomSym(aux.NAO, 11)

	g, err := eng.Grad2c(mol.NAtoms(), om)
	require.NoError(t, err)
	h, err := eng.Hess2c(mol.NAtoms(), om)
	require.NoError(t, err)
	d2, err := eng.Deriv2c(mol.NAtoms())
	require.NoError(t, err)
	for atom := 0; atom < mol.NAtoms(); atom++ {
		for k := 0; k < 3; k++ {
			x := 3*atom + k
			plus, minus := mol.Displaced(atom, k, fdStep), mol.Displaced(atom, k, -fdStep)
			ep, em := fitEngine(t, plus, orb, aux, 1), fitEngine(t, minus, orb, aux, 1)
			mp, err := ep.Int2c()
			require.NoError(t, err)
			mm, err := em.Int2c()
			require.NoError(t, err)
			fd := (contractSym(om, mp) - contractSym(om, mm)) / (2 * fdStep)
			assert.InDelta(t, fd, g[atom][k], 1e-6)
			assert.InDelta(t, g[atom][k], mat.Sum(mulElem(om, d2[x])), 1e-9)

			gp, err := ep.Grad2c(mol.NAtoms(), om)
			require.NoError(t, err)
			gm, err := em.Grad2c(mol.NAtoms(), om)
			require.NoError(t, err)
			for b := 0; b < mol.NAtoms(); b++ {
				for l := 0; l < 3; l++ {
					assert.InDelta(t, (gp[b][l]-gm[b][l])/(2*fdStep), h.At(3*b+l, x), 1e-5)
				}
			}
		}
	}
}

func mulElem(a, b mat.Matrix) *mat.Dense {
	var m mat.Dense
	m.MulElem(a, b)
	return &m
}

func TestFourCenterGradient(t *testing.T) {
	mol := water()
	orb := build(t, mol, "sto-3g")
	dm := randomSym(orb.NAO, 5)
	weight := func(mu, nu, la, si int) float64 { return dm.At(mu, nu) * dm.At(la, si) }
	energy := func(m *molecule.Molecule) float64 {
		o, err := orb.AtGeometry(m)
		require.NoError(t, err)
		eng, err := NewEngine(o, nil, 0)
		require.NoError(t, err)
		sum := 0.0
		n := len(o.Shells)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				for k := 0; k < n; k++ {
					for l := 0; l < n; l++ {
						blk, err := eng.Int4c(i, j, k, l)
						require.NoError(t, err)
						idx := 0
						for ci := 0; ci < o.Shells[i].NComp(); ci++ {
							for cj := 0; cj < o.Shells[j].NComp(); cj++ {
								for ck := 0; ck < o.Shells[k].NComp(); ck++ {
									for cl := 0; cl < o.Shells[l].NComp(); cl++ {
										sum += blk[idx] * weight(o.Offsets[i]+ci, o.Offsets[j]+cj, o.Offsets[k]+ck, o.Offsets[l]+cl)
										idx++
									}
								}
							}
						}
					}
				}
			}
		}
		return sum
	}
	eng, err := NewEngine(orb, nil, 1)
	require.NoError(t, err)
	g := make([][3]float64, mol.NAtoms())
	n := len(orb.Shells)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				for l := 0; l < n; l++ {
					require.NoError(t, eng.Grad4c(i, j, k, l, weight, g))
				}
			}
		}
	}
	for atom := 0; atom < mol.NAtoms(); atom++ {
		for k := 0; k < 3; k++ {
			fd := (energy(mol.Displaced(atom, k, fdStep)) - energy(mol.Displaced(atom, k, -fdStep))) / (2 * fdStep)
			assert.InDelta(t, fd, g[atom][k], 1e-6)
		}
	}
}

func TestSchwarzBoundsQuartets(t *testing.T) {
	mol := water()
	orb := build(t, mol, "sto-3g")
	eng, err := NewEngine(orb, nil, 0)
	require.NoError(t, err)
	q, err := eng.Schwarz()
	require.NoError(t, err)
	n := len(orb.Shells)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			for k := 0; k < n; k++ {
				for l := 0; l <= k; l++ {
					blk, err := eng.Int4c(i, j, k, l)
					require.NoError(t, err)
					for _, v := range blk {
						assert.LessOrEqual(t, math.Abs(v), q.At(i, j)*q.At(k, l)+1e-12)
					}
				}
			}
		}
	}
}

func TestSecondMomentOfSingleGaussians(t *testing.T) {
	const a = 0.5
	c := [3]float64{1, 2, 3}
	set := basis.NewSet("one", []basis.Shell{
		basis.NewShell(0, c, 0, []float64{a}, []float64{1}),
		basis.NewShell(0, [3]float64{}, 1, []float64{a}, []float64{1}),
	})
	s2 := 1 / (4 * a) // ⟨x²⟩ of a normalised s function about its centre

	about := SecondMoment(set, c)
	assert.InDelta(t, s2, about[0][0].At(0, 0), 1e-12)
	assert.InDelta(t, 0, about[0][1].At(0, 0), 1e-12)
	assert.Same(t, about[0][1], about[1][0])

	rr := SecondMoment(set, [3]float64{})
	assert.InDelta(t, s2+1, rr[0][0].At(0, 0), 1e-12)
	assert.InDelta(t, 2, rr[0][1].At(0, 0), 1e-12)
	assert.InDelta(t, s2+9, rr[2][2].At(0, 0), 1e-12)

	// p_x at the origin: ⟨x²⟩ = 3σ², ⟨y²⟩ = σ²
	assert.InDelta(t, 3*s2, rr[0][0].At(1, 1), 1e-12)
	assert.InDelta(t, s2, rr[1][1].At(1, 1), 1e-12)
	assert.InDelta(t, 0, rr[0][1].At(1, 1), 1e-12)
	assert.InDelta(t, s2, rr[0][1].At(1, 2), 1e-12)
}

func TestSecondMomentTranslates(t *testing.T) {
	mol := water()
	orb := build(t, mol, "sto-3g")
	s := Overlap(orb, mol)
	o := [3]float64{0.3, -0.2, 0.5}
	at0 := SecondMoment(orb, [3]float64{})
	atO := SecondMoment(orb, o)
	// (x-o)² = x² - 2o·x + o², so M_xx(o) - M_xx(0) - o²S is linear in o:
	// doubling o doubles x-terms and quadruples o² terms
	at2O := SecondMoment(orb, [3]float64{2 * o[0], 2 * o[1], 2 * o[2]})
	for mu := 0; mu < orb.NAO; mu += 2 {
		for nu := 0; nu <= mu; nu++ {
			d1 := atO[0][0].At(mu, nu) - at0[0][0].At(mu, nu) - o[0]*o[0]*s.At(mu, nu)
			d2 := at2O[0][0].At(mu, nu) - at0[0][0].At(mu, nu) - 4*o[0]*o[0]*s.At(mu, nu)
			assert.InDelta(t, 2*d1, d2, 1e-10)
			assert.InDelta(t, at0[1][2].At(mu, nu), at0[2][1].At(nu, mu), 1e-14)
		}
	}
}

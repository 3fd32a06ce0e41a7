// twoe.go --  This file is part of goHF project.
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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/errs"
)

// PairIndex is the packed lower-triangle index of an AO pair.
func PairIndex(mu, nu int) int {
	if mu < nu {
		mu, nu = nu, mu
	}
	return mu*(mu+1)/2 + nu
}

// NPair is the number of packed pairs of n functions.
func NPair(n int) int { return n * (n + 1) / 2 }

// Engine evaluates two-electron integrals over an orbital basis and, for
// density fitting, an auxiliary basis. A positive Omega selects the
// erf-attenuated Coulomb operator.
type Engine struct {
	Orb   *basis.Set
	Aux   *basis.Set
	Omega float64

	orb, aux []slot
	auxDummy []slot
}

// NewEngine checks the basis pair against the kernel limits for the given
// derivative order. aux may be nil for direct evaluation.
func NewEngine(orb, aux *basis.Set, deriv int) (*Engine, error) {
	e := &Engine{Orb: orb, Aux: aux}
	if aux != nil {
		if err := CheckFitting(orb, aux, deriv); err != nil {
			return nil, err
		}
	} else if err := CheckOrbital(orb, deriv, true); err != nil {
		return nil, err
	}
	for i := range orb.Shells {
		e.orb = append(e.orb, slotOf(&orb.Shells[i]))
	}
	if aux != nil {
		for i := range aux.Shells {
			s := slotOf(&aux.Shells[i])
			e.aux = append(e.aux, s)
			e.auxDummy = append(e.auxDummy, dummy(s.center))
		}
	}
	return e, nil
}

// Attenuated returns a copy of the engine using erf(omega r)/r.
func (e *Engine) Attenuated(omega float64) *Engine {
	c := *e
	c.Omega = omega
	return &c
}

func (e *Engine) orbAtom(i int) int { return e.Orb.Shells[i].Atom }
func (e *Engine) auxAtom(p int) int { return e.Aux.Shells[p].Atom }

func (e *Engine) block3c(i, j, p int, reqs []Deriv, deriv int) ([][]float64, error) {
	si, sj, sp := e.orb[i], e.orb[j], e.aux[p]
	k, err := kernelFor("integral.Int3c", [4]int{si.l, sj.l, sp.l, 0}, [4]bool{false, false, true, false}, deriv, MaxRootsDF)
	if err != nil {
		return nil, err
	}
	out := newBlocks(len(reqs), len(si.comps)*len(sj.comps)*len(sp.comps))
	eri([4]slot{si, sj, sp, e.auxDummy[p]}, k, e.Omega, reqs, out)
	return out, nil
}

func (e *Engine) block2c(p, q int, reqs []Deriv, deriv int) ([][]float64, error) {
	sp, sq := e.aux[p], e.aux[q]
	k, err := kernelFor("integral.Int2c", [4]int{sp.l, 0, sq.l, 0}, [4]bool{true, false, true, false}, deriv, MaxRootsDF)
	if err != nil {
		return nil, err
	}
	out := newBlocks(len(reqs), len(sp.comps)*len(sq.comps))
	eri([4]slot{sp, e.auxDummy[p], sq, e.auxDummy[q]}, k, e.Omega, reqs, out)
	return out, nil
}

func (e *Engine) block4c(i, j, k, l int, reqs []Deriv, deriv int) ([][]float64, error) {
	s := [4]slot{e.orb[i], e.orb[j], e.orb[k], e.orb[l]}
	kn, err := kernelFor("integral.Int4c", [4]int{s[0].l, s[1].l, s[2].l, s[3].l}, [4]bool{}, deriv, MaxRootsDirect)
	if err != nil {
		return nil, err
	}
	out := newBlocks(len(reqs), len(s[0].comps)*len(s[1].comps)*len(s[2].comps)*len(s[3].comps))
	eri(s, kn, e.Omega, reqs, out)
	return out, nil
}

// Int2c is the auxiliary Coulomb metric (P|Q).
func (e *Engine) Int2c() (*mat.SymDense, error) {
	if e.Aux == nil {
		return nil, errs.New(errs.KindInvalidInput, "integral.Int2c", "no auxiliary basis")
	}
	m := mat.NewSymDense(e.Aux.NAO, nil)
	for p := range e.aux {
		for q := 0; q <= p; q++ {
			out, err := e.block2c(p, q, []Deriv{{}}, 0)
			if err != nil {
				return nil, err
			}
			idx := 0
			for cp := range e.aux[p].comps {
				for cq := range e.aux[q].comps {
					m.SetSym(e.Aux.Offsets[p]+cp, e.Aux.Offsets[q]+cq, out[0][idx])
					idx++
				}
			}
		}
	}
	return m, nil
}

// Int3cPacked writes (μν|P) for every function P of auxiliary shell p into
// dst, one packed-pair row per function.
func (e *Engine) Int3cPacked(p int, dst [][]float64) error {
	np := len(e.aux[p].comps)
	for i := range e.orb {
		for j := 0; j <= i; j++ {
			out, err := e.block3c(i, j, p, []Deriv{{}}, 0)
			if err != nil {
				return err
			}
			nj := len(e.orb[j].comps)
			for ci := range e.orb[i].comps {
				mu := e.Orb.Offsets[i] + ci
				for cj := 0; cj < nj; cj++ {
					pair := PairIndex(mu, e.Orb.Offsets[j]+cj)
					base := (ci*nj + cj) * np
					for cp := 0; cp < np; cp++ {
						dst[cp][pair] = out[0][base+cp]
					}
				}
			}
		}
	}
	return nil
}

// Int4c returns the (ij|kl) shell block laid out [ci][cj][ck][cl].
func (e *Engine) Int4c(i, j, k, l int) ([]float64, error) {
	out, err := e.block4c(i, j, k, l, []Deriv{{}}, 0)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Schwarz returns the shell-pair bounds sqrt(max |(ij|ij)|).
func (e *Engine) Schwarz() (*mat.SymDense, error) {
	n := len(e.orb)
	q := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			blk, err := e.Int4c(i, j, i, j)
			if err != nil {
				return nil, err
			}
			ni, nj := len(e.orb[i].comps), len(e.orb[j].comps)
			best := 0.0
			for ci := 0; ci < ni; ci++ {
				for cj := 0; cj < nj; cj++ {
					idx := ((ci*nj+cj)*ni+ci)*nj + cj
					best = max(best, math.Abs(blk[idx]))
				}
			}
			q.SetSym(i, j, math.Sqrt(best))
		}
	}
	return q, nil
}

// Grad3c contracts first derivatives of (μν|P) with a symmetric weight.
// gamma(P) returns the nao*nao row-major weight of auxiliary function P.
func (e *Engine) Grad3c(natm int, gamma func(p int) []float64) ([][3]float64, error) {
	g := make([][3]float64, natm)
	reqs := firstReqs(0, 1)
	nao := e.Orb.NAO
	for p := range e.aux {
		rows := e.auxRows(p, gamma)
		for i := range e.orb {
			for j := 0; j <= i; j++ {
				out, err := e.block3c(i, j, p, reqs, 1)
				if err != nil {
					return nil, err
				}
				w := e.weights3c(i, j, p, rows, nao)
				raw := make([][3]float64, 2)
				for r := range reqs {
					raw[r/3][r%3] = floats.Dot(w, out[r])
				}
				scatterFirst(g, []int{e.orbAtom(i), e.orbAtom(j), e.auxAtom(p)}, raw)
			}
		}
	}
	return g, nil
}

// Hess3c contracts second derivatives of (μν|P) with a symmetric weight.
func (e *Engine) Hess3c(natm int, gamma func(p int) []float64) (*mat.Dense, error) {
	h := mat.NewDense(3*natm, 3*natm, nil)
	reqs, index := secondReqs(0, 1)
	nao := e.Orb.NAO
	for p := range e.aux {
		rows := e.auxRows(p, gamma)
		for i := range e.orb {
			for j := 0; j <= i; j++ {
				out, err := e.block3c(i, j, p, reqs, 2)
				if err != nil {
					return nil, err
				}
				w := e.weights3c(i, j, p, rows, nao)
				vals := make([]float64, len(reqs))
				for r := range reqs {
					vals[r] = floats.Dot(w, out[r])
				}
				scatterSecond(h, []int{e.orbAtom(i), e.orbAtom(j), e.auxAtom(p)}, gather(index, vals, 2))
			}
		}
	}
	return h, nil
}

func (e *Engine) auxRows(p int, gamma func(p int) []float64) [][]float64 {
	rows := make([][]float64, len(e.aux[p].comps))
	for cp := range rows {
		rows[cp] = gamma(e.Aux.Offsets[p] + cp)
	}
	return rows
}

// weights3c lays the weight out like a 3c block, doubled off the diagonal.
func (e *Engine) weights3c(i, j, p int, rows [][]float64, nao int) []float64 {
	ni, nj, np := len(e.orb[i].comps), len(e.orb[j].comps), len(e.aux[p].comps)
	fac := 2.0
	if i == j {
		fac = 1
	}
	w := make([]float64, ni*nj*np)
	idx := 0
	for ci := 0; ci < ni; ci++ {
		mu := e.Orb.Offsets[i] + ci
		for cj := 0; cj < nj; cj++ {
			nu := e.Orb.Offsets[j] + cj
			for cp := 0; cp < np; cp++ {
				w[idx] = fac * rows[cp][mu*nao+nu]
				idx++
			}
		}
	}
	return w
}

// Grad2c contracts first derivatives of (P|Q) with a symmetric weight.
func (e *Engine) Grad2c(natm int, om mat.Matrix) ([][3]float64, error) {
	g := make([][3]float64, natm)
	reqs := firstReqs(0)
	for p := range e.aux {
		for q := 0; q <= p; q++ {
			if e.auxAtom(p) == e.auxAtom(q) {
				continue
			}
			out, err := e.block2c(p, q, reqs, 1)
			if err != nil {
				return nil, err
			}
			w := e.weights2c(p, q, om)
			raw := make([][3]float64, 1)
			for k := 0; k < 3; k++ {
				raw[0][k] = floats.Dot(w, out[k])
			}
			scatterFirst(g, []int{e.auxAtom(p), e.auxAtom(q)}, raw)
		}
	}
	return g, nil
}

// Hess2c contracts second derivatives of (P|Q) with a symmetric weight.
func (e *Engine) Hess2c(natm int, om mat.Matrix) (*mat.Dense, error) {
	h := mat.NewDense(3*natm, 3*natm, nil)
	reqs, index := secondReqs(0)
	for p := range e.aux {
		for q := 0; q <= p; q++ {
			if e.auxAtom(p) == e.auxAtom(q) {
				continue
			}
			out, err := e.block2c(p, q, reqs, 2)
			if err != nil {
				return nil, err
			}
			w := e.weights2c(p, q, om)
			vals := make([]float64, len(reqs))
			for r := range reqs {
				vals[r] = floats.Dot(w, out[r])
			}
			scatterSecond(h, []int{e.auxAtom(p), e.auxAtom(q)}, gather(index, vals, 1))
		}
	}
	return h, nil
}

func (e *Engine) weights2c(p, q int, om mat.Matrix) []float64 {
	np, nq := len(e.aux[p].comps), len(e.aux[q].comps)
	fac := 2.0
	if p == q {
		fac = 1
	}
	w := make([]float64, np*nq)
	for cp := 0; cp < np; cp++ {
		for cq := 0; cq < nq; cq++ {
			w[cp*nq+cq] = fac * om.At(e.Aux.Offsets[p]+cp, e.Aux.Offsets[q]+cq)
		}
	}
	return w
}

// Deriv3c returns ∂(μν|P)/∂x for every nuclear coordinate x = 3A+k,
// indexed [x][P][μ*nao+ν].
func (e *Engine) Deriv3c(natm int) ([][][]float64, error) {
	nao, naux := e.Orb.NAO, e.Aux.NAO
	res := make([][][]float64, 3*natm)
	for x := range res {
		res[x] = make([][]float64, naux)
		for p := range res[x] {
			res[x][p] = make([]float64, nao*nao)
		}
	}
	reqs := firstReqs(0, 1)
	for p := range e.aux {
		ap := e.auxAtom(p)
		np := len(e.aux[p].comps)
		for i := range e.orb {
			for j := 0; j <= i; j++ {
				out, err := e.block3c(i, j, p, reqs, 1)
				if err != nil {
					return nil, err
				}
				ai, aj := e.orbAtom(i), e.orbAtom(j)
				nj := len(e.orb[j].comps)
				idx := 0
				for ci := range e.orb[i].comps {
					mu := e.Orb.Offsets[i] + ci
					for cj := 0; cj < nj; cj++ {
						nu := e.Orb.Offsets[j] + cj
						for cp := 0; cp < np; cp++ {
							P := e.Aux.Offsets[p] + cp
							for k := 0; k < 3; k++ {
								di, dj := out[k][idx], out[3+k][idx]
								for _, c := range [3]struct {
									x int
									v float64
								}{{3*ai + k, di}, {3*aj + k, dj}, {3*ap + k, -di - dj}} {
									row := res[c.x][P]
									row[mu*nao+nu] += c.v
									if i != j {
										row[nu*nao+mu] += c.v
									}
								}
							}
							idx++
						}
					}
				}
			}
		}
	}
	return res, nil
}

// Deriv2c returns ∂(P|Q)/∂x for every nuclear coordinate.
func (e *Engine) Deriv2c(natm int) ([]*mat.Dense, error) {
	naux := e.Aux.NAO
	res := make([]*mat.Dense, 3*natm)
	for x := range res {
		res[x] = mat.NewDense(naux, naux, nil)
	}
	reqs := firstReqs(0)
	for p := range e.aux {
		for q := 0; q < p; q++ {
			ap, aq := e.auxAtom(p), e.auxAtom(q)
			if ap == aq {
				continue
			}
			out, err := e.block2c(p, q, reqs, 1)
			if err != nil {
				return nil, err
			}
			nq := len(e.aux[q].comps)
			for cp := range e.aux[p].comps {
				P := e.Aux.Offsets[p] + cp
				for cq := 0; cq < nq; cq++ {
					Q := e.Aux.Offsets[q] + cq
					for k := 0; k < 3; k++ {
						v := out[k][cp*nq+cq]
						for _, c := range [2]struct {
							x int
							v float64
						}{{3*ap + k, v}, {3*aq + k, -v}} {
							res[c.x].Set(P, Q, res[c.x].At(P, Q)+c.v)
							res[c.x].Set(Q, P, res[c.x].At(Q, P)+c.v)
						}
					}
				}
			}
		}
	}
	return res, nil
}

// Grad4c contracts first derivatives of the (ij|kl) shell quartet with
// weight(μ, ν, λ, σ) and adds the result to g.
func (e *Engine) Grad4c(i, j, k, l int, weight func(mu, nu, la, si int) float64, g [][3]float64) error {
	reqs := firstReqs(0, 1, 2)
	out, err := e.block4c(i, j, k, l, reqs, 1)
	if err != nil {
		return err
	}
	o := e.Orb.Offsets
	nj, nk, nl := len(e.orb[j].comps), len(e.orb[k].comps), len(e.orb[l].comps)
	w := make([]float64, len(out[0]))
	idx := 0
	for ci := range e.orb[i].comps {
		for cj := 0; cj < nj; cj++ {
			for ck := 0; ck < nk; ck++ {
				for cl := 0; cl < nl; cl++ {
					w[idx] = weight(o[i]+ci, o[j]+cj, o[k]+ck, o[l]+cl)
					idx++
				}
			}
		}
	}
	raw := make([][3]float64, 3)
	for r := range reqs {
		raw[r/3][r%3] = floats.Dot(w, out[r])
	}
	scatterFirst(g, []int{e.orbAtom(i), e.orbAtom(j), e.orbAtom(k), e.orbAtom(l)}, raw)
	return nil
}

func gather(index [][][3][3]int, vals []float64, n int) [][][3][3]float64 {
	raw := make([][][3][3]float64, n)
	for s := range raw {
		raw[s] = make([][3][3]float64, n)
		for t := 0; t < n; t++ {
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					raw[s][t][k][l] = vals[index[s][t][k][l]]
				}
			}
		}
	}
	return raw
}

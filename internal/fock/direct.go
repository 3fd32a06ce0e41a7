// direct.go --  This file is part of goHF project.
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

// Package fock assembles Coulomb, exchange and exchange-correlation
// contributions into the Fock matrix.
package fock

import (
	"context"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/device"
	"gohf/internal/integral"
)

// JKBuilder returns the Coulomb and exchange matrices of a total density.
// occ, when not nil, satisfies dm = occ·occᵀ and may be used to speed up
// the exchange build.
type JKBuilder interface {
	JK(ctx context.Context, dm *mat.SymDense, occ *mat.Dense, withJ, withK bool) (*mat.SymDense, *mat.SymDense, error)
}

// Direct evaluates four-centre integrals on the fly. Quartets whose Schwarz
// bound Q_ij·Q_kl·max|D| falls below Tol are skipped, so the result is an
// approximation controlled by Tol rather than an exact filter.
type Direct struct {
	Tol   float64
	eng   *integral.Engine
	arena *device.Arena
	q     *mat.SymDense
	pairs [][2]int

	computed atomic.Int64
	screened atomic.Int64
}

// NewDirect precomputes the shell-pair bounds of eng.
func NewDirect(eng *integral.Engine, arena *device.Arena, tol float64) (*Direct, error) {
	q, err := eng.Schwarz()
	if err != nil {
		return nil, err
	}
	d := &Direct{Tol: tol, eng: eng, arena: arena, q: q}
	for i := range eng.Orb.Shells {
		for j := 0; j <= i; j++ {
			d.pairs = append(d.pairs, [2]int{i, j})
		}
	}
	return d, nil
}

// Counts returns how many shell quartets were evaluated and skipped so far.
func (d *Direct) Counts() (computed, screened int64) {
	return d.computed.Load(), d.screened.Load()
}

// Schwarz exposes the shell-pair bounds.
func (d *Direct) Schwarz() *mat.SymDense { return d.q }

func (d *Direct) JK(ctx context.Context, dm *mat.SymDense, _ *mat.Dense, withJ, withK bool) (*mat.SymDense, *mat.SymDense, error) {
	orb := d.eng.Orb
	nao := orb.NAO
	workers := d.arena.Workers()
	bufs := make([]*device.Buffer, 0, workers)
	defer func() { d.arena.Free(bufs...) }()
	type partial struct{ j, k []float64 }
	parts := make([]partial, workers)
	for w := range parts {
		b, err := d.arena.Alloc(2 * nao * nao)
		if err != nil {
			return nil, nil, err
		}
		bufs = append(bufs, b)
		parts[w] = partial{j: b.Float64()[:nao*nao], k: b.Float64()[nao*nao:]}
	}
	dmax := 0.0
	for i := 0; i < nao; i++ {
		for j := 0; j <= i; j++ {
			dmax = math.Max(dmax, math.Abs(dm.At(i, j)))
		}
	}
	off := orb.Offsets

	_, err := d.arena.LaunchPartial(ctx, len(d.pairs), func(w, ij int) error {
		pj, pk := parts[w].j, parts[w].k
		i, j := d.pairs[ij][0], d.pairs[ij][1]
		ni, nj := orb.Shells[i].NComp(), orb.Shells[j].NComp()
		for kl := 0; kl <= ij; kl++ {
			k, l := d.pairs[kl][0], d.pairs[kl][1]
			if d.q.At(i, j)*d.q.At(k, l)*dmax < d.Tol {
				d.screened.Add(1)
				continue
			}
			d.computed.Add(1)
			blk, err := d.eng.Int4c(i, j, k, l)
			if err != nil {
				return err
			}
			nk, nl := orb.Shells[k].NComp(), orb.Shells[l].NComp()
			idx := 0
			for ci := 0; ci < ni; ci++ {
				mu := off[i] + ci
				for cj := 0; cj < nj; cj++ {
					nu := off[j] + cj
					for ck := 0; ck < nk; ck++ {
						la := off[k] + ck
						for cl := 0; cl < nl; cl++ {
							si := off[l] + cl
							g := blk[idx]
							idx++
							if nu > mu || si > la {
								continue
							}
							munu, lasi := integral.PairIndex(mu, nu), integral.PairIndex(la, si)
							if kl == ij && lasi > munu {
								continue
							}
							deg := 1.0
							if mu == nu {
								deg *= 0.5
							}
							if la == si {
								deg *= 0.5
							}
							if munu == lasi {
								deg *= 0.5
							}
							g *= deg
							if withJ {
								pj[mu*nao+nu] += 2 * dm.At(la, si) * g
								pj[la*nao+si] += 2 * dm.At(mu, nu) * g
							}
							if withK {
								pk[mu*nao+la] += dm.At(nu, si) * g
								pk[mu*nao+si] += dm.At(nu, la) * g
								pk[nu*nao+la] += dm.At(mu, si) * g
								pk[nu*nao+si] += dm.At(mu, la) * g
							}
						}
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	var jm, km *mat.SymDense
	if withJ {
		jm = reduce(nao, parts, func(p partial) []float64 { return p.j })
	}
	if withK {
		km = reduce(nao, parts, func(p partial) []float64 { return p.k })
	}
	return jm, km, nil
}

// reduce sums the per-worker partials and returns A + Aᵀ.
func reduce[P any](n int, parts []P, get func(P) []float64) *mat.SymDense {
	acc := make([]float64, n*n)
	for _, p := range parts {
		for i, v := range get(p) {
			acc[i] += v
		}
	}
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			s.SetSym(i, j, acc[i*n+j]+acc[j*n+i])
		}
	}
	return s
}

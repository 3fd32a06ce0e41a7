// prim.go --  This file is part of goHF project.
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

	"gohf/internal/basis"
)

// Deriv lists, per slot, the Cartesian directions in which that slot's
// centre is differentiated. An empty Deriv is the plain integral.
type Deriv [4][]int

func (d Deriv) order() int {
	return len(d[0]) + len(d[1]) + len(d[2]) + len(d[3])
}

// slot is one Gaussian position of an integral.
type slot struct {
	l      int
	center [3]float64
	exps   []float64
	coefs  []float64
	comps  [][3]int
	norms  []float64
}

func slotOf(sh *basis.Shell) slot {
	s := slot{l: sh.L, center: sh.Center, exps: sh.Exps, coefs: sh.Coefs, comps: basis.Cart(sh.L)}
	s.norms = make([]float64, len(s.comps))
	for i, c := range s.comps {
		s.norms[i] = basis.CompNorm(sh.L, c)
	}
	return s
}

// dummy is the unit s function of exponent zero that turns a single
// auxiliary function into a pair.
func dummy(center [3]float64) slot {
	return slot{center: center, exps: []float64{0}, coefs: []float64{1}, comps: [][3]int{{0, 0, 0}}, norms: []float64{1}}
}

type term struct {
	c float64
	d [3]int
}

// derivTerms expands centre derivatives of x^l e^{-a r^2} with
// d/dA φ_l = 2a φ_{l+1} - l φ_{l-1} applied once per listed direction.
func derivTerms(a float64, l [3]int, ops []int) []term {
	terms := []term{{c: 1}}
	for _, k := range ops {
		next := make([]term, 0, 2*len(terms))
		for _, t := range terms {
			up := t
			up.c *= 2 * a
			up.d[k]++
			next = append(next, up)
			if lk := l[k] + t.d[k]; lk > 0 {
				dn := t
				dn.c *= -float64(lk)
				dn.d[k]--
				next = append(next, dn)
			}
		}
		terms = next
	}
	return terms
}

func add3(a, b [3]int) [3]int { return [3]int{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

// eriPrim is the primitive (ij|kl) over Hermite expansions without the
// prefactor.
func eriPrim(bra, ket *primPair, r *rTable, i, j, k, l [3]int) float64 {
	ex, ey, ez := bra.e[0][i[0]][j[0]], bra.e[1][i[1]][j[1]], bra.e[2][i[2]][j[2]]
	fx, fy, fz := ket.e[0][k[0]][l[0]], ket.e[1][k[1]][l[1]], ket.e[2][k[2]][l[2]]
	sum := 0.0
	for t, et := range ex {
		if et == 0 {
			continue
		}
		for u, eu := range ey {
			if eu == 0 {
				continue
			}
			for v, ev := range ez {
				if ev == 0 {
					continue
				}
				inner := 0.0
				for tau, ft := range fx {
					for nu, fu := range fy {
						for phi, fv := range fz {
							s := ft * fu * fv * r.at(t+tau, u+nu, v+phi)
							if (tau+nu+phi)&1 == 1 {
								inner -= s
							} else {
								inner += s
							}
						}
					}
				}
				sum += et * eu * ev * inner
			}
		}
	}
	return sum
}

// eri accumulates the contracted four-slot Coulomb integrals of every
// request into out[r], laid out [c0][c1][c2][c3]. omega > 0 selects the
// erf-attenuated kernel.
func eri(s [4]slot, k kernel, omega float64, reqs []Deriv, out [][]float64) {
	var ext [4]int
	dsum := 0
	for _, r := range reqs {
		for q := 0; q < 4; q++ {
			ext[q] = max(ext[q], len(r[q]))
		}
		dsum = max(dsum, r.order())
	}
	L := s[0].l + s[1].l + s[2].l + s[3].l + dsum
	fn := make([]float64, L+1)
	fast := k.allS && len(reqs) == 1 && reqs[0].order() == 0
	terms := make([][][]term, 4)
	for q := range terms {
		terms[q] = make([][]term, len(s[q].comps))
	}

	for i0, a0 := range s[0].exps {
		for i1, a1 := range s[1].exps {
			bra := newPrimPair(a0, s[0].center, a1, s[1].center, s[0].l+ext[0], s[1].l+ext[1])
			c01 := s[0].coefs[i0] * s[1].coefs[i1]
			for i2, a2 := range s[2].exps {
				for i3, a3 := range s[3].exps {
					ket := newPrimPair(a2, s[2].center, a3, s[3].center, s[2].l+ext[2], s[3].l+ext[3])
					p, q := bra.p, ket.p
					alpha := p * q / (p + q)
					pref := 2 * math.Pow(math.Pi, 2.5) / (p * q * math.Sqrt(p+q))
					if omega > 0 {
						att := alpha * omega * omega / (alpha + omega*omega)
						pref *= math.Sqrt(att / alpha)
						alpha = att
					}
					c := c01 * s[2].coefs[i2] * s[3].coefs[i3] * pref
					pq := [3]float64{bra.P[0] - ket.P[0], bra.P[1] - ket.P[1], bra.P[2] - ket.P[2]}
					if fast {
						boys(0, alpha*(pq[0]*pq[0]+pq[1]*pq[1]+pq[2]*pq[2]), fn)
						e := bra.e[0][0][0][0] * bra.e[1][0][0][0] * bra.e[2][0][0][0] *
							ket.e[0][0][0][0] * ket.e[1][0][0][0] * ket.e[2][0][0][0]
						out[0][0] += c * e * fn[0]
						continue
					}
					r := hermiteR(L, alpha, pq, fn)
					exps := [4]float64{a0, a1, a2, a3}
					for ri, req := range reqs {
						for qq := 0; qq < 4; qq++ {
							for ci, comp := range s[qq].comps {
								terms[qq][ci] = derivTerms(exps[qq], comp, req[qq])
							}
						}
						dst := out[ri]
						idx := 0
						for c0, l0 := range s[0].comps {
							for c1, l1 := range s[1].comps {
								for c2, l2 := range s[2].comps {
									for c3, l3 := range s[3].comps {
										v := 0.0
										for _, t0 := range terms[0][c0] {
											for _, t1 := range terms[1][c1] {
												for _, t2 := range terms[2][c2] {
													for _, t3 := range terms[3][c3] {
														v += t0.c * t1.c * t2.c * t3.c * eriPrim(bra, ket, r,
															add3(l0, t0.d), add3(l1, t1.d), add3(l2, t2.d), add3(l3, t3.d))
													}
												}
											}
										}
										dst[idx] += c * v
										idx++
									}
								}
							}
						}
					}
				}
			}
		}
	}
	for ri := range reqs {
		idx := 0
		for _, n0 := range s[0].norms {
			for _, n1 := range s[1].norms {
				for _, n2 := range s[2].norms {
					for _, n3 := range s[3].norms {
						out[ri][idx] *= n0 * n1 * n2 * n3
						idx++
					}
				}
			}
		}
	}
}

// op1e selects a one-electron operator.
type op1e int

const (
	kOverlap op1e = iota
	kKinetic
	kNuclear
)

// charge is a point nucleus.
type charge struct {
	z float64
	c [3]float64
}

// oneE accumulates contracted one-electron integrals of two slots. Only the
// first two entries of each request are used. For the nuclear operator the
// attraction to every charge is summed.
func oneE(op op1e, s0, s1 slot, charges []charge, reqs []Deriv, out [][]float64) {
	var ext [2]int
	dsum := 0
	for _, r := range reqs {
		ext[0] = max(ext[0], len(r[0]))
		ext[1] = max(ext[1], len(r[1]))
		dsum = max(dsum, len(r[0])+len(r[1]))
	}
	if op == kKinetic {
		ext[1] += 2
	}
	L := s0.l + s1.l + dsum
	fn := make([]float64, L+1)
	terms := [2][][]term{make([][]term, len(s0.comps)), make([][]term, len(s1.comps))}

	for i0, a0 := range s0.exps {
		for i1, a1 := range s1.exps {
			pp := newPrimPair(a0, s0.center, a1, s1.center, s0.l+ext[0], s1.l+ext[1])
			c := s0.coefs[i0] * s1.coefs[i1]
			var rs []*rTable
			var zs []float64
			if op == kNuclear {
				for _, ch := range charges {
					pc := [3]float64{pp.P[0] - ch.c[0], pp.P[1] - ch.c[1], pp.P[2] - ch.c[2]}
					rs = append(rs, hermiteR(L, pp.p, pc, fn))
					zs = append(zs, -ch.z*2*math.Pi/pp.p)
				}
			}
			ovlPref := math.Pow(math.Pi/pp.p, 1.5)
			for ri, req := range reqs {
				for ci, comp := range s0.comps {
					terms[0][ci] = derivTerms(a0, comp, req[0])
				}
				for ci, comp := range s1.comps {
					terms[1][ci] = derivTerms(a1, comp, req[1])
				}
				dst := out[ri]
				idx := 0
				for c0, l0 := range s0.comps {
					for c1, l1 := range s1.comps {
						v := 0.0
						for _, t0 := range terms[0][c0] {
							for _, t1 := range terms[1][c1] {
								i, j := add3(l0, t0.d), add3(l1, t1.d)
								w := t0.c * t1.c
								switch op {
								case kOverlap:
									v += w * ovlPref * ovlPrim(pp, i, j)
								case kKinetic:
									for k := 0; k < 3; k++ {
										for _, tk := range derivTerms(a1, j, []int{k, k}) {
											v -= 0.5 * w * tk.c * ovlPref * ovlPrim(pp, i, add3(j, tk.d))
										}
									}
								case kNuclear:
									for n, r := range rs {
										v += w * zs[n] * nucPrim(pp, r, i, j)
									}
								}
							}
						}
						dst[idx] += c * v
						idx++
					}
				}
			}
		}
	}
	for ri := range reqs {
		idx := 0
		for _, n0 := range s0.norms {
			for _, n1 := range s1.norms {
				out[ri][idx] *= n0 * n1
				idx++
			}
		}
	}
}

func ovlPrim(pp *primPair, i, j [3]int) float64 {
	return pp.e[0][i[0]][j[0]][0] * pp.e[1][i[1]][j[1]][0] * pp.e[2][i[2]][j[2]][0]
}

func nucPrim(pp *primPair, r *rTable, i, j [3]int) float64 {
	ex, ey, ez := pp.e[0][i[0]][j[0]], pp.e[1][i[1]][j[1]], pp.e[2][i[2]][j[2]]
	sum := 0.0
	for t, et := range ex {
		for u, eu := range ey {
			for v, ev := range ez {
				sum += et * eu * ev * r.at(t, u, v)
			}
		}
	}
	return sum
}

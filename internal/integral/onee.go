// onee.go --  This file is part of goHF project.
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
	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/molecule"
)

// Operator is a one-electron operator.
type Operator int

const (
	OpOverlap Operator = iota
	OpKinetic
	OpNuclear
	// OpCore is kinetic plus nuclear attraction.
	OpCore
)

func (o Operator) parts() []op1e {
	switch o {
	case OpOverlap:
		return []op1e{kOverlap}
	case OpKinetic:
		return []op1e{kKinetic}
	case OpNuclear:
		return []op1e{kNuclear}
	default:
		return []op1e{kKinetic, kNuclear}
	}
}

func charges(mol *molecule.Molecule) []charge {
	cs := make([]charge, len(mol.Atoms))
	for i, a := range mol.Atoms {
		cs[i] = charge{z: float64(a.Z), c: a.Coords}
	}
	return cs
}

func newBlocks(n, size int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, size)
	}
	return out
}

// OneElectron evaluates a one-electron operator matrix.
func OneElectron(b *basis.Set, mol *molecule.Molecule, op Operator) *mat.SymDense {
	res := mat.NewSymDense(b.NAO, nil)
	cs := charges(mol)
	for i := range b.Shells {
		si := slotOf(&b.Shells[i])
		for j := 0; j <= i; j++ {
			sj := slotOf(&b.Shells[j])
			out := newBlocks(1, len(si.comps)*len(sj.comps))
			for _, p := range op.parts() {
				oneE(p, si, sj, cs, []Deriv{{}}, out)
			}
			idx := 0
			for ci := range si.comps {
				for cj := range sj.comps {
					res.SetSym(b.Offsets[i]+ci, b.Offsets[j]+cj, out[0][idx])
					idx++
				}
			}
		}
	}
	return res
}

// Overlap is S.
func Overlap(b *basis.Set, mol *molecule.Molecule) *mat.SymDense {
	return OneElectron(b, mol, OpOverlap)
}

// Kinetic is T.
func Kinetic(b *basis.Set, mol *molecule.Molecule) *mat.SymDense {
	return OneElectron(b, mol, OpKinetic)
}

// Nuclear is the nuclear attraction V.
func Nuclear(b *basis.Set, mol *molecule.Molecule) *mat.SymDense {
	return OneElectron(b, mol, OpNuclear)
}

// OneElectronDeriv returns the 3N matrices dO/dX_{A,k}, index 3A+k.
func OneElectronDeriv(b *basis.Set, mol *molecule.Molecule, op Operator) []*mat.SymDense {
	natm := mol.NAtoms()
	acc := make([]*mat.Dense, 3*natm)
	for x := range acc {
		acc[x] = mat.NewDense(b.NAO, b.NAO, nil)
	}
	cs := charges(mol)
	put := func(x, i, j int, si, sj slot, vals []float64, scale float64) {
		idx := 0
		for ci := range si.comps {
			for cj := range sj.comps {
				mu, nu := b.Offsets[i]+ci, b.Offsets[j]+cj
				v := scale * vals[idx]
				acc[x].Set(mu, nu, acc[x].At(mu, nu)+v)
				if i != j {
					acc[x].Set(nu, mu, acc[x].At(nu, mu)+v)
				}
				idx++
			}
		}
	}
	for i := range b.Shells {
		si := slotOf(&b.Shells[i])
		ai := b.Shells[i].Atom
		for j := 0; j <= i; j++ {
			sj := slotOf(&b.Shells[j])
			aj := b.Shells[j].Atom
			size := len(si.comps) * len(sj.comps)
			for _, p := range op.parts() {
				if p != kNuclear {
					if ai == aj {
						continue
					}
					out := newBlocks(3, size)
					oneE(p, si, sj, nil, firstReqs(0), out)
					for k := 0; k < 3; k++ {
						put(3*ai+k, i, j, si, sj, out[k], 1)
						put(3*aj+k, i, j, si, sj, out[k], -1)
					}
					continue
				}
				for c, ch := range cs {
					out := newBlocks(6, size)
					oneE(kNuclear, si, sj, []charge{ch}, firstReqs(0, 1), out)
					for k := 0; k < 3; k++ {
						put(3*ai+k, i, j, si, sj, out[k], 1)
						put(3*aj+k, i, j, si, sj, out[3+k], 1)
						put(3*c+k, i, j, si, sj, out[k], -1)
						put(3*c+k, i, j, si, sj, out[3+k], -1)
					}
				}
			}
		}
	}
	res := make([]*mat.SymDense, len(acc))
	for x := range acc {
		res[x] = SymFromDense(acc[x])
	}
	return res
}

// OneElectronHessian contracts second derivatives of the operator with a
// symmetric density: H_xy = Σ D_μν ∂²O_μν/∂x∂y.
func OneElectronHessian(b *basis.Set, mol *molecule.Molecule, op Operator, dm mat.Symmetric) *mat.SymDense {
	natm := mol.NAtoms()
	h := mat.NewDense(3*natm, 3*natm, nil)
	cs := charges(mol)
	for i := range b.Shells {
		si := slotOf(&b.Shells[i])
		ai := b.Shells[i].Atom
		for j := 0; j <= i; j++ {
			sj := slotOf(&b.Shells[j])
			aj := b.Shells[j].Atom
			size := len(si.comps) * len(sj.comps)
			fac := 2.0
			if i == j {
				fac = 1
			}
			contract := func(vals []float64) float64 {
				sum := 0.0
				idx := 0
				for ci := range si.comps {
					for cj := range sj.comps {
						sum += dm.At(b.Offsets[i]+ci, b.Offsets[j]+cj) * vals[idx]
						idx++
					}
				}
				return fac * sum
			}
			for _, p := range op.parts() {
				if p != kNuclear {
					if ai == aj {
						continue
					}
					reqs, index := secondReqs(0)
					out := newBlocks(len(reqs), size)
					oneE(p, si, sj, nil, reqs, out)
					raw := [][][3][3]float64{{{}}}
					for k := 0; k < 3; k++ {
						for l := 0; l < 3; l++ {
							raw[0][0][k][l] = contract(out[index[0][0][k][l]])
						}
					}
					scatterSecond(h, []int{ai, aj}, raw)
					continue
				}
				reqs, index := secondReqs(0, 1)
				for c, ch := range cs {
					out := newBlocks(len(reqs), size)
					oneE(kNuclear, si, sj, []charge{ch}, reqs, out)
					raw := make([][][3][3]float64, 2)
					for s := range raw {
						raw[s] = make([][3][3]float64, 2)
					}
					for s := 0; s < 2; s++ {
						for t := 0; t < 2; t++ {
							for k := 0; k < 3; k++ {
								for l := 0; l < 3; l++ {
									raw[s][t][k][l] = contract(out[index[s][t][k][l]])
								}
							}
						}
					}
					scatterSecond(h, []int{ai, aj, c}, raw)
				}
			}
		}
	}
	return SymFromDense(h)
}

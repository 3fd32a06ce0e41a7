// builder.go --  This file is part of goHF project.
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
	"fmt"

	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/integral"
	"gohf/internal/molecule"
)

// XC integrates the exchange-correlation energy and potential of a density.
type XC interface {
	Vxc(ctx context.Context, dm *mat.SymDense) (exc float64, v *mat.SymDense, err error)
}

// Potential is an external effective potential (solvent-like embedding)
// rebuilt every iteration from the current density.
type Potential interface {
	Potential(ctx context.Context, dm *mat.SymDense) (e float64, v *mat.SymDense, err error)
}

// Mix holds the exact-exchange coefficients: the exchange matrix used is
// Hyb·K + (Alpha-Hyb)·K_ω.
type Mix struct {
	Hyb   float64
	Alpha float64
	Omega float64
}

// HF is pure Hartree-Fock exchange.
var HF = Mix{Hyb: 1, Alpha: 1}

// Energy are the electronic energy pieces of one Fock build.
type Energy struct {
	One      float64
	Coulomb  float64
	Exchange float64
	XC       float64
	Embed    float64
}

func (e Energy) Elec() float64 {
	return e.One + e.Coulomb + e.Exchange + e.XC + e.Embed
}

// Builder assembles F = h + J - ½K_mix + V_xc + V_embed.
type Builder struct {
	H     *mat.SymDense
	JK    JKBuilder
	JKLR  JKBuilder
	Mix   Mix
	XC    XC
	Embed []Potential
}

// Core is h = T + V plus an optional precomputed ECP matrix.
func Core(b *basis.Set, mol *molecule.Molecule, ecp *mat.SymDense) *mat.SymDense {
	h := integral.OneElectron(b, mol, integral.OpCore)
	if ecp != nil {
		h.AddSym(h, ecp)
	}
	return h
}

func (b *Builder) needsK() bool   { return b.Mix.Hyb != 0 }
func (b *Builder) needsKLR() bool { return b.Mix.Omega > 0 && b.Mix.Alpha != b.Mix.Hyb }

// Build returns the Fock matrix and energy of the total density dm.
func (b *Builder) Build(ctx context.Context, dm *mat.SymDense, occ *mat.Dense) (*mat.SymDense, Energy, error) {
	var en Energy
	n := dm.SymmetricDim()
	f := mat.NewSymDense(n, nil)
	f.CopySym(b.H)
	en.One = trace(dm, b.H)

	j, k, err := b.JK.JK(ctx, dm, occ, true, b.needsK())
	if err != nil {
		return nil, en, fmt.Errorf("fock: JK: %w", err)
	}
	f.AddSym(f, j)
	en.Coulomb = 0.5 * trace(dm, j)

	kmix := mat.NewSymDense(n, nil)
	if b.needsK() {
		kmix.ScaleSym(b.Mix.Hyb, k)
	}
	if b.needsKLR() {
		if b.JKLR == nil {
			return nil, en, fmt.Errorf("fock: omega %g requested without an attenuated JK builder", b.Mix.Omega)
		}
		_, klr, err := b.JKLR.JK(ctx, dm, occ, false, true)
		if err != nil {
			return nil, en, fmt.Errorf("fock: long-range K: %w", err)
		}
		var s mat.SymDense
		s.ScaleSym(b.Mix.Alpha-b.Mix.Hyb, klr)
		kmix.AddSym(kmix, &s)
	}
	var half mat.SymDense
	half.ScaleSym(-0.5, kmix)
	f.AddSym(f, &half)
	en.Exchange = -0.25 * trace(dm, kmix)

	if b.XC != nil {
		exc, v, err := b.XC.Vxc(ctx, dm)
		if err != nil {
			return nil, en, fmt.Errorf("fock: xc: %w", err)
		}
		f.AddSym(f, v)
		en.XC = exc
	}
	for _, p := range b.Embed {
		e, v, err := p.Potential(ctx, dm)
		if err != nil {
			return nil, en, fmt.Errorf("fock: embedding: %w", err)
		}
		f.AddSym(f, v)
		en.Embed += e
	}
	return f, en, nil
}

func trace(a, b mat.Symmetric) float64 {
	n := a.SymmetricDim()
	s := 0.0
	for i := 0; i < n; i++ {
		s += a.At(i, i) * b.At(i, i)
		for j := 0; j < i; j++ {
			s += 2 * a.At(i, j) * b.At(i, j)
		}
	}
	return s
}

// Trace is tr(AB) of two symmetric matrices.
func Trace(a, b mat.Symmetric) float64 { return trace(a, b) }

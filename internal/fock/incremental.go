// incremental.go --  This file is part of goHF project.
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

	"gonum.org/v1/gonum/mat"
)

// Incremental wraps a linear JK builder and contracts only the density
// change since the previous call: J[D] = J[D_prev] + J[D - D_prev]. The
// screening threshold of a direct builder then acts on the small difference
// density. Every RebuildEvery calls the full density is contracted again.
type Incremental struct {
	Base         JKBuilder
	RebuildEvery int

	calls      int
	last       *mat.SymDense
	lastJ      *mat.SymDense
	lastK      *mat.SymDense
	lastWithJK [2]bool
}

func (b *Incremental) Reset() {
	b.calls = 0
	b.last, b.lastJ, b.lastK = nil, nil, nil
}

func (b *Incremental) JK(ctx context.Context, dm *mat.SymDense, occ *mat.Dense, withJ, withK bool) (*mat.SymDense, *mat.SymDense, error) {
	full := b.last == nil || b.lastWithJK != [2]bool{withJ, withK} ||
		(b.RebuildEvery > 0 && b.calls%b.RebuildEvery == 0)
	b.calls++
	if full {
		j, k, err := b.Base.JK(ctx, dm, occ, withJ, withK)
		if err != nil {
			return nil, nil, err
		}
		b.remember(dm, j, k, withJ, withK)
		return j, k, nil
	}
	var delta mat.SymDense
	delta.ScaleSym(-1, b.last)
	delta.AddSym(dm, &delta)
	dj, dk, err := b.Base.JK(ctx, &delta, nil, withJ, withK)
	if err != nil {
		return nil, nil, err
	}
	var j, k *mat.SymDense
	if withJ {
		j = mat.NewSymDense(dm.SymmetricDim(), nil)
		j.AddSym(b.lastJ, dj)
	}
	if withK {
		k = mat.NewSymDense(dm.SymmetricDim(), nil)
		k.AddSym(b.lastK, dk)
	}
	b.remember(dm, j, k, withJ, withK)
	return j, k, nil
}

func (b *Incremental) remember(dm, j, k *mat.SymDense, withJ, withK bool) {
	b.last = mat.NewSymDense(dm.SymmetricDim(), nil)
	b.last.CopySym(dm)
	b.lastJ, b.lastK = j, k
	b.lastWithJK = [2]bool{withJ, withK}
}

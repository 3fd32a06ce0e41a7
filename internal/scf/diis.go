// diis.go --  This file is part of goHF project.
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

package scf

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DIIS extrapolates from a bounded history of (vector, error) pairs. The
// history is a ring: once full, the oldest pair is overwritten.
type DIIS struct {
	vecs [][]float64
	errs [][]float64
	head int
	n    int
}

func NewDIIS(depth int) *DIIS {
	if depth < 1 {
		depth = 1
	}
	return &DIIS{vecs: make([][]float64, depth), errs: make([][]float64, depth)}
}

func (d *DIIS) Len() int { return d.n }

func (d *DIIS) Reset() { d.head, d.n = 0, 0 }

// Push copies vec and its error vector into the ring.
func (d *DIIS) Push(vec, errv []float64) {
	i := d.head
	d.vecs[i] = append(d.vecs[i][:0], vec...)
	d.errs[i] = append(d.errs[i][:0], errv...)
	d.head = (d.head + 1) % len(d.vecs)
	if d.n < len(d.vecs) {
		d.n++
	}
}

// Extrapolate returns Σ c_i v_i minimising |Σ c_i e_i| with Σ c_i = 1. With
// one entry, or when the B matrix is singular, it returns the newest vector.
func (d *DIIS) Extrapolate() []float64 {
	newest := (d.head - 1 + len(d.vecs)) % len(d.vecs)
	out := append([]float64(nil), d.vecs[newest]...)
	if d.n < 2 {
		return out
	}
	dim := d.n + 1
	b := mat.NewDense(dim, dim, nil)
	scale := 0.0
	for i := 0; i < d.n; i++ {
		for j := 0; j <= i; j++ {
			v := floats.Dot(d.errs[i], d.errs[j])
			b.Set(i, j, v)
			b.Set(j, i, v)
		}
		scale = math.Max(scale, b.At(i, i))
		b.Set(i, d.n, -1)
		b.Set(d.n, i, -1)
	}
	if scale == 0 {
		return out
	}
	// normalise the error block so that the constraint row is not swamped
	for i := 0; i < d.n; i++ {
		for j := 0; j < d.n; j++ {
			b.Set(i, j, b.At(i, j)/scale)
		}
	}
	rhs := mat.NewVecDense(dim, nil)
	rhs.SetVec(d.n, -1)
	var lu mat.LU
	lu.Factorize(b)
	var coefs mat.VecDense
	if err := lu.SolveVecTo(&coefs, false, rhs); err != nil {
		return out
	}
	for k := range out {
		out[k] = 0
	}
	for i := 0; i < d.n; i++ {
		floats.AddScaled(out, coefs.AtVec(i), d.vecs[i])
	}
	return out
}

// RMS is the root mean square of an error vector.
func RMS(errv []float64) float64 {
	sq := make([]float64, len(errv))
	floats.MulTo(sq, errv, errv)
	return math.Sqrt(stat.Mean(sq, nil))
}

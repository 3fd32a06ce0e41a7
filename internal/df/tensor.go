// tensor.go --  This file is part of goHF project.
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
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/device"
	"gohf/internal/integral"
)

// Tensor is the fitted Coulomb tensor cderi[L, μν] = Σ_P T[L,P] (μν|P) over
// packed orbital pairs. It is resident in the arena when it fits and
// host-resident, streamed in chunks, otherwise.
type Tensor struct {
	NAO      int
	NPair    int
	NL       int
	Omega    float64
	Geometry string
	Metric   *Metric

	arena *device.Arena
	dev   *device.Buffer
	host  []float64
	log   *zap.Logger
}

// Resident reports whether the tensor lives in device memory.
func (t *Tensor) Resident() bool { return t.dev != nil }

func (t *Tensor) data() []float64 {
	if t.dev != nil {
		return t.dev.Float64()
	}
	return t.host
}

// Build evaluates the auxiliary metric and the three-centre integrals of eng
// and contracts them into a fitted tensor for the geometry fp. The
// three-centre integrals are computed in batches of auxiliary shells sized to
// the free arena budget. The attenuated metric of an engine with Omega > 0
// is low rank, so only the eigenvalue floor applies to it.
func Build(ctx context.Context, arena *device.Arena, eng *integral.Engine, fp string, opts Options) (*Tensor, error) {
	m, err := eng.Int2c()
	if err != nil {
		return nil, err
	}
	if eng.Omega > 0 {
		opts.MinRetained = 0
	}
	metric, err := DecomposeMetric(m, opts)
	if err != nil {
		return nil, err
	}
	nao := eng.Orb.NAO
	t := &Tensor{
		NAO:      nao,
		NPair:    integral.NPair(nao),
		NL:       metric.Retained,
		Omega:    eng.Omega,
		Geometry: fp,
		Metric:   metric,
		arena:    arena,
		log:      opts.logger(),
	}
	size := t.NL * t.NPair
	maxShell := 0
	for i := range eng.Aux.Shells {
		maxShell = max(maxShell, eng.Aux.Shells[i].NComp())
	}
	if arena.Available() >= size+2*maxShell*t.NPair {
		if t.dev, err = arena.Alloc(size); err != nil {
			return nil, err
		}
	} else {
		t.host = make([]float64, size)
	}

	batch, err := arena.Plan("df.Build", eng.Aux.NAO, t.NPair, 0)
	if err != nil {
		t.Release()
		return nil, err
	}
	batch = max(batch, maxShell)
	buf, err := arena.Alloc(batch * t.NPair)
	if err != nil {
		t.Release()
		return nil, err
	}
	defer arena.Free(buf)

	out := blas64.General{Rows: t.NL, Cols: t.NPair, Stride: t.NPair, Data: t.data()}
	tm := metric.T.RawMatrix()
	nbatch := 0
	for s0 := 0; s0 < len(eng.Aux.Shells); {
		s1, rows := s0, 0
		for s1 < len(eng.Aux.Shells) && rows+eng.Aux.Shells[s1].NComp() <= batch {
			rows += eng.Aux.Shells[s1].NComp()
			s1++
		}
		p0 := eng.Aux.Offsets[s0]
		raw := buf.Float64()[:rows*t.NPair]
		clear(raw)
		err := arena.Launch(ctx, s1-s0, func(i int) error {
			sh := s0 + i
			off := eng.Aux.Offsets[sh] - p0
			dst := make([][]float64, eng.Aux.Shells[sh].NComp())
			for c := range dst {
				dst[c] = raw[(off+c)*t.NPair : (off+c+1)*t.NPair]
			}
			return eng.Int3cPacked(sh, dst)
		})
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("df.Build: aux shells %d-%d: %w", s0, s1, err)
		}
		// cderi += T[:, p0:p0+rows] · raw
		tb := blas64.General{Rows: t.NL, Cols: rows, Stride: tm.Stride, Data: tm.Data[p0:]}
		rb := blas64.General{Rows: rows, Cols: t.NPair, Stride: t.NPair, Data: raw}
		blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, tb, rb, 1, out)
		s0 = s1
		nbatch++
	}
	t.log.Debug("fitted tensor built",
		zap.Int("nL", t.NL), zap.Int("npair", t.NPair), zap.Float64("omega", t.Omega),
		zap.Bool("resident", t.Resident()), zap.Int("batches", nbatch), zap.String("metric", string(metric.Method)))
	return t, nil
}

// Release returns the device copy to the arena.
func (t *Tensor) Release() {
	if t.dev != nil {
		t.arena.Free(t.dev)
		t.dev = nil
	}
}

// Valid reports whether the tensor was built for geometry fp.
func (t *Tensor) Valid(fp string) bool { return t.Geometry == fp }

// Loop calls fn on consecutive row blocks [l0, l1) of the tensor. A
// host-resident tensor is staged through the arena, reserving fixed floats
// for the caller's own workspace.
func (t *Tensor) Loop(ctx context.Context, fixed int, fn func(l0, l1 int, rows []float64) error) error {
	if t.dev != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, t.NL, t.dev.Float64())
	}
	chunk, err := t.arena.Plan("df.Loop", t.NL, 2*t.NPair, fixed)
	if err != nil {
		return err
	}
	return t.arena.Stage(t.host, t.NL, t.NPair, chunk, func(l0, l1 int, rows []float64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(l0, l1, rows)
	})
}

// Row returns packed row L. Host-resident rows are read without staging.
func (t *Tensor) Row(l int) []float64 {
	return t.data()[l*t.NPair : (l+1)*t.NPair]
}

// Unpack expands a packed row into a full symmetric matrix.
func Unpack(nao int, row []float64, dst *mat.Dense) {
	for mu := 0; mu < nao; mu++ {
		for nu := 0; nu <= mu; nu++ {
			v := row[integral.PairIndex(mu, nu)]
			dst.Set(mu, nu, v)
			dst.Set(nu, mu, v)
		}
	}
}

// Unpack returns row L as a symmetric matrix.
func (t *Tensor) Unpack(l int) *mat.SymDense {
	s := mat.NewSymDense(t.NAO, nil)
	row := t.Row(l)
	for mu := 0; mu < t.NAO; mu++ {
		for nu := 0; nu <= mu; nu++ {
			s.SetSym(mu, nu, row[integral.PairIndex(mu, nu)])
		}
	}
	return s
}

// Approx4c is the fitted (μν|λσ).
func (t *Tensor) Approx4c(mu, nu, la, si int) float64 {
	a, b := integral.PairIndex(mu, nu), integral.PairIndex(la, si)
	d := t.data()
	sum := 0.0
	for l := 0; l < t.NL; l++ {
		sum += d[l*t.NPair+a] * d[l*t.NPair+b]
	}
	return sum
}

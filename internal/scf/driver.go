// driver.go --  This file is part of goHF project.
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
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/chkfile"
	"gohf/internal/fock"
)

var tracer = otel.Tracer("gohf/scf")

// Result is the outcome of Run. For error outcomes only Calc and Outcome are
// set; no density is returned.
type Result struct {
	Calc     *Calc
	Outcome  Outcome
	Energy   float64 // total, including corrections
	Parts    fock.Energy
	NucNuc   float64
	Extra    float64 // post-hoc corrections
	Cycles   int
	DM       *mat.SymDense
	Fock     *mat.SymDense
	C        *mat.Dense
	MOEnergy []float64
	NOcc     int
	GNorm    float64
}

// W is the energy-weighted density.
func (r *Result) W() *mat.SymDense { return EnergyWeighted(r.DM, r.Fock) }

// Close releases the fitted tensors held for derivative passes.
func (r *Result) Close() {
	if r != nil && r.Calc != nil {
		r.Calc.Close()
	}
}

// Run drives the SCF state machine to one of its terminal states.
// Unsupported or ill-conditioned inputs are reported both as an error and as
// the Outcome of the returned result. Cancellation returns only ctx.Err().
func (c *Calc) Run(ctx context.Context) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "scf.Run", trace.WithAttributes(
		attribute.String("calc.id", c.ID.String()),
		attribute.String("functional", c.Func.Name()),
		attribute.Int("nao", c.Orb.NAO),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if res != nil {
			span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		}
		span.End()
		c.Metrics.Arena(c.Arena.Stats())
		if c.Direct != nil {
			_, screened := c.Direct.Counts()
			c.Metrics.Screened(screened)
		}
	}()

	c.setState(StateInitializing)
	fail := func(err error) (*Result, error) {
		c.Close()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		o := OutcomeOf(err)
		c.Metrics.Outcome(string(o))
		c.Log.Error("scf failed", zap.String("outcome", string(o)), zap.Error(err))
		return &Result{Calc: c, Outcome: o}, err
	}
	if err := c.setup(ctx); err != nil {
		return fail(err)
	}
	dm, occ, err := c.guess()
	if err != nil {
		return fail(err)
	}
	f, en, err := c.build(ctx, dm, occ)
	if err != nil {
		return fail(err)
	}
	nocc := c.Mol.NElec() / 2
	enuc := c.Mol.NucNuc()
	mon := NewMonitor(c.Opts)
	mon.Start(en.Elec() + enuc)
	diis := NewDIIS(c.Opts.DIISSpace)
	var fPrev *mat.SymDense
	nao := c.Orb.NAO

	c.setState(StateIterating)
	c.Log.Info("scf start", zap.String("id", c.ID.String()), zap.Float64("energy", en.Elec()+enuc), zap.Bool("direct", c.IsDirect()))
	var status Status
	cycle := 0
	for cycle = 1; cycle <= c.Opts.MaxCycle; cycle++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		ictx, ispan := tracer.Start(ctx, "scf.iteration", trace.WithAttributes(attribute.Int("cycle", cycle)))

		errm := Commutator(f, dm, c.S, c.X)
		feff := f
		if cycle >= c.Opts.DIISStart && c.Opts.DIISStart > 0 {
			diis.Push(f.RawSymmetric().Data, errm.RawMatrix().Data)
			feff = mat.NewSymDense(nao, diis.Extrapolate())
		} else if c.Opts.Damp > 0 && fPrev != nil {
			var a, b mat.SymDense
			a.ScaleSym(1-c.Opts.Damp, f)
			b.ScaleSym(c.Opts.Damp, fPrev)
			a.AddSym(&a, &b)
			feff = &a
		}
		fPrev = f
		if c.Opts.LevelShift > 0 {
			feff = LevelShift(feff, dm, c.S, c.Opts.LevelShift)
		}
		cmo, _, err := Eigen(feff, c.X)
		if err != nil {
			ispan.End()
			return fail(err)
		}
		occ = Occupied(cmo, nocc)
		dmNew := Density(occ)
		var diff mat.SymDense
		diff.ScaleSym(-1, dm)
		diff.AddSym(dmNew, &diff)
		ddm := mat.Norm(&diff, 2)

		f, en, err = c.build(ictx, dmNew, occ)
		if err != nil {
			ispan.End()
			return fail(err)
		}
		dm = dmNew
		gm := Commutator(f, dm, c.S, c.X)
		gnorm := mat.Norm(gm, 2)
		e := en.Elec() + enuc
		status = mon.Observe(e, ddm, gnorm)
		c.Metrics.Iteration()
		c.Log.Info("scf cycle",
			zap.Int("cycle", cycle),
			zap.Float64("energy", e),
			zap.Float64("delta_e", mon.DeltaE()),
			zap.Float64("ddm", ddm),
			zap.Float64("gnorm", gnorm),
			zap.Float64("drms", RMS(gm.RawMatrix().Data)))
		ispan.SetAttributes(attribute.Float64("energy", e), attribute.Float64("gnorm", gnorm))
		ispan.End()
		if status != Continue {
			break
		}
	}

	res = &Result{Calc: c, Parts: en, NucNuc: enuc, DM: dm, Fock: f, NOcc: nocc, GNorm: mon.GNorm}
	res.Cycles = min(cycle, c.Opts.MaxCycle)
	switch status {
	case Done:
		c.setState(StateConverged)
		res.Outcome = OutcomeConverged
	case Divergent:
		c.setState(StateDiverged)
		res.Outcome = OutcomeDiverged
	default:
		c.setState(StateMaxIterationsExceeded)
		res.Outcome = OutcomeMaxIterationsExceeded
	}
	// canonical orbitals of the final Fock matrix
	if res.C, res.MOEnergy, err = Eigen(f, c.X); err != nil {
		return fail(err)
	}
	for _, corr := range c.Corrections {
		e, err := corr.Energy(c.Mol)
		if err != nil {
			return fail(fmt.Errorf("scf: correction %s: %w", corr.Name(), err))
		}
		res.Extra += e
	}
	res.Energy = en.Elec() + enuc + res.Extra
	c.Metrics.Outcome(string(res.Outcome))
	c.Log.Info("scf done",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("cycles", res.Cycles),
		zap.Float64("energy", res.Energy))
	if res.Outcome == OutcomeConverged && c.Checkpoint != nil {
		rec := chkfile.NewRecord(c.ID, c.checkpointKey(), res.Energy, dm)
		rec.MOEnergy, rec.Converged = res.MOEnergy, true
		if err := c.Checkpoint.Save(rec); err != nil {
			c.Log.Warn("checkpoint not saved", zap.Error(err))
		}
	}
	return res, nil
}

func (c *Calc) build(ctx context.Context, dm *mat.SymDense, occ *mat.Dense) (*mat.SymDense, fock.Energy, error) {
	t0 := time.Now()
	f, en, err := c.builder.Build(ctx, dm, occ)
	c.Metrics.FockBuild(time.Since(t0))
	if err == nil && math.IsNaN(en.Elec()) {
		c.Log.Warn("non-finite energy")
	}
	return f, en, err
}

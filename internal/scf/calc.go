// calc.go --  This file is part of goHF project.
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

// Package scf runs restricted closed-shell Hartree-Fock and Kohn-Sham
// self-consistent field calculations.
package scf

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/chkfile"
	"gohf/internal/device"
	"gohf/internal/df"
	"gohf/internal/errs"
	"gohf/internal/fock"
	"gohf/internal/integral"
	"gohf/internal/metrics"
	"gohf/internal/molecule"
	"gohf/internal/numint"
	"gohf/internal/xc"
)

// Checkpointer stores and restores converged densities.
type Checkpointer interface {
	Save(r chkfile.Record) error
	Load(key string) (chkfile.Record, error)
}

// Calc is the context of one calculation. It owns the arena for its lifetime
// and everything built for the current geometry: integral engine, fitted
// tensors, grids. Independent calculations share nothing mutable.
type Calc struct {
	ID    uuid.UUID
	Mol   *molecule.Molecule
	Orb   *basis.Set
	Aux   *basis.Set
	Func  xc.Functional
	Arena *device.Arena
	Opts  Options

	Log         *zap.Logger
	Metrics     *metrics.Metrics
	Corrections []Correction
	Embedding   []Embedding
	ECP         ECP
	Checkpoint  Checkpointer
	// Guess is the user density for Options.Guess == "density".
	Guess *mat.SymDense

	Eng      *integral.Engine
	Tensor   *df.Tensor
	TensorLR *df.Tensor
	Direct   *fock.Direct
	XC       *numint.Integrator
	S        *mat.SymDense
	X        *mat.SymDense
	H        *mat.SymDense

	builder *fock.Builder
	state   State
}

// NewCalc returns a calculation context. f may be nil for Hartree-Fock.
func NewCalc(mol *molecule.Molecule, orb, aux *basis.Set, f xc.Functional, arena *device.Arena, opts Options) *Calc {
	if f == nil {
		f, _ = xc.Lookup("hf")
	}
	return &Calc{ID: uuid.New(), Mol: mol, Orb: orb, Aux: aux, Func: f, Arena: arena, Opts: opts, Log: zap.NewNop()}
}

// IsDirect reports whether the Fock build uses four-centre integrals.
func (c *Calc) IsDirect() bool { return c.Direct != nil }

// Mix returns the exact-exchange coefficients of the functional.
func (c *Calc) Mix() fock.Mix {
	h := c.Func.Hybrid()
	return fock.Mix{Hyb: h.Hyb, Alpha: h.Alpha, Omega: h.Omega}
}

func (c *Calc) setState(s State) {
	if c.state != s {
		c.Log.Debug("scf state", zap.String("from", string(c.state)), zap.String("to", string(s)))
	}
	c.state = s
}

// check rejects inputs the driver cannot handle before any work is done.
func (c *Calc) check() error {
	const op = "scf.check"
	if c.Mol.NAtoms() == 0 {
		return errs.New(errs.KindInvalidInput, op, "no atoms")
	}
	if c.Mol.Spin != 0 || c.Mol.NElec()%2 != 0 {
		return errs.New(errs.KindInvalidInput, op, "only closed-shell systems are supported: %d electrons, 2S=%d", c.Mol.NElec(), c.Mol.Spin)
	}
	if c.Mol.NElec() == 0 {
		return errs.New(errs.KindInvalidInput, op, "no electrons")
	}
	if c.Mol.NElec()/2 > c.Orb.NAO {
		return errs.New(errs.KindInvalidInput, op, "%d occupied orbitals exceed %d basis functions", c.Mol.NElec()/2, c.Orb.NAO)
	}
	if c.Opts.WantHessian {
		if c.Opts.Direct {
			return errs.New(errs.KindUnsupportedCombination, op, "Hessian of a direct SCF state")
		}
		if c.Func.Family() != xc.FamilyHF {
			return errs.New(errs.KindUnsupportedCombination, op, "Hessian of functional %s: no second derivatives", c.Func.Name())
		}
	}
	if c.Func.Family() == xc.FamilyMGGA {
		return errs.New(errs.KindUnsupportedCombination, op, "functional %s is a meta-GGA: the kinetic-energy density is not evaluated", c.Func.Name())
	}
	if c.Func.NeedsLaplacian() {
		return errs.New(errs.KindUnsupportedCombination, op, "functional %s needs the density Laplacian", c.Func.Name())
	}
	if !c.Opts.Direct && c.Aux == nil {
		return errs.New(errs.KindInvalidInput, op, "density fitting needs an auxiliary basis")
	}
	return nil
}

// setup builds everything that depends only on the geometry.
func (c *Calc) setup(ctx context.Context) error {
	if err := c.check(); err != nil {
		return err
	}
	deriv := c.Opts.derivOrder()
	var err error
	var ecp *mat.SymDense
	if c.ECP != nil {
		if ecp, err = c.ECP.Matrix(c.Orb, c.Mol); err != nil {
			return fmt.Errorf("scf: ecp: %w", err)
		}
	}
	c.S = integral.Overlap(c.Orb, c.Mol)
	if c.X, err = MatrixSqrtInverse(c.S); err != nil {
		return err
	}
	c.H = fock.Core(c.Orb, c.Mol, ecp)

	mix := c.Mix()
	b := &fock.Builder{H: c.H, Mix: mix}
	direct := c.Opts.Direct
	if !direct {
		if c.Eng, err = integral.NewEngine(c.Orb, c.Aux, deriv); err != nil {
			return err
		}
		dfo := c.Opts.DF
		dfo.Log = c.Log
		fp := c.Mol.Fingerprint()
		c.Tensor, err = df.Build(ctx, c.Arena, c.Eng, fp, dfo)
		if err == nil && mix.Omega > 0 {
			c.TensorLR, err = df.Build(ctx, c.Arena, c.Eng.Attenuated(mix.Omega), fp, dfo)
		}
		switch {
		case errors.Is(err, errs.ErrIllConditionedFit) && c.Opts.FallbackDirect && !c.Opts.WantHessian:
			c.Log.Warn("auxiliary metric ill conditioned, falling back to direct SCF", zap.Error(err))
			if c.Tensor != nil {
				c.Tensor.Release()
				c.Tensor = nil
			}
			direct = true
		case err != nil:
			return err
		default:
			b.JK = c.Tensor
			if c.TensorLR != nil {
				b.JKLR = c.TensorLR
			}
		}
	}
	if direct {
		if c.Eng, err = integral.NewEngine(c.Orb, nil, deriv); err != nil {
			return err
		}
		if c.Direct, err = fock.NewDirect(c.Eng, c.Arena, c.Opts.SchwarzTol); err != nil {
			return err
		}
		b.JK = c.Direct
		if c.Opts.IncrementalRebuild > 0 {
			b.JK = &fock.Incremental{Base: c.Direct, RebuildEvery: c.Opts.IncrementalRebuild}
		}
		if mix.Omega > 0 {
			lr, err := fock.NewDirect(c.Eng.Attenuated(mix.Omega), c.Arena, c.Opts.SchwarzTol)
			if err != nil {
				return err
			}
			b.JKLR = lr
		}
	}
	if c.Func.Family() != xc.FamilyHF {
		xo := c.Opts.XC
		xo.Log = c.Log
		if c.XC, err = numint.New(c.Arena, c.Orb, c.Mol, c.Func, xo); err != nil {
			return err
		}
		b.XC = c.XC
	}
	for _, e := range c.Embedding {
		b.Embed = append(b.Embed, e)
	}
	c.builder = b
	return nil
}

// Close releases the fitted tensors back to the arena.
func (c *Calc) Close() {
	if c.Tensor != nil {
		c.Tensor.Release()
		c.Tensor = nil
	}
	if c.TensorLR != nil {
		c.TensorLR.Release()
		c.TensorLR = nil
	}
}

func (c *Calc) checkpointKey() string {
	return chkfile.Key(c.Mol.Fingerprint(), c.Orb.Name, c.Func.Name())
}

// guess returns the initial density and, when available, its occupied orbitals.
func (c *Calc) guess() (*mat.SymDense, *mat.Dense, error) {
	nocc := c.Mol.NElec() / 2
	switch c.Opts.Guess {
	case "density":
		if c.Guess == nil {
			return nil, nil, errs.New(errs.KindInvalidInput, "scf.guess", "density guess requested without a density")
		}
		if c.Guess.SymmetricDim() != c.Orb.NAO {
			return nil, nil, errs.New(errs.KindInvalidInput, "scf.guess", "guess density is %d×%d, basis has %d functions", c.Guess.SymmetricDim(), c.Guess.SymmetricDim(), c.Orb.NAO)
		}
		d := mat.NewSymDense(c.Orb.NAO, nil)
		d.CopySym(c.Guess)
		return d, nil, nil
	case "chk":
		if c.Checkpoint != nil {
			rec, err := c.Checkpoint.Load(c.checkpointKey())
			if err == nil && rec.NAO == c.Orb.NAO {
				c.Log.Info("restarting from checkpoint", zap.Stringer("from", rec.ID))
				return rec.DM(), nil, nil
			}
			c.Log.Warn("no usable checkpoint, using core guess", zap.Error(err))
		}
	}
	cmo, _, err := Eigen(c.H, c.X)
	if err != nil {
		return nil, nil, err
	}
	occ := Occupied(cmo, nocc)
	return Density(occ), occ, nil
}

// options.go --  This file is part of goHF project.
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

	"gonum.org/v1/gonum/mat"

	"gohf/internal/basis"
	"gohf/internal/df"
	"gohf/internal/errs"
	"gohf/internal/molecule"
	"gohf/internal/numint"
)

// Options are the SCF settings; start from DefaultOptions.
type Options struct {
	MaxCycle         int     `yaml:"max_cycle" validate:"gte=1"`
	ConvTol          float64 `yaml:"conv_tol" validate:"gt=0"`
	ConvTolGrad      float64 `yaml:"conv_tol_grad" validate:"gte=0"`
	ConvergedStreak  int     `yaml:"converged_streak" validate:"gte=1"`
	DivergenceWindow int     `yaml:"divergence_window" validate:"gte=0"`

	DIISSpace  int     `yaml:"diis_space" validate:"gte=1"`
	DIISStart  int     `yaml:"diis_start" validate:"gte=0"`
	Damp       float64 `yaml:"damp" validate:"gte=0,lt=1"`
	LevelShift float64 `yaml:"level_shift" validate:"gte=0"`

	// Direct evaluates four-centre integrals each iteration instead of
	// fitting. SchwarzTol screens quartets whose bound times max|D| is
	// below it; screening drops small contributions and is not exact.
	Direct             bool    `yaml:"direct"`
	SchwarzTol         float64 `yaml:"schwarz_tol" validate:"gte=0"`
	IncrementalRebuild int     `yaml:"incremental_rebuild" validate:"gte=0"`
	FallbackDirect     bool    `yaml:"fallback_direct"`

	Guess string `yaml:"guess" validate:"oneof=core density chk"`

	WantGradient bool `yaml:"gradient"`
	WantHessian  bool `yaml:"hessian"`

	DF df.Options     `yaml:"df"`
	XC numint.Options `yaml:"xc"`
}

func DefaultOptions() Options {
	return Options{
		MaxCycle:           50,
		ConvTol:            1e-9,
		ConvergedStreak:    1,
		DivergenceWindow:   8,
		DIISSpace:          8,
		DIISStart:          1,
		SchwarzTol:         1e-12,
		IncrementalRebuild: 8,
		Guess:              "core",
		DF:                 df.DefaultOptions(),
		XC:                 numint.DefaultOptions(),
	}
}

func (o Options) derivOrder() int {
	switch {
	case o.WantHessian:
		return 2
	case o.WantGradient:
		return 1
	}
	return 0
}

// Outcome is the structured result tag of a calculation.
type Outcome string

const (
	OutcomeConverged              Outcome = "converged"
	OutcomeDiverged               Outcome = "diverged"
	OutcomeMaxIterationsExceeded  Outcome = "max_iterations_exceeded"
	OutcomeUnsupportedBasis       Outcome = "unsupported_basis"
	OutcomeIllConditionedFit      Outcome = "ill_conditioned_fit"
	OutcomeResourceExhausted      Outcome = "resource_exhausted"
	OutcomeUnsupportedCombination Outcome = "unsupported_combination"
	OutcomeInvalidInput           Outcome = "invalid_input"
	OutcomeFailed                 Outcome = "failed"
)

// OutcomeOf maps an error to its outcome tag.
func OutcomeOf(err error) Outcome {
	switch {
	case errors.Is(err, errs.ErrUnsupportedBasis):
		return OutcomeUnsupportedBasis
	case errors.Is(err, errs.ErrIllConditionedFit):
		return OutcomeIllConditionedFit
	case errors.Is(err, errs.ErrResourceExhausted):
		return OutcomeResourceExhausted
	case errors.Is(err, errs.ErrUnsupportedCombination):
		return OutcomeUnsupportedCombination
	case errors.Is(err, errs.ErrInvalidInput):
		return OutcomeInvalidInput
	}
	return OutcomeFailed
}

// State is the phase of the SCF state machine.
type State string

const (
	StateInitializing          State = "initializing"
	StateIterating             State = "iterating"
	StateConverged             State = "converged"
	StateDiverged              State = "diverged"
	StateMaxIterationsExceeded State = "max_iterations_exceeded"
)

// Correction is a post-hoc additive term such as a dispersion correction.
// Hessian may return errs.ErrUnsupportedCombination.
type Correction interface {
	Name() string
	Energy(mol *molecule.Molecule) (float64, error)
	Gradient(mol *molecule.Molecule) ([][3]float64, error)
	Hessian(mol *molecule.Molecule) (*mat.SymDense, error)
}

// Embedding is an effective potential rebuilt every iteration, such as a
// solvent reaction field.
type Embedding interface {
	Name() string
	Potential(ctx context.Context, dm *mat.SymDense) (float64, *mat.SymDense, error)
	Gradient(ctx context.Context, mol *molecule.Molecule, dm *mat.SymDense) ([][3]float64, error)
}

// ECP supplies the effective-core-potential matrix added to the core
// Hamiltonian and its contribution to the gradient.
type ECP interface {
	Matrix(orb *basis.Set, mol *molecule.Molecule) (*mat.SymDense, error)
	Gradient(orb *basis.Set, mol *molecule.Molecule, dm *mat.SymDense) ([][3]float64, error)
}

// errors.go --  This file is part of goHF project.
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

// Package errs holds the failure taxonomy shared by every stage of a
// calculation.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnsupportedBasis: angular momentum or quadrature root count beyond
	// engine capability. Fatal, never retried.
	KindUnsupportedBasis
	// KindIllConditionedFit: singular auxiliary metric. The caller may retry
	// with a larger auxiliary basis or fall back to direct evaluation.
	KindIllConditionedFit
	// KindResourceExhausted: device memory insufficient even after batching.
	KindResourceExhausted
	// KindUnsupportedCombination: a request rejected up front, e.g. a
	// Hessian of a direct-SCF state.
	KindUnsupportedCombination
	// KindInvalidInput: malformed molecule, basis or options.
	KindInvalidInput
	// KindNumerical: a decomposition or solve failed.
	KindNumerical
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedBasis:
		return "UnsupportedBasis"
	case KindIllConditionedFit:
		return "IllConditionedFit"
	case KindResourceExhausted:
		return "ResourceExhausted"
	case KindUnsupportedCombination:
		return "UnsupportedCombination"
	case KindInvalidInput:
		return "InvalidInput"
	case KindNumerical:
		return "Numerical"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrUnsupportedBasis       = errors.New("unsupported basis")
	ErrIllConditionedFit      = errors.New("ill-conditioned auxiliary metric")
	ErrResourceExhausted      = errors.New("device memory exhausted")
	ErrUnsupportedCombination = errors.New("unsupported combination")
	ErrInvalidInput           = errors.New("invalid input")
	ErrNumerical              = errors.New("numerical failure")
)

func (k Kind) sentinel() error {
	switch k {
	case KindUnsupportedBasis:
		return ErrUnsupportedBasis
	case KindIllConditionedFit:
		return ErrIllConditionedFit
	case KindResourceExhausted:
		return ErrResourceExhausted
	case KindUnsupportedCombination:
		return ErrUnsupportedCombination
	case KindInvalidInput:
		return ErrInvalidInput
	case KindNumerical:
		return ErrNumerical
	default:
		return nil
	}
}

// Error is a failure with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s in %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s in %s: %s", e.Kind, e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New builds an Error of the given kind.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around err.
func Wrap(kind Kind, op string, err error, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k := KindUnsupportedBasis; k <= KindNumerical; k++ {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}

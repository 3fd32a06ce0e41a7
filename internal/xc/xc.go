// xc.go --  This file is part of goHF project.
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

// Package xc is the adapter to exchange-correlation functionals: given the
// density and its reduced gradient on grid points it returns the energy
// density and its first derivatives.
package xc

import (
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"gohf/internal/errs"
)

// Family is the rung of a functional.
type Family int

const (
	FamilyHF Family = iota
	FamilyLDA
	FamilyGGA
	// FamilyMGGA needs the kinetic-energy density, which the integrator
	// does not evaluate; such functionals are rejected.
	FamilyMGGA
)

func (f Family) String() string {
	return [...]string{"hf", "lda", "gga", "mgga"}[f]
}

// Hybrid are the exact-exchange coefficients: Hyb·K + (Alpha-Hyb)·K_Omega.
type Hybrid struct {
	Omega float64
	Alpha float64
	Hyb   float64
}

// NLC are the VV10 parameters of a nonlocal correction.
type NLC struct {
	B float64
	C float64
}

// Output holds per-point results. E is the energy per volume, Vrho = ∂E/∂ρ
// and Vsigma = ∂E/∂σ with σ = |∇ρ|².
type Output struct {
	E      []float64
	Vrho   []float64
	Vsigma []float64
}

func newOutput(n int, gga bool) *Output {
	o := &Output{E: make([]float64, n), Vrho: make([]float64, n)}
	if gga {
		o.Vsigma = make([]float64, n)
	}
	return o
}

// Functional evaluates an exchange-correlation functional. sigma is ignored
// by LDA functionals and may be nil.
type Functional interface {
	Name() string
	Family() Family
	Hybrid() Hybrid
	NeedsLaplacian() bool
	NLC() *NLC
	Eval(rho, sigma []float64, deriv int) (*Output, error)
}

// DensityThreshold is the density below which points contribute nothing.
const DensityThreshold = 1e-14

var (
	mu       sync.RWMutex
	registry = map[string]Functional{}
)

// Register adds a functional under its lower-case name.
func Register(f Functional) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(f.Name())] = f
}

// Lookup returns a registered functional.
func Lookup(name string) (Functional, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, errs.New(errs.KindInvalidInput, "xc.Lookup", "unknown functional %q", name)
	}
	return f, nil
}

// Names lists the registered functionals in order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := maps.Keys(registry)
	slices.Sort(names)
	return names
}

// component is one additive piece of a composite functional.
type component struct {
	scale float64
	gga   bool
	eval  func(rho, sigma float64) (e, vrho, vsigma float64)
}

// composite sums weighted components.
type composite struct {
	name   string
	family Family
	hybrid Hybrid
	nlc    *NLC
	parts  []component
}

func (c *composite) Name() string         { return c.name }
func (c *composite) Family() Family       { return c.family }
func (c *composite) Hybrid() Hybrid       { return c.hybrid }
func (c *composite) NeedsLaplacian() bool { return false }
func (c *composite) NLC() *NLC            { return c.nlc }

func (c *composite) Eval(rho, sigma []float64, deriv int) (*Output, error) {
	if deriv > 1 {
		return nil, errs.New(errs.KindUnsupportedCombination, "xc.Eval",
			"%s: derivative order %d is not available", c.name, deriv)
	}
	gga := c.family == FamilyGGA
	if gga && len(sigma) != len(rho) {
		return nil, errs.New(errs.KindInvalidInput, "xc.Eval", "%s needs sigma for %d points, got %d", c.name, len(rho), len(sigma))
	}
	out := newOutput(len(rho), gga)
	for i, r := range rho {
		if r < DensityThreshold {
			continue
		}
		s := 0.0
		if gga {
			s = sigma[i]
		}
		for _, p := range c.parts {
			e, vr, vs := p.eval(r, s)
			out.E[i] += p.scale * e
			out.Vrho[i] += p.scale * vr
			if p.gga {
				out.Vsigma[i] += p.scale * vs
			}
		}
	}
	return out, nil
}

func init() {
	Register(&composite{name: "hf", family: FamilyHF, hybrid: Hybrid{Alpha: 1, Hyb: 1}})
	Register(&composite{name: "svwn", family: FamilyLDA, parts: []component{
		{scale: 1, eval: slater}, {scale: 1, eval: vwn5},
	}})
	Register(&composite{name: "pbe", family: FamilyGGA, parts: []component{
		{scale: 1, gga: true, eval: pbeX}, {scale: 1, gga: true, eval: pbeC},
	}})
	Register(&composite{name: "pbe0", family: FamilyGGA, hybrid: Hybrid{Alpha: 0.25, Hyb: 0.25}, parts: []component{
		{scale: 0.75, gga: true, eval: pbeX}, {scale: 1, gga: true, eval: pbeC},
	}})
	const lcOmega = 0.3
	Register(&composite{name: "lc-svwn", family: FamilyLDA, hybrid: Hybrid{Omega: lcOmega, Alpha: 1}, parts: []component{
		{scale: 1, eval: func(r, _ float64) (float64, float64, float64) { return slaterSR(r, lcOmega) }},
		{scale: 1, eval: vwn5},
	}})
	Register(&composite{name: "svwn-vv10", family: FamilyLDA, nlc: &NLC{B: 5.9, C: 0.0093}, parts: []component{
		{scale: 1, eval: slater}, {scale: 1, eval: vwn5},
	}})
}

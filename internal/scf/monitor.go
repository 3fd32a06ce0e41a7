// monitor.go --  This file is part of goHF project.
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

import "math"

// Status is the verdict of the convergence monitor after one iteration.
type Status int

const (
	Continue Status = iota
	Done
	Divergent
)

// Monitor keeps the convergence state: energy history, density change,
// orbital gradient and the pass and divergence counters.
type Monitor struct {
	ConvTol     float64
	ConvTolGrad float64
	Streak      int
	Window      int

	Energies []float64
	DDM      float64
	GNorm    float64

	passes  int
	eRising int
	dRising int
	lastDDM float64
}

// NewMonitor fills the gradient threshold with √ConvTol when it is zero.
func NewMonitor(o Options) *Monitor {
	g := o.ConvTolGrad
	if g == 0 {
		g = math.Sqrt(o.ConvTol)
	}
	return &Monitor{ConvTol: o.ConvTol, ConvTolGrad: g, Streak: max(o.ConvergedStreak, 1), Window: o.DivergenceWindow}
}

// Start records the energy of the initial density.
func (m *Monitor) Start(e float64) {
	m.Energies = append(m.Energies[:0], e)
	m.passes, m.eRising, m.dRising, m.lastDDM = 0, 0, 0, math.Inf(1)
}

// DeltaE is the last energy change.
func (m *Monitor) DeltaE() float64 {
	n := len(m.Energies)
	if n < 2 {
		return math.Inf(1)
	}
	return m.Energies[n-1] - m.Energies[n-2]
}

// Observe records one iteration. Convergence needs |ΔE| and the orbital
// gradient below threshold together for Streak consecutive iterations.
func (m *Monitor) Observe(e, ddm, gnorm float64) Status {
	m.Energies = append(m.Energies, e)
	m.DDM, m.GNorm = ddm, gnorm
	if math.IsNaN(e) || math.IsInf(e, 0) || math.IsNaN(gnorm) {
		return Divergent
	}
	de := m.DeltaE()
	if math.Abs(de) < m.ConvTol && gnorm < m.ConvTolGrad {
		m.passes++
	} else {
		m.passes = 0
	}
	if m.passes >= m.Streak {
		return Done
	}
	if de > m.ConvTol {
		m.eRising++
	} else {
		m.eRising = 0
	}
	if ddm > m.lastDDM {
		m.dRising++
	} else {
		m.dRising = 0
	}
	m.lastDDM = ddm
	if m.Window > 0 && (m.eRising >= m.Window || m.dRising >= m.Window) {
		return Divergent
	}
	return Continue
}

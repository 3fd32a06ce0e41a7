// metrics.go --  This file is part of goHF project.
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

// Package metrics exposes calculation counters as Prometheus collectors on a
// caller-supplied registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gohf/internal/device"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	iterations  prometheus.Counter
	outcomes    *prometheus.CounterVec
	fockSeconds prometheus.Histogram
	derivSecs   *prometheus.HistogramVec
	arenaPeak   prometheus.Gauge
	arenaCopies prometheus.Counter
	screened    prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		iterations: f.NewCounter(prometheus.CounterOpts{
			Name: "gohf_scf_iterations_total",
			Help: "SCF iterations executed.",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gohf_scf_outcomes_total",
			Help: "Finished calculations by outcome.",
		}, []string{"outcome"}),
		fockSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gohf_fock_build_seconds",
			Help:    "Time spent in one Fock build.",
			Buckets: prometheus.ExponentialBuckets(1e-3, 4, 10),
		}),
		derivSecs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gohf_derivative_seconds",
			Help:    "Time spent in gradient and Hessian passes.",
			Buckets: prometheus.ExponentialBuckets(1e-2, 4, 8),
		}, []string{"kind"}),
		arenaPeak: f.NewGauge(prometheus.GaugeOpts{
			Name: "gohf_arena_peak_bytes",
			Help: "Peak device arena usage of the last calculation.",
		}),
		arenaCopies: f.NewCounter(prometheus.CounterOpts{
			Name: "gohf_arena_copy_bytes_total",
			Help: "Bytes moved between host and device.",
		}),
		screened: f.NewCounter(prometheus.CounterOpts{
			Name: "gohf_direct_screened_quartets_total",
			Help: "Shell quartets skipped by Schwarz screening.",
		}),
	}
}

func (m *Metrics) Iteration() {
	if m != nil {
		m.iterations.Inc()
	}
}

func (m *Metrics) Outcome(o string) {
	if m != nil {
		m.outcomes.WithLabelValues(o).Inc()
	}
}

func (m *Metrics) FockBuild(d time.Duration) {
	if m != nil {
		m.fockSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) Derivative(kind string, d time.Duration) {
	if m != nil {
		m.derivSecs.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// Arena records the pool statistics of a finished calculation.
func (m *Metrics) Arena(s device.Stats) {
	if m != nil {
		m.arenaPeak.Set(float64(s.Peak))
		m.arenaCopies.Add(float64(s.CopyB))
	}
}

func (m *Metrics) Screened(n int64) {
	if m != nil && n > 0 {
		m.screened.Add(float64(n))
	}
}

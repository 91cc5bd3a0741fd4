package solver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes solver progress to Prometheus. Optional; a solver without
// metrics skips all collection.
type Metrics struct {
	squaringsTotal   prometheus.Counter
	remainingSteps   prometheus.Gauge
	throughput       prometheus.Gauge
	checkpointWrites prometheus.Counter
	checkpointErrors prometheus.Counter
}

// NewMetrics registers the solver collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		squaringsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timelock",
			Subsystem: "solver",
			Name:      "squarings_total",
			Help:      "Total number of sequential squarings performed",
		}),
		remainingSteps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "timelock",
			Subsystem: "solver",
			Name:      "remaining_steps",
			Help:      "Squarings left until the puzzle is solved",
		}),
		throughput: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "timelock",
			Subsystem: "solver",
			Name:      "squarings_per_second",
			Help:      "Observed squaring throughput of the running solver",
		}),
		checkpointWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timelock",
			Subsystem: "solver",
			Name:      "checkpoint_writes_total",
			Help:      "Checkpoint records written",
		}),
		checkpointErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timelock",
			Subsystem: "solver",
			Name:      "checkpoint_errors_total",
			Help:      "Checkpoint writes that failed and were skipped",
		}),
	}
}

func (m *Metrics) addSquarings(n float64) {
	if m == nil {
		return
	}
	m.squaringsTotal.Add(n)
}

func (m *Metrics) observeProgress(remaining uint64, perSecond float64) {
	if m == nil {
		return
	}
	m.remainingSteps.Set(float64(remaining))
	m.throughput.Set(perSecond)
}

func (m *Metrics) checkpointWritten(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.checkpointErrors.Inc()
		return
	}
	m.checkpointWrites.Inc()
}

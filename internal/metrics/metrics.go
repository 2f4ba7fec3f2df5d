// Package metrics holds the Prometheus instrumentation the service exposes:
// track counts, per-class queued/processed command counters, fragment
// send/receive and datagram drop counters, config reload counters, and
// merge failures. There is no queue-depth gauge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trackmand"

// Metrics holds every metric the service registers. Construct once with
// New and thread the result through the components that report to it.
type Metrics struct {
	TracksActive          prometheus.Gauge
	TracksCreatedTotal    prometheus.Counter
	TracksTerminatedTotal prometheus.Counter
	MergeFailuresTotal    prometheus.Counter

	CommandsQueuedTotal    *prometheus.CounterVec
	CommandsProcessedTotal *prometheus.CounterVec

	FragmentsSentTotal     prometheus.Counter
	FragmentsReceivedTotal prometheus.Counter
	DatagramsDroppedTotal  *prometheus.CounterVec

	ConfigReloadsTotal *prometheus.CounterVec
}

// New creates and registers every metric against reg. Pass
// prometheus.DefaultRegisterer from cmd/trackmand; tests construct their
// own registry to avoid cross-test collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TracksActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracks_active",
			Help:      "Number of live tracks currently held by the store.",
		}),
		TracksCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_created_total",
			Help:      "Total tracks created.",
		}),
		TracksTerminatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_terminated_total",
			Help:      "Total tracks terminated by extrapolation overrun.",
		}),
		MergeFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_failures_total",
			Help:      "Total merge_tracks calls that returned an error.",
		}),
		CommandsQueuedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_queued_total",
			Help:      "Commands accepted by the scheduler, by class.",
		}, []string{"class"}),
		CommandsProcessedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_processed_total",
			Help:      "Commands drained and applied by the scheduler, by class and outcome.",
		}, []string{"class", "outcome"}),
		FragmentsSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_sent_total",
			Help:      "Datagram fragments successfully sent.",
		}),
		FragmentsReceivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_received_total",
			Help:      "Datagrams accepted by the receiver after validation and filtering.",
		}),
		DatagramsDroppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_dropped_total",
			Help:      "Inbound datagrams dropped, by reason.",
		}, []string{"reason"}),
		ConfigReloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Config reload attempts, by outcome.",
		}, []string{"outcome"}),
	}
}

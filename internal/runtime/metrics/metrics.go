// Package metrics holds the Prometheus collectors of the relay. All methods
// are safe on a nil *Metrics, so components can run without metrics wired.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streamrelay"

// Metrics groups the relay's collectors.
type Metrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	eventsReceived    *prometheus.CounterVec
	eventsProcessed   *prometheus.CounterVec
	eventsFailed      *prometheus.CounterVec
	batches           *prometheus.CounterVec
	upstreamErrors    *prometheus.CounterVec
	processingSeconds *prometheus.HistogramVec

	deliveries   prometheus.Counter
	sendFailures prometheus.Counter
	skipped      prometheus.Counter
	broadcasts   prometheus.Counter
	subscribers  prometheus.Gauge
}

func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newCounter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// New creates the collectors. A nil registerer means prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	partition := []string{"partition"}
	return &Metrics{
		registerer:      registerer,
		eventsReceived:  newCounterVec("events", "received_total", "Events received from the upstream stream", partition),
		eventsProcessed: newCounterVec("events", "processed_total", "Events decoded, normalized and broadcast", partition),
		eventsFailed:    newCounterVec("events", "failed_total", "Events whose processing failed or panicked", partition),
		batches:         newCounterVec("events", "batches_total", "Event batches handed to the ingestion loop", partition),
		upstreamErrors:  newCounterVec("upstream", "errors_total", "Errors reported by the upstream stream", partition),
		processingSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "processing_seconds",
				Help:      "Time from receipt to the end of broadcast per event",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			partition,
		),
		deliveries:   newCounter("broadcast", "deliveries_total", "Records delivered to subscribers"),
		sendFailures: newCounter("broadcast", "send_failures_total", "Subscriber sends that failed or timed out"),
		skipped:      newCounter("broadcast", "skipped_total", "Subscribers skipped because their connection was not open"),
		broadcasts:   newCounter("broadcast", "broadcasts_total", "Broadcast calls"),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Currently registered subscribers",
		}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.eventsReceived,
		m.eventsProcessed,
		m.eventsFailed,
		m.batches,
		m.upstreamErrors,
		m.processingSeconds,
		m.deliveries,
		m.sendFailures,
		m.skipped,
		m.broadcasts,
		m.subscribers,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// BatchReceived records a batch of n events on a partition.
func (m *Metrics) BatchReceived(partition string, n int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(partition).Inc()
	m.eventsReceived.WithLabelValues(partition).Add(float64(n))
}

// EventProcessed records a successfully relayed event and its duration.
func (m *Metrics) EventProcessed(partition string, d time.Duration) {
	if m == nil {
		return
	}
	m.eventsProcessed.WithLabelValues(partition).Inc()
	m.processingSeconds.WithLabelValues(partition).Observe(d.Seconds())
}

// EventFailed records an event whose processing failed.
func (m *Metrics) EventFailed(partition string) {
	if m == nil {
		return
	}
	m.eventsFailed.WithLabelValues(partition).Inc()
}

// UpstreamError records an error reported by the upstream stream.
func (m *Metrics) UpstreamError(partition string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(partition).Inc()
}

// Broadcast records one broadcast call and its outcome.
func (m *Metrics) Broadcast(delivered, failed, skipped int) {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
	m.deliveries.Add(float64(delivered))
	m.sendFailures.Add(float64(failed))
	m.skipped.Add(float64(skipped))
}

// SetSubscribers sets the registered subscriber gauge.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

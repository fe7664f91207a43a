// Package metrics exposes session state as Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codevolt/internal/alert"
	"codevolt/internal/engine"
	"codevolt/internal/sensor"
)

const namespace = "codevolt"

// Collector holds the session metrics on a private registry.
type Collector struct {
	reg            *prometheus.Registry
	ticks          prometheus.Counter
	demoActive     prometheus.Gauge
	criticalCount  prometheus.Gauge
	alertLevel     prometheus.Gauge
	channelValue   *prometheus.GaugeVec
	channelStatus  *prometheus.GaugeVec
	events         *prometheus.CounterVec
	sosActivations prometheus.Counter
	sosCancels     prometheus.Counter
	incidents      prometheus.Counter
	lastTick       uint64
	dropped        sync.Once
}

// New registers the session metrics plus the Go runtime collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		reg: reg,
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Engine ticks observed by the session.",
		}),
		demoActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "demo_active",
			Help: "1 while the demo is running.",
		}),
		criticalCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "critical_channels",
			Help: "Number of channels in the critical state.",
		}),
		alertLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "alert_level",
			Help: "Alert level: 0 normal, 1 caution, 2 imminent, 3 emergency.",
		}),
		channelValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "channel_value",
			Help: "Current reading per sensor channel.",
		}, []string{"kind"}),
		channelStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "channel_status",
			Help: "Channel status: 0 normal, 1 warning, 2 critical.",
		}, []string{"kind"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Session events by type.",
		}, []string{"type"}),
		sosActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sos_activations_total",
			Help: "SOS flows started.",
		}),
		sosCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sos_cancellations_total",
			Help: "SOS flows canceled by the rider.",
		}),
		incidents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "incidents_reported_total",
			Help: "Incident reports sent to emergency services.",
		}),
	}
	reg.MustRegister(
		c.ticks, c.demoActive, c.criticalCount, c.alertLevel,
		c.channelValue, c.channelStatus, c.events,
		c.sosActivations, c.sosCancels, c.incidents,
		collectors.NewGoCollector(),
	)
	return c
}

// RegisterDropped exposes the engine's dropped snapshot count. Only the first
// call registers; later calls are ignored.
func (c *Collector) RegisterDropped(fn func() uint64) {
	c.dropped.Do(func() {
		c.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "subscriber_dropped_total",
			Help: "Snapshots discarded because a subscriber fell behind.",
		}, func() float64 { return float64(fn()) }))
	})
}

// Observe records a published snapshot and its assessment.
func (c *Collector) Observe(snap engine.Snapshot, a alert.Assessment) {
	if snap.Tick > c.lastTick {
		c.ticks.Add(float64(snap.Tick - c.lastTick))
	}
	c.lastTick = snap.Tick
	if snap.DemoActive {
		c.demoActive.Set(1)
	} else {
		c.demoActive.Set(0)
	}
	c.criticalCount.Set(float64(snap.CriticalCount))
	c.alertLevel.Set(float64(a.Level))
	for _, ch := range snap.Channels {
		if !ch.Kind.Numeric() {
			continue
		}
		c.channelValue.WithLabelValues(string(ch.Kind)).Set(ch.Value)
		c.channelStatus.WithLabelValues(string(ch.Kind)).Set(statusValue(ch.Status))
	}
}

// Event counts a session event.
func (c *Collector) Event(eventType string) { c.events.WithLabelValues(eventType).Inc() }

// SOSActivated counts a started SOS flow.
func (c *Collector) SOSActivated() { c.sosActivations.Inc() }

// SOSCanceled counts a canceled SOS flow.
func (c *Collector) SOSCanceled() { c.sosCancels.Inc() }

// IncidentReported counts a dispatched incident.
func (c *Collector) IncidentReported() { c.incidents.Inc() }

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

func statusValue(s sensor.Status) float64 {
	switch s {
	case sensor.StatusWarning:
		return 1
	case sensor.StatusCritical:
		return 2
	}
	return 0
}

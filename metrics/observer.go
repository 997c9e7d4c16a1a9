// Package metrics exports module manager activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skekre98/galaxy/core"
)

const namespace = "galaxy"

// OtherEvent is the event label for names outside the known set.
const OtherEvent = "other"

// Observer implements core.Observer with Prometheus collectors.
type Observer struct {
	states   *prometheus.GaugeVec
	initTime *prometheus.HistogramVec
	events   *prometheus.CounterVec
	tasks    *prometheus.CounterVec

	known map[string]struct{}
}

var _ core.Observer = (*Observer)(nil)

// New registers the observer's collectors with reg. Events are labelled
// by name only when listed in knownEvents; anything else counts as
// OtherEvent, so callers cannot grow the series set.
func New(reg prometheus.Registerer, knownEvents ...string) (*Observer, error) {
	o := &Observer{
		known: make(map[string]struct{}, len(knownEvents)),
		states: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_state",
			Help:      "Lifecycle state of each registered module (0 uninitialized, 1 initializing, 2 initialized, 3 failed).",
		}, []string{"module"}),
		initTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "module_initialize_seconds",
			Help:      "Time spent in successful module initialization.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"module"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_deliveries_total",
			Help:      "Event deliveries to modules by outcome.",
		}, []string{"event", "outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_processed_total",
			Help:      "Tasks handed to modules by kind and outcome.",
		}, []string{"module", "kind", "outcome"}),
	}
	for _, e := range knownEvents {
		o.known[e] = struct{}{}
	}
	for _, c := range []prometheus.Collector{o.states, o.initTime, o.events, o.tasks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) StateChanged(module string, state core.State) {
	o.states.WithLabelValues(module).Set(float64(state))
}

func (o *Observer) ModuleRemoved(module string) {
	o.states.DeleteLabelValues(module)
	o.initTime.DeleteLabelValues(module)
}

func (o *Observer) Initialized(module string, took time.Duration) {
	o.initTime.WithLabelValues(module).Observe(took.Seconds())
}

func (o *Observer) EventDispatched(event string, delivered, failed int) {
	if _, ok := o.known[event]; !ok {
		event = OtherEvent
	}
	o.events.WithLabelValues(event, "delivered").Add(float64(delivered))
	o.events.WithLabelValues(event, "failed").Add(float64(failed))
}

func (o *Observer) TaskProcessed(module string, kind core.Kind, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.tasks.WithLabelValues(module, kind.String(), outcome).Inc()
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the text exposition of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

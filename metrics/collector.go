package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/multierr"

	"github.com/wippyai/wasm-trampoline/linker"
)

const namespace = "trampoline"

// Collector records instantiations and mediated calls.
type Collector struct {
	instantiations *prometheus.CounterVec
	skipped        prometheus.Counter
	calls          *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	suspensions    *prometheus.CounterVec
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		instantiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instantiations_total",
			Help:      "Component instantiations by result.",
		}, []string{"result"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_imports_total",
			Help:      "Import slots left unbound by the import filter.",
		}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Mediated host calls by interface key and outcome.",
		}, []string{"key", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Host call latency, including time suspended.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"key"}),
		suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspensions_total",
			Help:      "Times a host call suspended on a pending operation.",
		}, []string{"key"}),
	}

	var err error
	for _, col := range c.collectors() {
		err = multierr.Append(err, reg.Register(col))
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.instantiations, c.skipped, c.calls, c.latency, c.suspensions}
}

// OnInstantiate implements linker.Observer.
func (c *Collector) OnInstantiate(ev linker.InstantiateEvent) {
	result := "ok"
	if ev.Err != nil {
		result = "error"
	}
	c.instantiations.WithLabelValues(result).Inc()
	c.skipped.Add(float64(ev.Skipped))
}

// OnCall implements linker.Observer.
func (c *Collector) OnCall(ev linker.CallEvent) {
	key := ev.Key.String()
	c.calls.WithLabelValues(key, ev.Outcome.String()).Inc()
	c.latency.WithLabelValues(key).Observe(ev.Duration.Seconds())
	if ev.Suspensions > 0 {
		c.suspensions.WithLabelValues(key).Add(float64(ev.Suspensions))
	}
}

// WriteText writes every metric family gathered from g in the Prometheus
// text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

var _ linker.Observer = (*Collector)(nil)

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records session events as Prometheus metrics.
type Collector struct {
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
	provisions  *prometheus.CounterVec
	provisionS  prometheus.Histogram
	published   *prometheus.CounterVec
	acked       *prometheus.CounterVec
	inbound     *prometheus.CounterVec
	anomalies   *prometheus.CounterVec

	mu      sync.Mutex
	current string
}

// New creates a Collector and registers it with reg.
func New(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions by source and target state.",
		}, []string{"from", "to"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_runs_total",
			Help:      "Provisioning runs by result.",
		}, []string{"result"}),
		provisionS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provisioning_duration_seconds",
			Help:      "Time from registration to assignment.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Publishes accepted by the transport, by kind.",
		}, []string{"kind"}),
		acked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_acks_total",
			Help:      "Publish completions by kind and result.",
		}, []string{"kind", "result"}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound messages by classification.",
		}, []string{"kind"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_anomalies_total",
			Help:      "Messages logged and dropped, by reason.",
		}, []string{"reason"}),
	}

	for _, col := range []prometheus.Collector{
		c.transitions, c.state, c.provisions, c.provisionS,
		c.published, c.acked, c.inbound, c.anomalies,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// StateChanged moves the state gauge and counts the transition.
func (c *Collector) StateChanged(from, to string) {
	c.transitions.WithLabelValues(from, to).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != "" {
		c.state.WithLabelValues(c.current).Set(0)
	} else if from != "" {
		c.state.WithLabelValues(from).Set(0)
	}
	c.state.WithLabelValues(to).Set(1)
	c.current = to
}

// Provisioned counts the run; successful runs feed the duration histogram.
func (c *Collector) Provisioned(elapsed time.Duration, err error) {
	c.provisions.WithLabelValues(result(err)).Inc()
	if err == nil {
		c.provisionS.Observe(elapsed.Seconds())
	}
}

// Published counts an accepted publish.
func (c *Collector) Published(kind string) {
	c.published.WithLabelValues(kind).Inc()
}

// Acknowledged counts a publish completion.
func (c *Collector) Acknowledged(kind string, err error) {
	c.acked.WithLabelValues(kind, result(err)).Inc()
}

// Inbound counts a classified inbound message.
func (c *Collector) Inbound(kind string) {
	c.inbound.WithLabelValues(kind).Inc()
}

// Anomaly counts a dropped message.
func (c *Collector) Anomaly(reason string) {
	c.anomalies.WithLabelValues(reason).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	operations *prometheus.CounterVec
	funds      *prometheus.CounterVec
	tokens     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podvest_operations_total",
			Help: "Pod and settings operations by outcome.",
		}, []string{"op", "result"}),
		funds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podvest_funds_moved_total",
			Help: "Funding currency moved in or out of pod vaults.",
		}, []string{"direction"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podvest_tokens_moved_total",
			Help: "Project tokens moved in or out of pod vaults.",
		}, []string{"direction"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podvest_operation_duration_seconds",
			Help:    "Operation latency including storage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.operations, m.funds, m.tokens, m.latency)
	return m
}

// Observe records one finished operation.
func (m *Metrics) Observe(op string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) FundsIn(v uint64)   { m.funds.WithLabelValues("in").Add(float64(v)) }
func (m *Metrics) FundsOut(v uint64)  { m.funds.WithLabelValues("out").Add(float64(v)) }
func (m *Metrics) TokensIn(v uint64)  { m.tokens.WithLabelValues("in").Add(float64(v)) }
func (m *Metrics) TokensOut(v uint64) { m.tokens.WithLabelValues("out").Add(float64(v)) }

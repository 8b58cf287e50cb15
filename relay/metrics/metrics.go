// Package metrics exposes relay counters in the Prometheus format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/m3rciful/proxyrelay/relay/submission"
	"github.com/m3rciful/proxyrelay/relay/validate"
)

const namespace = "proxyrelay"

// Metrics holds the relay collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	started    prometheus.Counter
	published  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	rejections *prometheus.CounterVec
	denied     *prometheus.CounterVec
}

// New registers the relay counters plus the Go, process and build info
// collectors. openSubmissions, when set, backs a gauge.
func New(openSubmissions func() int) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_started_total",
			Help:      "Submissions opened by users.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_published_total",
			Help:      "Submissions delivered to the broadcast channel.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Channel sends that failed.",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "User input rejected at a dialogue step.",
		}, []string{"step"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Actions refused by the access policy or the sponsor gate.",
		}, []string{"reason"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
		m.started,
		m.published,
		m.failures,
		m.rejections,
		m.denied,
	)
	if openSubmissions != nil {
		m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_submissions",
			Help:      "Submissions currently in progress.",
		}, func() float64 { return float64(openSubmissions()) }))
	}
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// SubmissionStarted counts a new submission.
func (m *Metrics) SubmissionStarted() { m.started.Inc() }

// Published counts a delivered post.
func (m *Metrics) Published(kind validate.Kind) {
	m.published.WithLabelValues(kind.String()).Inc()
}

// PublishFailed counts a failed channel send.
func (m *Metrics) PublishFailed(kind validate.Kind) {
	m.failures.WithLabelValues(kind.String()).Inc()
}

// Rejected counts rejected input at step.
func (m *Metrics) Rejected(step submission.Step) {
	m.rejections.WithLabelValues(string(step)).Inc()
}

// Denied counts an access denial.
func (m *Metrics) Denied(reason string) {
	m.denied.WithLabelValues(reason).Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AcceptanceMetrics records the outcome of accept attempts.
type AcceptanceMetrics struct {
	outcomes *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewAcceptanceMetrics registers the acceptance metrics on the provided registerer.
func NewAcceptanceMetrics(reg prometheus.Registerer) *AcceptanceMetrics {
	if reg == nil {
		return &AcceptanceMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offer_accept_total",
		Help: "Accept attempts by outcome.",
	}, []string{"outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "offer_accept_duration_seconds",
		Help:    "Duration of accept attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(outcomes, latency)
	return &AcceptanceMetrics{outcomes: outcomes, latency: latency}
}

func (m *AcceptanceMetrics) Observe(outcome string, duration time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.latency.Observe(duration.Seconds())
}

// JobMetrics records metadata for periodic jobs such as the offer sweep.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	affected *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of periodic jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful periodic job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed periodic job executions.",
	}, []string{"job"})
	affected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_affected_records",
		Help: "Records changed by periodic jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, affected)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		affected: affected,
	}
}

func (c *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *JobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

func (c *JobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

func (c *JobMetrics) AddAffected(job string, n int) {
	if c == nil || c.affected == nil || n <= 0 {
		return
	}
	c.affected.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

// ChannelMetrics covers the negotiation channel.
type ChannelMetrics struct {
	messages  *prometheus.CounterVec
	evictions prometheus.Counter
}

func NewChannelMetrics(reg prometheus.Registerer) *ChannelMetrics {
	if reg == nil {
		return &ChannelMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_messages_total",
		Help: "Messages appended to conversations by type.",
	}, []string{"type"})
	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conversation_subscriber_evictions_total",
		Help: "Subscribers dropped because their send buffer was full.",
	})
	reg.MustRegister(messages, evictions)
	return &ChannelMetrics{messages: messages, evictions: evictions}
}

func (m *ChannelMetrics) IncMessage(messageType string) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(normalizeLabel(messageType)).Inc()
}

func (m *ChannelMetrics) IncEviction() {
	if m == nil || m.evictions == nil {
		return
	}
	m.evictions.Inc()
}

// SettlementMetrics counts ledger actions issued by the settlement trigger.
type SettlementMetrics struct {
	actions *prometheus.CounterVec
}

func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_actions_total",
		Help: "Settlement actions by trigger and ledger action.",
	}, []string{"trigger", "action"})
	reg.MustRegister(actions)
	return &SettlementMetrics{actions: actions}
}

func (m *SettlementMetrics) Inc(trigger, action string) {
	if m == nil || m.actions == nil {
		return
	}
	m.actions.WithLabelValues(normalizeLabel(trigger), normalizeLabel(action)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

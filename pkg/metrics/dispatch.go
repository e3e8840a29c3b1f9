package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records envelope rendering and per-channel delivery outcomes.
type DispatchMetrics struct {
	rendered    *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobRetries  *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	rendered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "envelopes_rendered_total",
		Help: "Envelopes rendered by event kind.",
	}, []string{"kind"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channel_deliveries_total",
		Help: "Channel delivery outcomes.",
	}, []string{"channel", "status"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_job_duration_seconds",
		Help:    "Duration of background dispatch jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	jobRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_job_retries_total",
		Help: "Background job retries by kind.",
	}, []string{"kind"})
	reg.MustRegister(rendered, deliveries, jobDuration, jobRetries)
	return &DispatchMetrics{
		rendered:    rendered,
		deliveries:  deliveries,
		jobDuration: jobDuration,
		jobRetries:  jobRetries,
	}
}

// IncRendered counts a rendered envelope for the given kind.
func (d *DispatchMetrics) IncRendered(kind string) {
	if d == nil || d.rendered == nil {
		return
	}
	d.rendered.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncDelivery counts a delivery outcome for the given channel.
func (d *DispatchMetrics) IncDelivery(channel, status string) {
	if d == nil || d.deliveries == nil {
		return
	}
	d.deliveries.WithLabelValues(normalizeLabel(channel), normalizeLabel(status)).Inc()
}

// ObserveJobDuration records how long a background job ran.
func (d *DispatchMetrics) ObserveJobDuration(kind string, duration time.Duration) {
	if d == nil || d.jobDuration == nil {
		return
	}
	d.jobDuration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncJobRetry counts a retry for the given job kind.
func (d *DispatchMetrics) IncJobRetry(kind string) {
	if d == nil || d.jobRetries == nil {
		return
	}
	d.jobRetries.WithLabelValues(normalizeLabel(kind)).Inc()
}

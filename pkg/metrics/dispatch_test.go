package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDispatchMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewDispatchMetrics(reg)

	metrics.IncRendered("new_follower")
	metrics.IncDelivery("mail", "sent")
	metrics.IncDelivery("mail", "failed")
	metrics.ObserveJobDuration("follow_notification", 120*time.Millisecond)
	metrics.IncJobRetry("mail_delivery")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "envelopes_rendered_total", "kind", "new_follower"); err != nil {
		t.Fatalf("fetch rendered: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rendered=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "channel_deliveries_total", "status", "failed"); err != nil {
		t.Fatalf("fetch deliveries: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "dispatch_job_duration_seconds", "kind", "follow_notification"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "dispatch_job_retries_total", "kind", "mail_delivery"); err != nil {
		t.Fatalf("fetch retries: %v", err)
	} else if got != 1 {
		t.Fatalf("expected retries=1, got %f", got)
	}
}

func TestDispatchMetricsNilRegisterer(t *testing.T) {
	metrics := NewDispatchMetrics(nil)
	metrics.IncRendered("new_like")
	metrics.IncDelivery("persisted", "sent")
	metrics.ObserveJobDuration("automated_message", time.Second)
	metrics.IncJobRetry("automated_message")
}

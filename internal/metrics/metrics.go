package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IssueBatchDuration tracks the latency of full batch issuance calls
	IssueBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coupon_batch_issue_duration_seconds",
			Help:    "Duration of coupon batch issuance calls in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"status"}, // success, partial or failed
	)

	// CouponsIssued counts committed coupon rows per unit label
	CouponsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupons_issued_total",
			Help: "Number of coupon rows committed to the store",
		},
		[]string{"unit_label"},
	)
)

// RecordIssueBatchDuration records the duration of one issuance call
func RecordIssueBatchDuration(status string, duration float64) {
	IssueBatchDuration.WithLabelValues(status).Observe(duration)
}

// RecordCouponsIssued adds a committed chunk's size to the issued counter
func RecordCouponsIssued(unitLabel string, count int) {
	CouponsIssued.WithLabelValues(unitLabel).Add(float64(count))
}

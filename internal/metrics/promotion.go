package metrics

import "github.com/prometheus/client_golang/prometheus"

// Staging and promotion Prometheus metrics.
var (
	PromotionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexstager",
			Name:      "promotions_total",
			Help:      "Total number of promotions by outcome",
		},
		[]string{"outcome"}, // "promoted" / "failed" / "corrupt"
	)

	PromotionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "indexstager",
			Name:      "promotion_duration_seconds",
			Help:      "Promotion duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	StageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexstager",
			Name:      "stage_total",
			Help:      "Total number of staging alias updates by outcome",
		},
		[]string{"outcome"},
	)

	CleanupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "indexstager",
			Name:      "cleanup_failures_total",
			Help:      "Orphaned indexes that could not be deleted",
		},
	)

	CopyPollAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "indexstager",
			Name:      "copy_poll_attempts",
			Help:      "Listings needed before a copied index became visible",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		},
	)

	CopyPollExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "indexstager",
			Name:      "copy_poll_exhausted_total",
			Help:      "Copies still not listed when the poll budget ran out",
		},
	)
)

// Promotion outcomes.
const (
	OutcomePromoted = "promoted"
	OutcomeFailed   = "failed"
	OutcomeCorrupt  = "corrupt"
	OutcomeStaged   = "staged"
)

var promotionMetricsRegistered bool

// RegisterPromotionMetrics registers staging and promotion metrics. Must be called once from main.
func RegisterPromotionMetrics() {
	if promotionMetricsRegistered {
		return
	}
	prometheus.MustRegister(PromotionsTotal)
	prometheus.MustRegister(PromotionDuration)
	prometheus.MustRegister(StageTotal)
	prometheus.MustRegister(CleanupFailuresTotal)
	prometheus.MustRegister(CopyPollAttempts)
	prometheus.MustRegister(CopyPollExhaustedTotal)
	promotionMetricsRegistered = true
}

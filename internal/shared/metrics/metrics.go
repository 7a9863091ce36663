package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exported on /metrics.
var Registry = prometheus.NewRegistry()

var (
	ExtractionsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kyc_extractions_total",
		Help: "Extraction pipeline runs by method and outcome status.",
	}, []string{"method", "status"})

	OCRDuration = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "kyc_ocr_duration_seconds",
		Help:    "Duration of rasterize and recognize runs.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	AccessDecisionsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kyc_access_decisions_total",
		Help: "Access gateway decisions by operation, outcome and deny reason.",
	}, []string{"operation", "outcome", "reason"})

	DisclosureTransitionsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kyc_disclosure_transitions_total",
		Help: "Disclosure request transitions by target status and result.",
	}, []string{"to", "result"})

	AuditFailuresTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kyc_audit_failures_total",
		Help: "Audit events that could not be delivered to the sink.",
	}, []string{"reason"})

	ReExtractJobsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kyc_reextract_jobs_total",
		Help: "Queued re-extraction jobs by outcome.",
	}, []string{"outcome"})

	RateLimitRejectedTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "kyc_rate_limit_rejected_total",
		Help: "Requests rejected by the rate limiter.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

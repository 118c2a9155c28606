package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ListingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_created_total",
		Help: "Total number of listings submitted for moderation",
	})

	ListingsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_deleted_total",
		Help: "Total number of deleted listings",
	})

	ListingsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_purged_total",
		Help: "Total number of stale pending listings removed by the purge worker",
	})

	ListingValidationFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_validation_failed_total",
		Help: "Total number of rejected listing inputs",
	}, []string{"field"})

	ModerationDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_decisions_total",
		Help: "Total number of applied moderation decisions",
	}, []string{"decision"})

	ModerationFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_failed_total",
		Help: "Total number of moderation attempts that did not apply",
	}, []string{"reason"})

	ModerationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderation_latency_seconds",
		Help:    "Latency of moderation operations",
		Buckets: prometheus.DefBuckets,
	})

	NotificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Total number of notifications created",
	}, []string{"type"})

	AuditTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_transactions_total",
		Help: "Total number of audit transactions recorded",
	}, []string{"status"})

	SideEffectFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "side_effect_failures_total",
		Help: "Fire-and-forget side effects that failed",
	}, []string{"effect"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

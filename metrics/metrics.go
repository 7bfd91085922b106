// Package metrics exposes the prometheus collectors for the commission flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsProcessed counts webhook payments by outcome
	// (committed, duplicate, skipped, invalid, error).
	PaymentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "referrals",
		Name:      "payments_processed_total",
		Help:      "Payment webhooks processed, by outcome.",
	}, []string{"outcome"})

	RefundsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "referrals",
		Name:      "refunds_processed_total",
		Help:      "Refund webhooks processed, by outcome.",
	}, []string{"outcome"})

	// CommissionAmount sums committed shares per party, in currency units.
	CommissionAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "referrals",
		Name:      "commission_amount_total",
		Help:      "Committed commission amounts by party.",
	}, []string{"party"})

	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "referrals",
		Name:      "tasks_processed_total",
		Help:      "Post-commit tasks run by the worker pool, by kind and result.",
	}, []string{"kind", "result"})

	TasksEnqueueFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "referrals",
		Name:      "tasks_enqueue_failed_total",
		Help:      "Post-commit tasks that could not be enqueued.",
	}, []string{"kind"})

	TierUpgrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "referrals",
		Name:      "tier_upgrades_total",
		Help:      "Referrer tier upgrades, by new tier.",
	}, []string{"tier"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "referrals",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by route.",
	}, []string{"route"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "referrals",
		Name:      "job_runs_total",
		Help:      "Scheduled job executions, by job and result.",
	}, []string{"job", "result"})
)

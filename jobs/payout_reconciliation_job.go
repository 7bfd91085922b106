package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/metrics"
)

// PayoutRetrier re-queues failed payouts that still have attempts left.
type PayoutRetrier interface {
	RetryFailed(ctx context.Context) (int, error)
}

type PayoutReconciliationJob struct {
	payouts  PayoutRetrier
	interval time.Duration
}

func NewPayoutReconciliationJob(payouts PayoutRetrier, interval time.Duration) *PayoutReconciliationJob {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &PayoutReconciliationJob{payouts: payouts, interval: interval}
}

func (j *PayoutReconciliationJob) GetName() string {
	return "payout_reconciliation"
}

func (j *PayoutReconciliationJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *PayoutReconciliationJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	n, err := j.payouts.RetryFailed(ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(j.GetName(), "error").Inc()
		logger.Error("Payout reconciliation failed: %v", err)
		return
	}
	metrics.JobRuns.WithLabelValues(j.GetName(), "ok").Inc()
	if n > 0 {
		logger.Info("Payout reconciliation re-queued %d payouts", n)
	}
}

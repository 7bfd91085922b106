package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/metrics"
)

// CounterResetter zeroes the monthly aggregates.
type CounterResetter interface {
	ResetMonthlyCounters(ctx context.Context) (referrers, creators int64, err error)
}

// CounterResetJob starts a new earnings month at 00:00 UTC on the 1st.
type CounterResetJob struct {
	store   CounterResetter
	timeout time.Duration
}

func NewCounterResetJob(store CounterResetter) *CounterResetJob {
	return &CounterResetJob{store: store, timeout: 5 * time.Minute}
}

func (j *CounterResetJob) GetName() string {
	return "monthly_counter_reset"
}

func (j *CounterResetJob) GetSchedule() gocron.JobDefinition {
	return gocron.MonthlyJob(1,
		gocron.NewDaysOfTheMonth(1),
		gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0)),
	)
}

func (j *CounterResetJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	referrers, creators, err := j.store.ResetMonthlyCounters(ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(j.GetName(), "error").Inc()
		logger.Error("Monthly counter reset failed after %d referrers: %v", referrers, err)
		return
	}
	metrics.JobRuns.WithLabelValues(j.GetName(), "ok").Inc()
	logger.Info("Monthly counters reset: %d referrers, %d creators", referrers, creators)
}

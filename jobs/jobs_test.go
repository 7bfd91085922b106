package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSouheill/referral_backend/metrics"
)

type fakeResetter struct {
	calls int
	err   error
}

func (f *fakeResetter) ResetMonthlyCounters(ctx context.Context) (int64, int64, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, 0, errors.New("no deadline")
	}
	return 12, 3, f.err
}

type fakeRetrier struct {
	calls atomic.Int32
}

func (f *fakeRetrier) RetryFailed(context.Context) (int, error) {
	f.calls.Add(1)
	return 1, nil
}

func TestCounterResetJob(t *testing.T) {
	store := &fakeResetter{}
	job := NewCounterResetJob(store)
	assert.Equal(t, "monthly_counter_reset", job.GetName())
	assert.NotNil(t, job.GetSchedule())

	before := testutil.ToFloat64(metrics.JobRuns.WithLabelValues(job.GetName(), "ok"))
	job.Execute()
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobRuns.WithLabelValues(job.GetName(), "ok")))

	store.err = errors.New("mongo down")
	before = testutil.ToFloat64(metrics.JobRuns.WithLabelValues(job.GetName(), "error"))
	job.Execute()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobRuns.WithLabelValues(job.GetName(), "error")))
}

func TestManagerRunsReconciliation(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	retrier := &fakeRetrier{}
	require.NoError(t, m.Register(NewPayoutReconciliationJob(retrier, 20*time.Millisecond)))
	require.NoError(t, m.Register(NewCounterResetJob(&fakeResetter{})))

	m.Start()
	defer m.Stop()

	assert.Eventually(t, func() bool { return retrier.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestPayoutReconciliationDefaultInterval(t *testing.T) {
	job := NewPayoutReconciliationJob(&fakeRetrier{}, 0)
	assert.Equal(t, 15*time.Minute, job.interval)
}

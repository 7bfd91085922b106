package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSouheill/referral_backend/models"
)

type fakePayoutClient struct {
	requests []models.PayoutTransferRequest
	err      error
}

func (c *fakePayoutClient) Transfer(_ context.Context, req models.PayoutTransferRequest) (string, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return "", c.err
	}
	return "tr_" + req.IdempotenceKey, nil
}

func committedCommission(t *testing.T, f *paymentFixture) *models.Commission {
	t.Helper()
	res, err := f.svc.ProcessPayment(context.Background(), initialPayment("pay_1", 10000))
	require.NoError(t, err)
	return res.Commission
}

func TestPayoutPaysMemberShare(t *testing.T) {
	f := newPaymentFixture(t, 0)
	c := committedCommission(t, f)
	client := &fakePayoutClient{}
	queue := &recordingQueue{}
	svc := NewPayoutService(f.store, client, queue, "usd", 5)

	require.NoError(t, svc.Pay(context.Background(), c.ID))

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "10.00", req.Amount)
	assert.Equal(t, "acct_user_ref", req.DestinationID)
	assert.Equal(t, "commission-"+c.ID.Hex(), req.IdempotenceKey)

	stored, err := f.store.FindCommissionByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPaid, stored.PayoutStatus)
	assert.Equal(t, 1, stored.PayoutAttempts)
	assert.Equal(t, []TaskKind{TaskNotifyPayoutSent}, queue.kinds())

	// Paying again is a no-op.
	require.NoError(t, svc.Pay(context.Background(), c.ID))
	assert.Len(t, client.requests, 1)
}

func TestPayoutNoticeQueuedAfterWorkerStops(t *testing.T) {
	f := newPaymentFixture(t, 0)
	c := committedCommission(t, f)
	queue := NewMemoryQueue(10)
	svc := NewPayoutService(f.store, &fakePayoutClient{}, queue, "usd", 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Pay(ctx, c.ID))

	require.Equal(t, 1, queue.Len())
	task, err := queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TaskNotifyPayoutSent, task.Kind)
}

func TestPayoutWithoutAccountIsSkipped(t *testing.T) {
	f := newPaymentFixture(t, 0)
	f.store.referrers[f.referrer.ID].PayoutAccountID = ""
	c := committedCommission(t, f)
	client := &fakePayoutClient{}
	svc := NewPayoutService(f.store, client, &recordingQueue{}, "usd", 5)

	require.NoError(t, svc.Pay(context.Background(), c.ID))
	assert.Empty(t, client.requests)

	stored, err := f.store.FindCommissionByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusSkipped, stored.PayoutStatus)
}

func TestPayoutFailureIsRetriedByReconciliation(t *testing.T) {
	f := newPaymentFixture(t, 0)
	c := committedCommission(t, f)
	client := &fakePayoutClient{err: errors.New("insufficient balance")}
	queue := &recordingQueue{}
	svc := NewPayoutService(f.store, client, queue, "usd", 2)

	assert.Error(t, svc.Pay(context.Background(), c.ID))
	stored, _ := f.store.FindCommissionByID(context.Background(), c.ID)
	assert.Equal(t, models.PayoutStatusFailed, stored.PayoutStatus)
	assert.Equal(t, "insufficient balance", stored.PayoutError)

	n, err := svc.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, queue.ofKind(TaskPayoutTransfer), 1)

	assert.Error(t, svc.Pay(context.Background(), c.ID))
	n, err = svc.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "attempts exhausted")
}

func TestReconciliationRecoversLostPayoutTask(t *testing.T) {
	f := newPaymentFixture(t, 0)
	f.queue.err = ErrQueueFull
	c := committedCommission(t, f)
	require.Empty(t, f.queue.ofKind(TaskPayoutTransfer))

	ctx := context.Background()
	client := &fakePayoutClient{}
	queue := &recordingQueue{}
	svc := NewPayoutService(f.store, client, queue, "usd", 5)

	n, err := svc.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "task may still be in flight")

	svc.now = func() time.Time { return time.Now().Add(PendingPayoutGrace + time.Minute) }
	n, err = svc.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks := queue.ofKind(TaskPayoutTransfer)
	require.Len(t, tasks, 1)
	require.NoError(t, svc.HandlePayoutTask(ctx, tasks[0]))
	require.Len(t, client.requests, 1)
	assert.Equal(t, "commission-"+c.ID.Hex(), client.requests[0].IdempotenceKey)

	stored, err := f.store.FindCommissionByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPaid, stored.PayoutStatus)

	n, err = svc.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPayoutAfterPartialRefund(t *testing.T) {
	f := newPaymentFixture(t, 0)
	c := committedCommission(t, f)
	_, err := f.svc.ProcessRefund(context.Background(), RefundEvent{ExternalRefundID: "ref_1", ExternalPaymentID: "pay_1", AmountCents: 4000})
	require.NoError(t, err)

	client := &fakePayoutClient{}
	svc := NewPayoutService(f.store, client, &recordingQueue{}, "usd", 5)
	require.NoError(t, svc.Pay(context.Background(), c.ID))
	require.Len(t, client.requests, 1)
	assert.Equal(t, "6.00", client.requests[0].Amount)
}

func TestHTTPPayoutClient(t *testing.T) {
	var got models.PayoutTransferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "commission-1", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		if got.Amount == "0.01" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": false,
				"code":   "amount_too_small",
				"dialog": map[string]interface{}{"message": "Minimum transfer is 1.00"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data":   map[string]interface{}{"id": "tr_123"},
		})
	}))
	defer srv.Close()

	client := NewHTTPPayoutClient(srv.URL+"/v1", "secret", 5*time.Second, false)

	id, err := client.Transfer(context.Background(), models.PayoutTransferRequest{
		Amount: "10.00", Currency: "usd", DestinationID: "acct_1", IdempotenceKey: "commission-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_123", id)
	assert.Equal(t, "acct_1", got.DestinationID)

	_, err = client.Transfer(context.Background(), models.PayoutTransferRequest{
		Amount: "0.01", Currency: "usd", DestinationID: "acct_1", IdempotenceKey: "commission-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount_too_small - Minimum transfer is 1.00")
}

func TestNewHTTPPayoutClientDisabled(t *testing.T) {
	assert.Nil(t, NewHTTPPayoutClient("", "key", time.Second, false))
}

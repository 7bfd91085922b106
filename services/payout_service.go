package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
)

// HTTPPayoutClient talks to the payment platform's transfer API. Every
// response uses the {status, code, dialog, data} envelope.
type HTTPPayoutClient struct {
	baseURL string
	apiKey  string
	debug   bool
	http    *http.Client
}

// NewHTTPPayoutClient returns nil when no API URL is configured; payouts
// then stay pending.
func NewHTTPPayoutClient(baseURL, apiKey string, timeout time.Duration, debug bool) *HTTPPayoutClient {
	if baseURL == "" {
		logger.Warn("PAYOUT_API_URL not configured, payouts disabled")
		return nil
	}
	if apiKey == "" {
		logger.Warn("PAYOUT_API_KEY is missing, transfer requests will be rejected")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPPayoutClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		debug:   debug,
		http:    &http.Client{Timeout: timeout},
	}
}

// Transfer creates a transfer and returns the platform's transfer id. The
// idempotence key makes a retried transfer a no-op on the platform side.
func (c *HTTPPayoutClient) Transfer(ctx context.Context, req models.PayoutTransferRequest) (string, error) {
	resp, err := c.makeRequest(ctx, http.MethodPost, "transfers", req.IdempotenceKey, req)
	if err != nil {
		return "", err
	}
	id, _ := resp.Data["id"].(string)
	if id == "" {
		return "", errors.New("payout API returned no transfer id")
	}
	return id, nil
}

func (c *HTTPPayoutClient) makeRequest(ctx context.Context, method, endpoint, idempotencyKey string, payload interface{}) (*models.PayoutResponse, error) {
	url := c.baseURL + endpoint

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	if c.debug {
		logger.Debug("Payout API request: %s %s", method, url)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if c.debug {
		logger.Debug("Payout API response (%d): %s", resp.StatusCode, string(respBody))
	}

	var out models.PayoutResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	if !out.Status {
		return &out, fmt.Errorf("payout API error: %s", describeFailure(out))
	}
	return &out, nil
}

func describeFailure(resp models.PayoutResponse) string {
	code := "unknown"
	if resp.Code != nil {
		if s, ok := resp.Code.(string); ok {
			code = s
		} else {
			code = fmt.Sprintf("%v", resp.Code)
		}
	}
	switch d := resp.Dialog.(type) {
	case map[string]interface{}:
		if msg, ok := d["message"].(string); ok && msg != "" {
			return code + " - " + msg
		}
	case string:
		if d != "" {
			return code + " - " + d
		}
	}
	return code
}

// PendingPayoutGrace is how long a commission may wait for its payout task
// before reconciliation assumes the task was lost.
const PendingPayoutGrace = 10 * time.Minute

// PayoutService transfers member shares once a commission is committed.
type PayoutService struct {
	store        PayoutStore
	client       PayoutClient
	queue        TaskQueue
	currency     string
	maxAttempts  int
	pendingGrace time.Duration
	now          func() time.Time
}

func NewPayoutService(store PayoutStore, client PayoutClient, queue TaskQueue, currency string, maxAttempts int) *PayoutService {
	return &PayoutService{
		store:        store,
		client:       client,
		queue:        queue,
		currency:     currency,
		maxAttempts:  maxAttempts,
		pendingGrace: PendingPayoutGrace,
		now:          time.Now,
	}
}

func (s *PayoutService) Register(p *WorkerPool) {
	p.Handle(TaskPayoutTransfer, s.HandlePayoutTask)
}

func (s *PayoutService) HandlePayoutTask(ctx context.Context, task Task) error {
	var p PayoutTask
	if err := task.Decode(&p); err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(p.CommissionID)
	if err != nil {
		return fmt.Errorf("commission id %q: %w", p.CommissionID, err)
	}
	return s.Pay(ctx, id)
}

// Pay transfers what is left of a commission's member share after refunds.
// The outcome is recorded on the commission: paid, skipped when there is
// nothing to pay or no payout account, failed otherwise.
func (s *PayoutService) Pay(ctx context.Context, commissionID primitive.ObjectID) error {
	if s.client == nil {
		return nil
	}

	c, err := s.store.FindCommissionByID(ctx, commissionID)
	if err != nil {
		return fmt.Errorf("load commission %s: %w", commissionID.Hex(), err)
	}
	if c.PayoutStatus == models.PayoutStatusPaid || c.PayoutStatus == models.PayoutStatusSkipped {
		return nil
	}

	amount := c.MemberShare.Sub(c.RefundedMember.Decimal)
	if !amount.IsPositive() {
		return s.record(ctx, c.ID, repositories.PayoutResult{Status: models.PayoutStatusSkipped, Error: "nothing to pay"})
	}

	r, err := s.store.FindReferrerByID(ctx, c.ReferrerID)
	if err != nil {
		return fmt.Errorf("load referrer %s: %w", c.ReferrerID.Hex(), err)
	}
	if r.PayoutAccountID == "" {
		return s.record(ctx, c.ID, repositories.PayoutResult{Status: models.PayoutStatusSkipped, Error: "no payout account"})
	}

	currency := c.Currency
	if currency == "" {
		currency = s.currency
	}
	transferID, err := s.client.Transfer(ctx, models.PayoutTransferRequest{
		Amount:         amount.StringFixed(2),
		Currency:       currency,
		DestinationID:  r.PayoutAccountID,
		IdempotenceKey: "commission-" + c.ID.Hex(),
		Notes:          "Referral commission " + c.ExternalPaymentID,
	})
	if err != nil {
		if recErr := s.record(ctx, c.ID, repositories.PayoutResult{Status: models.PayoutStatusFailed, Error: err.Error()}); recErr != nil {
			logger.Error("Failed to record payout failure for commission %s: %v", c.ID.Hex(), recErr)
		}
		return fmt.Errorf("transfer for commission %s: %w", c.ID.Hex(), err)
	}

	if err := s.record(ctx, c.ID, repositories.PayoutResult{Status: models.PayoutStatusPaid, TransferID: transferID}); err != nil {
		return err
	}
	logger.Info("Paid %s to referrer %s for commission %s (transfer %s)",
		amount.StringFixed(2), r.ID.Hex(), c.ID.Hex(), transferID)

	ctx, cancel := detach(ctx)
	defer cancel()
	enqueue(ctx, s.queue, TaskNotifyPayoutSent, CommissionNotice{
		CommissionID: c.ID.Hex(),
		ReferrerID:   r.ID.Hex(),
	})
	return nil
}

func (s *PayoutService) record(ctx context.Context, id primitive.ObjectID, result repositories.PayoutResult) error {
	if err := s.store.RecordPayout(ctx, id, result); err != nil {
		return fmt.Errorf("record payout for commission %s: %w", id.Hex(), err)
	}
	return nil
}

// RetryFailed re-queues payouts that failed fewer than maxAttempts times and
// payouts left pending longer than the grace period. Transfers carry the
// commission id as idempotency key, so a task that was only late is safe to
// queue twice.
func (s *PayoutService) RetryFailed(ctx context.Context) (int, error) {
	if s.client == nil {
		return 0, nil
	}
	pendingBefore := s.now().UTC().Add(-s.pendingGrace)
	retry, err := s.store.ListPayoutsToRetry(ctx, s.maxAttempts, pendingBefore, 500)
	if err != nil {
		return 0, err
	}
	for _, c := range retry {
		enqueue(ctx, s.queue, TaskPayoutTransfer, PayoutTask{CommissionID: c.ID.Hex()})
	}
	return len(retry), nil
}

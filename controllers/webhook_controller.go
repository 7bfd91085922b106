package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/services"
)

const maxWebhookBody = 1 << 20

// CommissionProcessor turns payment platform events into commissions.
type CommissionProcessor interface {
	ProcessPayment(ctx context.Context, ev services.PaymentEvent) (*services.PaymentResult, error)
	ProcessRefund(ctx context.Context, ev services.RefundEvent) (*services.RefundResult, error)
}

type WebhookController struct {
	processor CommissionProcessor
}

func NewWebhookController(processor CommissionProcessor) *WebhookController {
	return &WebhookController{processor: processor}
}

// HandlePaymentWebhook answers 200 for committed, duplicate and skipped
// events, 400 for malformed ones and 500 when the commit failed so the
// platform retries.
func (wc *WebhookController) HandlePaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Could not read request body",
		})
	}

	var envelope models.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return badRequest(c, "Invalid webhook body")
	}
	if err := c.Validate(&envelope); err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	switch envelope.Action {
	case models.WebhookActionPaymentSucceeded:
		var data models.PaymentData
		if err := wc.decode(c, envelope.Data, &data); err != nil {
			return badRequest(c, err.Error())
		}
		res, err := wc.processor.ProcessPayment(ctx, services.PaymentEventFromWebhook(data))
		if err != nil {
			return wc.failure(c, data.ID, err)
		}
		return c.JSON(http.StatusOK, paymentResponse(res))

	case models.WebhookActionRefundCreated:
		var data models.RefundData
		if err := wc.decode(c, envelope.Data, &data); err != nil {
			return badRequest(c, err.Error())
		}
		res, err := wc.processor.ProcessRefund(ctx, services.RefundEventFromWebhook(data))
		if err != nil {
			return wc.failure(c, data.PaymentID, err)
		}
		return c.JSON(http.StatusOK, refundResponse(res))

	default:
		logger.Debug("Ignoring webhook action %q", envelope.Action)
		return c.JSON(http.StatusOK, models.WebhookResult{OK: true, Skipped: true, Reason: "unsupported_action"})
	}
}

func (wc *WebhookController) decode(c echo.Context, raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("invalid webhook data")
	}
	return c.Validate(v)
}

func (wc *WebhookController) failure(c echo.Context, paymentID string, err error) error {
	if commission.IsValidationError(err) {
		return badRequest(c, err.Error())
	}
	if errors.Is(err, repositories.ErrConflict) {
		logger.Warn("Concurrent update on payment %s, asking the platform to retry", paymentID)
	} else {
		logger.Error("Webhook for payment %s failed: %v", paymentID, err)
	}
	return c.JSON(http.StatusInternalServerError, models.Response{
		Status:  http.StatusInternalServerError,
		Message: "Failed to process webhook",
	})
}

func paymentResponse(res *services.PaymentResult) models.WebhookResult {
	switch res.Outcome {
	case services.OutcomeDuplicate:
		out := models.WebhookResult{OK: true, Message: "already processed"}
		if res.Commission != nil {
			out.CommissionID = res.Commission.ID.Hex()
		}
		return out
	case services.OutcomeSkipped:
		return models.WebhookResult{OK: true, Skipped: true, Reason: res.Reason}
	}
	return models.WebhookResult{OK: true, CommissionID: res.Commission.ID.Hex()}
}

func refundResponse(res *services.RefundResult) models.WebhookResult {
	switch res.Outcome {
	case services.OutcomeDuplicate:
		out := models.WebhookResult{OK: true, Message: "already processed"}
		if res.Reversal != nil {
			out.ReversalID = res.Reversal.ID.Hex()
		}
		return out
	case services.OutcomeSkipped:
		return models.WebhookResult{OK: true, Skipped: true, Reason: res.Reason}
	}
	out := models.WebhookResult{OK: true, ReversalID: res.Reversal.ID.Hex()}
	if res.Commission != nil {
		out.CommissionID = res.Commission.ID.Hex()
	}
	return out
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, models.Response{
		Status:  http.StatusBadRequest,
		Message: msg,
	})
}

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSouheill/referral_backend/controllers"
	"github.com/HSouheill/referral_backend/middleware"
	"github.com/HSouheill/referral_backend/services"
)

type skipAll struct{}

func (skipAll) ProcessPayment(context.Context, services.PaymentEvent) (*services.PaymentResult, error) {
	return &services.PaymentResult{Outcome: services.OutcomeSkipped, Reason: services.ReasonNoReferrer}, nil
}

func (skipAll) ProcessRefund(context.Context, services.RefundEvent) (*services.RefundResult, error) {
	return &services.RefundResult{Outcome: services.OutcomeSkipped, Reason: services.ReasonUnknownPayment}, nil
}

const secret = "routes-secret"

func newRouter(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.Validator = controllers.NewCustomValidator()
	SetupRoutes(e, Controllers{
		Webhook:  controllers.NewWebhookController(skipAll{}),
		Tiers:    controllers.NewTiersController(),
		Creator:  controllers.NewCreatorController(nil),
		Referrer: controllers.NewReferrerController(nil, nil, nil, nil),
		Health: controllers.NewHealthController(map[string]controllers.Pinger{
			"database": controllers.PingerFunc(func(context.Context) error { return nil }),
		}),
	}, Options{
		JWTSecret:   secret,
		RateLimiter: middleware.NewRateLimiter(0.001, 2),
	})
	return e
}

func do(e *echo.Echo, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, "192.0.2.1")
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	e := newRouter(t)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/tiers", "", "").Code)

	rec := do(e, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWebhookRouteIsRateLimited(t *testing.T) {
	e := newRouter(t)
	body := `{"action":"refund.created","data":{"id":"re_1","payment_id":"pay_1","amount":100}}`

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/webhooks/payments", body, "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/webhooks/payments", body, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/api/webhooks/payments", body, "").Code)
}

func TestAuthenticatedRoutes(t *testing.T) {
	e := newRouter(t)
	member, err := middleware.GenerateJWT(secret, "user_1", "u@example.com", middleware.UserTypeMember, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/referrers/me/stats", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/api/creators", "{}", "").Code)

	rec := do(e, http.MethodPut, "/api/creators/referrers/64b000000000000000000001/custom-rate", `{"rate":0.2}`, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access denied")

	rec = do(e, http.MethodPost, "/api/creators", `{"externalCompanyId":"biz"}`, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	creator, err := middleware.GenerateJWT(secret, "owner_1", "o@example.com", middleware.UserTypeCreator, time.Hour)
	require.NoError(t, err)
	rec = do(e, http.MethodPut, "/api/creators/referrers/not-an-id/custom-rate", `{"rate":0.2}`, creator)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reaches the controller once authorized")
}

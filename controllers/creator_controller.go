package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/middleware"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/services"
)

// ProgramManager runs creator onboarding, membership and custom rates.
type ProgramManager interface {
	OnboardCreator(ctx context.Context, ownerUserID string, req models.OnboardCreatorRequest) (*models.Creator, error)
	JoinProgram(ctx context.Context, creatorID primitive.ObjectID, userID string, req models.JoinProgramRequest) (*models.Referrer, error)
	SetCustomRate(ctx context.Context, ownerUserID string, referrerID primitive.ObjectID, rate decimal.Decimal) (*models.Referrer, error)
	ClearCustomRate(ctx context.Context, ownerUserID string, referrerID primitive.ObjectID) (*models.Referrer, error)
	Stats(ctx context.Context, userID string) ([]models.ReferrerStats, error)
	StatsFor(r *models.Referrer) models.ReferrerStats
	ReferrerForQRCode(ctx context.Context, userID string, creatorID *primitive.ObjectID) (*models.Referrer, error)
	ReferralLink(r *models.Referrer) string
	UpdateFCMToken(ctx context.Context, userID, token string) error
}

type CreatorController struct {
	programs ProgramManager
}

func NewCreatorController(programs ProgramManager) *CreatorController {
	return &CreatorController{programs: programs}
}

// OnboardCreator registers the caller's community with the referral program.
func (cc *CreatorController) OnboardCreator(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req models.OnboardCreatorRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	creator, err := cc.programs.OnboardCreator(c.Request().Context(), userID, req)
	if err != nil {
		if commission.IsValidationError(err) {
			return badRequest(c, err.Error())
		}
		if errors.Is(err, repositories.ErrDuplicate) {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Community is already onboarded",
			})
		}
		return serverError(c, "Failed to onboard creator", err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Creator onboarded successfully",
		Data:    creator,
	})
}

// JoinProgram enrolls the caller as a referrer of the creator in :id.
func (cc *CreatorController) JoinProgram(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	creatorID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid creator ID")
	}

	var req models.JoinProgramRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	r, err := cc.programs.JoinProgram(c.Request().Context(), creatorID, userID, req)
	if err != nil {
		if commission.IsValidationError(err) {
			return badRequest(c, err.Error())
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound(c, "Creator not found")
		}
		return serverError(c, "Failed to join referral program", err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Joined referral program",
		Data:    cc.programs.StatsFor(r),
	})
}

// SetCustomRate gives one of the caller's referrers a custom member rate.
func (cc *CreatorController) SetCustomRate(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	referrerID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid referrer ID")
	}

	var req models.CustomRateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	r, err := cc.programs.SetCustomRate(c.Request().Context(), userID, referrerID, decimal.NewFromFloat(req.Rate))
	if err != nil {
		return cc.rateError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Custom commission rate set",
		Data:    cc.programs.StatsFor(r),
	})
}

// ClearCustomRate returns a referrer to their tier rate.
func (cc *CreatorController) ClearCustomRate(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	referrerID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid referrer ID")
	}

	r, err := cc.programs.ClearCustomRate(c.Request().Context(), userID, referrerID)
	if err != nil {
		return cc.rateError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Custom commission rate removed",
		Data:    cc.programs.StatsFor(r),
	})
}

func (cc *CreatorController) rateError(c echo.Context, err error) error {
	switch {
	case commission.IsValidationError(err):
		return badRequest(c, err.Error())
	case errors.Is(err, services.ErrForbidden):
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Referrer does not belong to your community",
		})
	case errors.Is(err, repositories.ErrNotFound):
		return notFound(c, "Referrer not found")
	}
	return serverError(c, "Failed to update commission rate", err)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.Response{
		Status:  http.StatusUnauthorized,
		Message: "Invalid user ID in token",
	})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, models.Response{
		Status:  http.StatusNotFound,
		Message: msg,
	})
}

func serverError(c echo.Context, msg string, err error) error {
	logger.Error("%s: %v", msg, err)
	return c.JSON(http.StatusInternalServerError, models.Response{
		Status:  http.StatusInternalServerError,
		Message: msg,
	})
}

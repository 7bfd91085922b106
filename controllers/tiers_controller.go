package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/HSouheill/referral_backend/commission"
	"github.com/HSouheill/referral_backend/models"
)

// TiersController exposes the tier table and split previews. It holds no
// state; pricing is pure.
type TiersController struct{}

func NewTiersController() *TiersController {
	return &TiersController{}
}

// ListTiers returns the commission tier table, lowest tier first.
func (tc *TiersController) ListTiers(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission tiers",
		Data: map[string]interface{}{
			"tiers":         commission.Tiers(),
			"milestones":    commission.Milestones(),
			"minCustomRate": commission.MinCustomRate,
			"maxCustomRate": commission.MaxCustomRate,
		},
	})
}

// PreviewSplit prices a hypothetical sale for a referrer with the given
// referral count and optional custom rate.
func (tc *TiersController) PreviewSplit(c echo.Context) error {
	var req models.SplitPreviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	sale, err := commission.SaleAmountFromFloat(req.SaleAmount)
	if err != nil {
		return badRequest(c, err.Error())
	}
	snap := commission.Snapshot{TotalReferred: req.TotalReferred}

	var split commission.Split
	if req.CustomRate != nil {
		rate := decimal.NewFromFloat(*req.CustomRate)
		split, err = commission.CalculateCustomSplit(sale, rate, commission.DefaultCustomRateParams())
		if err == nil {
			split.AppliedTier = commission.ResolveTier(snap.TotalReferred).Name
		}
	} else {
		split, err = commission.Calculate(sale, snap)
	}
	if err != nil {
		if commission.IsValidationError(err) {
			return badRequest(c, err.Error())
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to calculate split",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Split preview",
		Data:    split,
	})
}

package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/referral_backend/middleware"
	"github.com/HSouheill/referral_backend/models"
	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/utils"
	"github.com/HSouheill/referral_backend/websocket"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationInbox is the stored side of in-app notifications.
type NotificationInbox interface {
	ListNotifications(ctx context.Context, userID string, limit int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID string, id primitive.ObjectID) error
}

type ReferrerController struct {
	programs ProgramManager
	inbox    NotificationInbox
	hub      *websocket.Hub
	upgrader *gorillaws.Upgrader
}

func NewReferrerController(programs ProgramManager, inbox NotificationInbox, hub *websocket.Hub, upgrader *gorillaws.Upgrader) *ReferrerController {
	return &ReferrerController{
		programs: programs,
		inbox:    inbox,
		hub:      hub,
		upgrader: upgrader,
	}
}

// GetStats returns the caller's tier, rate and earnings in every program they
// refer for.
func (rc *ReferrerController) GetStats(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	stats, err := rc.programs.Stats(c.Request().Context(), userID)
	if err != nil {
		return serverError(c, "Failed to load referral stats", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral stats retrieved successfully",
		Data:    stats,
	})
}

// GetQRCode renders the caller's referral link as a QR code. The optional
// creatorId query picks the program; format=png returns the image itself.
func (rc *ReferrerController) GetQRCode(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var creatorID *primitive.ObjectID
	if raw := c.QueryParam("creatorId"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return badRequest(c, "Invalid creator ID")
		}
		creatorID = &id
	}

	r, err := rc.programs.ReferrerForQRCode(c.Request().Context(), userID, creatorID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound(c, "You have not joined a referral program")
		}
		return serverError(c, "Failed to load referrer", err)
	}
	link := rc.programs.ReferralLink(r)

	if c.QueryParam("format") == "png" {
		png, err := utils.ReferralQRCodePNG(link, utils.QRCodeSize)
		if err != nil {
			return serverError(c, "Failed to generate QR code", err)
		}
		return c.Blob(http.StatusOK, "image/png", png)
	}

	dataURL, err := utils.ReferralQRCodeDataURL(link, utils.QRCodeSize)
	if err != nil {
		return serverError(c, "Failed to generate QR code", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "QR code generated successfully",
		Data: map[string]string{
			"referralCode": r.ReferralCode,
			"referralLink": link,
			"qrCode":       dataURL,
		},
	})
}

// ListNotifications returns the caller's latest notifications.
func (rc *ReferrerController) ListNotifications(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	limit := defaultNotificationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest(c, "Invalid limit")
		}
		if n > maxNotificationLimit {
			n = maxNotificationLimit
		}
		limit = n
	}

	notes, err := rc.inbox.ListNotifications(c.Request().Context(), userID, int64(limit))
	if err != nil {
		return serverError(c, "Failed to load notifications", err)
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Notifications retrieved successfully",
		Data:    notes,
	})
}

func (rc *ReferrerController) MarkNotificationRead(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid notification ID")
	}

	if err := rc.inbox.MarkNotificationRead(c.Request().Context(), userID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound(c, "Notification not found")
		}
		return serverError(c, "Failed to update notification", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Notification marked as read",
	})
}

// FCMTokenUpdateRequest represents the request body for updating FCM tokens
type FCMTokenUpdateRequest struct {
	FCMToken string `json:"fcmToken" validate:"required"`
}

// UpdateFCMToken registers the caller's device for push notifications.
func (rc *ReferrerController) UpdateFCMToken(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req FCMTokenUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := rc.programs.UpdateFCMToken(c.Request().Context(), userID, req.FCMToken); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound(c, "You have not joined a referral program")
		}
		return serverError(c, "Failed to update FCM token", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "FCM token updated successfully",
	})
}

// Connect upgrades the caller's dashboard to a websocket that receives
// in-app notifications as they are delivered.
func (rc *ReferrerController) Connect(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	return websocket.HandleWebSocket(c, rc.hub, rc.upgrader, userID)
}

package services

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"github.com/HSouheill/referral_backend/logger"
)

const pushChannelID = "referrals_fcm_channel"

// FCMSender delivers push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(ctx context.Context, app *firebase.App) (*FCMSender, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize messaging client: %w", err)
	}
	return &FCMSender{client: client}, nil
}

func (s *FCMSender) Push(ctx context.Context, token, title, body string, data map[string]string) error {
	payload := map[string]string{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range data {
		payload[k] = v
	}

	badge := 1
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: payload,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: pushChannelID,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound:    "default",
					Badge:    &badge,
					Category: "REFERRAL",
				},
			},
		},
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send FCM notification: %w", err)
	}
	logger.Debug("FCM notification sent: %s", id)
	return nil
}

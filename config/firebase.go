package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/HSouheill/referral_backend/logger"
)

// InitFirebase initializes the Firebase Admin SDK used for push
// notifications. It returns nil, without error, when no credentials are
// configured; push delivery is then disabled.
func InitFirebase(cfg *AppConfig) (*firebase.App, error) {
	ctx := context.Background()

	var opt option.ClientOption
	switch {
	case cfg.FirebaseCredentialsBase64 != "":
		logger.Info("Using Firebase credentials from base64 environment variable")
		decoded, err := base64.StdEncoding.DecodeString(cfg.FirebaseCredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
	case cfg.FirebaseCredentialsFile != "":
		if _, err := os.Stat(cfg.FirebaseCredentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials file: %w", err)
		}
		logger.Info("Using Firebase credentials file: %s", cfg.FirebaseCredentialsFile)
		opt = option.WithCredentialsFile(cfg.FirebaseCredentialsFile)
	default:
		logger.Warn("Firebase credentials not configured, push notifications disabled")
		return nil, nil
	}

	var fbConfig *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opt)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	return app, nil
}

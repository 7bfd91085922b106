package services

import (
	"errors"
	"fmt"

	"github.com/HSouheill/referral_backend/commission"
)

var (
	ErrInvalidEvent = errors.New("invalid webhook event")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

func invalidEvent(format string, args ...interface{}) error {
	return &commission.ValidationError{Err: ErrInvalidEvent, Detail: fmt.Sprintf(format, args...)}
}

func invalidInput(format string, args ...interface{}) error {
	return &commission.ValidationError{Err: ErrInvalidInput, Detail: fmt.Sprintf(format, args...)}
}

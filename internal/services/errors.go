package services

import (
	"errors"

	"github.com/rentdesk/payments/internal/processor"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	ErrTenantNotPayable          = errors.New("tenant cannot accept payments")
	ErrNotConfigured             = errors.New("merchant account not configured")
	ErrInconsistentConfiguration = errors.New("merchant configuration is inconsistent")

	ErrInvalidSignature     = processor.ErrInvalidSignature
	ErrMisconfiguredWebhook = processor.ErrMisconfiguredWebhook
	ErrMalformedEvent       = processor.ErrMalformedEvent

	ErrNoAuthorization            = errors.New("no authorized deposit for order")
	ErrAlreadyCaptured            = errors.New("deposit already captured")
	ErrAlreadyReleased            = errors.New("deposit already released")
	ErrAmountExceedsAuthorization = errors.New("amount exceeds authorized deposit")
	ErrDepositFailed              = errors.New("deposit authorization failed")
	ErrDepositExists              = errors.New("deposit already exists for order")
	ErrCaptureFailed              = errors.New("deposit capture failed")
	ErrReleaseFailed              = errors.New("deposit release failed")
)

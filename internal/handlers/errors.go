package handlers

import (
	"errors"
	"net/http"

	"github.com/rentdesk/payments/internal/processor"
	"github.com/rentdesk/payments/internal/services"
)

// mapDomainError picks the status and client message for a service error.
func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidAmount):
		return http.StatusBadRequest, "Amount must be greater than zero"
	case errors.Is(err, services.ErrInvalidSignature), errors.Is(err, services.ErrMalformedEvent):
		return http.StatusBadRequest, "Invalid webhook payload"
	case errors.Is(err, services.ErrTenantNotPayable):
		return http.StatusPaymentRequired, "Tenant cannot accept payments"
	case errors.Is(err, services.ErrAlreadyCaptured):
		return http.StatusConflict, "Deposit already captured"
	case errors.Is(err, services.ErrAlreadyReleased):
		return http.StatusConflict, "Deposit already released"
	case errors.Is(err, services.ErrDepositFailed):
		return http.StatusConflict, "Deposit authorization failed"
	case errors.Is(err, services.ErrDepositExists):
		return http.StatusConflict, "A deposit already exists for this order"
	case errors.Is(err, services.ErrNoAuthorization):
		return http.StatusConflict, "No authorized deposit for this order"
	case errors.Is(err, services.ErrAmountExceedsAuthorization):
		return http.StatusUnprocessableEntity, "Amount exceeds the authorized deposit"
	case errors.Is(err, services.ErrMisconfiguredWebhook):
		return http.StatusServiceUnavailable, "Webhook endpoint not configured"
	case processor.IsTimeout(err):
		return http.StatusGatewayTimeout, "Payment processor timed out"
	}

	var procErr *processor.Error
	if errors.As(err, &procErr) {
		return http.StatusBadGateway, procErr.Message
	}
	if errors.Is(err, services.ErrCaptureFailed) || errors.Is(err, services.ErrReleaseFailed) {
		return http.StatusBadGateway, "Payment processor rejected the request"
	}
	return http.StatusInternalServerError, "An Internal Error Occurred"
}

func sendDomainError(w http.ResponseWriter, err error) {
	status, message := mapDomainError(err)
	services.SendErrorResponse(w, message, status, nil)
}

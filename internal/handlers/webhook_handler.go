package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/rentdesk/payments/internal/services"
)

const maxWebhookBytes = 1_048_576

type WebhookHandler struct {
	reconciler *services.Reconciler
}

func NewWebhookHandler(reconciler *services.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandleWebhook receives processor events
// @Summary Processor webhook
// @Description Verify and apply a processor event. The raw body is signed and must not be re-encoded.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Processor signature"
// @Success 200 {object} object{received=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /payments/webhook [post]
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	event, err := h.reconciler.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidSignature), errors.Is(err, services.ErrMalformedEvent):
			log.Printf("[WEBHOOK] Rejected payload: %v", err)
			services.SendErrorResponse(w, "Invalid webhook payload", http.StatusBadRequest, nil)
		case errors.Is(err, services.ErrMisconfiguredWebhook):
			log.Printf("[WEBHOOK] Webhook secret is not configured")
			services.SendErrorResponse(w, "Webhook endpoint not configured", http.StatusServiceUnavailable, nil)
		default:
			services.SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		}
		return
	}

	log.Printf("[WEBHOOK] Processed %s (%s)", event.ID, event.RawType)
	services.SendJSON(w, http.StatusOK, map[string]bool{"received": true})
}

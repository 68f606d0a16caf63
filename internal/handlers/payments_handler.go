package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	mW "github.com/rentdesk/payments/internal/middleware"
	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/services"
	"github.com/rentdesk/payments/internal/storage"
)

type PaymentsHandler struct {
	charges     *services.ChargeService
	deposits    *services.DepositService
	ledger      storage.LedgerStore
	frontendURL *url.URL
	validator   *services.ValidationHelper
}

func NewPaymentsHandler(charges *services.ChargeService, deposits *services.DepositService, ledger storage.LedgerStore, frontendBaseURL string) (*PaymentsHandler, error) {
	base, err := url.Parse(frontendBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid frontend base url %q", frontendBaseURL)
	}
	return &PaymentsHandler{
		charges:     charges,
		deposits:    deposits,
		ledger:      ledger,
		frontendURL: base,
		validator:   services.NewValidationHelper(),
	}, nil
}

type CreateChargeRequest struct {
	TenantID      string          `json:"tenantId" validate:"required"`
	CustomerID    string          `json:"customerId" validate:"required"`
	CustomerEmail string          `json:"customerEmail" validate:"omitempty,email"`
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	Description   string          `json:"description" validate:"max=500"`
	SuccessPath   string          `json:"successPath" validate:"required"`
	CancelPath    string          `json:"cancelPath" validate:"required"`
	Locale        string          `json:"locale"`
	Mode          string          `json:"mode" validate:"omitempty,oneof=checkout payment_intent"`
	Deposit       bool            `json:"deposit"`
	IncludeQR     bool            `json:"includeQr"`
}

type CaptureDepositRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason" validate:"max=500"`
}

type ReleaseDepositRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CreateCharge starts a checkout session or a direct payment for an order
// @Summary Create charge
// @Description Create a hosted checkout session or a direct payment intent on the tenant's sub-account
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateChargeRequest true "Charge request"
// @Success 201 {object} services.ChargeResult
// @Success 200 {object} services.ChargeResult "Order already paid"
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Failure 504 {object} services.ErrorResponse
// @Router /payments/charges [post]
func (h *PaymentsHandler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req CreateChargeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	claims, _ := mW.ClaimsFromContext(r.Context())
	if !claims.CanActFor(req.TenantID) {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	successURL, err := h.resolveRedirect(req.SuccessPath)
	if err != nil {
		services.SendErrorResponse(w, "Invalid success path", http.StatusBadRequest, nil)
		return
	}
	cancelURL, err := h.resolveRedirect(req.CancelPath)
	if err != nil {
		services.SendErrorResponse(w, "Invalid cancel path", http.StatusBadRequest, nil)
		return
	}

	result, err := h.charges.CreateCharge(r.Context(), services.ChargeInput{
		TenantID:      req.TenantID,
		CustomerID:    req.CustomerID,
		CustomerEmail: req.CustomerEmail,
		OrderID:       req.OrderID,
		OrderNumber:   req.OrderNumber,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   req.Description,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		Locale:        req.Locale,
		Mode:          services.ChargeMode(req.Mode),
		Deposit:       req.Deposit,
		IncludeQR:     req.IncludeQR,
	})
	if err != nil {
		log.Printf("[PAYMENTS] Charge for tenant %s order %s failed: %v", req.TenantID, req.OrderID, err)
		sendDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyPaid {
		status = http.StatusOK
	}
	services.SendJSON(w, status, result)
}

// CaptureDeposit captures an authorized security deposit
// @Summary Capture deposit
// @Description Capture all or part of the authorized security deposit of an order
// @Tags Deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body CaptureDepositRequest false "Capture request"
// @Success 200 {object} models.SecurityDeposit
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /payments/deposits/{orderId}/capture [post]
func (h *PaymentsHandler) CaptureDeposit(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req CaptureDepositRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !h.authorizeOrder(w, r, orderID) {
		return
	}

	deposit, err := h.deposits.Capture(r.Context(), orderID, req.Amount, req.Reason)
	if err != nil {
		log.Printf("[PAYMENTS] Capture for order %s failed: %v", orderID, err)
		sendDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, deposit)
}

// ReleaseDeposit releases an authorized security deposit
// @Summary Release deposit
// @Description Cancel the security deposit hold of an order without capturing it
// @Tags Deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body ReleaseDepositRequest false "Release request"
// @Success 200 {object} models.SecurityDeposit
// @Failure 409 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /payments/deposits/{orderId}/release [post]
func (h *PaymentsHandler) ReleaseDeposit(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req ReleaseDepositRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !h.authorizeOrder(w, r, orderID) {
		return
	}

	deposit, err := h.deposits.Release(r.Context(), orderID, req.Reason)
	if err != nil {
		log.Printf("[PAYMENTS] Release for order %s failed: %v", orderID, err)
		sendDomainError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, deposit)
}

// GetDeposit returns the security deposit of an order
// @Summary Get deposit
// @Tags Deposits
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} models.SecurityDeposit
// @Failure 404 {object} services.ErrorResponse
// @Router /payments/deposits/{orderId} [get]
func (h *PaymentsHandler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	deposit, err := h.deposits.Get(r.Context(), orderID)
	if errors.Is(err, services.ErrNoAuthorization) {
		services.SendErrorResponse(w, "Deposit not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		sendDomainError(w, err)
		return
	}

	claims, _ := mW.ClaimsFromContext(r.Context())
	if !claims.CanActFor(deposit.TenantID) {
		services.SendErrorResponse(w, "Deposit not found", http.StatusNotFound, nil)
		return
	}
	services.SendJSON(w, http.StatusOK, deposit)
}

// GetLedger lists ledger entries of a charge intent
// @Summary Get ledger entries
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param chargeIntentId path string true "Charge intent ID"
// @Success 200 {array} models.LedgerEntry
// @Failure 404 {object} services.ErrorResponse
// @Router /payments/ledger/{chargeIntentId} [get]
func (h *PaymentsHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	chargeIntentID := chi.URLParam(r, "chargeIntentId")

	entries, err := h.ledger.ListByChargeIntent(r.Context(), chargeIntentID)
	if err != nil {
		log.Printf("[PAYMENTS] Ledger lookup for %s failed: %v", chargeIntentID, err)
		services.SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	claims, _ := mW.ClaimsFromContext(r.Context())
	visible := make([]models.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if claims.CanActFor(e.TenantID) {
			visible = append(visible, e)
		}
	}
	if len(visible) == 0 {
		services.SendErrorResponse(w, "Charge not found", http.StatusNotFound, nil)
		return
	}
	services.SendJSON(w, http.StatusOK, visible)
}

// authorizeOrder checks the caller may act for the tenant holding the order's deposit.
func (h *PaymentsHandler) authorizeOrder(w http.ResponseWriter, r *http.Request, orderID string) bool {
	deposit, err := h.deposits.Get(r.Context(), orderID)
	if err != nil {
		sendDomainError(w, err)
		return false
	}
	claims, _ := mW.ClaimsFromContext(r.Context())
	if !claims.CanActFor(deposit.TenantID) {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return false
	}
	return true
}

// resolveRedirect joins a storefront path onto the configured frontend URL.
// Absolute URLs are only accepted on the frontend's own host.
func (h *PaymentsHandler) resolveRedirect(path string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	resolved := h.frontendURL.ResolveReference(ref)
	if resolved.Host != h.frontendURL.Host || resolved.Scheme != h.frontendURL.Scheme {
		return "", fmt.Errorf("redirect %q leaves %s", path, h.frontendURL.Host)
	}
	return resolved.String(), nil
}

// decodeJSON reads a single JSON object into dst. With optional set an empty
// body is accepted and leaves dst zero.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

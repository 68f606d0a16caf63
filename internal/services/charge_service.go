package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentdesk/payments/internal/audit"
	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/money"
	"github.com/rentdesk/payments/internal/processor"
	"github.com/rentdesk/payments/internal/storage"
)

type ChargeMode string

const (
	ModeCheckout      ChargeMode = "checkout"
	ModePaymentIntent ChargeMode = "payment_intent"
)

type ChargeInput struct {
	TenantID      string
	CustomerID    string
	CustomerEmail string
	OrderID       string
	OrderNumber   string
	Amount        decimal.Decimal
	Currency      string
	Description   string
	SuccessURL    string
	CancelURL     string
	Locale        string
	Mode          ChargeMode
	Deposit       bool
	IncludeQR     bool
}

type ChargeResult struct {
	RedirectURL string `json:"redirectUrl,omitempty"`
	// ChargeIntentID may hold a checkout session id (cs_...) in checkout
	// mode. It identifies the charge to the caller only; no ledger row is
	// keyed by it.
	ChargeIntentID string `json:"chargeIntentId,omitempty"`
	ClientSecret   string `json:"clientSecret,omitempty"`
	AlreadyPaid    bool   `json:"alreadyPaid"`
	QRImage        string `json:"qrImage,omitempty"`
}

// ChargeService builds outbound charges against a tenant's sub-account.
type ChargeService struct {
	directory *MerchantDirectory
	ledger    storage.LedgerStore
	deposits  storage.DepositStore
	gateway   processor.Gateway
	qr        *QRService
	audit     *audit.AuditLogger
}

func NewChargeService(directory *MerchantDirectory, ledger storage.LedgerStore, deposits storage.DepositStore, gateway processor.Gateway, qr *QRService) *ChargeService {
	return &ChargeService{
		directory: directory,
		ledger:    ledger,
		deposits:  deposits,
		gateway:   gateway,
		qr:        qr,
		audit:     audit.NewAuditLogger(),
	}
}

func (s *ChargeService) CreateCharge(ctx context.Context, in ChargeInput) (*ChargeResult, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if in.Mode == "" {
		in.Mode = ModeCheckout
	}
	if in.Mode != ModeCheckout && in.Mode != ModePaymentIntent {
		return nil, fmt.Errorf("%w: unsupported mode %q", ErrValidation, in.Mode)
	}
	if in.TenantID == "" || in.CustomerID == "" {
		return nil, fmt.Errorf("%w: tenant and customer are required", ErrValidation)
	}
	if in.Deposit && in.OrderID == "" {
		return nil, fmt.Errorf("%w: a deposit requires an order", ErrValidation)
	}

	merchant, err := s.directory.Resolve(ctx, in.TenantID)
	if err != nil {
		log.Printf("[CHARGE] Tenant %s is not payable: %v", in.TenantID, err)
		return nil, fmt.Errorf("%w: %w", ErrTenantNotPayable, err)
	}

	if in.OrderID != "" {
		if result, err := s.checkExisting(ctx, in); result != nil || err != nil {
			return result, err
		}
	}

	currency := money.NormalizeCurrency(in.Currency)
	if currency == "" {
		currency = money.NormalizeCurrency(merchant.Currency)
	}
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrValidation)
	}
	locale := in.Locale
	if locale == "" {
		locale = merchant.Locale
	}

	amountMinor := money.ToMinor(in.Amount, currency)
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	chargeKind := models.ChargeKindCheckout
	switch {
	case in.Deposit:
		chargeKind = models.ChargeKindDeposit
	case in.Mode == ModePaymentIntent:
		chargeKind = models.ChargeKindFullPayment
	}

	description := in.Description
	if description == "" && in.OrderNumber != "" {
		description = "Order " + in.OrderNumber
	}

	req := processor.ChargeRequest{
		Credentials:   processor.Credentials{APIKey: merchant.APIKey, AccountID: merchant.AccountID},
		AmountMinor:   amountMinor,
		FeeMinor:      money.PlatformFee(amountMinor, merchant.FeePercent),
		Currency:      currency,
		Description:   description,
		SuccessURL:    in.SuccessURL,
		CancelURL:     in.CancelURL,
		Locale:        locale,
		CustomerEmail: in.CustomerEmail,
		ManualCapture: in.Deposit,
		Metadata: map[string]string{
			models.MetaTenantID:    in.TenantID,
			models.MetaCustomerID:  in.CustomerID,
			models.MetaOrderID:     in.OrderID,
			models.MetaOrderNumber: in.OrderNumber,
			models.MetaChargeKind:  chargeKind,
		},
	}
	if in.OrderID != "" {
		req.IdempotencyKey = fmt.Sprintf("%s:%s:%s:%s:%d", in.Mode, chargeKind, in.TenantID, in.OrderID, amountMinor)
	}

	var handle *processor.ChargeHandle
	if in.Mode == ModeCheckout {
		handle, err = s.gateway.CreateCheckoutSession(ctx, req)
	} else {
		handle, err = s.gateway.CreatePaymentIntent(ctx, req)
	}
	if err != nil {
		log.Printf("[CHARGE] Processor rejected %s charge for tenant %s: %v", in.Mode, in.TenantID, err)
		return nil, err
	}

	if in.Mode == ModePaymentIntent {
		s.recordPending(ctx, in, handle.ChargeIntentID, currency)
	}

	result := &ChargeResult{
		RedirectURL:    handle.RedirectURL,
		ChargeIntentID: handle.ChargeIntentID,
		ClientSecret:   handle.ClientSecret,
	}

	if in.IncludeQR && s.qr != nil && handle.RedirectURL != "" {
		image, err := s.qr.Render(handle.RedirectURL)
		if err != nil {
			log.Printf("[CHARGE] QR rendering failed for %s: %v", handle.ChargeIntentID, err)
		} else {
			result.QRImage = image
		}
	}

	s.audit.LogOperation(handle.ChargeIntentID, in.TenantID, "CHARGE_CREATED", fmt.Sprintf("%s %s", in.Mode, money.Format(in.Amount, currency)))
	return result, nil
}

// checkExisting short-circuits charges for orders that are already paid, and
// refuses a second deposit hold for the same order.
func (s *ChargeService) checkExisting(ctx context.Context, in ChargeInput) (*ChargeResult, error) {
	if in.Deposit {
		_, err := s.deposits.GetByOrder(ctx, in.OrderID)
		if err == nil {
			return nil, ErrDepositExists
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to check deposit for order %s: %w", in.OrderID, err)
		}
		return nil, nil
	}

	paid, err := s.ledger.FindSucceededByOrder(ctx, in.OrderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check payment state for order %s: %w", in.OrderID, err)
	}
	return &ChargeResult{ChargeIntentID: paid.ChargeIntentID, AlreadyPaid: true}, nil
}

// recordPending writes the pending row a direct charge is known by: a ledger
// entry for a payment, a deposit record for a hold. The charge already exists
// at the processor, so failures here are only logged and the webhook path
// creates the row from the charge's metadata.
func (s *ChargeService) recordPending(ctx context.Context, in ChargeInput, chargeIntentID, currency string) {
	now := time.Now().UTC()

	if in.Deposit {
		deposit := &models.SecurityDeposit{
			ID:               uuid.NewString(),
			OrderID:          in.OrderID,
			ChargeIntentID:   chargeIntentID,
			TenantID:         in.TenantID,
			Currency:         currency,
			AuthorizedAmount: in.Amount,
			CapturedAmount:   decimal.Zero,
			Status:           models.DepositPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.deposits.Create(ctx, deposit); err != nil && !errors.Is(err, storage.ErrDuplicate) {
			log.Printf("[CHARGE] Failed to record pending deposit for order %s: %v", in.OrderID, err)
		}
		return
	}

	entry := &models.LedgerEntry{
		ID:             uuid.NewString(),
		ChargeIntentID: chargeIntentID,
		TenantID:       in.TenantID,
		CustomerID:     in.CustomerID,
		OrderID:        in.OrderID,
		Amount:         in.Amount,
		Currency:       currency,
		Kind:           models.KindFullPayment,
		Status:         models.LedgerPending,
		CreatedAt:      now,
	}
	if err := s.ledger.Create(ctx, entry); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		log.Printf("[CHARGE] Failed to record pending entry for %s: %v", chargeIntentID, err)
	}
}

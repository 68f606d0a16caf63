package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentdesk/payments/internal/audit"
	"github.com/rentdesk/payments/internal/events"
	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/money"
	"github.com/rentdesk/payments/internal/processor"
	"github.com/rentdesk/payments/internal/storage"
)

// DepositService captures or releases authorized security deposit holds.
type DepositService struct {
	deposits  storage.DepositStore
	directory *MerchantDirectory
	gateway   processor.Gateway
	locker    *KeyedLocker
	publisher events.Publisher
	audit     *audit.AuditLogger
	now       func() time.Time
}

func NewDepositService(deposits storage.DepositStore, directory *MerchantDirectory, gateway processor.Gateway, locker *KeyedLocker, publisher events.Publisher) *DepositService {
	return &DepositService{
		deposits:  deposits,
		directory: directory,
		gateway:   gateway,
		locker:    locker,
		publisher: publisher,
		audit:     audit.NewAuditLogger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *DepositService) Get(ctx context.Context, orderID string) (*models.SecurityDeposit, error) {
	deposit, err := s.deposits.GetByOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoAuthorization
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deposit for order %s: %w", orderID, err)
	}
	return deposit, nil
}

// Capture collects amount (default: everything authorized) from the hold.
func (s *DepositService) Capture(ctx context.Context, orderID string, amount *decimal.Decimal, reason string) (*models.SecurityDeposit, error) {
	deposit, unlock, err := s.lockAuthorized(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	captureAmount := deposit.AuthorizedAmount
	if amount != nil {
		if !amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		if amount.GreaterThan(deposit.AuthorizedAmount) {
			return nil, fmt.Errorf("%w: %s requested, %s authorized", ErrAmountExceedsAuthorization,
				money.Format(*amount, deposit.Currency), money.Format(deposit.AuthorizedAmount, deposit.Currency))
		}
		captureAmount = *amount
	}

	merchant, err := s.directory.Resolve(ctx, deposit.TenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTenantNotPayable, err)
	}

	creds := processor.Credentials{APIKey: merchant.APIKey, AccountID: merchant.AccountID}
	result, err := s.gateway.CapturePaymentIntent(ctx, creds, deposit.ChargeIntentID, money.ToMinor(captureAmount, deposit.Currency))
	if err != nil {
		log.Printf("[DEPOSIT] Capture failed for order %s: %v", orderID, err)
		s.audit.LogError(deposit.ChargeIntentID, deposit.TenantID, err)
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	captured := captureAmount
	if result.AmountReceived > 0 {
		captured = money.FromMinor(result.AmountReceived, deposit.Currency)
	}
	if captured.GreaterThan(deposit.AuthorizedAmount) {
		captured = deposit.AuthorizedAmount
	}

	now := s.now()
	from := deposit.Status
	deposit.Status = models.DepositCaptured
	deposit.CapturedAmount = captured
	deposit.CapturedAt = &now
	deposit.Reason = reason
	deposit.UpdatedAt = now
	if result.ChargeID != "" {
		deposit.OperationChargeID = result.ChargeID
	}

	if err := s.deposits.Update(ctx, deposit); err != nil {
		s.audit.LogError(deposit.ChargeIntentID, deposit.TenantID, err)
		return nil, fmt.Errorf("failed to record capture for order %s: %w", orderID, err)
	}
	s.audit.LogTransition("security_deposit", deposit.ChargeIntentID, deposit.TenantID, string(from), string(deposit.Status), "capture")

	s.publish(ctx, models.TopicDepositCaptured, depositCapturedEvent(deposit))
	return deposit, nil
}

// Release cancels the hold without collecting anything.
func (s *DepositService) Release(ctx context.Context, orderID, reason string) (*models.SecurityDeposit, error) {
	deposit, unlock, err := s.lockAuthorized(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	merchant, err := s.directory.Resolve(ctx, deposit.TenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTenantNotPayable, err)
	}

	creds := processor.Credentials{APIKey: merchant.APIKey, AccountID: merchant.AccountID}
	if _, err := s.gateway.CancelPaymentIntent(ctx, creds, deposit.ChargeIntentID); err != nil {
		log.Printf("[DEPOSIT] Release failed for order %s: %v", orderID, err)
		s.audit.LogError(deposit.ChargeIntentID, deposit.TenantID, err)
		return nil, fmt.Errorf("%w: %w", ErrReleaseFailed, err)
	}

	now := s.now()
	from := deposit.Status
	deposit.Status = models.DepositReleased
	deposit.ReleasedAt = &now
	deposit.Reason = reason
	deposit.UpdatedAt = now

	if err := s.deposits.Update(ctx, deposit); err != nil {
		s.audit.LogError(deposit.ChargeIntentID, deposit.TenantID, err)
		return nil, fmt.Errorf("failed to record release for order %s: %w", orderID, err)
	}
	s.audit.LogTransition("security_deposit", deposit.ChargeIntentID, deposit.TenantID, string(from), string(deposit.Status), "release")

	s.publish(ctx, models.TopicDepositReleased, depositReleasedEvent(deposit))
	return deposit, nil
}

// lockAuthorized takes the charge-intent lock and re-reads the deposit under
// it, so a concurrent capture, release or webhook is observed before acting.
func (s *DepositService) lockAuthorized(ctx context.Context, orderID string) (*models.SecurityDeposit, func(), error) {
	deposit, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	unlock, err := s.locker.Lock(ctx, deposit.ChargeIntentID)
	if err != nil {
		return nil, nil, err
	}

	deposit, err = s.Get(ctx, orderID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if err := checkAuthorized(deposit); err != nil {
		unlock()
		return nil, nil, err
	}
	return deposit, unlock, nil
}

func checkAuthorized(deposit *models.SecurityDeposit) error {
	switch deposit.Status {
	case models.DepositAuthorized:
		return nil
	case models.DepositCaptured:
		return ErrAlreadyCaptured
	case models.DepositReleased:
		return ErrAlreadyReleased
	case models.DepositFailed:
		return ErrDepositFailed
	default:
		return ErrNoAuthorization
	}
}

func (s *DepositService) publish(ctx context.Context, topic string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		log.Printf("[DEPOSIT] Failed to publish %s: %v", topic, err)
	}
}

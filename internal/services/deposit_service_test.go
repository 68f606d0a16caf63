package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/processor"
)

func seedDeposit(t *testing.T, f *fixture, status models.DepositStatus, authorized decimal.Decimal, currency string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.store.Deposits().Create(context.Background(), &models.SecurityDeposit{
		ID:               "dep-1",
		OrderID:          "order-1",
		ChargeIntentID:   "pi_dep",
		TenantID:         "tenant-1",
		Currency:         currency,
		AuthorizedAmount: authorized,
		CapturedAmount:   decimal.Zero,
		Status:           status,
		AuthorizedAt:     &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}))
}

func newDepositService(f *fixture) *DepositService {
	return NewDepositService(f.store.Deposits(), f.directory, f.gateway, f.locker, f.publisher)
}

func TestDepositService_CaptureThenRelease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedDeposit(t, f, models.DepositAuthorized, decimal.NewFromInt(200), "USD")
	s := newDepositService(f)

	f.gateway.On("CapturePaymentIntent", ctx, f.credentials("tenant-1"), "pi_dep", int64(15000)).
		Return(&processor.IntentResult{ChargeIntentID: "pi_dep", ChargeID: "ch_dep", Status: "succeeded", AmountReceived: 15000, Currency: "usd"}, nil)
	f.publisher.On("Publish", ctx, models.TopicDepositCaptured, mock.MatchedBy(func(e models.DepositCapturedEvent) bool {
		return e.OrderID == "order-1" && e.Amount.Equal(decimal.NewFromInt(150)) && e.Reason == "damaged bumper"
	})).Return(nil)

	amount := decimal.NewFromInt(150)
	deposit, err := s.Capture(ctx, "order-1", &amount, "damaged bumper")
	require.NoError(t, err)
	assert.Equal(t, models.DepositCaptured, deposit.Status)
	assert.True(t, deposit.CapturedAmount.Equal(decimal.NewFromInt(150)))
	assert.True(t, deposit.AuthorizedAmount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "ch_dep", deposit.OperationChargeID)

	_, err = s.Release(ctx, "order-1", "returned")
	assert.ErrorIs(t, err, ErrAlreadyCaptured)

	_, err = s.Capture(ctx, "order-1", nil, "again")
	assert.ErrorIs(t, err, ErrAlreadyCaptured)

	f.gateway.AssertNotCalled(t, "CancelPaymentIntent", mock.Anything, mock.Anything, mock.Anything)
	f.gateway.AssertNumberOfCalls(t, "CapturePaymentIntent", 1)
	f.publisher.AssertExpectations(t)
}

func TestDepositService_CaptureDefaultsToAuthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedDeposit(t, f, models.DepositAuthorized, decimal.NewFromInt(200), "USD")
	s := newDepositService(f)

	f.gateway.On("CapturePaymentIntent", ctx, f.credentials("tenant-1"), "pi_dep", int64(20000)).
		Return(&processor.IntentResult{ChargeIntentID: "pi_dep", AmountReceived: 20000}, nil)
	f.publisher.On("Publish", ctx, models.TopicDepositCaptured, mock.Anything).Return(nil)

	deposit, err := s.Capture(ctx, "order-1", nil, "")
	require.NoError(t, err)
	assert.True(t, deposit.CapturedAmount.Equal(decimal.NewFromInt(200)))
}

func TestDepositService_CaptureZeroDecimalCurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedDeposit(t, f, models.DepositAuthorized, decimal.NewFromInt(1000), "JPY")
	s := newDepositService(f)

	f.gateway.On("CapturePaymentIntent", ctx, f.credentials("tenant-1"), "pi_dep", int64(1000)).
		Return(&processor.IntentResult{ChargeIntentID: "pi_dep", AmountReceived: 1000, Currency: "jpy"}, nil)
	f.publisher.On("Publish", ctx, models.TopicDepositCaptured, mock.Anything).Return(nil)

	deposit, err := s.Capture(ctx, "order-1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", deposit.CapturedAmount.StringFixed(2))
}

func TestDepositService_CaptureRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("amount above authorization", func(t *testing.T) {
		f := newFixture(t)
		seedDeposit(t, f, models.DepositAuthorized, decimal.NewFromInt(200), "USD")

		amount := decimal.RequireFromString("200.01")
		_, err := newDepositService(f).Capture(ctx, "order-1", &amount, "")
		assert.ErrorIs(t, err, ErrAmountExceedsAuthorization)
		f.gateway.AssertNotCalled(t, "CapturePaymentIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		f := newFixture(t)
		seedDeposit(t, f, models.DepositAuthorized, decimal.NewFromInt(200), "USD")

		amount := decimal.Zero
		_, err := newDepositService(f).Capture(ctx, "order-1", &amount, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("no deposit", func(t *testing.T) {
		f := newFixture(t)

		_, err := newDepositService(f).Capture(ctx, "order-1", nil, "")
		assert.ErrorIs(t, err, ErrNoAuthorization)
	})

	t.Run("not yet authorized", func(t *testing.T) {
		f := newFixture(t)
		seedDeposit(t, f, models.DepositPending, decimal.NewFromInt(200), "USD")

		_, err := newDepositService(f).Capture(ctx, "order-1", nil, "")
		assert.ErrorIs(t, err, ErrNoAuthorization)
	})

	t.Run("failed authorization", func(t *testing.T) {
		f := newFixture(t)
		seedDeposit(t, f, models.DepositFailed, decimal.NewFromInt(200), "USD")

		_, err := newDepositService(f).Capture(ctx, "order-1", nil, "")
		assert.ErrorIs(t, err, ErrDepositFailed)
	})

	t.Run("processor error leaves deposit authorized", func(t *testing.T) {
		f := newFixture(t)
		seedDeposit(t, f, models.DepositAuthorized, decimal.NewFromInt(200), "USD")

		f.gateway.On("CapturePaymentIntent", ctx, mock.Anything, "pi_dep", int64(20000)).
			Return(nil, &processor.Error{Op: "payment_intent.capture", Message: "This PaymentIntent could not be captured", StatusCode: 400})

		_, err := newDepositService(f).Capture(ctx, "order-1", nil, "")
		assert.ErrorIs(t, err, ErrCaptureFailed)
		assert.Contains(t, err.Error(), "could not be captured")

		deposit, err := f.store.Deposits().GetByOrder(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, models.DepositAuthorized, deposit.Status)
		assert.True(t, deposit.CapturedAmount.IsZero())
	})
}

func TestDepositService_Release(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedDeposit(t, f, models.DepositAuthorized, decimal.NewFromInt(200), "USD")
	s := newDepositService(f)

	f.gateway.On("CancelPaymentIntent", ctx, f.credentials("tenant-1"), "pi_dep").
		Return(&processor.IntentResult{ChargeIntentID: "pi_dep", Status: "canceled"}, nil)
	f.publisher.On("Publish", ctx, models.TopicDepositReleased, mock.Anything).Return(nil)

	deposit, err := s.Release(ctx, "order-1", "vehicle returned")
	require.NoError(t, err)
	assert.Equal(t, models.DepositReleased, deposit.Status)
	assert.Equal(t, "vehicle returned", deposit.Reason)
	assert.NotNil(t, deposit.ReleasedAt)

	_, err = s.Capture(ctx, "order-1", nil, "")
	assert.ErrorIs(t, err, ErrAlreadyReleased)

	_, err = s.Release(ctx, "order-1", "again")
	assert.ErrorIs(t, err, ErrAlreadyReleased)
	f.gateway.AssertNumberOfCalls(t, "CancelPaymentIntent", 1)
}

func TestDepositService_ReleaseProcessorError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedDeposit(t, f, models.DepositAuthorized, decimal.NewFromInt(200), "USD")

	f.gateway.On("CancelPaymentIntent", ctx, mock.Anything, "pi_dep").
		Return(nil, &processor.Error{Op: "payment_intent.cancel", Message: "timeout", Retryable: true, Timeout: true})

	_, err := newDepositService(f).Release(ctx, "order-1", "")
	assert.ErrorIs(t, err, ErrReleaseFailed)
	assert.True(t, processor.IsTimeout(err))

	deposit, err := f.store.Deposits().GetByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.DepositAuthorized, deposit.Status)
}

func TestDepositService_CaptureBlockedForUnpayableTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedDeposit(t, f, models.DepositAuthorized, decimal.NewFromInt(200), "USD")

	account, err := f.store.GetAccount(ctx, "acc-tenant-1")
	require.NoError(t, err)
	account.ChargesEnabled = false
	f.store.PutAccount(*account)

	_, err = newDepositService(f).Capture(ctx, "order-1", nil, "")
	assert.ErrorIs(t, err, ErrTenantNotPayable)
	f.gateway.AssertNotCalled(t, "CapturePaymentIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

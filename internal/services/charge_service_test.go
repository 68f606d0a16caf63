package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/processor"
)

func newChargeService(f *fixture) *ChargeService {
	return NewChargeService(f.directory, f.store, f.store.Deposits(), f.gateway, NewQRService())
}

func checkoutInput() ChargeInput {
	return ChargeInput{
		TenantID:      "tenant-1",
		CustomerID:    "cust-1",
		CustomerEmail: "renter@example.com",
		OrderID:       "order-1",
		OrderNumber:   "R-1001",
		Amount:        decimal.RequireFromString("50.00"),
		Currency:      "usd",
		SuccessURL:    "https://shop.example.com/orders/R-1001?paid=1",
		CancelURL:     "https://shop.example.com/orders/R-1001",
		Mode:          ModeCheckout,
	}
}

func TestChargeService_CreateCharge_Checkout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newChargeService(f)

	f.gateway.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(req processor.ChargeRequest) bool {
		return req.AmountMinor == 5000 &&
			req.FeeMinor == 500 &&
			req.Currency == "USD" &&
			req.Credentials == f.credentials("tenant-1") &&
			!req.ManualCapture &&
			req.Description == "Order R-1001" &&
			req.Locale == "en" &&
			req.IdempotencyKey != "" &&
			req.Metadata[models.MetaTenantID] == "tenant-1" &&
			req.Metadata[models.MetaCustomerID] == "cust-1" &&
			req.Metadata[models.MetaOrderID] == "order-1" &&
			req.Metadata[models.MetaOrderNumber] == "R-1001" &&
			req.Metadata[models.MetaChargeKind] == models.ChargeKindCheckout
	})).Return(&processor.ChargeHandle{
		ChargeIntentID: "cs_test_1",
		SessionID:      "cs_test_1",
		RedirectURL:    "https://checkout.stripe.com/c/pay/cs_test_1",
	}, nil)

	result, err := s.CreateCharge(ctx, checkoutInput())
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", result.RedirectURL)
	assert.Equal(t, "cs_test_1", result.ChargeIntentID)
	assert.False(t, result.AlreadyPaid)
	assert.Empty(t, result.QRImage)
	assert.Empty(t, f.store.LedgerEntries())
	f.gateway.AssertExpectations(t)
}

func TestChargeService_CreateCharge_PaymentIntent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newChargeService(f)

	in := checkoutInput()
	in.Mode = ModePaymentIntent

	f.gateway.On("CreatePaymentIntent", ctx, mock.MatchedBy(func(req processor.ChargeRequest) bool {
		return req.AmountMinor == 5000 && req.Metadata[models.MetaChargeKind] == models.ChargeKindFullPayment
	})).Return(&processor.ChargeHandle{ChargeIntentID: "pi_1", ClientSecret: "pi_1_secret"}, nil)

	result, err := s.CreateCharge(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", result.ClientSecret)

	entry, err := f.store.GetByChargeIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerPending, entry.Status)
	assert.Equal(t, models.KindFullPayment, entry.Kind)
	assert.Equal(t, "order-1", entry.OrderID)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("50.00")))
}

func TestChargeService_CreateCharge_Deposit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newChargeService(f)

	in := checkoutInput()
	in.Mode = ModePaymentIntent
	in.Deposit = true
	in.Amount = decimal.NewFromInt(200)

	f.gateway.On("CreatePaymentIntent", ctx, mock.MatchedBy(func(req processor.ChargeRequest) bool {
		return req.ManualCapture && req.AmountMinor == 20000 &&
			req.Metadata[models.MetaChargeKind] == models.ChargeKindDeposit
	})).Return(&processor.ChargeHandle{ChargeIntentID: "pi_dep", ClientSecret: "pi_dep_secret"}, nil)

	_, err := s.CreateCharge(ctx, in)
	require.NoError(t, err)

	deposit, err := f.store.Deposits().GetByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.DepositPending, deposit.Status)
	assert.Equal(t, "pi_dep", deposit.ChargeIntentID)
	assert.True(t, deposit.AuthorizedAmount.Equal(decimal.NewFromInt(200)))
	assert.Empty(t, f.store.LedgerEntries())

	t.Run("second hold for the same order", func(t *testing.T) {
		_, err := s.CreateCharge(ctx, in)
		assert.ErrorIs(t, err, ErrDepositExists)
		f.gateway.AssertNumberOfCalls(t, "CreatePaymentIntent", 1)
	})
}

func TestChargeService_CreateCharge_ZeroDecimalCurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, "tenant-jp", "JPY")
	s := newChargeService(f)

	in := checkoutInput()
	in.TenantID = "tenant-jp"
	in.Currency = ""
	in.Amount = decimal.NewFromInt(1000)

	f.gateway.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(req processor.ChargeRequest) bool {
		return req.Currency == "JPY" && req.AmountMinor == 1000 && req.FeeMinor == 100
	})).Return(&processor.ChargeHandle{ChargeIntentID: "cs_jp", RedirectURL: "https://checkout.stripe.com/c/pay/cs_jp"}, nil)

	_, err := s.CreateCharge(ctx, in)
	require.NoError(t, err)
	f.gateway.AssertExpectations(t)
}

func TestChargeService_CreateCharge_QR(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newChargeService(f)

	in := checkoutInput()
	in.IncludeQR = true

	f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).
		Return(&processor.ChargeHandle{ChargeIntentID: "cs_qr", RedirectURL: "https://checkout.stripe.com/c/pay/cs_qr"}, nil)

	result, err := s.CreateCharge(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, result.QRImage)
}

func TestChargeService_CreateCharge_AlreadyPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newChargeService(f)

	processed := time.Now().UTC()
	require.NoError(t, f.store.Create(ctx, &models.LedgerEntry{
		ID:             "entry-1",
		ChargeIntentID: "pi_paid",
		TenantID:       "tenant-1",
		CustomerID:     "cust-1",
		OrderID:        "order-1",
		Amount:         decimal.RequireFromString("50.00"),
		Currency:       "USD",
		Kind:           models.KindCheckout,
		Status:         models.LedgerSucceeded,
		CreatedAt:      processed,
		ProcessedAt:    &processed,
	}))

	result, err := s.CreateCharge(ctx, checkoutInput())
	require.NoError(t, err)
	assert.True(t, result.AlreadyPaid)
	assert.Equal(t, "pi_paid", result.ChargeIntentID)
	f.gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestChargeService_CreateCharge_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("zero amount", func(t *testing.T) {
		f := newFixture(t)
		in := checkoutInput()
		in.Amount = decimal.Zero

		_, err := newChargeService(f).CreateCharge(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("negative amount", func(t *testing.T) {
		f := newFixture(t)
		in := checkoutInput()
		in.Amount = decimal.NewFromInt(-5)

		_, err := newChargeService(f).CreateCharge(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown mode", func(t *testing.T) {
		f := newFixture(t)
		in := checkoutInput()
		in.Mode = "invoice"

		_, err := newChargeService(f).CreateCharge(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("deposit without order", func(t *testing.T) {
		f := newFixture(t)
		in := checkoutInput()
		in.Deposit = true
		in.OrderID = ""

		_, err := newChargeService(f).CreateCharge(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing sub-account makes no processor call", func(t *testing.T) {
		f := newFixture(t)
		cfg, err := f.store.GetConfig(ctx, "cfg-tenant-1")
		require.NoError(t, err)
		cfg.AccountRecordID = ""
		f.store.PutConfig(*cfg)

		_, err = newChargeService(f).CreateCharge(ctx, checkoutInput())
		assert.ErrorIs(t, err, ErrTenantNotPayable)
		assert.ErrorIs(t, err, ErrNotConfigured)
		f.gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("processor error", func(t *testing.T) {
		f := newFixture(t)
		procErr := &processor.Error{Op: "checkout.session.create", Message: "card declined", StatusCode: 402}
		f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).Return(nil, procErr)

		_, err := newChargeService(f).CreateCharge(ctx, checkoutInput())
		var target *processor.Error
		require.True(t, errors.As(err, &target))
		assert.Equal(t, 402, target.StatusCode)
	})
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/processor"
	"github.com/rentdesk/payments/internal/storage/memory"
	"github.com/rentdesk/payments/internal/vault"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req processor.ChargeRequest) (*processor.ChargeHandle, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.ChargeHandle), args.Error(1)
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req processor.ChargeRequest) (*processor.ChargeHandle, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.ChargeHandle), args.Error(1)
}

func (m *MockGateway) CapturePaymentIntent(ctx context.Context, creds processor.Credentials, chargeIntentID string, amountMinor int64) (*processor.IntentResult, error) {
	args := m.Called(ctx, creds, chargeIntentID, amountMinor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.IntentResult), args.Error(1)
}

func (m *MockGateway) CancelPaymentIntent(ctx context.Context, creds processor.Credentials, chargeIntentID string) (*processor.IntentResult, error) {
	args := m.Called(ctx, creds, chargeIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.IntentResult), args.Error(1)
}

type MockEventDecoder struct {
	mock.Mock
}

func (m *MockEventDecoder) ParseEvent(payload []byte, sigHeader string) (*models.WebhookEvent, error) {
	args := m.Called(payload, sigHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WebhookEvent), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, event any) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendInvitation(ctx context.Context, invitation Invitation) error {
	args := m.Called(ctx, invitation)
	return args.Error(0)
}

// fixture wires services against the in-memory store with one payable tenant.
type fixture struct {
	store     *memory.Store
	vault     *vault.Vault
	directory *MerchantDirectory
	locker    *KeyedLocker
	gateway   *MockGateway
	publisher *MockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v, err := vault.New(vault.Config{MasterKey: "test-master-key", Salt: []byte("test-salt")})
	require.NoError(t, err)

	store := memory.NewStore()
	f := &fixture{
		store:     store,
		vault:     v,
		directory: NewMerchantDirectory(store, store, v, "sk_platform", "test"),
		locker:    NewKeyedLocker(nil, time.Second),
		gateway:   &MockGateway{},
		publisher: &MockPublisher{},
	}
	f.seedTenant(t, "tenant-1", "USD")
	return f
}

// seedTenant registers a tenant with an encrypted api key and sub-account id
// "acct_<tenantID>" and a 10% platform fee.
func (f *fixture) seedTenant(t *testing.T, tenantID, currency string) {
	t.Helper()

	apiKey, err := f.vault.Encrypt("sk_test_" + tenantID)
	require.NoError(t, err)
	accountID, err := f.vault.Encrypt("acct_" + tenantID)
	require.NoError(t, err)

	f.store.PutTenant(models.Tenant{
		ID:               tenantID,
		Subdomain:        tenantID,
		Currency:         currency,
		Locale:           "en",
		FeePercent:       decimal.NewFromInt(5),
		MerchantConfigID: "cfg-" + tenantID,
	})
	f.store.PutConfig(models.MerchantConfigRecord{
		ID:              "cfg-" + tenantID,
		TenantID:        tenantID,
		Environment:     "test",
		APIKey:          apiKey,
		AccountRecordID: "acc-" + tenantID,
		FeePercent:      decimal.NewFromInt(10),
		Active:          true,
	})
	f.store.PutAccount(models.MerchantAccount{
		ID:             "acc-" + tenantID,
		TenantID:       tenantID,
		ConfigID:       "cfg-" + tenantID,
		AccountID:      accountID,
		AccountLookup:  f.vault.BlindIndex("acct_" + tenantID),
		ChargesEnabled: true,
		Requirements:   []string{},
	})
}

func (f *fixture) credentials(tenantID string) processor.Credentials {
	return processor.Credentials{APIKey: "sk_test_" + tenantID, AccountID: "acct_" + tenantID}
}

func (f *fixture) reconciler(decoder processor.EventDecoder) *Reconciler {
	return NewReconciler(decoder, ReconcilerStores{
		Ledger:         f.store,
		Deposits:       f.store.Deposits(),
		Orders:         f.store,
		PaymentMethods: f.store,
		Transfers:      f.store,
		Payouts:        f.store,
	}, f.directory, f.locker, f.publisher)
}

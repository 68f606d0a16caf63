// Package memory is an in-process implementation of the storage ports, used by
// service tests and by the server when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
)

type Store struct {
	mu sync.RWMutex

	ledger    map[string]models.LedgerEntry // by id
	deposits  map[string]models.SecurityDeposit
	configs   map[string]models.MerchantConfigRecord
	accounts  map[string]models.MerchantAccount
	methods   map[string]models.PaymentMethod
	transfers map[string]models.Transfer
	payouts   map[string]models.Payout
	tenants   map[string]models.Tenant
	orders    map[string]models.Order
	customers map[string]models.Customer

	confirmCalls map[string]int
}

func NewStore() *Store {
	return &Store{
		ledger:       make(map[string]models.LedgerEntry),
		deposits:     make(map[string]models.SecurityDeposit),
		configs:      make(map[string]models.MerchantConfigRecord),
		accounts:     make(map[string]models.MerchantAccount),
		methods:      make(map[string]models.PaymentMethod),
		transfers:    make(map[string]models.Transfer),
		payouts:      make(map[string]models.Payout),
		tenants:      make(map[string]models.Tenant),
		orders:       make(map[string]models.Order),
		customers:    make(map[string]models.Customer),
		confirmCalls: make(map[string]int),
	}
}

var (
	_ storage.LedgerStore        = (*Store)(nil)
	_ storage.MerchantStore      = (*Store)(nil)
	_ storage.PaymentMethodStore = (*Store)(nil)
	_ storage.TransferStore      = (*Store)(nil)
	_ storage.PayoutStore        = (*Store)(nil)
	_ storage.TenantRegistry     = (*Store)(nil)
	_ storage.OrderStore         = (*Store)(nil)
	_ storage.CustomerStore      = (*Store)(nil)
)

// Ledger

func (s *Store) GetByChargeIntent(ctx context.Context, chargeIntentID string) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.ledger {
		if e.ChargeIntentID == chargeIntentID && e.Kind != models.KindRefund {
			entry := e
			return &entry, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListByChargeIntent(ctx context.Context, chargeIntentID string) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []models.LedgerEntry
	for _, e := range s.ledger {
		if e.ChargeIntentID == chargeIntentID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func (s *Store) FindSucceededByOrder(ctx context.Context, orderID string) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.ledger {
		if e.OrderID == orderID && e.Kind != models.KindRefund && e.Status == models.LedgerSucceeded {
			entry := e
			return &entry, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) Create(ctx context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.ledger {
		if e.ID == entry.ID {
			return storage.ErrDuplicate
		}
		if entry.Kind == models.KindRefund {
			if e.Kind == models.KindRefund && e.RefundID == entry.RefundID {
				return storage.ErrDuplicate
			}
			continue
		}
		if e.Kind != models.KindRefund && e.ChargeIntentID == entry.ChargeIntentID {
			return storage.ErrDuplicate
		}
	}

	if entry.Version == 0 {
		entry.Version = 1
	}
	s.ledger[entry.ID] = *entry
	return nil
}

func (s *Store) Update(ctx context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.ledger[entry.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Version != entry.Version {
		return storage.ErrVersionConflict
	}

	entry.Version++
	s.ledger[entry.ID] = *entry
	return nil
}

// Ledger entries sorted by creation, for assertions.
func (s *Store) LedgerEntries() []models.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]models.LedgerEntry, 0, len(s.ledger))
	for _, e := range s.ledger {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries
}

// Orders, tenants and customers

func (s *Store) PutTenant(t models.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
}

func (s *Store) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (s *Store) PutOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &o, nil
}

func (s *Store) GetOrderByNumber(ctx context.Context, tenantID, number string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.TenantID == tenantID && o.Number == number {
			order := o
			return &order, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) MarkConfirmed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return storage.ErrNotFound
	}
	o.Status = models.OrderStatusConfirmed
	s.orders[id] = o
	s.confirmCalls[id]++
	return nil
}

// ConfirmCalls reports how many times MarkConfirmed ran for an order.
func (s *Store) ConfirmCalls(orderID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confirmCalls[orderID]
}

func (s *Store) PutCustomer(c models.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (s *Store) SetTemporaryPassword(ctx context.Context, customerID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return storage.ErrNotFound
	}
	if c.LastLoginAt != nil || c.InvitedAt != nil {
		return storage.ErrVersionConflict
	}

	now := time.Now().UTC()
	c.PasswordHash = passwordHash
	c.PasswordSystemGenerated = true
	c.InvitedAt = &now
	s.customers[customerID] = c
	return nil
}

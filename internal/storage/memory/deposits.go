package memory

import (
	"context"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
)

// DepositStore shares the Store's lock but has its own method set, since
// deposits and ledger entries use the same method names.
type DepositStore struct {
	s *Store
}

func (s *Store) Deposits() *DepositStore {
	return &DepositStore{s: s}
}

var _ storage.DepositStore = (*DepositStore)(nil)

func (d *DepositStore) GetByOrder(ctx context.Context, orderID string) (*models.SecurityDeposit, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	dep, ok := d.s.deposits[orderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &dep, nil
}

func (d *DepositStore) GetByChargeIntent(ctx context.Context, chargeIntentID string) (*models.SecurityDeposit, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	for _, dep := range d.s.deposits {
		if dep.ChargeIntentID == chargeIntentID {
			deposit := dep
			return &deposit, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (d *DepositStore) Create(ctx context.Context, deposit *models.SecurityDeposit) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	if _, exists := d.s.deposits[deposit.OrderID]; exists {
		return storage.ErrDuplicate
	}
	for _, dep := range d.s.deposits {
		if dep.ChargeIntentID == deposit.ChargeIntentID {
			return storage.ErrDuplicate
		}
	}

	if deposit.Version == 0 {
		deposit.Version = 1
	}
	d.s.deposits[deposit.OrderID] = *deposit
	return nil
}

func (d *DepositStore) Update(ctx context.Context, deposit *models.SecurityDeposit) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	current, ok := d.s.deposits[deposit.OrderID]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Version != deposit.Version {
		return storage.ErrVersionConflict
	}

	deposit.Version++
	d.s.deposits[deposit.OrderID] = *deposit
	return nil
}

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
)

func (s *Store) PutConfig(c models.MerchantConfigRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	s.configs[c.ID] = c
}

func (s *Store) PutAccount(a models.MerchantAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Version == 0 {
		a.Version = 1
	}
	s.accounts[a.ID] = a
}

func (s *Store) GetConfig(ctx context.Context, id string) (*models.MerchantConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.configs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*models.MerchantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (s *Store) FindAccountByLookup(ctx context.Context, lookup string) (*models.MerchantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if lookup != "" && a.AccountLookup == lookup {
			account := a
			return &account, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.MerchantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]models.MerchantAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (s *Store) UpdateConfig(ctx context.Context, config *models.MerchantConfigRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.configs[config.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Version != config.Version {
		return storage.ErrVersionConflict
	}

	config.Version++
	config.UpdatedAt = time.Now().UTC()
	s.configs[config.ID] = *config
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, account *models.MerchantAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[account.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Version != account.Version {
		return storage.ErrVersionConflict
	}

	account.Version++
	account.UpdatedAt = time.Now().UTC()
	s.accounts[account.ID] = *account
	return nil
}

// Payment methods, transfers and payouts

func (s *Store) PutPaymentMethod(pm models.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[pm.ProcessorID] = pm
}

func (s *Store) GetPaymentMethod(processorID string) (models.PaymentMethod, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pm, ok := s.methods[processorID]
	return pm, ok
}

func (s *Store) UpdateCard(ctx context.Context, method *models.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.methods[method.ProcessorID]
	if !ok {
		return storage.ErrNotFound
	}
	current.Brand = method.Brand
	current.Last4 = method.Last4
	current.ExpMonth = method.ExpMonth
	current.ExpYear = method.ExpYear
	current.UpdatedAt = time.Now().UTC()
	s.methods[method.ProcessorID] = current
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, processorID string) (*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transfers[processorID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (s *Store) UpsertTransfer(ctx context.Context, transfer *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.transfers[transfer.ProcessorID]; ok &&
		current.Status != models.TransferCreated && transfer.Status == models.TransferCreated {
		return nil
	}
	transfer.UpdatedAt = time.Now().UTC()
	s.transfers[transfer.ProcessorID] = *transfer
	return nil
}

func (s *Store) UpsertPayout(ctx context.Context, payout *models.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payout.UpdatedAt = time.Now().UTC()
	s.payouts[payout.ProcessorID] = *payout
	return nil
}

func (s *Store) GetPayout(processorID string) (models.Payout, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payouts[processorID]
	return p, ok
}

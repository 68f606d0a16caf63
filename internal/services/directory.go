package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
	"github.com/rentdesk/payments/internal/vault"
)

const capabilityUpdateAttempts = 3

// MerchantDirectory resolves a tenant to a verified, decrypted merchant setup
// and maps processor account ids back to tenants.
type MerchantDirectory struct {
	tenants        storage.TenantRegistry
	merchants      storage.MerchantStore
	vault          vault.SecretVault
	platformAPIKey string
	environment    string
}

func NewMerchantDirectory(tenants storage.TenantRegistry, merchants storage.MerchantStore, v vault.SecretVault, platformAPIKey, environment string) *MerchantDirectory {
	return &MerchantDirectory{
		tenants:        tenants,
		merchants:      merchants,
		vault:          v,
		platformAPIKey: platformAPIKey,
		environment:    environment,
	}
}

// Resolve loads the tenant's merchant config and sub-account and checks that
// all three records point at each other before anything is charged.
func (d *MerchantDirectory) Resolve(ctx context.Context, tenantID string) (*models.MerchantConfig, error) {
	tenant, err := d.tenants.GetTenant(ctx, tenantID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown tenant %s", ErrNotConfigured, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}
	if tenant.MerchantConfigID == "" {
		return nil, fmt.Errorf("%w: tenant %s has no merchant config", ErrNotConfigured, tenantID)
	}

	config, err := d.merchants.GetConfig(ctx, tenant.MerchantConfigID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: merchant config %s missing", ErrInconsistentConfiguration, tenant.MerchantConfigID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant config: %w", err)
	}
	if config.TenantID != tenant.ID {
		return nil, fmt.Errorf("%w: merchant config %s belongs to another tenant", ErrInconsistentConfiguration, config.ID)
	}
	if !config.Active {
		return nil, fmt.Errorf("%w: merchant config %s is inactive", ErrNotConfigured, config.ID)
	}
	if d.environment != "" && config.Environment != d.environment {
		return nil, fmt.Errorf("%w: merchant config %s is for %s", ErrNotConfigured, config.ID, config.Environment)
	}
	if config.AccountRecordID == "" {
		return nil, fmt.Errorf("%w: no sub-account for tenant %s", ErrNotConfigured, tenantID)
	}

	account, err := d.merchants.GetAccount(ctx, config.AccountRecordID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: merchant account %s missing", ErrInconsistentConfiguration, config.AccountRecordID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant account: %w", err)
	}
	if account.TenantID != tenant.ID || account.ConfigID != config.ID {
		return nil, fmt.Errorf("%w: merchant account %s does not match config %s", ErrInconsistentConfiguration, account.ID, config.ID)
	}
	if !account.ChargesEnabled {
		return nil, fmt.Errorf("%w: charges disabled on account %s", ErrNotConfigured, account.ID)
	}

	apiKey := d.platformAPIKey
	if config.APIKey != "" {
		key, legacy, err := d.vault.Decrypt(config.APIKey)
		if err != nil {
			return nil, fmt.Errorf("%w: api key of merchant config %s: %w", ErrInconsistentConfiguration, config.ID, err)
		}
		apiKey = key
		if legacy {
			d.reencryptConfig(ctx, config, key)
		}
	}

	accountID, legacy, err := d.vault.Decrypt(account.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: processor id of merchant account %s: %w", ErrInconsistentConfiguration, account.ID, err)
	}
	if accountID == "" {
		return nil, fmt.Errorf("%w: merchant account %s has no processor id", ErrNotConfigured, account.ID)
	}
	if legacy || account.AccountLookup == "" {
		d.persistAccountSecret(ctx, account, accountID, legacy)
	}

	fee := config.FeePercent
	if !fee.IsPositive() {
		fee = tenant.FeePercent
	}

	return &models.MerchantConfig{
		TenantID:        tenant.ID,
		ConfigID:        config.ID,
		AccountRecordID: account.ID,
		Environment:     config.Environment,
		APIKey:          apiKey,
		AccountID:       accountID,
		FeePercent:      fee,
		Currency:        tenant.Currency,
		Locale:          tenant.Locale,
	}, nil
}

// ResolveByAccount finds the account record for a processor account id. The
// blind index is tried first; rows written before the index existed are found
// by decrypting every record and get their index backfilled.
func (d *MerchantDirectory) ResolveByAccount(ctx context.Context, processorAccountID string) (*models.MerchantAccount, error) {
	if processorAccountID == "" {
		return nil, fmt.Errorf("%w: empty account id", ErrNotConfigured)
	}

	account, err := d.merchants.FindAccountByLookup(ctx, d.vault.BlindIndex(processorAccountID))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up merchant account: %w", err)
	}

	accounts, err := d.merchants.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan merchant accounts: %w", err)
	}
	for i := range accounts {
		candidate := &accounts[i]
		plaintext, legacy, err := d.vault.Decrypt(candidate.AccountID)
		if err != nil {
			log.Printf("[DIRECTORY] Skipping account %s during scan: %v", candidate.ID, err)
			continue
		}
		if plaintext != processorAccountID {
			continue
		}
		log.Printf("[DIRECTORY] Account %s found by scan, backfilling lookup index", candidate.ID)
		d.persistAccountSecret(ctx, candidate, plaintext, legacy)
		return candidate, nil
	}

	return nil, fmt.Errorf("%w: no merchant account for processor account", ErrNotConfigured)
}

// UpdateCapabilities mirrors the processor's view of a sub-account onto its
// record, retrying when a concurrent writer bumped the version.
func (d *MerchantDirectory) UpdateCapabilities(ctx context.Context, processorAccountID string, caps models.AccountCapabilities) (*models.MerchantAccount, error) {
	var lastErr error
	for attempt := 0; attempt < capabilityUpdateAttempts; attempt++ {
		account, err := d.ResolveByAccount(ctx, processorAccountID)
		if err != nil {
			return nil, err
		}

		account.ChargesEnabled = caps.ChargesEnabled
		account.PayoutsEnabled = caps.PayoutsEnabled
		account.DetailsSubmitted = caps.DetailsSubmitted
		account.Requirements = caps.Requirements
		if account.Requirements == nil {
			account.Requirements = []string{}
		}

		lastErr = d.merchants.UpdateAccount(ctx, account)
		if lastErr == nil {
			return account, nil
		}
		if !errors.Is(lastErr, storage.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to update merchant account %s: %w", account.ID, lastErr)
		}
	}
	return nil, fmt.Errorf("failed to update merchant account capabilities: %w", lastErr)
}

func (d *MerchantDirectory) reencryptConfig(ctx context.Context, config *models.MerchantConfigRecord, apiKey string) {
	sealed, err := d.vault.Encrypt(apiKey)
	if err != nil {
		log.Printf("[DIRECTORY] Failed to re-encrypt api key for config %s: %v", config.ID, err)
		return
	}
	config.APIKey = sealed
	if err := d.merchants.UpdateConfig(ctx, config); err != nil {
		log.Printf("[DIRECTORY] Failed to persist re-encrypted api key for config %s: %v", config.ID, err)
	}
}

// persistAccountSecret re-encrypts a legacy plaintext account id and fills in
// the lookup index. Failures leave the record readable as it was.
func (d *MerchantDirectory) persistAccountSecret(ctx context.Context, account *models.MerchantAccount, accountID string, legacy bool) {
	if legacy {
		sealed, err := d.vault.Encrypt(accountID)
		if err != nil {
			log.Printf("[DIRECTORY] Failed to re-encrypt account %s: %v", account.ID, err)
			return
		}
		account.AccountID = sealed
	}
	account.AccountLookup = d.vault.BlindIndex(accountID)
	if err := d.merchants.UpdateAccount(ctx, account); err != nil {
		log.Printf("[DIRECTORY] Failed to persist account %s secrets: %v", account.ID, err)
	}
}

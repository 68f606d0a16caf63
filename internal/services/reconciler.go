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
	"github.com/rentdesk/payments/internal/events"
	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/money"
	"github.com/rentdesk/payments/internal/processor"
	"github.com/rentdesk/payments/internal/storage"
)

// ReconcilerStores groups the persistence ports the reconciler writes to.
type ReconcilerStores struct {
	Ledger         storage.LedgerStore
	Deposits       storage.DepositStore
	Orders         storage.OrderStore
	PaymentMethods storage.PaymentMethodStore
	Transfers      storage.TransferStore
	Payouts        storage.PayoutStore
}

type eventHandler func(ctx context.Context, event *models.WebhookEvent) error

// Reconciler applies verified processor events to the ledger, deposits and
// merchant records. Every handler is safe to run more than once per event.
type Reconciler struct {
	decoder   processor.EventDecoder
	stores    ReconcilerStores
	directory *MerchantDirectory
	locker    *KeyedLocker
	publisher events.Publisher
	audit     *audit.AuditLogger
	handlers  map[models.EventKind]eventHandler
	now       func() time.Time
}

func NewReconciler(decoder processor.EventDecoder, stores ReconcilerStores, directory *MerchantDirectory, locker *KeyedLocker, publisher events.Publisher) *Reconciler {
	r := &Reconciler{
		decoder:   decoder,
		stores:    stores,
		directory: directory,
		locker:    locker,
		publisher: publisher,
		audit:     audit.NewAuditLogger(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	r.handlers = map[models.EventKind]eventHandler{
		models.EventChargeSucceeded:        r.handleChargeSucceeded,
		models.EventChargeFailed:           r.handleChargeFailed,
		models.EventChargeAmountCapturable: r.handleAmountCapturable,
		models.EventChargeCanceled:         r.handleChargeCanceled,
		models.EventChargeRefunded:         r.handleChargeRefunded,
		models.EventPaymentMethodAttached:  r.handlePaymentMethodAttached,
		models.EventMerchantAccountUpdated: r.handleMerchantAccountUpdated,
		models.EventTransferCreated:        r.handleTransfer,
		models.EventTransferPaid:           r.handleTransfer,
		models.EventTransferFailed:         r.handleTransfer,
		models.EventPayoutPaid:             r.handlePayout,
		models.EventPayoutFailed:           r.handlePayout,
	}
	return r
}

// HandleWebhook verifies and decodes a raw webhook body, then applies it.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (*models.WebhookEvent, error) {
	event, err := r.decoder.ParseEvent(payload, sigHeader)
	if err != nil {
		return nil, err
	}
	return event, r.Apply(ctx, event)
}

func (r *Reconciler) Apply(ctx context.Context, event *models.WebhookEvent) error {
	handler, ok := r.handlers[event.Kind]
	if !ok {
		log.Printf("[RECONCILER] Ignoring event %s of type %s", event.ID, event.RawType)
		return nil
	}

	if err := handler(ctx, event); err != nil {
		log.Printf("[RECONCILER] Event %s (%s) failed: %v", event.ID, event.Kind, err)
		return err
	}
	return nil
}

// Charge lifecycle

func (r *Reconciler) handleChargeSucceeded(ctx context.Context, event *models.WebhookEvent) error {
	intent := event.Intent
	if intent == nil {
		return fmt.Errorf("%w: %s without payment intent", ErrMalformedEvent, event.Kind)
	}

	unlock, err := r.locker.Lock(ctx, intent.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if intent.IsDeposit() {
		return r.applyDeposit(ctx, intent, models.DepositCaptured, "")
	}

	entry, err := r.findOrCreateEntry(ctx, intent)
	if err != nil || entry == nil {
		return err
	}

	if entry.Status.CanTransition(models.LedgerSucceeded) {
		from := entry.Status
		processed := r.now()
		entry.Status = models.LedgerSucceeded
		entry.ProcessedAt = &processed
		entry.FailureReason = ""
		if intent.ChargeID != "" {
			entry.ChargeID = intent.ChargeID
		}
		if intent.AmountReceived > 0 {
			entry.Amount = money.FromMinor(intent.AmountReceived, entry.Currency)
		}
		if entry.OrderID == "" {
			orderID, err := r.resolveOrderID(ctx, entry.TenantID, intent)
			if err != nil {
				return err
			}
			entry.OrderID = orderID
		}

		if err := r.stores.Ledger.Update(ctx, entry); err != nil {
			r.audit.LogError(intent.ID, entry.TenantID, err)
			return fmt.Errorf("failed to mark %s succeeded: %w", intent.ID, err)
		}
		r.audit.LogTransition("ledger_entry", intent.ID, entry.TenantID, string(from), string(entry.Status), event.ID)
	}

	if entry.Status != models.LedgerSucceeded {
		log.Printf("[RECONCILER] Entry %s is %s, not applying success", intent.ID, entry.Status)
		return nil
	}
	if err := r.attachOrder(ctx, entry, intent); err != nil {
		return err
	}
	if entry.OrderID == "" {
		return nil
	}
	return r.ensureOrderConfirmed(ctx, entry)
}

// attachOrder retries the order lookup for a succeeded entry that was stored
// without one while its metadata names an order.
func (r *Reconciler) attachOrder(ctx context.Context, entry *models.LedgerEntry, intent *models.ChargeIntentData) error {
	if entry.OrderID != "" {
		return nil
	}
	if intent.Meta(models.MetaOrderID) == "" && intent.Meta(models.MetaOrderNumber) == "" {
		return nil
	}

	orderID, err := r.resolveOrderID(ctx, entry.TenantID, intent)
	if err != nil || orderID == "" {
		return err
	}

	entry.OrderID = orderID
	if err := r.stores.Ledger.Update(ctx, entry); err != nil {
		r.audit.LogError(intent.ID, entry.TenantID, err)
		return fmt.Errorf("failed to attach order %s to %s: %w", orderID, intent.ID, err)
	}
	log.Printf("[RECONCILER] Attached order %s to succeeded entry %s", orderID, intent.ID)
	return nil
}

func (r *Reconciler) handleChargeFailed(ctx context.Context, event *models.WebhookEvent) error {
	intent := event.Intent
	if intent == nil {
		return fmt.Errorf("%w: %s without payment intent", ErrMalformedEvent, event.Kind)
	}

	unlock, err := r.locker.Lock(ctx, intent.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if intent.IsDeposit() {
		return r.applyDeposit(ctx, intent, models.DepositFailed, intent.FailureReason)
	}
	return r.closeEntry(ctx, event, models.LedgerFailed, intent.FailureReason)
}

func (r *Reconciler) handleChargeCanceled(ctx context.Context, event *models.WebhookEvent) error {
	intent := event.Intent
	if intent == nil {
		return fmt.Errorf("%w: %s without payment intent", ErrMalformedEvent, event.Kind)
	}

	unlock, err := r.locker.Lock(ctx, intent.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if intent.IsDeposit() {
		return r.applyDeposit(ctx, intent, models.DepositReleased, intent.CancellationReason)
	}
	return r.closeEntry(ctx, event, models.LedgerCanceled, intent.CancellationReason)
}

func (r *Reconciler) handleAmountCapturable(ctx context.Context, event *models.WebhookEvent) error {
	intent := event.Intent
	if intent == nil {
		return fmt.Errorf("%w: %s without payment intent", ErrMalformedEvent, event.Kind)
	}
	if !intent.IsDeposit() {
		log.Printf("[RECONCILER] Capturable amount on non-deposit charge %s, ignoring", intent.ID)
		return nil
	}

	unlock, err := r.locker.Lock(ctx, intent.ID)
	if err != nil {
		return err
	}
	defer unlock()

	return r.applyDeposit(ctx, intent, models.DepositAuthorized, "")
}

// closeEntry moves an entry to failed or canceled. Caller holds the lock.
func (r *Reconciler) closeEntry(ctx context.Context, event *models.WebhookEvent, next models.LedgerStatus, reason string) error {
	intent := event.Intent

	entry, err := r.findOrCreateEntry(ctx, intent)
	if err != nil || entry == nil {
		return err
	}
	if !entry.Status.CanTransition(next) {
		log.Printf("[RECONCILER] Entry %s is %s, ignoring %s", intent.ID, entry.Status, next)
		return nil
	}

	from := entry.Status
	entry.Status = next
	entry.FailureReason = reason
	if intent.ChargeID != "" {
		entry.ChargeID = intent.ChargeID
	}
	if err := r.stores.Ledger.Update(ctx, entry); err != nil {
		r.audit.LogError(intent.ID, entry.TenantID, err)
		return fmt.Errorf("failed to mark %s %s: %w", intent.ID, next, err)
	}
	r.audit.LogTransition("ledger_entry", intent.ID, entry.TenantID, string(from), string(next), event.ID)
	return nil
}

// findOrCreateEntry returns the entry for the charge intent. Charges created
// through checkout have no entry yet; one is synthesized from the charge's
// correlation metadata. Returns nil when the charge cannot be correlated.
func (r *Reconciler) findOrCreateEntry(ctx context.Context, intent *models.ChargeIntentData) (*models.LedgerEntry, error) {
	entry, err := r.stores.Ledger.GetByChargeIntent(ctx, intent.ID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load entry %s: %w", intent.ID, err)
	}

	tenantID := intent.Meta(models.MetaTenantID)
	customerID := intent.Meta(models.MetaCustomerID)
	if tenantID == "" || customerID == "" {
		log.Printf("[RECONCILER] Charge %s has no correlation metadata, skipping", intent.ID)
		return nil, nil
	}

	kind := models.KindCheckout
	if intent.Meta(models.MetaChargeKind) == models.ChargeKindFullPayment {
		kind = models.KindFullPayment
	}

	orderID, err := r.resolveOrderID(ctx, tenantID, intent)
	if err != nil {
		return nil, err
	}

	currency := money.NormalizeCurrency(intent.Currency)
	entry = &models.LedgerEntry{
		ID:             uuid.NewString(),
		ChargeIntentID: intent.ID,
		ChargeID:       intent.ChargeID,
		TenantID:       tenantID,
		CustomerID:     customerID,
		OrderID:        orderID,
		Amount:         money.FromMinor(intent.Amount, currency),
		Currency:       currency,
		Kind:           kind,
		Status:         models.LedgerPending,
		CreatedAt:      r.now(),
	}

	err = r.stores.Ledger.Create(ctx, entry)
	if errors.Is(err, storage.ErrDuplicate) {
		return r.stores.Ledger.GetByChargeIntent(ctx, intent.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create entry %s: %w", intent.ID, err)
	}
	log.Printf("[RECONCILER] Created %s entry for %s from metadata", kind, intent.ID)
	return entry, nil
}

// resolveOrderID attaches an order by id, falling back to the tenant's order
// number. An order that is missing or owned by another tenant resolves to "";
// store failures are returned so the delivery is retried.
func (r *Reconciler) resolveOrderID(ctx context.Context, tenantID string, intent *models.ChargeIntentData) (string, error) {
	if orderID := intent.Meta(models.MetaOrderID); orderID != "" {
		order, err := r.stores.Orders.GetOrder(ctx, orderID)
		switch {
		case err == nil && order.TenantID == tenantID:
			return order.ID, nil
		case err == nil:
			log.Printf("[RECONCILER] Order %s does not belong to tenant %s", orderID, tenantID)
			return "", nil
		case !errors.Is(err, storage.ErrNotFound):
			return "", fmt.Errorf("failed to load order %s: %w", orderID, err)
		}
	}

	number := intent.Meta(models.MetaOrderNumber)
	if number == "" {
		return "", nil
	}
	order, err := r.stores.Orders.GetOrderByNumber(ctx, tenantID, number)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load order %s for tenant %s: %w", number, tenantID, err)
	}
	return order.ID, nil
}

// ensureOrderConfirmed confirms the entry's order unless it already is and
// emits order.confirmed after the write. It runs on every succeeded delivery
// so a confirmation lost to a crash is completed by the redelivery.
func (r *Reconciler) ensureOrderConfirmed(ctx context.Context, entry *models.LedgerEntry) error {
	order, err := r.stores.Orders.GetOrder(ctx, entry.OrderID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("[RECONCILER] Order %s for %s not found", entry.OrderID, entry.ChargeIntentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", entry.OrderID, err)
	}
	if order.Status == models.OrderStatusConfirmed {
		return nil
	}

	if err := r.stores.Orders.MarkConfirmed(ctx, order.ID); err != nil {
		return fmt.Errorf("failed to confirm order %s: %w", order.ID, err)
	}
	r.audit.LogOperation(entry.ChargeIntentID, entry.TenantID, "ORDER_CONFIRMED", order.ID)

	confirmedAt := r.now()
	if entry.ProcessedAt != nil {
		confirmedAt = *entry.ProcessedAt
	}
	r.publish(ctx, models.TopicOrderConfirmed, models.OrderConfirmed{
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		TenantID:       entry.TenantID,
		CustomerID:     entry.CustomerID,
		ChargeIntentID: entry.ChargeIntentID,
		Amount:         entry.Amount,
		Currency:       entry.Currency,
		ChargeKind:     entry.Kind,
		ConfirmedAt:    confirmedAt,
	})
	return nil
}

// Deposits

// applyDeposit moves the deposit held by intent towards next. Caller holds the lock.
func (r *Reconciler) applyDeposit(ctx context.Context, intent *models.ChargeIntentData, next models.DepositStatus, reason string) error {
	deposit, err := r.findOrCreateDeposit(ctx, intent)
	if err != nil || deposit == nil {
		return err
	}
	if !deposit.Status.CanTransition(next) {
		log.Printf("[RECONCILER] Deposit for order %s is %s, ignoring %s", deposit.OrderID, deposit.Status, next)
		return nil
	}

	from := deposit.Status
	now := r.now()
	requested := money.FromMinor(intent.Amount, deposit.Currency)

	switch next {
	case models.DepositAuthorized:
		if intent.AmountCapturable > 0 {
			deposit.AuthorizedAmount = money.FromMinor(intent.AmountCapturable, deposit.Currency)
		} else if !deposit.AuthorizedAmount.IsPositive() {
			deposit.AuthorizedAmount = requested
		}
		deposit.AuthorizedAt = &now
	case models.DepositCaptured:
		captured := requested
		if intent.AmountReceived > 0 {
			captured = money.FromMinor(intent.AmountReceived, deposit.Currency)
		}
		if deposit.AuthorizedAmount.LessThan(captured) {
			deposit.AuthorizedAmount = captured
		}
		deposit.CapturedAmount = captured
		deposit.CapturedAt = &now
	case models.DepositReleased:
		deposit.ReleasedAt = &now
		deposit.Reason = reason
	case models.DepositFailed:
		deposit.Reason = reason
	}
	if intent.ChargeID != "" {
		deposit.OperationChargeID = intent.ChargeID
	}
	deposit.Status = next
	deposit.UpdatedAt = now

	if err := r.stores.Deposits.Update(ctx, deposit); err != nil {
		r.audit.LogError(intent.ID, deposit.TenantID, err)
		return fmt.Errorf("failed to mark deposit for order %s %s: %w", deposit.OrderID, next, err)
	}
	r.audit.LogTransition("security_deposit", intent.ID, deposit.TenantID, string(from), string(next), "webhook")

	switch next {
	case models.DepositCaptured:
		r.publish(ctx, models.TopicDepositCaptured, depositCapturedEvent(deposit))
	case models.DepositReleased:
		r.publish(ctx, models.TopicDepositReleased, depositReleasedEvent(deposit))
	}
	return nil
}

func (r *Reconciler) findOrCreateDeposit(ctx context.Context, intent *models.ChargeIntentData) (*models.SecurityDeposit, error) {
	deposit, err := r.stores.Deposits.GetByChargeIntent(ctx, intent.ID)
	if err == nil {
		return deposit, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load deposit %s: %w", intent.ID, err)
	}

	tenantID := intent.Meta(models.MetaTenantID)
	if tenantID == "" {
		log.Printf("[RECONCILER] Deposit charge %s has no tenant metadata, skipping", intent.ID)
		return nil, nil
	}
	orderID, err := r.resolveOrderID(ctx, tenantID, intent)
	if err != nil {
		return nil, err
	}
	if orderID == "" {
		log.Printf("[RECONCILER] Deposit charge %s has no resolvable order, skipping", intent.ID)
		return nil, nil
	}

	deposit, err = r.stores.Deposits.GetByOrder(ctx, orderID)
	if err == nil {
		if deposit.ChargeIntentID != intent.ID {
			log.Printf("[RECONCILER] Order %s already holds deposit %s, ignoring %s", orderID, deposit.ChargeIntentID, intent.ID)
			return nil, nil
		}
		return deposit, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load deposit for order %s: %w", orderID, err)
	}

	currency := money.NormalizeCurrency(intent.Currency)
	authorized := intent.AmountCapturable
	if authorized == 0 {
		authorized = intent.Amount
	}
	now := r.now()
	deposit = &models.SecurityDeposit{
		ID:               uuid.NewString(),
		OrderID:          orderID,
		ChargeIntentID:   intent.ID,
		TenantID:         tenantID,
		Currency:         currency,
		AuthorizedAmount: money.FromMinor(authorized, currency),
		CapturedAmount:   decimal.Zero,
		Status:           models.DepositPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = r.stores.Deposits.Create(ctx, deposit)
	if errors.Is(err, storage.ErrDuplicate) {
		return r.stores.Deposits.GetByChargeIntent(ctx, intent.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create deposit for order %s: %w", orderID, err)
	}
	return deposit, nil
}

// Refunds

func (r *Reconciler) handleChargeRefunded(ctx context.Context, event *models.WebhookEvent) error {
	refund := event.Refund
	if refund == nil || refund.ChargeIntentID == "" {
		return fmt.Errorf("%w: refund without payment intent", ErrMalformedEvent)
	}

	unlock, err := r.locker.Lock(ctx, refund.ChargeIntentID)
	if err != nil {
		return err
	}
	defer unlock()

	parent, err := r.stores.Ledger.GetByChargeIntent(ctx, refund.ChargeIntentID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load entry %s: %w", refund.ChargeIntentID, err)
	}
	if parent == nil {
		tenantID := refund.Metadata[models.MetaTenantID]
		customerID := refund.Metadata[models.MetaCustomerID]
		if tenantID == "" || customerID == "" {
			log.Printf("[RECONCILER] Refund on unknown charge %s, skipping", refund.ChargeIntentID)
			return nil
		}
		parent = &models.LedgerEntry{
			TenantID:   tenantID,
			CustomerID: customerID,
			OrderID:    refund.Metadata[models.MetaOrderID],
			Currency:   money.NormalizeCurrency(refund.Currency),
		}
	}

	existing, err := r.stores.Ledger.ListByChargeIntent(ctx, refund.ChargeIntentID)
	if err != nil {
		return fmt.Errorf("failed to list entries %s: %w", refund.ChargeIntentID, err)
	}
	byRefund := make(map[string]models.LedgerEntry)
	for _, e := range existing {
		if e.Kind == models.KindRefund {
			byRefund[e.RefundID] = e
		}
	}

	currency := money.NormalizeCurrency(refund.Currency)
	if currency == "" {
		currency = parent.Currency
	}

	for _, item := range refund.Refunds {
		status := refundStatus(item.Status)

		if current, ok := byRefund[item.ID]; ok {
			if !current.Status.CanTransition(status) {
				continue
			}
			from := current.Status
			current.Status = status
			if err := r.stores.Ledger.Update(ctx, &current); err != nil {
				return fmt.Errorf("failed to update refund %s: %w", item.ID, err)
			}
			r.audit.LogTransition("refund_entry", refund.ChargeIntentID, current.TenantID, string(from), string(status), event.ID)
			continue
		}

		entry := &models.LedgerEntry{
			ID:             uuid.NewString(),
			ChargeIntentID: refund.ChargeIntentID,
			ChargeID:       refund.ChargeID,
			RefundID:       item.ID,
			TenantID:       parent.TenantID,
			CustomerID:     parent.CustomerID,
			OrderID:        parent.OrderID,
			Amount:         money.FromMinor(item.Amount, currency).Neg(),
			Currency:       currency,
			Kind:           models.KindRefund,
			Status:         status,
			CreatedAt:      r.now(),
		}
		if status == models.LedgerSucceeded {
			processed := r.now()
			entry.ProcessedAt = &processed
		}

		err := r.stores.Ledger.Create(ctx, entry)
		if errors.Is(err, storage.ErrDuplicate) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to record refund %s: %w", item.ID, err)
		}
		r.audit.LogTransition("refund_entry", refund.ChargeIntentID, entry.TenantID, "", string(status), event.ID)
	}
	return nil
}

func refundStatus(status string) models.LedgerStatus {
	switch status {
	case "succeeded":
		return models.LedgerSucceeded
	case "failed":
		return models.LedgerFailed
	case "canceled":
		return models.LedgerCanceled
	default:
		return models.LedgerPending
	}
}

// Merchant records

func (r *Reconciler) handlePaymentMethodAttached(ctx context.Context, event *models.WebhookEvent) error {
	pm := event.PaymentMethod
	if pm == nil {
		return fmt.Errorf("%w: %s without payment method", ErrMalformedEvent, event.Kind)
	}

	err := r.stores.PaymentMethods.UpdateCard(ctx, &models.PaymentMethod{
		ProcessorID: pm.ID,
		CustomerRef: pm.Customer,
		Brand:       pm.Brand,
		Last4:       pm.Last4,
		ExpMonth:    pm.ExpMonth,
		ExpYear:     pm.ExpYear,
		UpdatedAt:   r.now(),
	})
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("[RECONCILER] Payment method %s is not stored, ignoring", pm.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update payment method %s: %w", pm.ID, err)
	}
	return nil
}

func (r *Reconciler) handleMerchantAccountUpdated(ctx context.Context, event *models.WebhookEvent) error {
	data := event.Merchant
	if data == nil {
		return fmt.Errorf("%w: %s without account", ErrMalformedEvent, event.Kind)
	}

	account, err := r.directory.UpdateCapabilities(ctx, data.ID, models.AccountCapabilities{
		ChargesEnabled:   data.ChargesEnabled,
		PayoutsEnabled:   data.PayoutsEnabled,
		DetailsSubmitted: data.DetailsSubmitted,
		Requirements:     data.Requirements,
	})
	if errors.Is(err, ErrNotConfigured) {
		log.Printf("[RECONCILER] Account update for unknown sub-account, ignoring: %v", err)
		return nil
	}
	if err != nil {
		return err
	}

	r.audit.LogOperation("", account.TenantID, "MERCHANT_ACCOUNT_UPDATED",
		fmt.Sprintf("charges_enabled=%t payouts_enabled=%t", account.ChargesEnabled, account.PayoutsEnabled))
	return nil
}

var transferStatuses = map[models.EventKind]models.TransferStatus{
	models.EventTransferCreated: models.TransferCreated,
	models.EventTransferPaid:    models.TransferPaid,
	models.EventTransferFailed:  models.TransferFailed,
}

func (r *Reconciler) handleTransfer(ctx context.Context, event *models.WebhookEvent) error {
	data := event.Transfer
	if data == nil {
		return fmt.Errorf("%w: %s without transfer", ErrMalformedEvent, event.Kind)
	}
	next := transferStatuses[event.Kind]

	unlock, err := r.locker.Lock(ctx, "transfer:"+data.ID)
	if err != nil {
		return err
	}
	defer unlock()

	transfer, err := r.stores.Transfers.GetTransfer(ctx, data.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load transfer %s: %w", data.ID, err)
	}
	if transfer == nil {
		account, err := r.directory.ResolveByAccount(ctx, data.Destination)
		if errors.Is(err, ErrNotConfigured) {
			log.Printf("[RECONCILER] Transfer %s to unknown sub-account, ignoring", data.ID)
			return nil
		}
		if err != nil {
			return err
		}
		transfer = &models.Transfer{
			ProcessorID: data.ID,
			TenantID:    account.TenantID,
			CreatedAt:   data.Created,
		}
	} else if transfer.Status != models.TransferCreated && next == models.TransferCreated {
		return nil
	}

	now := r.now()
	transfer.Currency = money.NormalizeCurrency(data.Currency)
	transfer.Amount = money.FromMinor(data.Amount, transfer.Currency)
	transfer.Status = next
	switch next {
	case models.TransferPaid:
		transfer.PaidAt = &now
	case models.TransferFailed:
		transfer.FailedAt = &now
	}
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = now
	}

	if err := r.stores.Transfers.UpsertTransfer(ctx, transfer); err != nil {
		return fmt.Errorf("failed to store transfer %s: %w", data.ID, err)
	}
	return nil
}

func (r *Reconciler) handlePayout(ctx context.Context, event *models.WebhookEvent) error {
	data := event.Payout
	if data == nil {
		return fmt.Errorf("%w: %s without payout", ErrMalformedEvent, event.Kind)
	}

	account, err := r.directory.ResolveByAccount(ctx, event.AccountID)
	if errors.Is(err, ErrNotConfigured) {
		log.Printf("[RECONCILER] Payout %s for unknown sub-account, ignoring", data.ID)
		return nil
	}
	if err != nil {
		return err
	}

	now := r.now()
	currency := money.NormalizeCurrency(data.Currency)
	payout := &models.Payout{
		ProcessorID:    data.ID,
		TenantID:       account.TenantID,
		Amount:         money.FromMinor(data.Amount, currency),
		Currency:       currency,
		FailureCode:    data.FailureCode,
		FailureMessage: data.FailureMessage,
	}
	if !data.ArrivalDate.IsZero() {
		arrival := data.ArrivalDate
		payout.ArrivalDate = &arrival
	}
	if event.Kind == models.EventPayoutPaid {
		payout.Status = models.PayoutPaid
		payout.PaidAt = &now
	} else {
		payout.Status = models.PayoutFailed
		payout.FailedAt = &now
	}

	if err := r.stores.Payouts.UpsertPayout(ctx, payout); err != nil {
		return fmt.Errorf("failed to store payout %s: %w", data.ID, err)
	}
	return nil
}

// publish emits a domain event after the ledger write. Delivery failures
// never undo the write.
func (r *Reconciler) publish(ctx context.Context, topic string, event any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, topic, event); err != nil {
		log.Printf("[RECONCILER] Failed to publish %s: %v", topic, err)
	}
}

func depositCapturedEvent(d *models.SecurityDeposit) models.DepositCapturedEvent {
	capturedAt := d.UpdatedAt
	if d.CapturedAt != nil {
		capturedAt = *d.CapturedAt
	}
	return models.DepositCapturedEvent{
		OrderID:        d.OrderID,
		TenantID:       d.TenantID,
		ChargeIntentID: d.ChargeIntentID,
		Amount:         d.CapturedAmount,
		Currency:       d.Currency,
		Reason:         d.Reason,
		CapturedAt:     capturedAt,
	}
}

func depositReleasedEvent(d *models.SecurityDeposit) models.DepositReleasedEvent {
	releasedAt := d.UpdatedAt
	if d.ReleasedAt != nil {
		releasedAt = *d.ReleasedAt
	}
	return models.DepositReleasedEvent{
		OrderID:        d.OrderID,
		TenantID:       d.TenantID,
		ChargeIntentID: d.ChargeIntentID,
		Reason:         d.Reason,
		ReleasedAt:     releasedAt,
	}
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to LedgerStatus
		want     bool
	}{
		{LedgerPending, LedgerSucceeded, true},
		{LedgerPending, LedgerFailed, true},
		{LedgerPending, LedgerCanceled, true},
		{LedgerFailed, LedgerSucceeded, true},
		{LedgerFailed, LedgerCanceled, true},
		{LedgerFailed, LedgerFailed, false},
		{LedgerSucceeded, LedgerFailed, false},
		{LedgerSucceeded, LedgerCanceled, false},
		{LedgerSucceeded, LedgerSucceeded, false},
		{LedgerCanceled, LedgerSucceeded, false},
		{LedgerFailed, LedgerPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestDepositStatus_CanTransition(t *testing.T) {
	assert.True(t, DepositPending.CanTransition(DepositAuthorized))
	assert.True(t, DepositPending.CanTransition(DepositCaptured))
	assert.True(t, DepositAuthorized.CanTransition(DepositCaptured))
	assert.True(t, DepositAuthorized.CanTransition(DepositReleased))
	assert.True(t, DepositAuthorized.CanTransition(DepositFailed))

	assert.False(t, DepositAuthorized.CanTransition(DepositPending))
	assert.False(t, DepositAuthorized.CanTransition(DepositAuthorized))
	assert.False(t, DepositCaptured.CanTransition(DepositReleased))
	assert.False(t, DepositReleased.CanTransition(DepositCaptured))
	assert.False(t, DepositFailed.CanTransition(DepositAuthorized))
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "charge_succeeded", EventChargeSucceeded.String())
	assert.Equal(t, "payout_failed", EventPayoutFailed.String())
	assert.Equal(t, "unknown", EventKind(999).String())
}

func TestChargeIntentData_Meta(t *testing.T) {
	var nilIntent *ChargeIntentData
	assert.Empty(t, nilIntent.Meta(MetaTenantID))
	assert.False(t, nilIntent.IsDeposit())

	intent := &ChargeIntentData{Metadata: map[string]string{MetaChargeKind: ChargeKindDeposit}}
	assert.True(t, intent.IsDeposit())
}

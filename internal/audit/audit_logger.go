package audit

import (
	"encoding/json"
	"log"
	"time"
)

type AuditEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	EventType      string    `json:"event_type"`
	ChargeIntentID string    `json:"charge_intent_id,omitempty"`
	TenantID       string    `json:"tenant_id,omitempty"`
	Status         string    `json:"status"`
	Details        any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

// LogTransition records a state change of a ledger entry or deposit.
func (a *AuditLogger) LogTransition(resource, chargeIntentID, tenantID, from, to, source string) {
	event := AuditEvent{
		Timestamp:      time.Now(),
		EventType:      "TRANSITION",
		ChargeIntentID: chargeIntentID,
		TenantID:       tenantID,
		Status:         to,
		Details: map[string]string{
			"resource": resource,
			"from":     from,
			"to":       to,
			"source":   source,
		},
	}
	a.log(event)
}

func (a *AuditLogger) LogError(chargeIntentID, tenantID string, err error) {
	event := AuditEvent{
		Timestamp:      time.Now(),
		EventType:      "ERROR",
		ChargeIntentID: chargeIntentID,
		TenantID:       tenantID,
		Status:         "FAILED",
		Details:        map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *AuditLogger) LogOperation(chargeIntentID, tenantID, operation, details string) {
	event := AuditEvent{
		Timestamp:      time.Now(),
		EventType:      operation,
		ChargeIntentID: chargeIntentID,
		TenantID:       tenantID,
		Status:         "SUCCESS",
		Details:        map[string]string{"details": details},
	}
	a.log(event)
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}

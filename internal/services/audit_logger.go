package services

import (
	"encoding/json"
	"log"
	"time"
)

// LedgerAuditEvent is emitted for every points ledger mutation so balance
// history can be reconciled from logs independently of the database.
type LedgerAuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	Points    int64     `json:"points"`
	Reason    string    `json:"reason"`
	Details   any       `json:"details,omitempty"`
}

type LedgerAuditLogger struct{}

func NewLedgerAuditLogger() *LedgerAuditLogger {
	return &LedgerAuditLogger{}
}

func (a *LedgerAuditLogger) LogDebit(userID string, points int64, reason, path string) {
	a.log(LedgerAuditEvent{
		Timestamp: time.Now(),
		EventType: "DEBIT",
		UserID:    userID,
		Points:    -points,
		Reason:    reason,
		Details:   map[string]string{"path": path},
	})
}

func (a *LedgerAuditLogger) LogCredit(userID string, points int64, reason string) {
	a.log(LedgerAuditEvent{
		Timestamp: time.Now(),
		EventType: "CREDIT",
		UserID:    userID,
		Points:    points,
		Reason:    reason,
	})
}

func (a *LedgerAuditLogger) LogError(userID, operation string, err error) {
	a.log(LedgerAuditEvent{
		Timestamp: time.Now(),
		EventType: "ERROR",
		UserID:    userID,
		Reason:    operation,
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *LedgerAuditLogger) log(event LedgerAuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}

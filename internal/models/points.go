package models

import (
	"encoding/json"
	"time"
)

// LedgerReason values written by this service. The ledger is append-only:
// a user's balance is the sum of deltas, entries are never updated or deleted.
const (
	ReasonSaveTrip   = "save_trip"
	ReasonRefundSave = "refund_save_trip_failed"
	ReasonTopup      = "topup"
	ReasonWelcome    = "welcome_bonus"
)

type LedgerEntry struct {
	ID        int64           `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Delta     int64           `json:"delta" db:"delta"` // signed, negative = debit
	Reason    string          `json:"reason" db:"reason"`
	Meta      json.RawMessage `json:"meta,omitempty" db:"meta"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// TopupSession tracks a points purchase from initialization to webhook settlement.
type TopupSession struct {
	ID          int64           `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Reference   string          `json:"reference" db:"reference"`
	Status      string          `json:"status" db:"status"` // initialized, settled, failed
	Currency    string          `json:"currency" db:"currency"`
	AmountMinor int64           `json:"amount_minor" db:"amount_minor"`
	Points      int64           `json:"points" db:"points"`
	Meta        json.RawMessage `json:"meta,omitempty" db:"meta"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

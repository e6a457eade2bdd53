package models

import (
	"encoding/json"
	"time"
)

// Destination is curated reference data: cover image plus "know before you go"
// metadata (currency, languages, plugs, tips). Read-only for this service.
type Destination struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Country   string          `json:"country" db:"country"`
	CoverURL  *string         `json:"cover_url" db:"cover_url"`
	Meta      json.RawMessage `json:"meta,omitempty" db:"meta"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

package models

import (
	"encoding/json"
	"time"
)

type Trip struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Title         string          `json:"title" db:"title"`
	StartDate     *string         `json:"start_date" db:"start_date"`
	EndDate       *string         `json:"end_date" db:"end_date"`
	EstTotalCost  *float64        `json:"est_total_cost" db:"est_total_cost"`
	Currency      *string         `json:"currency" db:"currency"`
	DestinationID *string         `json:"destination_id" db:"destination_id"`
	Inputs        json.RawMessage `json:"inputs,omitempty" db:"inputs"`
	CoverURL      *string         `json:"cover_url" db:"cover_url"`
	IsPublic      bool            `json:"is_public" db:"is_public"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// ItineraryItem is one activity block of a saved trip. Items are written in a
// single batch after the trip row exists and always reference its id.
type ItineraryItem struct {
	ID                int64    `json:"id" db:"id"`
	TripID            string   `json:"trip_id" db:"trip_id"`
	DayIndex          int      `json:"day_index" db:"day_index"`
	Date              *string  `json:"date" db:"date"`
	OrderIndex        int      `json:"order_index" db:"order_index"`
	When              string   `json:"when" db:"when_slot"` // morning, afternoon, evening
	PlaceID           *string  `json:"place_id" db:"place_id"`
	Title             string   `json:"title" db:"title"`
	EstCost           *float64 `json:"est_cost" db:"est_cost"`
	DurationMin       *int     `json:"duration_min" db:"duration_min"`
	TravelMinFromPrev *int     `json:"travel_min_from_prev" db:"travel_min_from_prev"`
	Notes             *string  `json:"notes" db:"notes"`
}

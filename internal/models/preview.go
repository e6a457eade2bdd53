package models

import "encoding/json"

// PreviewResponse is the ephemeral itinerary produced by the generation step.
// It lives in the preview cache until it is either discarded or converted into
// a durable trip by the save workflow, which consumes it exactly once.
type PreviewResponse struct {
	TripSummary TripSummary    `json:"trip_summary"`
	Days        []PreviewDay   `json:"days"`
	Places      []PreviewPlace `json:"places,omitempty"`
}

type TripSummary struct {
	TotalDays    int         `json:"total_days"`
	EstTotalCost *float64    `json:"est_total_cost"`
	Currency     *string     `json:"currency"`
	StartDate    *string     `json:"start_date"`
	EndDate      *string     `json:"end_date"`
	Inputs       *TripInputs `json:"inputs"`
}

type TripInputs struct {
	Destinations []InputDestination `json:"destinations"`
	StartDate    *string            `json:"start_date"`
	EndDate      *string            `json:"end_date"`
	Budget       *float64           `json:"budget,omitempty"`
	Pace         string             `json:"pace,omitempty"`
	Raw          json.RawMessage    `json:"-"`
}

type InputDestination struct {
	ID       *string `json:"id"`
	Name     string  `json:"name"`
	CoverURL *string `json:"cover_url,omitempty"`
}

type PreviewDay struct {
	Date   *string        `json:"date"`
	Blocks []PreviewBlock `json:"blocks"`
}

type PreviewBlock struct {
	When              string   `json:"when"` // morning, afternoon, evening
	Title             string   `json:"title"`
	PlaceID           *string  `json:"place_id"`
	EstCost           *float64 `json:"est_cost"`
	DurationMin       *int     `json:"duration_min"`
	TravelMinFromPrev *int     `json:"travel_min_from_prev"`
	Notes             *string  `json:"notes"`
}

type PreviewPlace struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind string   `json:"kind,omitempty"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

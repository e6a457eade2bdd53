package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/itinero/backend/internal/models"
)

// TripService persists trips and their itinerary items and serves the
// read endpoints for the trips dashboard and public share pages.
type TripService struct {
	db *sql.DB
}

func NewTripService(db *sql.DB) *TripService {
	return &TripService{db: db}
}

// InsertTrip creates the trip row and returns its generated id. The id must
// exist before any itinerary item can reference it.
func (s *TripService) InsertTrip(ctx context.Context, trip *models.Trip) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO trips (user_id, title, start_date, end_date, est_total_cost, currency, destination_id, inputs, cover_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id`,
		trip.UserID, trip.Title, trip.StartDate, trip.EndDate, trip.EstTotalCost,
		trip.Currency, trip.DestinationID, trip.Inputs, trip.CoverURL).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// InsertItineraryItems writes all items in one multi-row insert, in the order
// given. Callers must not pass an empty slice.
func (s *TripService) InsertItineraryItems(ctx context.Context, items []models.ItineraryItem) error {
	if len(items) == 0 {
		return fmt.Errorf("no itinerary items to insert")
	}

	valueStrings := make([]string, 0, len(items))
	args := make([]interface{}, 0, len(items)*11)
	argIndex := 1
	for _, item := range items {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			argIndex, argIndex+1, argIndex+2, argIndex+3, argIndex+4, argIndex+5, argIndex+6, argIndex+7, argIndex+8, argIndex+9, argIndex+10))
		args = append(args, item.TripID, item.DayIndex, item.Date, item.OrderIndex, item.When,
			item.PlaceID, item.Title, item.EstCost, item.DurationMin, item.TravelMinFromPrev, item.Notes)
		argIndex += 11
	}

	query := `
		INSERT INTO itinerary_items (trip_id, day_index, date, order_index, when_slot, place_id, title, est_cost, duration_min, travel_min_from_prev, notes)
		VALUES ` + strings.Join(valueStrings, ", ")

	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteTrip removes a trip owned by userID; itinerary items cascade.
func (s *TripService) DeleteTrip(ctx context.Context, tripID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM trips WHERE id = $1 AND user_id = $2`, tripID, userID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *TripService) fetchTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip := &models.Trip{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, start_date, end_date, est_total_cost, currency,
		       destination_id, COALESCE(inputs, '{}'::jsonb), cover_url, is_public, created_at
		FROM trips
		WHERE id = $1`, tripID).Scan(
		&trip.ID, &trip.UserID, &trip.Title, &trip.StartDate, &trip.EndDate,
		&trip.EstTotalCost, &trip.Currency, &trip.DestinationID, &trip.Inputs,
		&trip.CoverURL, &trip.IsPublic, &trip.CreatedAt)
	if err != nil {
		return nil, err
	}
	return trip, nil
}

func (s *TripService) fetchItems(ctx context.Context, tripID string) ([]models.ItineraryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trip_id, day_index, date, order_index, when_slot, place_id, title,
		       est_cost, duration_min, travel_min_from_prev, notes
		FROM itinerary_items
		WHERE trip_id = $1
		ORDER BY day_index, order_index`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.ItineraryItem{}
	for rows.Next() {
		var item models.ItineraryItem
		if err := rows.Scan(&item.ID, &item.TripID, &item.DayIndex, &item.Date, &item.OrderIndex,
			&item.When, &item.PlaceID, &item.Title, &item.EstCost, &item.DurationMin,
			&item.TravelMinFromPrev, &item.Notes); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *TripService) fetchTrips(ctx context.Context, userID string, limit int) ([]models.Trip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, start_date, end_date, est_total_cost, currency,
		       destination_id, COALESCE(inputs, '{}'::jsonb), cover_url, is_public, created_at
		FROM trips
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []models.Trip{}
	for rows.Next() {
		var trip models.Trip
		if err := rows.Scan(&trip.ID, &trip.UserID, &trip.Title, &trip.StartDate, &trip.EndDate,
			&trip.EstTotalCost, &trip.Currency, &trip.DestinationID, &trip.Inputs,
			&trip.CoverURL, &trip.IsPublic, &trip.CreatedAt); err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// ListTrips lists the current user's saved trips
// @Summary List trips
// @Description Get the current user's saved trips, newest first
// @Tags trips
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{trips=[]models.Trip,count=int}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /trips [get]
func (s *TripService) ListTrips(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	trips, err := s.fetchTrips(r.Context(), userID, 50)
	if err != nil {
		log.Printf("[TRIPS] Failed to list trips for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch trips", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"trips": trips,
		"count": len(trips),
	})
}

// GetTrip retrieves one trip with its itinerary items
// @Summary Get trip by ID
// @Description Retrieve a trip and its itinerary items; owners only
// @Tags trips
// @Produce json
// @Security BearerAuth
// @Param tripId path string true "Trip ID"
// @Success 200 {object} object{trip=models.Trip,items=[]models.ItineraryItem}
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /trips/{tripId} [get]
func (s *TripService) GetTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	tripID := chi.URLParam(r, "tripId")

	trip, err := s.fetchTrip(r.Context(), tripID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Trip not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[TRIPS] Failed to fetch trip %s: %v", tripID, err)
			SendErrorResponse(w, "Failed to fetch trip", http.StatusInternalServerError, nil)
		}
		return
	}

	if trip.UserID != userID {
		SendErrorResponse(w, "Trip not found", http.StatusNotFound, nil)
		return
	}

	items, err := s.fetchItems(r.Context(), tripID)
	if err != nil {
		log.Printf("[TRIPS] Failed to fetch items for trip %s: %v", tripID, err)
		SendErrorResponse(w, "Failed to fetch itinerary", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"trip":  trip,
		"items": items,
	})
}

// RemoveTrip deletes a trip owned by the current user
// @Summary Delete trip
// @Description Delete a saved trip and its itinerary items
// @Tags trips
// @Produce json
// @Security BearerAuth
// @Param tripId path string true "Trip ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /trips/{tripId} [delete]
func (s *TripService) RemoveTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	tripID := chi.URLParam(r, "tripId")

	if err := s.DeleteTrip(r.Context(), tripID, userID); err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Trip not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[TRIPS] Failed to delete trip %s: %v", tripID, err)
			SendErrorResponse(w, "Failed to delete trip", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// GetPublicTrip renders a shared trip without authentication
// @Summary Get shared trip
// @Description Retrieve a publicly shared trip and its itinerary items
// @Tags share
// @Produce json
// @Param tripId path string true "Trip ID"
// @Success 200 {object} object{trip=models.Trip,items=[]models.ItineraryItem}
// @Failure 404 {object} ErrorResponse
// @Router /public/trips/{tripId} [get]
func (s *TripService) GetPublicTrip(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	trip, err := s.fetchTrip(r.Context(), tripID)
	if err != nil || !trip.IsPublic {
		SendErrorResponse(w, "Trip not found", http.StatusNotFound, nil)
		return
	}

	items, err := s.fetchItems(r.Context(), tripID)
	if err != nil {
		log.Printf("[TRIPS] Failed to fetch items for shared trip %s: %v", tripID, err)
		SendErrorResponse(w, "Failed to fetch itinerary", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"trip":  trip,
		"items": items,
	})
}

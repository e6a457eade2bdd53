package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itinero/backend/internal/models"
)

// DestinationService reads curated destination reference data: cover images
// and "know before you go" metadata. This service never writes.
type DestinationService struct {
	db *sql.DB
}

func NewDestinationService(db *sql.DB) *DestinationService {
	return &DestinationService{db: db}
}

// GetCoverURL looks up the authoritative cover image for a destination.
// Returns nil (not an error) when the destination has no cover.
func (s *DestinationService) GetCoverURL(ctx context.Context, destinationID string) (*string, error) {
	var coverURL sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT cover_url FROM destinations WHERE id = $1`, destinationID).Scan(&coverURL)
	if err != nil {
		return nil, err
	}
	if !coverURL.Valid {
		return nil, nil
	}
	return &coverURL.String, nil
}

// ListDestinations lists available destinations
// @Summary List destinations
// @Description Get all curated destinations with cover images
// @Tags destinations
// @Produce json
// @Success 200 {object} object{destinations=[]models.Destination,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /destinations [get]
func (s *DestinationService) ListDestinations(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, name, country, cover_url, COALESCE(meta, '{}'::jsonb), created_at
		FROM destinations
		ORDER BY name`)
	if err != nil {
		log.Printf("[DESTINATIONS] Failed to list destinations: %v", err)
		SendErrorResponse(w, "Failed to fetch destinations", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	destinations := []models.Destination{}
	for rows.Next() {
		var d models.Destination
		if err := rows.Scan(&d.ID, &d.Name, &d.Country, &d.CoverURL, &d.Meta, &d.CreatedAt); err != nil {
			log.Printf("[DESTINATIONS] Scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch destinations", http.StatusInternalServerError, nil)
			return
		}
		destinations = append(destinations, d)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"destinations": destinations,
		"count":        len(destinations),
	})
}

// GetDestination retrieves one destination with its KBYG metadata
// @Summary Get destination
// @Description Retrieve a destination including know-before-you-go metadata
// @Tags destinations
// @Produce json
// @Param destinationId path string true "Destination ID"
// @Success 200 {object} models.Destination
// @Failure 404 {object} ErrorResponse
// @Router /destinations/{destinationId} [get]
func (s *DestinationService) GetDestination(w http.ResponseWriter, r *http.Request) {
	destinationID := chi.URLParam(r, "destinationId")

	var d models.Destination
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, name, country, cover_url, COALESCE(meta, '{}'::jsonb), created_at
		FROM destinations
		WHERE id = $1`, destinationID).Scan(&d.ID, &d.Name, &d.Country, &d.CoverURL, &d.Meta, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Destination not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[DESTINATIONS] Failed to fetch destination %s: %v", destinationID, err)
			SendErrorResponse(w, "Failed to fetch destination", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d)
}

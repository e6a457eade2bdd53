package handlers

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itinero/backend/internal/services"
)

type ShareHandler struct {
	service   *services.ShareService
	validator *services.ValidationHelper
}

func NewShareHandler(service *services.ShareService) *ShareHandler {
	return &ShareHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// ShareQR serves a QR code image for a public trip
// @Summary Trip share QR code
// @Description Generate a QR code PNG linking to the trip's public page
// @Tags trips
// @Produce png
// @Param tripId path string true "Trip ID"
// @Success 200 {file} file "PNG image"
// @Failure 404 {object} services.ErrorResponse
// @Router /trips/{tripId}/share-qr [get]
func (h *ShareHandler) ShareQR(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	image, err := h.service.ShareQR(r.Context(), tripID)
	if err != nil {
		if err == sql.ErrNoRows || err == services.ErrTripNotShared {
			services.SendErrorResponse(w, "Trip not found", http.StatusNotFound, nil)
		} else {
			services.SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(image)
}

// SetVisibility toggles a trip's public flag
// @Summary Set trip visibility
// @Description Make a trip public or private; only the owner may change it
// @Tags trips
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tripId path string true "Trip ID"
// @Param request body object{public=bool} true "Visibility request"
// @Success 200 {object} object{success=bool,share_url=string}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /trips/{tripId}/visibility [put]
func (h *ShareHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	tripID := chi.URLParam(r, "tripId")

	var req struct {
		Public *bool `json:"public" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := h.service.SetVisibility(r.Context(), tripID, userID, *req.Public); err != nil {
		if err == sql.ErrNoRows {
			services.SendErrorResponse(w, "Trip not found", http.StatusNotFound, nil)
		} else {
			services.SendErrorResponse(w, "Failed to update visibility", http.StatusInternalServerError, nil)
		}
		return
	}

	response := map[string]any{"success": true}
	if *req.Public {
		response["share_url"] = h.service.ShareURL(tripID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

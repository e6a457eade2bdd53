package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/itinero/backend/internal/services"
)

type SaveHandler struct {
	service   *services.SaveTripService
	validator *services.ValidationHelper
}

func NewSaveHandler(service *services.SaveTripService) *SaveHandler {
	return &SaveHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// SaveTrip commits the cached preview as a durable trip
// @Summary Save draft as trip
// @Description Spend points and persist the current preview as a trip with itinerary items
// @Tags trips
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{cost=int64} false "Optional override of the points cost"
// @Success 201 {object} object{trip_id=string,balance=int64,redirect=string}
// @Failure 401 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /trips/save [post]
func (h *SaveHandler) SaveTrip(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)

	var req struct {
		Cost int64 `json:"cost" validate:"omitempty,gte=0"`
	}

	// Body is optional; an empty body means default cost.
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil && err != io.EOF {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	outcome, saveErr := h.service.SaveDraftAsTrip(r.Context(), userID, req.Cost)
	if saveErr != nil {
		switch saveErr.Kind {
		case services.FailNotAuthenticated:
			services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
		case services.FailInsufficientPoints:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   "Insufficient points",
				"topup":   "/points/topup",
			})
		case services.FailPreviewMissing:
			services.SendErrorResponse(w, "No preview to save", http.StatusNotFound, nil)
		default:
			services.SendErrorResponse(w, "Failed to save trip", http.StatusInternalServerError, nil)
		}
		return
	}

	response := map[string]any{
		"success":  true,
		"trip_id":  outcome.TripID,
		"redirect": fmt.Sprintf("/trips/%s", outcome.TripID),
	}
	if outcome.NewBalance != nil {
		response["balance"] = *outcome.NewBalance
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

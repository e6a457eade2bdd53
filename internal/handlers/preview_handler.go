package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/itinero/backend/internal/models"
	"github.com/itinero/backend/internal/services"
)

type PreviewHandler struct {
	service *services.PreviewService
}

func NewPreviewHandler(service *services.PreviewService) *PreviewHandler {
	return &PreviewHandler{service: service}
}

// PutPreview stores the generated preview for the current user
// @Summary Store preview
// @Description Cache the user's generated trip preview until saved or replaced
// @Tags preview
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PreviewResponse true "Generated preview"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /preview [put]
func (h *PreviewHandler) PutPreview(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)

	var preview models.PreviewResponse
	if err := dec.Decode(&preview); err != nil {
		services.SendErrorResponse(w, "Invalid preview payload", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if len(preview.Days) == 0 {
		services.SendErrorResponse(w, "Preview must contain at least one day", http.StatusBadRequest, nil)
		return
	}

	if err := h.service.Store(r.Context(), userID, &preview); err != nil {
		services.SendErrorResponse(w, "Failed to store preview", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// GetPreview returns the cached preview for the current user
// @Summary Get preview
// @Description Retrieve the user's cached trip preview
// @Tags preview
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.PreviewResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /preview [get]
func (h *PreviewHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	preview, err := h.service.Read(r.Context(), userID)
	if err != nil {
		if err == services.ErrNoPreview {
			services.SendErrorResponse(w, "No preview available", http.StatusNotFound, nil)
		} else {
			services.SendErrorResponse(w, "Failed to read preview", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(preview)
}

// DeletePreview discards the cached preview for the current user
// @Summary Discard preview
// @Description Delete the user's cached trip preview
// @Tags preview
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool}
// @Failure 401 {object} services.ErrorResponse
// @Router /preview [delete]
func (h *PreviewHandler) DeletePreview(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if err := h.service.Clear(r.Context(), userID); err != nil {
		services.SendErrorResponse(w, "Failed to discard preview", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

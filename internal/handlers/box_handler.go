package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/familyfund/backend/internal/services"
)

type BoxHandler struct {
	service *services.BoxService
}

func NewBoxHandler(service *services.BoxService) *BoxHandler {
	return &BoxHandler{service: service}
}

// ListBoxes returns the configured boxes
// @Summary List boxes
// @Description List the fund's sub-accounts with name and suggested monthly amount
// @Tags boxes
// @Produce json
// @Success 200 {object} object{boxes=[]config.Box}
// @Router /boxes [get]
func (h *BoxHandler) ListBoxes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"boxes": h.service.List(),
	})
}

// GetDepositQR returns a QR code with the box's deposit instructions
// @Summary Box deposit QR code
// @Description PNG QR code encoding box ID, name, suggested amount and payment reference
// @Tags boxes
// @Produce png
// @Param boxId path string true "Box ID"
// @Success 200 {file} binary
// @Failure 404 {object} services.ErrorResponse
// @Router /boxes/{boxId}/qr [get]
func (h *BoxHandler) GetDepositQR(w http.ResponseWriter, r *http.Request) {
	boxID := chi.URLParam(r, "boxId")

	png, err := h.service.DepositQR(boxID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			services.SendErrorResponse(w, "Unknown box", http.StatusNotFound, nil)
		} else {
			services.SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/familyfund/backend/internal/config"
	"github.com/familyfund/backend/internal/services"
)

func testRouter() *chi.Mux {
	boxes := &config.BoxConfig{Boxes: []config.Box{
		{ID: "1", Name: "Main Fund", MonthlyAmount: decimal.NewFromInt(100)},
		{ID: "2", Name: "Trips", MonthlyAmount: decimal.NewFromInt(50)},
	}}
	handler := NewBoxHandler(services.NewBoxService(boxes))

	r := chi.NewRouter()
	r.Get("/boxes", handler.ListBoxes)
	r.Get("/boxes/{boxId}/qr", handler.GetDepositQR)
	return r
}

func TestBoxHandler_ListBoxes(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boxes", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Boxes []config.Box `json:"boxes"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response.Boxes, 2)
	assert.Equal(t, "Main Fund", response.Boxes[0].Name)
}

func TestBoxHandler_GetDepositQR(t *testing.T) {
	router := testRouter()

	t.Run("returns a PNG image", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/boxes/1/qr", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, "\x89PNG", w.Body.String()[:4])
	})

	t.Run("unknown box fails with not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/boxes/9/qr", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

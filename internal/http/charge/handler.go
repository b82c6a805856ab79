package charge

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PeymanNr/b2b-charge-service/internal/engine"
	"github.com/PeymanNr/b2b-charge-service/internal/http/respond"
)

type Handler struct {
	engine *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.sell)
}

type sellChargeRequest struct {
	VendorID    uuid.UUID       `json:"vendor_id"`
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
}

func (h *Handler) sell(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		http.Error(w, "Idempotency-Key header is required", http.StatusBadRequest)
		return
	}

	var req sellChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.VendorID == uuid.Nil {
		http.Error(w, "vendor_id is required", http.StatusBadRequest)
		return
	}

	if req.PhoneNumber == "" {
		http.Error(w, "phone_number is required", http.StatusBadRequest)
		return
	}

	res, err := h.engine.SellCharge(r.Context(), req.VendorID, req.PhoneNumber, req.Amount, key)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, res)
}

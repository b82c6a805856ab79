package vendors

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PeymanNr/b2b-charge-service/internal/engine"
	"github.com/PeymanNr/b2b-charge-service/internal/http/respond"
	"github.com/PeymanNr/b2b-charge-service/internal/ledger"
	"github.com/PeymanNr/b2b-charge-service/internal/reconcile"
	"github.com/PeymanNr/b2b-charge-service/internal/vendors"
)

// Store is the subset of the vendor store the handler needs.
type Store interface {
	Create(ctx context.Context, v *vendors.Vendor) error
	Get(ctx context.Context, id uuid.UUID) (*vendors.Vendor, error)
}

type Handler struct {
	store      Store
	ledger     *ledger.Service
	engine     *engine.Engine
	reconciler *reconcile.Engine
}

func NewHandler(store Store, svc *ledger.Service, eng *engine.Engine, rec *reconcile.Engine) *Handler {
	return &Handler{store: store, ledger: svc, engine: eng, reconciler: rec}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/balance", h.balance)
	r.Get("/{id}/transactions", h.transactions)
	r.Get("/{id}/summary", h.summary)
	r.Post("/{id}/reconcile", h.reconcile)
}

type createVendorRequest struct {
	Name       string           `json:"name"`
	Balance    decimal.Decimal  `json:"balance"`
	DailyLimit *decimal.Decimal `json:"daily_limit,omitempty"`
}

type vendorResponse struct {
	ID         uuid.UUID        `json:"id"`
	Name       string           `json:"name"`
	Balance    decimal.Decimal  `json:"balance"`
	DailyLimit *decimal.Decimal `json:"daily_limit,omitempty"`
	Version    int64            `json:"version"`
	Active     bool             `json:"active"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func toResponse(v *vendors.Vendor) vendorResponse {
	return vendorResponse{
		ID:         v.ID,
		Name:       v.Name,
		Balance:    v.Balance,
		DailyLimit: v.DailyLimit,
		Version:    v.Version,
		Active:     v.Active,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	// Vendors open at zero and are funded through applied credit requests,
	// so a replay of the transaction log always reproduces the stored
	// balance. A nonzero opening balance would be invisible to the log.
	if !req.Balance.IsZero() {
		http.Error(w, "opening balance must be zero; fund the vendor through a credit request", http.StatusBadRequest)
		return
	}

	v := &vendors.Vendor{
		ID:         uuid.New(),
		Name:       req.Name,
		Balance:    decimal.Zero,
		DailyLimit: req.DailyLimit,
		Active:     true,
	}

	if err := h.store.Create(r.Context(), v); err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(v))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	v, err := h.store.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(v))
}

type balanceResponse struct {
	VendorID uuid.UUID       `json:"vendor_id"`
	Balance  decimal.Decimal `json:"balance"`
	Version  int64           `json:"version"`
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	v, err := h.engine.GetBalance(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, balanceResponse{
		VendorID: v.ID,
		Balance:  v.Balance,
		Version:  v.Version,
	})
}

type transactionResponse struct {
	ID              uuid.UUID       `json:"id"`
	Seq             int64           `json:"seq"`
	VendorID        uuid.UUID       `json:"vendor_id"`
	Type            ledger.Type     `json:"type"`
	Status          ledger.Status   `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	PhoneNumber     string          `json:"phone_number,omitempty"`
	CreditRequestID *uuid.UUID      `json:"credit_request_id,omitempty"`
	BalanceBefore   decimal.Decimal `json:"balance_before"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	Description     string          `json:"description,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	filter := ledger.HistoryFilter{}

	if s := r.URL.Query().Get("type"); s != "" {
		t := ledger.Type(s)
		filter.Type = &t
	}

	if s := r.URL.Query().Get("start_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.StartDate = &t
		}
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.EndDate = &t
		}
	}

	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			filter.Limit = n
		}
	}

	txs, err := h.ledger.History(r.Context(), id, filter)
	if err != nil {
		respond.Error(w, err)
		return
	}

	out := make([]transactionResponse, len(txs))
	for i, t := range txs {
		out[i] = transactionResponse{
			ID:              t.ID,
			Seq:             t.Seq,
			VendorID:        t.VendorID,
			Type:            t.Type,
			Status:          t.Status,
			Amount:          t.Amount,
			PhoneNumber:     t.PhoneNumber,
			CreditRequestID: t.CreditRequestID,
			BalanceBefore:   t.BalanceBefore,
			BalanceAfter:    t.BalanceAfter,
			Description:     t.Description,
			CreatedAt:       t.CreatedAt,
		}
	}

	respond.JSON(w, http.StatusOK, out)
}

type summaryResponse struct {
	TotalCredits decimal.Decimal `json:"total_credits"`
	CreditCount  int             `json:"credit_count"`
	TotalSales   decimal.Decimal `json:"total_sales"`
	SaleCount    int             `json:"sale_count"`
	Net          decimal.Decimal `json:"net"`
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	sum, err := h.ledger.Summary(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, summaryResponse{
		TotalCredits: sum.TotalCredits,
		CreditCount:  sum.CreditCount,
		TotalSales:   sum.TotalSales,
		SaleCount:    sum.SaleCount,
		Net:          sum.Net,
	})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	fix := r.URL.Query().Get("fix") == "true"

	report, err := h.reconciler.Reconcile(r.Context(), id, fix)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, report)
}

// Package respond maps domain errors onto HTTP statuses and writes JSON
// bodies, so every handler reports the error taxonomy the same way.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/PeymanNr/b2b-charge-service/internal/credit"
	"github.com/PeymanNr/b2b-charge-service/internal/engine"
	"github.com/PeymanNr/b2b-charge-service/internal/reconcile"
	"github.com/PeymanNr/b2b-charge-service/internal/vendors"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error writes err with the status its category maps to. Unrecognized
// errors are reported as a generic 500 so internals never leak.
func Error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vendors.ErrNotFound),
		errors.Is(err, credit.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrAmountNotPositive),
		errors.Is(err, credit.ErrAmountNotPositive):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrInsufficientBalance),
		errors.Is(err, engine.ErrDailyLimitExceeded):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrConcurrentDuplicate),
		errors.Is(err, credit.ErrInvalidTransition),
		errors.Is(err, reconcile.ErrVendorBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case engine.Retryable(err):
		w.Header().Set("Retry-After", "1")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("unhandled error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

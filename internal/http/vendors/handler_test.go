package vendors_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeymanNr/b2b-charge-service/internal/engine"
	"github.com/PeymanNr/b2b-charge-service/internal/guard"
	vendorsHandler "github.com/PeymanNr/b2b-charge-service/internal/http/vendors"
	kvmemory "github.com/PeymanNr/b2b-charge-service/internal/kv/memory"
	"github.com/PeymanNr/b2b-charge-service/internal/ledger"
	"github.com/PeymanNr/b2b-charge-service/internal/ledger/memory"
	"github.com/PeymanNr/b2b-charge-service/internal/lock"
	"github.com/PeymanNr/b2b-charge-service/internal/reconcile"
	"github.com/PeymanNr/b2b-charge-service/internal/vendors"
)

// vendorStore adapts the in-memory ledger store to the handler's vendor
// store contract.
type vendorStore struct {
	store *memory.Store
}

func (s *vendorStore) Create(_ context.Context, v *vendors.Vendor) error {
	s.store.PutVendor(v)
	return nil
}

func (s *vendorStore) Get(ctx context.Context, id uuid.UUID) (*vendors.Vendor, error) {
	return s.store.ReadVendor(ctx, id)
}

func newServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.New()

	kv := kvmemory.New()
	eng := engine.New(
		store,
		store,
		guard.NewIdempotency(kv, time.Hour, time.Minute),
		guard.NewDoubleSpend(kv, time.Minute),
		lock.NewManager(kv, 30*time.Second),
		engine.Config{LockTimeout: time.Second, CommitAttempts: 3},
	)

	h := vendorsHandler.NewHandler(
		&vendorStore{store: store},
		ledger.NewService(store),
		eng,
		reconcile.New(store, decimal.NewFromInt(100)),
	)

	r := chi.NewRouter()
	r.Route("/vendors", h.Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, store
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()

	resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)

	return resp
}

func TestHandler_Create(t *testing.T) {
	srv, _ := newServer(t)

	resp := postJSON(t, srv, "/vendors/", `{"name":"acme","daily_limit":"50000"}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got struct {
		ID      uuid.UUID       `json:"id"`
		Name    string          `json:"name"`
		Balance decimal.Decimal `json:"balance"`
		Active  bool            `json:"active"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, "acme", got.Name)
	assert.True(t, got.Balance.IsZero())
	assert.True(t, got.Active)
}

// Vendors open at zero and are funded through applied credit requests; an
// opening balance outside the transaction log would make every replay of
// the log disagree with the stored balance.
func TestHandler_CreateRejectsOpeningBalance(t *testing.T) {
	srv, store := newServer(t)

	resp := postJSON(t, srv, "/vendors/", `{"name":"acme","balance":"10000"}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ids, err := store.ListVendorIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestHandler_CreateValidation(t *testing.T) {
	srv, _ := newServer(t)

	type testCase struct {
		name string
		body string
	}

	tests := []testCase{
		{name: "MissingName", body: `{"balance":"0"}`},
		{name: "NegativeBalance", body: `{"name":"acme","balance":"-1"}`},
		{name: "MalformedBody", body: `{"name":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv, "/vendors/", tt.body)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

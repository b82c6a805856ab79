package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/PeymanNr/b2b-charge-service/internal/config"
	"github.com/PeymanNr/b2b-charge-service/internal/credit"
	creditStore "github.com/PeymanNr/b2b-charge-service/internal/credit/store"
	"github.com/PeymanNr/b2b-charge-service/internal/database"
	"github.com/PeymanNr/b2b-charge-service/internal/engine"
	"github.com/PeymanNr/b2b-charge-service/internal/guard"
	chargeHttp "github.com/PeymanNr/b2b-charge-service/internal/http"
	chargeHandler "github.com/PeymanNr/b2b-charge-service/internal/http/charge"
	creditHandler "github.com/PeymanNr/b2b-charge-service/internal/http/credit"
	vendorHandler "github.com/PeymanNr/b2b-charge-service/internal/http/vendors"
	kvPostgres "github.com/PeymanNr/b2b-charge-service/internal/kv/postgres"
	"github.com/PeymanNr/b2b-charge-service/internal/ledger"
	ledgerStore "github.com/PeymanNr/b2b-charge-service/internal/ledger/postgres"
	"github.com/PeymanNr/b2b-charge-service/internal/lock"
	"github.com/PeymanNr/b2b-charge-service/internal/reconcile"
	vendorStore "github.com/PeymanNr/b2b-charge-service/internal/vendors/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	threshold, err := cfg.MinorThreshold()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	kv := kvPostgres.New(db)
	go sweep(ctx, kv, cfg.Ledger.SweepInterval)

	var (
		store   = ledgerStore.New(db)
		credits = creditStore.New(db)
		idem    = guard.NewIdempotency(kv, cfg.Ledger.IdempotencyTTL, cfg.Ledger.InflightTTL)
		spend   = guard.NewDoubleSpend(kv, cfg.Ledger.DoubleSpendTTL)
		locks   = lock.NewManager(kv, cfg.Ledger.LockLease)
	)

	var (
		mutationEngine = engine.New(store, credits, idem, spend, locks, engine.Config{
			LockTimeout:       cfg.Ledger.LockTimeout,
			CommitAttempts:    cfg.Ledger.CommitAttempts,
			RetryBackoff:      cfg.Ledger.RetryBackoff,
			EnforceDailyLimit: cfg.Ledger.EnforceDailyLimit,
		})
		ledgerService = ledger.NewService(store)
		creditService = credit.NewService(credits)
		reconciler    = reconcile.New(store, threshold)
	)

	var (
		vendorH = vendorHandler.NewHandler(vendorStore.New(db), ledgerService, mutationEngine, reconciler)
		creditH = creditHandler.NewHandler(creditService, mutationEngine)
		chargeH = chargeHandler.NewHandler(mutationEngine)
	)

	router := chargeHttp.New(vendorH, creditH, chargeH)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	slog.Info("starting server", "port", srv.Addr)

	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// sweep periodically purges expired idempotency results, double-spend
// markers and lock rows so the kv table does not grow unbounded.
func sweep(ctx context.Context, kv *kvPostgres.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := kv.Sweep(ctx); err != nil {
				slog.Error("kv sweep failed", "error", err)
			} else if n > 0 {
				slog.Debug("kv sweep", "purged", n)
			}
		}
	}
}

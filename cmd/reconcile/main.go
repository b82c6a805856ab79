// Command reconcile audits vendor balances against the transaction log
// from the command line. Without -vendor-id it sweeps every vendor.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/PeymanNr/b2b-charge-service/internal/config"
	"github.com/PeymanNr/b2b-charge-service/internal/database"
	ledgerStore "github.com/PeymanNr/b2b-charge-service/internal/ledger/postgres"
	"github.com/PeymanNr/b2b-charge-service/internal/reconcile"
	vendorStore "github.com/PeymanNr/b2b-charge-service/internal/vendors/store"
)

func main() {
	var (
		vendorFlag  = flag.String("vendor-id", "", "reconcile a single vendor")
		fixFlag     = flag.Bool("fix", false, "auto-correct minor discrepancies")
		concurrency = flag.Int("concurrency", 4, "parallel vendors during a sweep")
	)

	flag.Parse()

	if err := run(*vendorFlag, *fixFlag, *concurrency); err != nil {
		slog.Error("reconciliation failed", "error", err)
		os.Exit(1)
	}
}

func run(vendorID string, fix bool, concurrency int) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	threshold, err := cfg.MinorThreshold()
	if err != nil {
		return err
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	reconciler := reconcile.New(ledgerStore.New(db), threshold)

	if vendorID != "" {
		id, err := uuid.Parse(vendorID)
		if err != nil {
			return fmt.Errorf("invalid vendor id %q: %w", vendorID, err)
		}

		report, err := reconciler.Reconcile(ctx, id, fix)
		if err != nil {
			return err
		}

		return print(report)
	}

	summary, err := reconciler.ReconcileAll(ctx, vendorStore.New(db), fix, concurrency)
	if err != nil {
		return err
	}

	return print(summary)
}

func print(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

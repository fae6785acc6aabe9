package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/IlyushaZ/token-sale/pkg/config"
	"github.com/IlyushaZ/token-sale/pkg/database"
)

// Mints sale inventory to the sale instance and funds accounts in postgres storage.
// Running it twice credits everything twice.
func main() {
	cfg := config.New()

	t0 := time.Now()
	defer func() { log.Printf("Seeding done. Elapsed: %s", time.Since(t0)) }()

	db, closeDB, err := database.New(cfg.PostgresAddr, cfg.PostgresDB, cfg.PostgresUser, cfg.PostgresPassword)
	if err != nil {
		log.Fatalf("### Can't init database: %v", err)
	}
	defer closeDB()

	ctx := context.Background()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("### Can't migrate database: %v", err)
	}

	funds, err := database.ParseFunds(cfg.SeedFund)
	if err != nil {
		log.Fatalf("### Can't parse funds: %v", err)
	}

	plan := database.SeedPlan{
		Token:    common.HexToAddress(cfg.SeedTokenAddr),
		TokenID:  cfg.SeedTokenID,
		Holder:   cfg.Contract(),
		Quantity: cfg.SeedAmount,
		Funds:    funds,
	}

	store := &database.Postgres{DB: db, Contract: cfg.Contract()}
	if err := database.Seed(ctx, store, plan); err != nil {
		slog.Error("can't seed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("seeded",
		slog.String("token", plan.Token.Hex()),
		slog.Uint64("token_id", plan.TokenID),
		slog.Uint64("quantity", plan.Quantity),
		slog.Int("funded_accounts", len(funds)),
	)
}

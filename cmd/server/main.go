package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/IlyushaZ/token-sale/pkg/cache"
	"github.com/IlyushaZ/token-sale/pkg/config"
	"github.com/IlyushaZ/token-sale/pkg/database"
	"github.com/IlyushaZ/token-sale/pkg/limiter"
	"github.com/IlyushaZ/token-sale/pkg/server"
	"github.com/IlyushaZ/token-sale/pkg/service"
)

const (
	gracefulTimeout = time.Second * 15
)

func main() {
	cfg := config.New()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, attempts, closeStore, err := composeStore(ctx, cfg)
	if err != nil {
		log.Fatalf("### Can't init storage: %v", err)
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.CacheRoyalties || cfg.PurchasesLimit > 0 {
		var closeRedis func() error

		rdb, closeRedis, err = cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisUser, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("### Can't init redis: %v", err)
		}
		defer closeRedis()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	saleSvc := composeServices(store, attempts, rdb, reg, cfg)

	srv, err := server.New(cfg.ListenAddr, saleSvc, reg)
	if err != nil {
		log.Fatalf("### Can't create server: %v", err)
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("### Can't listen and serve: %v", err)
		}
	}()
	slog.Info(fmt.Sprintf("HTTP server listening at %s", srv.Addr))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("can't shutdown server gracefully", slog.Any("error", err))
	}
}

// composeStore opens the configured storage. Memory storage is seeded from config since
// it starts empty on every run.
func composeStore(ctx context.Context, cfg *config.Config) (database.Store, database.AttemptRepository, func() error, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		db, closeDB, err := database.New(cfg.PostgresAddr, cfg.PostgresDB, cfg.PostgresUser, cfg.PostgresPassword)
		if err != nil {
			return nil, nil, nil, err
		}

		if err := database.Migrate(ctx, db); err != nil {
			closeDB()
			return nil, nil, nil, err
		}

		attempts := database.NewAttemptBatchingDatabase(&database.AttemptDatabase{DB: db}, cfg.AttemptsBatchSize, cfg.AttemptsFlushInterval)

		closeAll := func() error {
			attempts.Close()
			return closeDB()
		}

		return &database.Postgres{DB: db, Contract: cfg.Contract()}, attempts, closeAll, nil

	default:
		store := database.NewMemory()

		funds, err := database.ParseFunds(cfg.SeedFund)
		if err != nil {
			return nil, nil, nil, err
		}

		plan := database.SeedPlan{
			Token:    common.HexToAddress(cfg.SeedTokenAddr),
			TokenID:  cfg.SeedTokenID,
			Holder:   cfg.Contract(),
			Quantity: cfg.SeedAmount,
			Funds:    funds,
		}
		if err := database.Seed(ctx, store, plan); err != nil {
			return nil, nil, nil, err
		}

		return store, nil, func() error { return nil }, nil
	}
}

func composeServices(store database.Store, attempts database.AttemptRepository, rdb *redis.Client, reg prometheus.Registerer, cfg *config.Config) (sale service.Sale) {
	sale = &service.SaleGeneric{
		Store:     store,
		Contract:  cfg.Contract(),
		Ownership: service.Ownership{Owner: cfg.Owner()},
		Attempts:  attempts,
	}

	if cfg.CacheRoyalties {
		sale = &service.SaleCaching{Sale: sale, Redis: rdb, Contract: cfg.Contract(), TTL: cfg.RoyaltiesCacheTTL}
	}

	if cfg.PurchasesLimit > 0 {
		sale = &service.SaleLimiting{
			Sale:     sale,
			Limiter:  &limiter.Limiter{Redis: rdb, Limit: cfg.PurchasesLimit, Window: cfg.PurchasesWindow},
			FailOpen: cfg.LimiterFailOpen,
		}
	}

	sale = &service.SaleMetrics{Sale: sale, Metrics: service.NewMetrics(reg)}
	sale = &service.SaleLogging{Sale: sale}

	return
}

func parseLogLevel(lvl string) slog.Level {
	switch lvl {
	case slog.LevelDebug.String():
		return slog.LevelDebug
	case slog.LevelInfo.String():
		return slog.LevelInfo
	case slog.LevelWarn.String():
		return slog.LevelWarn
	case slog.LevelError.String():
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

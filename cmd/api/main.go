package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/conversant-bank/atm-backend/internal/auth"
	"github.com/conversant-bank/atm-backend/internal/config"
	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/executor"
	"github.com/conversant-bank/atm-backend/internal/flow"
	"github.com/conversant-bank/atm-backend/internal/handler"
	"github.com/conversant-bank/atm-backend/internal/intent"
	"github.com/conversant-bank/atm-backend/internal/limits"
	"github.com/conversant-bank/atm-backend/internal/logging"
	"github.com/conversant-bank/atm-backend/internal/middleware"
	"github.com/conversant-bank/atm-backend/internal/orchestrator"
	"github.com/conversant-bank/atm-backend/internal/orchestrator/ollama"
	"github.com/conversant-bank/atm-backend/internal/seed"
	"github.com/conversant-bank/atm-backend/internal/session"
	"github.com/conversant-bank/atm-backend/internal/store"
	"github.com/conversant-bank/atm-backend/internal/store/memory"
	"github.com/conversant-bank/atm-backend/internal/store/postgres"
	"github.com/conversant-bank/atm-backend/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init("atm-api", cfg.LogLevel, cfg.AppEnv)

	dailyLimits, err := parseLimits(cfg)
	if err != nil {
		return err
	}
	fastCash, err := decimal.NewFromString(cfg.FastCashAmount)
	if err != nil {
		return fmt.Errorf("parse FAST_CASH_AMOUNT: %w", err)
	}

	var (
		st store.Store
		db *sql.DB
	)
	if cfg.DatabaseURL == "" {
		slog.Info("using in-memory store")
		st = memory.New()
	} else {
		db, err = connectDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrations.Apply(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		st = postgres.New(db)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seed.Load(logging.WithLogger(ctx, slog.Default()), st, dailyLimits); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	sessions := session.NewManager(st, cfg.JWTSecret, cfg.SessionTTL(), cfg.PinMaxAttempts)
	engine := intent.NewEngine(st)
	tracker := limits.NewTracker(st)
	flows := flow.NewController(st)
	exec := executor.New(st, tracker, flows, auth.HashPIN)
	llm := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, cfg.LLMTimeout())
	orch := orchestrator.New(st, engine, exec, flows, llm, cfg.MaxToolIterations, cfg.ToolTimeout())

	mux := http.NewServeMux()
	handlers := handler.Handlers{
		Phase:       handler.NewPhaseHandler(sessions, exec, st, fastCash),
		Account:     handler.NewAccountHandler(st, sessions),
		Intent:      handler.NewIntentHandler(engine, exec, sessions, st),
		Transaction: handler.NewTransactionHandler(exec, sessions),
		Flow:        handler.NewFlowHandler(flows, sessions),
		Chat:        handler.NewChatHandler(orch, sessions),
		Receipt:     handler.NewReceiptHandler(st, sessions),
		Health:      handler.NewHealthHandler(db),
	}

	locker := middleware.NewSessionLocker()
	sessionAuth := middleware.SessionAuth(cfg.JWTSecret)
	authed := func(next http.Handler) http.Handler {
		return sessionAuth(locker.Middleware(next))
	}
	handler.Register(mux, handlers, authed)

	chain := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chain,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func parseLimits(cfg *config.Config) (domain.DailyLimits, error) {
	withdrawal, err := decimal.NewFromString(cfg.DailyWithdrawalLimit)
	if err != nil {
		return domain.DailyLimits{}, fmt.Errorf("parse DAILY_WITHDRAWAL_LIMIT: %w", err)
	}
	deposit, err := decimal.NewFromString(cfg.DailyDepositLimit)
	if err != nil {
		return domain.DailyLimits{}, fmt.Errorf("parse DAILY_DEPOSIT_LIMIT: %w", err)
	}
	transfer, err := decimal.NewFromString(cfg.DailyTransferLimit)
	if err != nil {
		return domain.DailyLimits{}, fmt.Errorf("parse DAILY_TRANSFER_LIMIT: %w", err)
	}
	return domain.DailyLimits{
		Withdrawal: withdrawal,
		Deposit:    deposit,
		Transfer:   transfer,
	}, nil
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeS) * time.Second)

	for i := range 30 {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}

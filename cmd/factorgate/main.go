package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/factorgate/factorgate/internal/config"
	httpserver "github.com/factorgate/factorgate/internal/http"
	"github.com/factorgate/factorgate/internal/notification"
	"github.com/factorgate/factorgate/pkg/mfa"
	"github.com/factorgate/factorgate/pkg/store"
	"github.com/factorgate/factorgate/pkg/store/memory"
	"github.com/factorgate/factorgate/pkg/store/postgres"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize stores
	var (
		factorStore     store.FactorStore
		challengeStore  store.ChallengeStore
		codeStore       store.CodeStore
		backupCodeStore store.BackupCodeStore
		auditStore      store.AuditStore
	)
	if cfg.HasDB() {
		db, err := postgres.NewDB(postgres.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		factorStore = postgres.NewFactorStore(db)
		challengeStore = postgres.NewChallengeStore(db)
		codeStore = postgres.NewCodeStore(db)
		backupCodeStore = postgres.NewBackupCodeStore(db)
		auditStore = postgres.NewAuditStore(db)
		logger.Info("connected to database")
	} else {
		factorStore = memory.NewFactorStore()
		challengeStore = memory.NewChallengeStore()
		codeStore = memory.NewCodeStore()
		backupCodeStore = memory.NewBackupCodeStore()
		auditStore = memory.NewAuditStore(cfg.AuditCapacity)
		logger.Info("using in-memory stores")
	}

	// Initialize code delivery gateway
	var emailConfig *notification.EmailConfig
	if cfg.HasSMTP() {
		emailConfig = &notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}
		logger.Info("email delivery enabled")
	}
	gateway := notification.NewGateway(logger, emailConfig)

	// Initialize services
	clock := mfa.SystemClock{}
	challenges := mfa.NewChallengeService(clock, challengeStore, factorStore)
	limiter := mfa.NewAttemptLimiter(cfg.ChallengeLockThreshold)
	audit := mfa.NewAuditTrail(logger, clock, auditStore)
	grants := mfa.NewGrantIssuer(mfa.GrantConfig{
		Secret: []byte(cfg.GrantSecret),
		Issuer: cfg.GrantIssuer,
		TTL:    cfg.GrantTTL,
	}, clock)
	totpVerifier := mfa.NewTOTPVerifier(cfg.TOTPIssuer, clock, factorStore)
	otpService := mfa.NewOTPService(logger, clock, codeStore, factorStore, gateway)
	backupService := mfa.NewBackupService(clock, backupCodeStore, factorStore)

	orchestrator := mfa.NewOrchestrator(
		logger,
		clock,
		challenges,
		limiter,
		audit,
		grants,
		totpVerifier,
		otpService,
		backupService,
	)

	// Start periodic sweep of expired sessions and codes
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweeper := mfa.NewSweeper(logger, clock, cfg.SweepInterval, challengeStore, codeStore)
	go sweeper.Run(sweepCtx)

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		Orchestrator:    orchestrator,
		RateLimitConfig: cfg.RateLimit,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

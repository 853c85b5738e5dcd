package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/factorgate/factorgate/internal/config"
	"github.com/factorgate/factorgate/internal/http/features/challenge"
	"github.com/factorgate/factorgate/internal/http/features/factors"
	"github.com/factorgate/factorgate/internal/http/middleware"
	"github.com/factorgate/factorgate/internal/httputil"
	"github.com/factorgate/factorgate/pkg/mfa"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Orchestrator    *mfa.Orchestrator
	RateLimitConfig config.RateLimitConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.RequestSizeLimit(middleware.DefaultMaxBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	challengeHandler := challenge.NewHandler(cfg.Logger, cfg.Orchestrator)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["verify"])
		r.Post("/v1/challenge", challengeHandler.Open)
		r.Post("/v1/challenge/{challengeID}/verify", challengeHandler.Verify)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["code"])
		r.Post("/v1/challenge/{challengeID}/code", challengeHandler.RequestCode)
	})

	factorsHandler := factors.NewHandler(cfg.Logger, cfg.Orchestrator)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["manage"])
		r.Post("/v1/users/{userID}/backup-codes", factorsHandler.GenerateBackupCodes)
		r.Get("/v1/users/{userID}/backup-codes", factorsHandler.BackupCodeCount)
		r.Get("/v1/users/{userID}/factors", factorsHandler.Status)
		r.Post("/v1/users/{userID}/factors/totp", factorsHandler.EnrollTOTP)
		r.Delete("/v1/users/{userID}/factors/{kind}", factorsHandler.DisableFactor)
	})

	return r
}

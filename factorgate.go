// Package factorgate provides an embeddable multi-factor verification
// core. After the host application verifies a primary credential, it opens
// a challenge here; the user then proves a second factor (authenticator
// app code, SMS/email code, or backup recovery code) and receives a
// short-lived signed grant the host exchanges for its own session.
//
// Basic usage with in-memory stores:
//
//	gate, err := factorgate.New(factorgate.Config{
//	    GrantSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/mfa", gate.Router())
//	http.ListenAndServe(":8080", r)
//
// With Postgres:
//
//	gate, err := factorgate.New(factorgate.Config{
//	    DB:          db, // run migrations first
//	    GrantSecret: "your-secret-key-at-least-32-chars",
//	})
package factorgate

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/factorgate/factorgate/internal/http/features/challenge"
	"github.com/factorgate/factorgate/internal/http/features/factors"
	"github.com/factorgate/factorgate/internal/http/middleware"
	"github.com/factorgate/factorgate/pkg/mfa"
	"github.com/factorgate/factorgate/pkg/store"
	"github.com/factorgate/factorgate/pkg/store/memory"
	"github.com/factorgate/factorgate/pkg/store/postgres"
)

// Config holds the configuration for the verification core.
type Config struct {
	// DB is an optional database connection. When nil, in-memory stores
	// are used (single-process only).
	DB *sql.DB

	// GrantSecret signs MFA grant tokens (required, min 32 chars).
	GrantSecret string

	// GrantIssuer is the issuer claim in grant tokens (default: "factorgate").
	GrantIssuer string

	// GrantTTL is the lifetime of grant tokens (default: 2 minutes).
	GrantTTL time.Duration

	// TOTPIssuer appears in authenticator apps (default: GrantIssuer).
	TOTPIssuer string

	// LockThreshold is the failed-attempt count that locks a challenge
	// (default: 5).
	LockThreshold int

	// Sender delivers out-of-band codes. When nil, codes are stored but
	// not delivered.
	Sender mfa.CodeSender

	// Clock overrides the time source, for tests (default: wall clock).
	Clock mfa.Clock

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger
}

// Gate is the main verification core instance.
type Gate struct {
	config       Config
	orchestrator *mfa.Orchestrator
	audit        *mfa.AuditTrail
	grants       *mfa.GrantIssuer
}

// New creates a verification core with the given configuration.
func New(cfg Config) (*Gate, error) {
	if len(cfg.GrantSecret) < 32 {
		return nil, errors.New("factorgate: GrantSecret must be at least 32 characters")
	}
	if cfg.GrantIssuer == "" {
		cfg.GrantIssuer = "factorgate"
	}
	if cfg.TOTPIssuer == "" {
		cfg.TOTPIssuer = cfg.GrantIssuer
	}
	if cfg.Clock == nil {
		cfg.Clock = mfa.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var (
		factorStore     store.FactorStore
		challengeStore  store.ChallengeStore
		codeStore       store.CodeStore
		backupCodeStore store.BackupCodeStore
		auditStore      store.AuditStore
	)
	if cfg.DB != nil {
		factorStore = postgres.NewFactorStore(cfg.DB)
		challengeStore = postgres.NewChallengeStore(cfg.DB)
		codeStore = postgres.NewCodeStore(cfg.DB)
		backupCodeStore = postgres.NewBackupCodeStore(cfg.DB)
		auditStore = postgres.NewAuditStore(cfg.DB)
	} else {
		factorStore = memory.NewFactorStore()
		challengeStore = memory.NewChallengeStore()
		codeStore = memory.NewCodeStore()
		backupCodeStore = memory.NewBackupCodeStore()
		auditStore = memory.NewAuditStore(0)
	}

	challenges := mfa.NewChallengeService(cfg.Clock, challengeStore, factorStore)
	limiter := mfa.NewAttemptLimiter(cfg.LockThreshold)
	audit := mfa.NewAuditTrail(cfg.Logger, cfg.Clock, auditStore)
	grants := mfa.NewGrantIssuer(mfa.GrantConfig{
		Secret: []byte(cfg.GrantSecret),
		Issuer: cfg.GrantIssuer,
		TTL:    cfg.GrantTTL,
	}, cfg.Clock)
	totpVerifier := mfa.NewTOTPVerifier(cfg.TOTPIssuer, cfg.Clock, factorStore)
	otpService := mfa.NewOTPService(cfg.Logger, cfg.Clock, codeStore, factorStore, cfg.Sender)
	backupService := mfa.NewBackupService(cfg.Clock, backupCodeStore, factorStore)

	orchestrator := mfa.NewOrchestrator(
		cfg.Logger,
		cfg.Clock,
		challenges,
		limiter,
		audit,
		grants,
		totpVerifier,
		otpService,
		backupService,
	)

	return &Gate{
		config:       cfg,
		orchestrator: orchestrator,
		audit:        audit,
		grants:       grants,
	}, nil
}

// Orchestrator exposes the verification entry points for direct (non-HTTP)
// embedding.
func (g *Gate) Orchestrator() *mfa.Orchestrator {
	return g.orchestrator
}

// Grants exposes the grant issuer so the host's session manager can verify
// grants during the exchange.
func (g *Gate) Grants() *mfa.GrantIssuer {
	return g.grants
}

// Audit exposes the audit trail for diagnostics.
func (g *Gate) Audit() *mfa.AuditTrail {
	return g.audit
}

// Router returns a chi router with all verification routes.
// Mount this on your main router:
//
//	r := chi.NewRouter()
//	r.Mount("/mfa", gate.Router())
//
// Routes:
//
//	POST /v1/challenge                          - Open a challenge (after primary credential)
//	POST /v1/challenge/{challengeID}/code       - Request an SMS/email code
//	POST /v1/challenge/{challengeID}/verify     - Verify a factor proof
//	POST /v1/users/{userID}/backup-codes        - Generate backup codes (shown once)
//	GET  /v1/users/{userID}/backup-codes        - Remaining backup code count
//	GET  /v1/users/{userID}/factors             - Factor status
//	POST /v1/users/{userID}/factors/totp        - Enroll a TOTP factor
//	DELETE /v1/users/{userID}/factors/{kind}    - Disable an enrolled factor
func (g *Gate) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recover(g.config.Logger))
	r.Use(middleware.RequestSizeLimit(middleware.DefaultMaxBodySize))

	challengeHandler := challenge.NewHandler(g.config.Logger, g.orchestrator)
	r.Post("/v1/challenge", challengeHandler.Open)
	r.Post("/v1/challenge/{challengeID}/code", challengeHandler.RequestCode)
	r.Post("/v1/challenge/{challengeID}/verify", challengeHandler.Verify)

	factorsHandler := factors.NewHandler(g.config.Logger, g.orchestrator)
	r.Post("/v1/users/{userID}/backup-codes", factorsHandler.GenerateBackupCodes)
	r.Get("/v1/users/{userID}/backup-codes", factorsHandler.BackupCodeCount)
	r.Get("/v1/users/{userID}/factors", factorsHandler.Status)
	r.Post("/v1/users/{userID}/factors/totp", factorsHandler.EnrollTOTP)
	r.Delete("/v1/users/{userID}/factors/{kind}", factorsHandler.DisableFactor)

	return r
}

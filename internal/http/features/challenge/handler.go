package challenge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/factorgate/factorgate/internal/httputil"
	"github.com/factorgate/factorgate/pkg/domain"
	"github.com/factorgate/factorgate/pkg/mfa"
)

// Handler handles challenge lifecycle HTTP requests.
type Handler struct {
	logger       *slog.Logger
	orchestrator *mfa.Orchestrator
}

// NewHandler creates a new challenge handler.
func NewHandler(logger *slog.Logger, orchestrator *mfa.Orchestrator) *Handler {
	return &Handler{logger: logger, orchestrator: orchestrator}
}

// OpenRequest represents the request body for opening a challenge.
type OpenRequest struct {
	UserID string `json:"user_id"`
}

// OpenResponse represents the response body for an opened challenge.
type OpenResponse struct {
	ChallengeID      string   `json:"challenge_id"`
	AvailableFactors []string `json:"available_factors"`
	ExpiresAt        int64    `json:"expires_at"`
}

// Open handles POST /v1/challenge. The caller is the external login
// handler, invoked only after the primary credential verified.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	result, err := h.orchestrator.OpenChallenge(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNoFactorsEnrolled) {
			httputil.Error(w, http.StatusConflict, "no second factors enrolled")
			return
		}
		h.logger.Error("failed to open challenge", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to open challenge")
		return
	}

	factors := make([]string, 0, len(result.AvailableFactors))
	for _, k := range result.AvailableFactors {
		factors = append(factors, string(k))
	}

	httputil.JSON(w, http.StatusOK, OpenResponse{
		ChallengeID:      result.ChallengeID,
		AvailableFactors: factors,
		ExpiresAt:        result.ExpiresAt,
	})
}

// CodeRequest represents the request body for requesting an out-of-band code.
type CodeRequest struct {
	Kind string `json:"kind"`
}

// RequestCode handles POST /v1/challenge/{challengeID}/code.
func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	challengeID := chi.URLParam(r, "challengeID")

	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := domain.ParseFactorKind(req.Kind)
	if err != nil || !kind.OutOfBand() {
		httputil.Error(w, http.StatusBadRequest, "kind must be sms_otp or email_otp")
		return
	}

	if err := h.orchestrator.RequestCode(ctx, challengeID, kind); err != nil {
		switch {
		case errors.Is(err, domain.ErrChallengeNotFound):
			httputil.Error(w, http.StatusNotFound, "challenge not found. please log in again")
		case errors.Is(err, domain.ErrFactorNotFound):
			httputil.Error(w, http.StatusBadRequest, "factor not available")
		default:
			h.logger.Error("failed to request code", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to send code")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// VerifyRequest represents the request body for verifying a factor.
type VerifyRequest struct {
	Kind  string `json:"kind"`
	Proof string `json:"proof"`
}

// VerifyResponse represents the response body for a verification attempt.
type VerifyResponse struct {
	Success           bool   `json:"success"`
	Reason            string `json:"reason,omitempty"`
	Message           string `json:"message,omitempty"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	Grant             string `json:"grant,omitempty"`
}

// Verify handles POST /v1/challenge/{challengeID}/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	challengeID := chi.URLParam(r, "challengeID")

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Proof == "" {
		httputil.Error(w, http.StatusBadRequest, "proof is required")
		return
	}

	kind, err := domain.ParseFactorKind(req.Kind)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "unsupported factor kind")
		return
	}

	result, err := h.orchestrator.VerifyFactor(ctx, challengeID, kind, req.Proof)
	if err != nil {
		h.logger.Error("verification failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "verification failed")
		return
	}

	if result.Success {
		httputil.JSON(w, http.StatusOK, VerifyResponse{
			Success: true,
			Grant:   result.Grant,
		})
		return
	}

	resp := VerifyResponse{Success: false, Reason: result.Reason}
	switch result.Reason {
	case mfa.ReasonNotFound, mfa.ReasonLocked:
		// Expiry and lockout are indistinguishable on purpose.
		resp.Reason = mfa.ReasonNotFound
		resp.Message = "please log in again"
	default:
		remaining := result.AttemptsRemaining
		resp.AttemptsRemaining = &remaining
		resp.Message = fmt.Sprintf("verification failed. %d attempts remaining", remaining)
	}
	httputil.JSON(w, http.StatusUnauthorized, resp)
}

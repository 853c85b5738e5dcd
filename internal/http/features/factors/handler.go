package factors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/factorgate/factorgate/internal/httputil"
	"github.com/factorgate/factorgate/pkg/domain"
	"github.com/factorgate/factorgate/pkg/mfa"
)

// Handler handles factor enrollment and status HTTP requests. These are
// enrollment-adjacent endpoints; authenticating the caller is the
// surrounding application's concern.
type Handler struct {
	logger       *slog.Logger
	orchestrator *mfa.Orchestrator
}

// NewHandler creates a new factors handler.
func NewHandler(logger *slog.Logger, orchestrator *mfa.Orchestrator) *Handler {
	return &Handler{logger: logger, orchestrator: orchestrator}
}

func userIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "userID"))
}

// GenerateRequest represents the request body for generating backup codes.
type GenerateRequest struct {
	Count int `json:"count"`
}

// GenerateResponse carries the plaintext codes, shown exactly once.
type GenerateResponse struct {
	Codes []string `json:"codes"`
}

// GenerateBackupCodes handles POST /v1/users/{userID}/backup-codes.
func (h *Handler) GenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req GenerateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	codes, err := h.orchestrator.GenerateBackupCodes(ctx, userID, req.Count)
	if err != nil {
		h.logger.Error("failed to generate backup codes", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to generate backup codes")
		return
	}

	httputil.JSON(w, http.StatusOK, GenerateResponse{Codes: codes})
}

// CountResponse represents the remaining backup code count.
type CountResponse struct {
	Remaining int `json:"remaining"`
}

// BackupCodeCount handles GET /v1/users/{userID}/backup-codes.
func (h *Handler) BackupCodeCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	_, remaining, err := h.orchestrator.FactorStatus(ctx, userID)
	if err != nil {
		h.logger.Error("failed to count backup codes", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to count backup codes")
		return
	}

	httputil.JSON(w, http.StatusOK, CountResponse{Remaining: remaining})
}

// StatusResponse represents a user's factor status.
type StatusResponse struct {
	Factors              []string `json:"factors"`
	BackupCodesRemaining int      `json:"backup_codes_remaining"`
}

// Status handles GET /v1/users/{userID}/factors.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	kinds, remaining, err := h.orchestrator.FactorStatus(ctx, userID)
	if err != nil {
		h.logger.Error("failed to get factor status", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to get factor status")
		return
	}

	factors := make([]string, 0, len(kinds))
	for _, k := range kinds {
		factors = append(factors, string(k))
	}

	httputil.JSON(w, http.StatusOK, StatusResponse{
		Factors:              factors,
		BackupCodesRemaining: remaining,
	})
}

// DisableFactor handles DELETE /v1/users/{userID}/factors/{kind}.
func (h *Handler) DisableFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	kind, err := domain.ParseFactorKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "unsupported factor kind")
		return
	}

	if err := h.orchestrator.DisableFactor(ctx, userID, kind); err != nil {
		if errors.Is(err, domain.ErrFactorNotFound) {
			httputil.Error(w, http.StatusNotFound, "factor not enrolled")
			return
		}
		h.logger.Error("failed to disable factor", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to disable factor")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]bool{"disabled": true})
}

// EnrollTOTPRequest represents the request body for TOTP enrollment.
type EnrollTOTPRequest struct {
	AccountName string `json:"account_name"`
}

// EnrollTOTPResponse carries the TOTP secret, shown exactly once.
type EnrollTOTPResponse struct {
	FactorID string `json:"factor_id"`
	Secret   string `json:"secret"`
	URL      string `json:"url"`
}

// EnrollTOTP handles POST /v1/users/{userID}/factors/totp.
func (h *Handler) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req EnrollTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountName == "" {
		httputil.Error(w, http.StatusBadRequest, "account_name is required")
		return
	}

	enrollment, err := h.orchestrator.EnrollTOTP(ctx, userID, req.AccountName)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFactor) {
			httputil.Error(w, http.StatusBadRequest, "unsupported factor kind")
			return
		}
		h.logger.Error("failed to enroll TOTP factor", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to enroll factor")
		return
	}

	httputil.JSON(w, http.StatusOK, EnrollTOTPResponse{
		FactorID: enrollment.FactorID.String(),
		Secret:   enrollment.Secret,
		URL:      enrollment.URL,
	})
}

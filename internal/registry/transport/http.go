// Package transport provides HTTP handlers for the registry domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/matchforge/internal/auth"
	"github.com/pendergraft/matchforge/internal/registry/domain"
)

// Service defines the registry service interface for HTTP transport.
type Service interface {
	RegisterUser(ctx context.Context, caller *auth.Identity, role string) (*domain.User, error)
	AssignRole(ctx context.Context, caller *auth.Identity, address, role string) error
	CreateMatch(ctx context.Context, caller *auth.Identity, peer1, peer2 string) (*domain.Match, error)
	VerifyMatch(ctx context.Context, caller *auth.Identity, id int64) (*domain.Match, error)
	GetUserInfo(ctx context.Context, address string) (*domain.User, error)
	GetMatchInfo(ctx context.Context, id int64) (*domain.Match, error)
	GetMatchmakerStats(ctx context.Context, address string) (*domain.MatchmakerStats, error)
	GetProtocolStats(ctx context.Context) (*domain.ProtocolStats, error)
	FundRewards(ctx context.Context, caller *auth.Identity, amount string) error
	WithdrawTokens(ctx context.Context, caller *auth.Identity, amount string) error
	PoolBalance(ctx context.Context) (*big.Int, error)
}

// Handler handles HTTP requests for the registry.
type Handler struct {
	svc Service
}

// NewHandler creates a new registry HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers routes that require no authentication.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/users/{address}", h.handleGetUser)
	r.Get("/users/{address}/stats", h.handleMatchmakerStats)
	r.Get("/matches/{id}", h.handleGetMatch)
	r.Get("/stats", h.handleProtocolStats)
}

// RegisterWriteRoutes registers routes any authenticated caller may hit.
// Role checks happen in the domain.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/users", h.handleRegisterUser)
	r.Post("/matches", h.handleCreateMatch)
	r.Post("/matches/{id}/verify", h.handleVerifyMatch)
}

// RegisterOwnerRoutes registers routes reserved for the service owner. The
// caller applies owner-gating middleware on top of auth.
func (h *Handler) RegisterOwnerRoutes(r chi.Router) {
	r.Post("/users/{address}/role", h.handleAssignRole)
	r.Post("/rewards/fund", h.handleFundRewards)
	r.Post("/rewards/withdraw", h.handleWithdrawTokens)
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	user, err := h.svc.RegisterUser(r.Context(), auth.GetIdentity(r.Context()), req.Role)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	if err := h.svc.AssignRole(r.Context(), auth.GetIdentity(r.Context()), address, req.Role); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "role assigned"})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUserInfo(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) handleMatchmakerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetMatchmakerStats(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MatchmakerStatsResponse{
		Address:            stats.Address,
		TotalRewardsEarned: stats.TotalRewardsEarned.String(),
		SuccessfulMatches:  stats.SuccessfulMatches,
	})
}

func (h *Handler) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	match, err := h.svc.CreateMatch(r.Context(), auth.GetIdentity(r.Context()), req.Peer1, req.Peer2)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMatchResponse(match))
}

func (h *Handler) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id, err := parseMatchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid match id")
		return
	}

	match, err := h.svc.GetMatchInfo(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

func (h *Handler) handleVerifyMatch(w http.ResponseWriter, r *http.Request) {
	id, err := parseMatchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid match id")
		return
	}

	match, err := h.svc.VerifyMatch(r.Context(), auth.GetIdentity(r.Context()), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

func (h *Handler) handleProtocolStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetProtocolStats(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	pool, err := h.svc.PoolBalance(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProtocolStatsResponse{
		TotalMatches:      stats.TotalMatches,
		SuccessfulMatches: stats.SuccessfulMatches,
		SuccessRate:       stats.SuccessRate,
		RewardPoolBalance: pool.String(),
	})
}

func (h *Handler) handleFundRewards(w http.ResponseWriter, r *http.Request) {
	var req FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	if err := h.svc.FundRewards(r.Context(), auth.GetIdentity(r.Context()), req.Amount); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "funded"})
}

func (h *Handler) handleWithdrawTokens(w http.ResponseWriter, r *http.Request) {
	var req FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	if err := h.svc.WithdrawTokens(r.Context(), auth.GetIdentity(r.Context()), req.Amount); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "withdrawn"})
}

func parseMatchID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "INVALID_ROLE", err.Error())
	case errors.Is(err, domain.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "ALREADY_REGISTERED", "Address is already registered")
	case errors.Is(err, domain.ErrNotRegistered):
		writeError(w, http.StatusNotFound, "NOT_REGISTERED", "Address is not registered")
	case errors.Is(err, domain.ErrUnauthorizedRole):
		writeError(w, http.StatusForbidden, "UNAUTHORIZED_ROLE", "Caller's role does not permit this operation")
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
	case errors.Is(err, domain.ErrUnknownMatch):
		writeError(w, http.StatusNotFound, "UNKNOWN_MATCH", "No match with that id")
	case errors.Is(err, domain.ErrAlreadyVerified):
		writeError(w, http.StatusConflict, "ALREADY_VERIFIED", "Match is already verified")
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Insufficient reward pool balance")
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "UNAUTHORIZED", "Caller not authorized for this operation")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Registry operation failed")
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

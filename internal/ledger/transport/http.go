// Package transport provides HTTP handlers for the ledger domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/matchforge/internal/auth"
	"github.com/pendergraft/matchforge/internal/ledger/domain"
)

// Service defines the ledger service interface for HTTP transport.
type Service interface {
	Mint(ctx context.Context, caller *auth.Identity, to, amount string) error
	Burn(ctx context.Context, caller *auth.Identity, amount string) error
	Transfer(ctx context.Context, caller *auth.Identity, to, amount string) error
	BalanceOf(ctx context.Context, address string) (*domain.Balance, error)
	TotalSupply(ctx context.Context) (*domain.Supply, error)
}

// Handler handles HTTP requests for the ledger.
type Handler struct {
	svc Service
}

// NewHandler creates a new ledger HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers routes that require no authentication.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/balances/{address}", h.handleBalance)
	r.Get("/supply", h.handleSupply)
}

// RegisterWriteRoutes registers routes that mutate ledger state. The caller
// applies auth middleware; handlers read the identity from the request
// context and the domain enforces owner checks.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/mint", h.handleMint)
	r.Post("/burn", h.handleBurn)
	r.Post("/transfer", h.handleTransfer)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	balance, err := h.svc.BalanceOf(r.Context(), address)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) handleSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := h.svc.TotalSupply(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SupplyResponse{TotalSupply: supply.Total.String()})
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	if err := h.svc.Mint(r.Context(), auth.GetIdentity(r.Context()), req.To, req.Amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "minted"})
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req BurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	if err := h.svc.Burn(r.Context(), auth.GetIdentity(r.Context()), req.Amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "burned"})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	if err := h.svc.Transfer(r.Context(), auth.GetIdentity(r.Context()), req.To, req.Amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "transferred"})
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "UNAUTHORIZED", "Caller not authorized for this operation")
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Insufficient balance")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Ledger operation failed")
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

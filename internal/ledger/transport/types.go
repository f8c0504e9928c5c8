// Package transport provides HTTP request/response types for the ledger domain.
package transport

import "github.com/pendergraft/matchforge/internal/ledger/domain"

// MintRequest is the HTTP request body for minting tokens.
type MintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// BurnRequest is the HTTP request body for burning the caller's tokens.
type BurnRequest struct {
	Amount string `json:"amount"`
}

// TransferRequest is the HTTP request body for transferring tokens.
type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func toBalanceResponse(b *domain.Balance) BalanceResponse {
	return BalanceResponse{Address: b.Address, Amount: b.Amount.String()}
}

// SupplyResponse is the response for a total supply query.
type SupplyResponse struct {
	TotalSupply string `json:"totalSupply"`
}

// StatusResponse acknowledges a state-changing ledger operation.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

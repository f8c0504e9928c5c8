// Package domain contains the business logic for the reward ledger.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/pendergraft/matchforge/internal/auth"
	"github.com/pendergraft/matchforge/internal/events"
	"github.com/pendergraft/matchforge/internal/observability/metrics"
	"github.com/pendergraft/matchforge/internal/storage"
	"github.com/pendergraft/matchforge/internal/validation"
)

// Common errors returned by the ledger service.
var (
	ErrUnauthorized        = errors.New("caller not authorized")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// BalanceStore defines the storage operations needed by the ledger domain.
type BalanceStore interface {
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
	Mint(ctx context.Context, to string, amount *big.Int) error
	Burn(ctx context.Context, from string, amount *big.Int) error
	Transfer(ctx context.Context, from, to string, amount *big.Int) error
}

type service struct {
	balances  BalanceStore
	publisher events.Publisher
}

// NewService creates a new ledger service.
func NewService(balances BalanceStore, publisher events.Publisher) *service {
	return &service{
		balances:  balances,
		publisher: publisher,
	}
}

// Mint credits an address with newly created tokens. Owner only.
func (s *service) Mint(ctx context.Context, caller *auth.Identity, to, amount string) error {
	if caller == nil || !caller.Owner {
		return ErrUnauthorized
	}
	if err := validation.ValidateAddress(to); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if validation.IsZeroAddress(to) {
		return fmt.Errorf("%w: cannot mint to the zero address", ErrInvalidAddress)
	}
	n, err := validation.ParseAmount(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	to = validation.NormalizeAddress(to)
	if err := s.balances.Mint(ctx, to, n); err != nil {
		return fmt.Errorf("minting: %w", err)
	}

	metrics.RecordMint()
	_ = s.publisher.Publish(ctx, events.New(events.TypeTokensMinted, map[string]any{
		"to":     to,
		"amount": n.String(),
	}))
	return nil
}

// Burn destroys tokens from the caller's own balance.
func (s *service) Burn(ctx context.Context, caller *auth.Identity, amount string) error {
	if caller == nil {
		return ErrUnauthorized
	}
	n, err := validation.ParseAmount(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	if err := s.balances.Burn(ctx, caller.Address, n); err != nil {
		if errors.Is(err, storage.ErrInsufficientBalance) {
			return ErrInsufficientBalance
		}
		return fmt.Errorf("burning: %w", err)
	}

	_ = s.publisher.Publish(ctx, events.New(events.TypeTokensBurned, map[string]any{
		"from":   caller.Address,
		"amount": n.String(),
	}))
	return nil
}

// Transfer moves tokens from the caller to another address.
func (s *service) Transfer(ctx context.Context, caller *auth.Identity, to, amount string) error {
	if caller == nil {
		return ErrUnauthorized
	}
	if err := validation.ValidateAddress(to); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if validation.IsZeroAddress(to) {
		return fmt.Errorf("%w: cannot transfer to the zero address", ErrInvalidAddress)
	}
	n, err := validation.ParseAmount(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	to = validation.NormalizeAddress(to)
	if err := s.balances.Transfer(ctx, caller.Address, to, n); err != nil {
		if errors.Is(err, storage.ErrInsufficientBalance) {
			return ErrInsufficientBalance
		}
		return fmt.Errorf("transferring: %w", err)
	}

	metrics.RecordTransfer()
	_ = s.publisher.Publish(ctx, events.New(events.TypeTokensTransferred, map[string]any{
		"from":   caller.Address,
		"to":     to,
		"amount": n.String(),
	}))
	return nil
}

// BalanceOf returns the balance of an address; 0 for unknown addresses.
func (s *service) BalanceOf(ctx context.Context, address string) (*Balance, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	address = validation.NormalizeAddress(address)
	amount, err := s.balances.GetBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("getting balance: %w", err)
	}
	return &Balance{Address: address, Amount: amount}, nil
}

// TotalSupply returns the total minted supply.
func (s *service) TotalSupply(ctx context.Context) (*Supply, error) {
	total, err := s.balances.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting supply: %w", err)
	}
	return &Supply{Total: total}, nil
}

// Move transfers tokens between two component-owned addresses. It bypasses
// caller checks and is only reachable from other domains, never from
// transport; the matching registry uses it to fund and drain its pool.
func (s *service) Move(ctx context.Context, from, to string, amount *big.Int) error {
	// Storage sentinels pass through unwrapped so callers can map them to
	// their own error vocabulary.
	return s.balances.Transfer(ctx, from, to, amount)
}

// Balance returns a raw balance for component use.
func (s *service) Balance(ctx context.Context, address string) (*big.Int, error) {
	return s.balances.GetBalance(ctx, address)
}

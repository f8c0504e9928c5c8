// Package domain contains the business logic for the matching registry.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/pendergraft/matchforge/internal/auth"
	"github.com/pendergraft/matchforge/internal/events"
	"github.com/pendergraft/matchforge/internal/observability/metrics"
	"github.com/pendergraft/matchforge/internal/storage"
	"github.com/pendergraft/matchforge/internal/validation"
)

// Common errors returned by the registry service.
var (
	ErrInvalidRole         = errors.New("invalid role")
	ErrAlreadyRegistered   = errors.New("already registered")
	ErrNotRegistered       = errors.New("not registered")
	ErrUnauthorizedRole    = errors.New("role not authorized for this operation")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrUnknownMatch        = errors.New("unknown match")
	ErrAlreadyVerified     = errors.New("match already verified")
	ErrInsufficientBalance = errors.New("insufficient reward balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnauthorized        = errors.New("caller not authorized")
)

// UserStore defines the user storage operations needed by the registry
// domain. The asVerifier flag on the mutating calls bundles verifier-set
// insertion into the same storage transaction as the user write.
type UserStore interface {
	CreateUser(ctx context.Context, user *storage.User, asVerifier bool) error
	GetUser(ctx context.Context, address string) (*storage.User, error)
	UpdateUserRole(ctx context.Context, address, role string, asVerifier bool) error
	IsVerifier(ctx context.Context, address string) (bool, error)
}

// MatchStore defines the match storage operations needed by the registry domain.
type MatchStore interface {
	CreateMatch(ctx context.Context, m *storage.Match) (int64, error)
	GetMatch(ctx context.Context, id int64) (*storage.Match, error)
	VerifyMatch(ctx context.Context, id int64, registryAddr string, completedAt int64) (*storage.Match, error)
	GetCounters(ctx context.Context) (created, verified int64, err error)
}

// Ledger is the reward ledger surface the registry depends on. The registry
// never touches balances directly; it moves tokens through the ledger and
// reads its own pool balance.
type Ledger interface {
	Move(ctx context.Context, from, to string, amount *big.Int) error
	Balance(ctx context.Context, address string) (*big.Int, error)
}

type service struct {
	// mu serializes mutating operations so each call observes a fully
	// committed predecessor, matching the single-writer execution model.
	mu sync.Mutex

	users     UserStore
	matches   MatchStore
	ledger    Ledger
	publisher events.Publisher

	reward       *big.Int
	registryAddr string
	now          func() time.Time
}

// NewService creates a new registry service. reward is the fixed per-match
// payout in base units; registryAddr holds the reward pool.
func NewService(users UserStore, matches MatchStore, ledger Ledger, publisher events.Publisher, reward *big.Int, registryAddr string) *service {
	return &service{
		users:        users,
		matches:      matches,
		ledger:       ledger,
		publisher:    publisher,
		reward:       reward,
		registryAddr: validation.NormalizeAddress(registryAddr),
		now:          time.Now,
	}
}

// RegisterUser creates a user record for the caller with the requested role.
func (s *service) RegisterUser(ctx context.Context, caller *auth.Identity, role string) (*User, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	parsed, ok := ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user := &storage.User{
		Address:            caller.Address,
		Role:               string(parsed),
		TotalRewardsEarned: big.NewInt(0),
		Active:             true,
	}
	// Verifier-set insertion rides the same transaction as the user row;
	// a failed registration leaves no trace.
	if err := s.users.CreateUser(ctx, user, parsed == RoleVerifier); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	metrics.RecordRegistration(string(parsed))
	_ = s.publisher.Publish(ctx, events.New(events.TypeUserRegistered, map[string]any{
		"address": caller.Address,
		"role":    string(parsed),
	}))

	return toUser(user), nil
}

// AssignRole overwrites a registered user's role. Owner only. Reassignment
// to verifier grows the verifier set; reassignment away never shrinks it,
// matching the observed contract (a former verifier keeps verification
// rights).
func (s *service) AssignRole(ctx context.Context, caller *auth.Identity, address, role string) error {
	if caller == nil || !caller.Owner {
		return ErrUnauthorized
	}
	if err := validation.ValidateAddress(address); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	parsed, ok := ParseRole(role)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	address = validation.NormalizeAddress(address)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.users.UpdateUserRole(ctx, address, string(parsed), parsed == RoleVerifier); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotRegistered
		}
		return fmt.Errorf("updating role: %w", err)
	}

	_ = s.publisher.Publish(ctx, events.New(events.TypeRoleAssigned, map[string]any{
		"address": address,
		"role":    string(parsed),
	}))
	return nil
}

// CreateMatch records a new match between two peers. Caller must be an
// active registered matchmaker. Repeated calls with identical peers create
// distinct matches.
func (s *service) CreateMatch(ctx context.Context, caller *auth.Identity, peer1, peer2 string) (*Match, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}

	if err := validation.ValidateAddress(peer1); err != nil {
		return nil, fmt.Errorf("%w: peer1: %v", ErrInvalidAddress, err)
	}
	if err := validation.ValidateAddress(peer2); err != nil {
		return nil, fmt.Errorf("%w: peer2: %v", ErrInvalidAddress, err)
	}
	if validation.IsZeroAddress(peer1) || validation.IsZeroAddress(peer2) {
		return nil, fmt.Errorf("%w: peers must be non-zero", ErrInvalidAddress)
	}
	peer1 = validation.NormalizeAddress(peer1)
	peer2 = validation.NormalizeAddress(peer2)
	if peer1 == peer2 {
		return nil, fmt.Errorf("%w: peers must differ", ErrInvalidAddress)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.GetUser(ctx, caller.Address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if Role(user.Role) != RoleMatchmaker || !user.Active {
		return nil, ErrUnauthorizedRole
	}

	m := &storage.Match{
		Matchmaker: caller.Address,
		Peer1:      peer1,
		Peer2:      peer2,
		// Reward captured at creation; later config changes leave it alone.
		Reward:    new(big.Int).Set(s.reward),
		CreatedAt: s.now().Unix(),
	}
	id, err := s.matches.CreateMatch(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("creating match: %w", err)
	}
	m.ID = id

	metrics.RecordMatchCreated()
	_ = s.publisher.Publish(ctx, events.New(events.TypeMatchCreated, map[string]any{
		"matchId":    id,
		"matchmaker": caller.Address,
		"peer1":      peer1,
		"peer2":      peer2,
		"reward":     m.Reward.String(),
	}))

	return toMatch(m), nil
}

// VerifyMatch confirms a match and pays the matchmaker. Caller must be in
// the verifier set. The match flip, counters, matchmaker stats and reward
// payout commit together; any failure leaves the match unverified.
func (s *service) VerifyMatch(ctx context.Context, caller *auth.Identity, id int64) (*Match, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	isVerifier, err := s.users.IsVerifier(ctx, caller.Address)
	if err != nil {
		return nil, fmt.Errorf("checking verifier set: %w", err)
	}
	if !isVerifier {
		metrics.RecordVerificationFailure("unauthorized")
		return nil, ErrUnauthorizedRole
	}

	m, err := s.matches.VerifyMatch(ctx, id, s.registryAddr, s.now().Unix())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			metrics.RecordVerificationFailure("unknown_match")
			return nil, ErrUnknownMatch
		case errors.Is(err, storage.ErrAlreadyVerified):
			metrics.RecordVerificationFailure("already_verified")
			return nil, ErrAlreadyVerified
		case errors.Is(err, storage.ErrInsufficientBalance):
			metrics.RecordVerificationFailure("insufficient_balance")
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("verifying match: %w", err)
	}

	metrics.RecordMatchVerified()
	metrics.RecordRewardDistributed()
	_ = s.publisher.Publish(ctx, events.New(events.TypeMatchVerified, map[string]any{
		"matchId":  m.ID,
		"verifier": caller.Address,
	}))
	_ = s.publisher.Publish(ctx, events.New(events.TypeRewardDistributed, map[string]any{
		"matchId":    m.ID,
		"matchmaker": m.Matchmaker,
		"amount":     m.Reward.String(),
	}))

	return toMatch(m), nil
}

// GetUserInfo returns the user record for an address. Unknown addresses
// yield a zero-valued record rather than an error; unknown matches fail.
// The asymmetry is part of the contract.
func (s *service) GetUserInfo(ctx context.Context, address string) (*User, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	address = validation.NormalizeAddress(address)

	user, err := s.users.GetUser(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &User{
				Address:            address,
				Role:               RoleNone,
				TotalRewardsEarned: big.NewInt(0),
			}, nil
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return toUser(user), nil
}

// GetMatchInfo returns a match by id; ErrUnknownMatch when it does not exist.
func (s *service) GetMatchInfo(ctx context.Context, id int64) (*Match, error) {
	m, err := s.matches.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownMatch
		}
		return nil, fmt.Errorf("getting match: %w", err)
	}
	return toMatch(m), nil
}

// GetMatchmakerStats returns a matchmaker's cumulative reward record.
func (s *service) GetMatchmakerStats(ctx context.Context, address string) (*MatchmakerStats, error) {
	user, err := s.GetUserInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	return &MatchmakerStats{
		Address:            user.Address,
		TotalRewardsEarned: user.TotalRewardsEarned,
		SuccessfulMatches:  user.SuccessfulMatches,
	}, nil
}

// GetProtocolStats returns the aggregate counters and derived success rate.
func (s *service) GetProtocolStats(ctx context.Context) (*ProtocolStats, error) {
	created, verified, err := s.matches.GetCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting counters: %w", err)
	}
	stats := &ProtocolStats{
		TotalMatches:      created,
		SuccessfulMatches: verified,
	}
	if created > 0 {
		stats.SuccessRate = verified * 100 / created
	}
	return stats, nil
}

// FundRewards moves tokens from the owner into the registry's pool.
func (s *service) FundRewards(ctx context.Context, caller *auth.Identity, amount string) error {
	if caller == nil || !caller.Owner {
		return ErrUnauthorized
	}
	n, err := validation.ParseAmount(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Move(ctx, caller.Address, s.registryAddr, n); err != nil {
		return mapLedgerErr(err)
	}
	_ = s.publisher.Publish(ctx, events.New(events.TypeTokensTransferred, map[string]any{
		"from":   caller.Address,
		"to":     s.registryAddr,
		"amount": n.String(),
	}))
	return nil
}

// WithdrawTokens moves tokens from the registry's pool back to the owner.
func (s *service) WithdrawTokens(ctx context.Context, caller *auth.Identity, amount string) error {
	if caller == nil || !caller.Owner {
		return ErrUnauthorized
	}
	n, err := validation.ParseAmount(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Move(ctx, s.registryAddr, caller.Address, n); err != nil {
		return mapLedgerErr(err)
	}
	_ = s.publisher.Publish(ctx, events.New(events.TypeTokensTransferred, map[string]any{
		"from":   s.registryAddr,
		"to":     caller.Address,
		"amount": n.String(),
	}))
	return nil
}

// PoolBalance returns the registry's current reward pool balance.
func (s *service) PoolBalance(ctx context.Context) (*big.Int, error) {
	return s.ledger.Balance(ctx, s.registryAddr)
}

func mapLedgerErr(err error) error {
	if errors.Is(err, storage.ErrInsufficientBalance) {
		return ErrInsufficientBalance
	}
	return fmt.Errorf("ledger transfer: %w", err)
}

func toUser(u *storage.User) *User {
	rewards := u.TotalRewardsEarned
	if rewards == nil {
		rewards = big.NewInt(0)
	}
	return &User{
		Address:            u.Address,
		Role:               Role(u.Role),
		TotalRewardsEarned: rewards,
		SuccessfulMatches:  u.SuccessfulMatches,
		Active:             u.Active,
	}
}

func toMatch(m *storage.Match) *Match {
	return &Match{
		ID:          m.ID,
		Matchmaker:  m.Matchmaker,
		Peer1:       m.Peer1,
		Peer2:       m.Peer2,
		Reward:      m.Reward,
		Verified:    m.Verified,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
}

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/pendergraft/matchforge/internal/config"
)

// BalanceStore handles reward ledger balance operations. Every mutating
// operation executes as a single transaction.
type BalanceStore interface {
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
	Mint(ctx context.Context, to string, amount *big.Int) error
	Burn(ctx context.Context, from string, amount *big.Int) error
	Transfer(ctx context.Context, from, to string, amount *big.Int) error
}

// UserStore handles user record operations
type UserStore interface {
	// CreateUser inserts a user record. asVerifier also adds the address to
	// the verifier set; both writes commit in one transaction.
	CreateUser(ctx context.Context, user *User, asVerifier bool) error
	GetUser(ctx context.Context, address string) (*User, error)
	// UpdateUserRole overwrites a user's role. asVerifier also adds the
	// address to the verifier set; both writes commit in one transaction.
	UpdateUserRole(ctx context.Context, address, role string, asVerifier bool) error
	// IsVerifier reports verifier-set membership. Membership is never removed.
	IsVerifier(ctx context.Context, address string) (bool, error)
}

// MatchStore handles match record operations
type MatchStore interface {
	// CreateMatch inserts a match, assigning the next sequential id and
	// incrementing the created-matches counter in one transaction.
	CreateMatch(ctx context.Context, m *Match) (int64, error)
	GetMatch(ctx context.Context, id int64) (*Match, error)
	// VerifyMatch flips the match to verified, bumps the verified counter,
	// credits the matchmaker's cumulative stats and moves the reward from
	// registryAddr to the matchmaker, all in one transaction. Returns
	// ErrAlreadyVerified if the match was verified before, and
	// ErrInsufficientBalance (with no state change) if registryAddr cannot
	// cover the reward.
	VerifyMatch(ctx context.Context, id int64, registryAddr string, completedAt int64) (*Match, error)
	GetCounters(ctx context.Context) (created, verified int64, err error)
}

// APIKeyStore handles identity key operations
type APIKeyStore interface {
	// CreateAPIKey mints an identity key bound to an address. Owner keys seed
	// the address into the verifier set in the same transaction, so a fresh
	// deployment's operator can verify matches before anyone registers.
	CreateAPIKey(ctx context.Context, name, address string, owner bool) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	BalanceStore
	UserStore
	MatchStore
	APIKeyStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// User represents a registered participant
type User struct {
	Address            string
	Role               string
	TotalRewardsEarned *big.Int
	SuccessfulMatches  int64
	Active             bool
	CreatedAt          string
}

// Match represents a proposed pairing of two peer addresses
type Match struct {
	ID          int64
	Matchmaker  string
	Peer1       string
	Peer2       string
	Reward      *big.Int
	Verified    bool
	CreatedAt   int64
	CompletedAt int64
}

// APIKey represents an identity key bound to an address
type APIKey struct {
	ID         string
	Name       string
	Address    string
	Owner      bool
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

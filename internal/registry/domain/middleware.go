package domain

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/pendergraft/matchforge/internal/auth"
)

// loggingService is the interface required for logging middleware.
type loggingService interface {
	RegisterUser(ctx context.Context, caller *auth.Identity, role string) (*User, error)
	AssignRole(ctx context.Context, caller *auth.Identity, address, role string) error
	CreateMatch(ctx context.Context, caller *auth.Identity, peer1, peer2 string) (*Match, error)
	VerifyMatch(ctx context.Context, caller *auth.Identity, id int64) (*Match, error)
	GetUserInfo(ctx context.Context, address string) (*User, error)
	GetMatchInfo(ctx context.Context, id int64) (*Match, error)
	GetMatchmakerStats(ctx context.Context, address string) (*MatchmakerStats, error)
	GetProtocolStats(ctx context.Context) (*ProtocolStats, error)
	FundRewards(ctx context.Context, caller *auth.Identity, amount string) error
	WithdrawTokens(ctx context.Context, caller *auth.Identity, amount string) error
	PoolBalance(ctx context.Context) (*big.Int, error)
}

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(loggingService) *loggingMiddleware {
	return func(next loggingService) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   loggingService
	logger *slog.Logger
}

func callerAddr(caller *auth.Identity) string {
	if caller == nil {
		return ""
	}
	return caller.Address
}

func (m *loggingMiddleware) RegisterUser(ctx context.Context, caller *auth.Identity, role string) (*User, error) {
	start := time.Now()
	user, err := m.next.RegisterUser(ctx, caller, role)
	m.logger.Info("RegisterUser",
		"address", callerAddr(caller),
		"role", role,
		"duration", time.Since(start),
		"error", err,
	)
	return user, err
}

func (m *loggingMiddleware) AssignRole(ctx context.Context, caller *auth.Identity, address, role string) error {
	start := time.Now()
	err := m.next.AssignRole(ctx, caller, address, role)
	m.logger.Info("AssignRole",
		"caller", callerAddr(caller),
		"address", address,
		"role", role,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) CreateMatch(ctx context.Context, caller *auth.Identity, peer1, peer2 string) (*Match, error) {
	start := time.Now()
	match, err := m.next.CreateMatch(ctx, caller, peer1, peer2)
	m.logger.Info("CreateMatch",
		"matchmaker", callerAddr(caller),
		"peer1", peer1,
		"peer2", peer2,
		"duration", time.Since(start),
		"error", err,
	)
	return match, err
}

func (m *loggingMiddleware) VerifyMatch(ctx context.Context, caller *auth.Identity, id int64) (*Match, error) {
	start := time.Now()
	match, err := m.next.VerifyMatch(ctx, caller, id)
	m.logger.Info("VerifyMatch",
		"verifier", callerAddr(caller),
		"matchId", id,
		"duration", time.Since(start),
		"error", err,
	)
	return match, err
}

func (m *loggingMiddleware) GetUserInfo(ctx context.Context, address string) (*User, error) {
	start := time.Now()
	user, err := m.next.GetUserInfo(ctx, address)
	m.logger.Debug("GetUserInfo",
		"address", address,
		"duration", time.Since(start),
		"error", err,
	)
	return user, err
}

func (m *loggingMiddleware) GetMatchInfo(ctx context.Context, id int64) (*Match, error) {
	start := time.Now()
	match, err := m.next.GetMatchInfo(ctx, id)
	m.logger.Debug("GetMatchInfo",
		"matchId", id,
		"duration", time.Since(start),
		"error", err,
	)
	return match, err
}

func (m *loggingMiddleware) GetMatchmakerStats(ctx context.Context, address string) (*MatchmakerStats, error) {
	start := time.Now()
	stats, err := m.next.GetMatchmakerStats(ctx, address)
	m.logger.Debug("GetMatchmakerStats",
		"address", address,
		"duration", time.Since(start),
		"error", err,
	)
	return stats, err
}

func (m *loggingMiddleware) GetProtocolStats(ctx context.Context) (*ProtocolStats, error) {
	start := time.Now()
	stats, err := m.next.GetProtocolStats(ctx)
	m.logger.Debug("GetProtocolStats",
		"duration", time.Since(start),
		"error", err,
	)
	return stats, err
}

func (m *loggingMiddleware) FundRewards(ctx context.Context, caller *auth.Identity, amount string) error {
	start := time.Now()
	err := m.next.FundRewards(ctx, caller, amount)
	m.logger.Info("FundRewards",
		"caller", callerAddr(caller),
		"amount", amount,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) WithdrawTokens(ctx context.Context, caller *auth.Identity, amount string) error {
	start := time.Now()
	err := m.next.WithdrawTokens(ctx, caller, amount)
	m.logger.Info("WithdrawTokens",
		"caller", callerAddr(caller),
		"amount", amount,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) PoolBalance(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	balance, err := m.next.PoolBalance(ctx)
	m.logger.Debug("PoolBalance",
		"duration", time.Since(start),
		"error", err,
	)
	return balance, err
}

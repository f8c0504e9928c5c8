package domain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/matchforge/internal/auth"
	"github.com/pendergraft/matchforge/internal/events"
	"github.com/pendergraft/matchforge/internal/storage"
)

const (
	addrOwner    = "0x0000000000000000000000000000000000000001"
	addrAlice    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrBob      = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrCarol    = "0xcccccccccccccccccccccccccccccccccccccccc"
	addrDave     = "0xdddddddddddddddddddddddddddddddddddddddd"
	addrRegistry = "0x00000000000000000000000000000000004d4647"
)

// mockStore implements UserStore, MatchStore and Ledger over shared maps so
// tests exercise the same atomic verify-and-pay contract the SQL stores
// provide.
type mockStore struct {
	users     map[string]*storage.User
	verifiers map[string]bool
	matches   map[int64]*storage.Match
	balances  map[string]*big.Int
	nextID    int64
	created   int64
	verified  int64

	// verifierInsertErr makes the verifier-set half of a user write fail,
	// in which case the whole write is discarded like a rolled-back
	// transaction.
	verifierInsertErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		users:     make(map[string]*storage.User),
		verifiers: make(map[string]bool),
		matches:   make(map[int64]*storage.Match),
		balances:  make(map[string]*big.Int),
	}
}

func (m *mockStore) balance(addr string) *big.Int {
	if b, ok := m.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (m *mockStore) CreateUser(_ context.Context, user *storage.User, asVerifier bool) error {
	if _, ok := m.users[user.Address]; ok {
		return storage.ErrAlreadyExists
	}
	if asVerifier && m.verifierInsertErr != nil {
		return m.verifierInsertErr
	}
	cp := *user
	cp.TotalRewardsEarned = new(big.Int).Set(user.TotalRewardsEarned)
	m.users[user.Address] = &cp
	if asVerifier {
		m.verifiers[user.Address] = true
	}
	return nil
}

func (m *mockStore) GetUser(_ context.Context, address string) (*storage.User, error) {
	user, ok := m.users[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *user
	cp.TotalRewardsEarned = new(big.Int).Set(user.TotalRewardsEarned)
	return &cp, nil
}

func (m *mockStore) UpdateUserRole(_ context.Context, address, role string, asVerifier bool) error {
	user, ok := m.users[address]
	if !ok {
		return storage.ErrNotFound
	}
	if asVerifier && m.verifierInsertErr != nil {
		return m.verifierInsertErr
	}
	user.Role = role
	if asVerifier {
		m.verifiers[address] = true
	}
	return nil
}

func (m *mockStore) IsVerifier(_ context.Context, address string) (bool, error) {
	return m.verifiers[address], nil
}

func (m *mockStore) CreateMatch(_ context.Context, match *storage.Match) (int64, error) {
	id := m.nextID
	m.nextID++
	m.created++
	cp := *match
	cp.ID = id
	cp.Reward = new(big.Int).Set(match.Reward)
	m.matches[id] = &cp
	return id, nil
}

func (m *mockStore) GetMatch(_ context.Context, id int64) (*storage.Match, error) {
	match, ok := m.matches[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *match
	return &cp, nil
}

func (m *mockStore) VerifyMatch(ctx context.Context, id int64, registryAddr string, completedAt int64) (*storage.Match, error) {
	match, ok := m.matches[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if match.Verified {
		return nil, storage.ErrAlreadyVerified
	}
	if err := m.Move(ctx, registryAddr, match.Matchmaker, match.Reward); err != nil {
		return nil, err
	}
	match.Verified = true
	match.CompletedAt = completedAt
	m.verified++
	if user, ok := m.users[match.Matchmaker]; ok {
		user.TotalRewardsEarned = new(big.Int).Add(user.TotalRewardsEarned, match.Reward)
		user.SuccessfulMatches++
	}
	cp := *match
	return &cp, nil
}

func (m *mockStore) GetCounters(_ context.Context) (int64, int64, error) {
	return m.created, m.verified, nil
}

func (m *mockStore) Move(_ context.Context, from, to string, amount *big.Int) error {
	src := m.balance(from)
	if src.Cmp(amount) < 0 {
		return storage.ErrInsufficientBalance
	}
	m.balances[from] = new(big.Int).Sub(src, amount)
	m.balances[to] = new(big.Int).Add(m.balance(to), amount)
	return nil
}

func (m *mockStore) Balance(_ context.Context, address string) (*big.Int, error) {
	return new(big.Int).Set(m.balance(address)), nil
}

var reward, _ = new(big.Int).SetString("100000000000000000000", 10)

func newTestService(store *mockStore) *service {
	svc := NewService(store, store, store, events.Noop{}, reward, addrRegistry)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc
}

func ident(addr string, owner bool) *auth.Identity {
	return &auth.Identity{KeyID: "k-" + addr[2:6], Address: addr, Owner: owner}
}

func TestRegisterUser(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	user, err := svc.RegisterUser(context.Background(), ident(addrAlice, false), "matchmaker")
	require.NoError(t, err)
	assert.Equal(t, RoleMatchmaker, user.Role)
	assert.True(t, user.Active)
	assert.Equal(t, "0", user.TotalRewardsEarned.String())

	// Registering twice fails, even with a different role.
	_, err = svc.RegisterUser(context.Background(), ident(addrAlice, false), "verifier")
	assert.True(t, errors.Is(err, ErrAlreadyRegistered))

	// Verifier registration joins the verifier set.
	_, err = svc.RegisterUser(context.Background(), ident(addrBob, false), "verifier")
	require.NoError(t, err)
	assert.True(t, store.verifiers[addrBob])

	_, err = svc.RegisterUser(context.Background(), ident(addrCarol, false), "sorcerer")
	assert.True(t, errors.Is(err, ErrInvalidRole))

	// "none" is not a registrable role.
	_, err = svc.RegisterUser(context.Background(), ident(addrCarol, false), "none")
	assert.True(t, errors.Is(err, ErrInvalidRole))
}

func TestRegisterUserFailureLeavesNoState(t *testing.T) {
	store := newMockStore()
	store.verifierInsertErr = errors.New("verifier insert failed")
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, ident(addrAlice, false), "verifier")
	require.Error(t, err)

	// The user row and the verifier-set entry commit together; a failed
	// registration persists neither.
	user, err := svc.GetUserInfo(ctx, addrAlice)
	require.NoError(t, err)
	assert.Equal(t, RoleNone, user.Role)
	assert.False(t, user.Active)
	assert.False(t, store.verifiers[addrAlice])

	// The address stays registrable once the store recovers.
	store.verifierInsertErr = nil
	registered, err := svc.RegisterUser(ctx, ident(addrAlice, false), "verifier")
	require.NoError(t, err)
	assert.Equal(t, RoleVerifier, registered.Role)
	assert.True(t, store.verifiers[addrAlice])
}

func TestAssignRoleFailureKeepsOldRole(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, ident(addrAlice, false), "matchmaker")
	require.NoError(t, err)

	store.verifierInsertErr = errors.New("verifier insert failed")
	err = svc.AssignRole(ctx, ident(addrOwner, true), addrAlice, "verifier")
	require.Error(t, err)

	user, err := svc.GetUserInfo(ctx, addrAlice)
	require.NoError(t, err)
	assert.Equal(t, RoleMatchmaker, user.Role)
	assert.False(t, store.verifiers[addrAlice])
}

func TestAssignRole(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	_, err := svc.RegisterUser(context.Background(), ident(addrAlice, false), "matchmaker")
	require.NoError(t, err)

	// Only the owner may reassign roles.
	err = svc.AssignRole(context.Background(), ident(addrBob, false), addrAlice, "verifier")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	err = svc.AssignRole(context.Background(), ident(addrOwner, true), addrAlice, "verifier")
	require.NoError(t, err)
	assert.True(t, store.verifiers[addrAlice])

	// Moving away from verifier keeps the verifier set entry.
	err = svc.AssignRole(context.Background(), ident(addrOwner, true), addrAlice, "matchmaker")
	require.NoError(t, err)
	assert.True(t, store.verifiers[addrAlice])

	err = svc.AssignRole(context.Background(), ident(addrOwner, true), addrBob, "admin")
	assert.True(t, errors.Is(err, ErrNotRegistered))
}

func TestCreateMatch(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	_, err := svc.RegisterUser(context.Background(), ident(addrAlice, false), "matchmaker")
	require.NoError(t, err)
	_, err = svc.RegisterUser(context.Background(), ident(addrBob, false), "verifier")
	require.NoError(t, err)

	m, err := svc.CreateMatch(context.Background(), ident(addrAlice, false), addrCarol, addrDave)
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.ID)
	assert.Equal(t, addrAlice, m.Matchmaker)
	assert.Equal(t, reward.String(), m.Reward.String())
	assert.False(t, m.Verified)

	// Identical peers on a second call still produce a new match.
	m2, err := svc.CreateMatch(context.Background(), ident(addrAlice, false), addrCarol, addrDave)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m2.ID)

	// Only matchmakers create matches.
	_, err = svc.CreateMatch(context.Background(), ident(addrBob, false), addrCarol, addrDave)
	assert.True(t, errors.Is(err, ErrUnauthorizedRole))

	_, err = svc.CreateMatch(context.Background(), ident(addrCarol, false), addrAlice, addrDave)
	assert.True(t, errors.Is(err, ErrNotRegistered))

	_, err = svc.CreateMatch(context.Background(), ident(addrAlice, false), addrCarol, addrCarol)
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	_, err = svc.CreateMatch(context.Background(), ident(addrAlice, false), "0x0000000000000000000000000000000000000000", addrDave)
	assert.True(t, errors.Is(err, ErrInvalidAddress))
}

func TestVerifyMatchFullFlow(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, ident(addrAlice, false), "matchmaker")
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, ident(addrBob, false), "verifier")
	require.NoError(t, err)

	// Pool holds exactly one reward.
	store.balances[addrOwner] = new(big.Int).Set(reward)
	require.NoError(t, svc.FundRewards(ctx, ident(addrOwner, true), reward.String()))

	m, err := svc.CreateMatch(ctx, ident(addrAlice, false), addrCarol, addrDave)
	require.NoError(t, err)

	verified, err := svc.VerifyMatch(ctx, ident(addrBob, false), m.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Equal(t, int64(1700000000), verified.CompletedAt)

	// Reward left the pool and landed on the matchmaker.
	assert.Equal(t, "0", store.balance(addrRegistry).String())
	assert.Equal(t, reward.String(), store.balance(addrAlice).String())

	user, err := svc.GetUserInfo(ctx, addrAlice)
	require.NoError(t, err)
	assert.Equal(t, reward.String(), user.TotalRewardsEarned.String())
	assert.Equal(t, int64(1), user.SuccessfulMatches)

	stats, err := svc.GetProtocolStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMatches)
	assert.Equal(t, int64(1), stats.SuccessfulMatches)
	assert.Equal(t, int64(100), stats.SuccessRate)
}

func TestVerifyMatchRejections(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, ident(addrAlice, false), "matchmaker")
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, ident(addrBob, false), "verifier")
	require.NoError(t, err)
	store.balances[addrRegistry] = new(big.Int).Mul(reward, big.NewInt(10))

	m, err := svc.CreateMatch(ctx, ident(addrAlice, false), addrCarol, addrDave)
	require.NoError(t, err)

	// Matchmakers cannot verify.
	_, err = svc.VerifyMatch(ctx, ident(addrAlice, false), m.ID)
	assert.True(t, errors.Is(err, ErrUnauthorizedRole))

	_, err = svc.VerifyMatch(ctx, ident(addrBob, false), 999)
	assert.True(t, errors.Is(err, ErrUnknownMatch))

	_, err = svc.VerifyMatch(ctx, ident(addrBob, false), m.ID)
	require.NoError(t, err)

	// Second verification fails and pays nothing extra.
	_, err = svc.VerifyMatch(ctx, ident(addrBob, false), m.ID)
	assert.True(t, errors.Is(err, ErrAlreadyVerified))
	assert.Equal(t, reward.String(), store.balance(addrAlice).String())

	user, err := svc.GetUserInfo(ctx, addrAlice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.SuccessfulMatches)
}

func TestVerifyMatchInsufficientPool(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, ident(addrAlice, false), "matchmaker")
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, ident(addrBob, false), "verifier")
	require.NoError(t, err)

	// Pool one token short of the reward.
	store.balances[addrRegistry] = new(big.Int).Sub(reward, big.NewInt(1))

	m, err := svc.CreateMatch(ctx, ident(addrAlice, false), addrCarol, addrDave)
	require.NoError(t, err)

	_, err = svc.VerifyMatch(ctx, ident(addrBob, false), m.ID)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	// Nothing moved and the match stays verifiable.
	got, err := svc.GetMatchInfo(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Verified)
	assert.Equal(t, "0", store.balance(addrAlice).String())

	user, err := svc.GetUserInfo(ctx, addrAlice)
	require.NoError(t, err)
	assert.Equal(t, "0", user.TotalRewardsEarned.String())

	// Top up and retry succeeds.
	store.balances[addrRegistry] = new(big.Int).Set(reward)
	_, err = svc.VerifyMatch(ctx, ident(addrBob, false), m.ID)
	require.NoError(t, err)
}

func TestGetUserInfoUnknown(t *testing.T) {
	svc := newTestService(newMockStore())

	user, err := svc.GetUserInfo(context.Background(), addrCarol)
	require.NoError(t, err)
	assert.Equal(t, RoleNone, user.Role)
	assert.False(t, user.Active)
	assert.Equal(t, "0", user.TotalRewardsEarned.String())
	assert.Equal(t, int64(0), user.SuccessfulMatches)

	_, err = svc.GetUserInfo(context.Background(), "not-an-address")
	assert.True(t, errors.Is(err, ErrInvalidAddress))
}

func TestGetMatchInfoUnknown(t *testing.T) {
	svc := newTestService(newMockStore())
	_, err := svc.GetMatchInfo(context.Background(), 0)
	assert.True(t, errors.Is(err, ErrUnknownMatch))
}

func TestGetMatchmakerStats(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, ident(addrAlice, false), "matchmaker")
	require.NoError(t, err)

	stats, err := svc.GetMatchmakerStats(ctx, addrAlice)
	require.NoError(t, err)
	assert.Equal(t, addrAlice, stats.Address)
	assert.Equal(t, "0", stats.TotalRewardsEarned.String())

	// Unknown matchmakers report zeros, same as GetUserInfo.
	stats, err = svc.GetMatchmakerStats(ctx, addrDave)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.SuccessfulMatches)
}

func TestProtocolStatsRates(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	// No matches yet: rate is zero, not a division error.
	stats, err := svc.GetProtocolStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.SuccessRate)

	_, err = svc.RegisterUser(ctx, ident(addrAlice, false), "matchmaker")
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, ident(addrBob, false), "verifier")
	require.NoError(t, err)
	store.balances[addrRegistry] = new(big.Int).Mul(reward, big.NewInt(10))

	for i := 0; i < 3; i++ {
		_, err = svc.CreateMatch(ctx, ident(addrAlice, false), addrCarol, addrDave)
		require.NoError(t, err)
	}
	_, err = svc.VerifyMatch(ctx, ident(addrBob, false), 0)
	require.NoError(t, err)

	// 1 of 3 verified floors to 33.
	stats, err = svc.GetProtocolStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalMatches)
	assert.Equal(t, int64(1), stats.SuccessfulMatches)
	assert.Equal(t, int64(33), stats.SuccessRate)
}

func TestFundAndWithdraw(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()
	owner := ident(addrOwner, true)

	store.balances[addrOwner] = big.NewInt(1000)

	err := svc.FundRewards(ctx, ident(addrAlice, false), "100")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	err = svc.FundRewards(ctx, owner, "0")
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	err = svc.FundRewards(ctx, owner, "600")
	require.NoError(t, err)
	pool, err := svc.PoolBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "600", pool.String())

	err = svc.WithdrawTokens(ctx, owner, "700")
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	err = svc.WithdrawTokens(ctx, owner, "600")
	require.NoError(t, err)
	assert.Equal(t, "1000", store.balance(addrOwner).String())
}

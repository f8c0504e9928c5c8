//go:build e2e

package e2e

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMatch_FullFlow drives a match from creation through verified payout
func TestMatch_FullFlow(t *testing.T) {
	const (
		ownerAddr = "0x1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a"
		mmAddr    = "0x2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b"
		vfAddr    = "0x3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c"
		peer1     = "0x4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d"
		peer2     = "0x5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e"
	)
	ctx := context.Background()

	owner := newOwnerClient(t, "flow-owner", ownerAddr)
	matchmaker := newUserClient(t, "flow-matchmaker", mmAddr)
	verifier := newUserClient(t, "flow-verifier", vfAddr)

	_, err := matchmaker.RegisterUser(ctx, "matchmaker")
	require.NoError(t, err)
	_, err = verifier.RegisterUser(ctx, "verifier")
	require.NoError(t, err)

	// Fund the pool with exactly one reward
	require.NoError(t, owner.Mint(ctx, ownerAddr, matchReward))
	require.NoError(t, owner.FundRewards(ctx, matchReward))

	statsBefore, err := owner.GetProtocolStats(ctx)
	require.NoError(t, err)

	var matchID int64

	t.Run("create match", func(t *testing.T) {
		match, err := matchmaker.CreateMatch(ctx, peer1, peer2)
		require.NoError(t, err)
		matchID = match.ID

		assert.Equal(t, mmAddr, match.Matchmaker)
		assert.Equal(t, peer1, match.Peer1)
		assert.Equal(t, peer2, match.Peer2)
		assert.Equal(t, matchReward, match.Reward)
		assert.False(t, match.Verified)
		assert.NotZero(t, match.CreatedAt)
		assert.Zero(t, match.CompletedAt)
	})

	t.Run("read match without auth", func(t *testing.T) {
		match, err := newClient(testCtx.TestServer, "").GetMatch(ctx, matchID)
		require.NoError(t, err)
		assert.Equal(t, mmAddr, match.Matchmaker)
	})

	t.Run("matchmaker cannot verify", func(t *testing.T) {
		_, err := matchmaker.VerifyMatch(ctx, matchID)
		assertHTTPError(t, err, "UNAUTHORIZED_ROLE")
	})

	t.Run("verifier verifies and reward pays out", func(t *testing.T) {
		poolBefore, err := owner.GetBalance(ctx, registryAddr)
		require.NoError(t, err)

		match, err := verifier.VerifyMatch(ctx, matchID)
		require.NoError(t, err)
		assert.True(t, match.Verified)
		assert.NotZero(t, match.CompletedAt)

		// Pool drained by one reward
		poolAfter, err := owner.GetBalance(ctx, registryAddr)
		require.NoError(t, err)
		before, _ := new(big.Int).SetString(poolBefore.Amount, 10)
		after, _ := new(big.Int).SetString(poolAfter.Amount, 10)
		reward, _ := new(big.Int).SetString(matchReward, 10)
		assert.Equal(t, reward.String(), new(big.Int).Sub(before, after).String())

		// Matchmaker got paid
		paid, err := owner.GetBalance(ctx, mmAddr)
		require.NoError(t, err)
		assert.Equal(t, matchReward, paid.Amount)
	})

	t.Run("second verification rejected", func(t *testing.T) {
		_, err := verifier.VerifyMatch(ctx, matchID)
		assertHTTPError(t, err, "ALREADY_VERIFIED")
	})

	t.Run("matchmaker stats updated", func(t *testing.T) {
		stats, err := owner.GetMatchmakerStats(ctx, mmAddr)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.SuccessfulMatches)
		assert.Equal(t, matchReward, stats.TotalRewardsEarned)
	})

	t.Run("protocol counters advanced", func(t *testing.T) {
		stats, err := owner.GetProtocolStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, statsBefore.TotalMatches+1, stats.TotalMatches)
		assert.Equal(t, statsBefore.SuccessfulMatches+1, stats.SuccessfulMatches)
	})
}

// TestMatch_CreateRejections tests role and peer validation on match creation
func TestMatch_CreateRejections(t *testing.T) {
	const (
		vfAddr = "0x6f6f6f6f6f6f6f6f6f6f6f6f6f6f6f6f6f6f6f6f"
		peer1  = "0x7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a"
		peer2  = "0x8b8b8b8b8b8b8b8b8b8b8b8b8b8b8b8b8b8b8b8b"
		mmAddr = "0x9c9c9c9c9c9c9c9c9c9c9c9c9c9c9c9c9c9c9c9c"
	)
	ctx := context.Background()

	verifier := newUserClient(t, "reject-verifier", vfAddr)
	_, err := verifier.RegisterUser(ctx, "verifier")
	require.NoError(t, err)

	matchmaker := newUserClient(t, "reject-matchmaker", mmAddr)
	_, err = matchmaker.RegisterUser(ctx, "matchmaker")
	require.NoError(t, err)

	t.Run("verifier cannot create matches", func(t *testing.T) {
		_, err := verifier.CreateMatch(ctx, peer1, peer2)
		assertHTTPError(t, err, "UNAUTHORIZED_ROLE")
	})

	t.Run("unregistered caller cannot create matches", func(t *testing.T) {
		c := newUserClient(t, "reject-unregistered", "0xadadadadadadadadadadadadadadadadadadadad")
		_, err := c.CreateMatch(ctx, peer1, peer2)
		assertHTTPError(t, err, "NOT_REGISTERED")
	})

	t.Run("identical peers rejected", func(t *testing.T) {
		_, err := matchmaker.CreateMatch(ctx, peer1, peer1)
		assertHTTPError(t, err, "INVALID_ADDRESS")
	})

	t.Run("zero peer rejected", func(t *testing.T) {
		_, err := matchmaker.CreateMatch(ctx, "0x0000000000000000000000000000000000000000", peer2)
		assertHTTPError(t, err, "INVALID_ADDRESS")
	})

	t.Run("unknown match id", func(t *testing.T) {
		_, err := matchmaker.GetMatch(ctx, 999999)
		assertHTTPError(t, err, "UNKNOWN_MATCH")
	})
}

// TestMatch_OwnerBootstrapVerifier tests that an owner key can verify
// matches without ever registering, since owner key creation seeds the
// verifier set
func TestMatch_OwnerBootstrapVerifier(t *testing.T) {
	const (
		ownerAddr = "0x1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f"
		mmAddr    = "0x2e2e2e2e2e2e2e2e2e2e2e2e2e2e2e2e2e2e2e2e"
		peer1     = "0x3d3d3d3d3d3d3d3d3d3d3d3d3d3d3d3d3d3d3d3d"
		peer2     = "0x4c4c4c4c4c4c4c4c4c4c4c4c4c4c4c4c4c4c4c4c"
	)
	ctx := context.Background()

	owner := newOwnerClient(t, "bootstrap-owner", ownerAddr)
	matchmaker := newUserClient(t, "bootstrap-matchmaker", mmAddr)

	// Owner has no user record at all
	info, err := owner.GetUser(ctx, ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, "none", info.Role)

	_, err = matchmaker.RegisterUser(ctx, "matchmaker")
	require.NoError(t, err)

	require.NoError(t, owner.Mint(ctx, ownerAddr, matchReward))
	require.NoError(t, owner.FundRewards(ctx, matchReward))

	match, err := matchmaker.CreateMatch(ctx, peer1, peer2)
	require.NoError(t, err)

	got, err := owner.VerifyMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
}

// TestMatch_InsufficientPool tests that payout failure leaves the match verifiable
func TestMatch_InsufficientPool(t *testing.T) {
	const (
		ownerAddr = "0xbebebebebebebebebebebebebebebebebebebebe"
		mmAddr    = "0xcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcf"
		vfAddr    = "0xdadadadadadadadadadadadadadadadadadadada"
		peer1     = "0xebebebebebebebebebebebebebebebebebebebeb"
		peer2     = "0xfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfcfc"
	)
	ctx := context.Background()

	owner := newOwnerClient(t, "pool-owner", ownerAddr)
	matchmaker := newUserClient(t, "pool-matchmaker", mmAddr)
	verifier := newUserClient(t, "pool-verifier", vfAddr)

	_, err := matchmaker.RegisterUser(ctx, "matchmaker")
	require.NoError(t, err)
	_, err = verifier.RegisterUser(ctx, "verifier")
	require.NoError(t, err)

	// Drain the pool so this match cannot pay out
	pool, err := owner.GetBalance(ctx, registryAddr)
	require.NoError(t, err)
	if pool.Amount != "0" {
		require.NoError(t, owner.WithdrawTokens(ctx, pool.Amount))
	}

	match, err := matchmaker.CreateMatch(ctx, peer1, peer2)
	require.NoError(t, err)

	t.Run("verification fails with empty pool", func(t *testing.T) {
		_, err := verifier.VerifyMatch(ctx, match.ID)
		assertHTTPError(t, err, "INSUFFICIENT_BALANCE")

		// Match stays unverified
		got, err := verifier.GetMatch(ctx, match.ID)
		require.NoError(t, err)
		assert.False(t, got.Verified)
	})

	t.Run("verification succeeds after funding", func(t *testing.T) {
		require.NoError(t, owner.Mint(ctx, ownerAddr, matchReward))
		require.NoError(t, owner.FundRewards(ctx, matchReward))

		got, err := verifier.VerifyMatch(ctx, match.ID)
		require.NoError(t, err)
		assert.True(t, got.Verified)
	})
}

//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuth_UnauthenticatedRead tests that read endpoints work without authentication
func TestAuth_UnauthenticatedRead(t *testing.T) {
	const addr = "0xa0a1a2a3a4a5a6a7a8a9aaabacadaeafb0b1b2b3"

	authedClient := newUserClient(t, "auth-read", addr)
	_, err := authedClient.RegisterUser(context.Background(), "matchmaker")
	require.NoError(t, err)

	unauthedClient := newClient(testCtx.TestServer, "")

	t.Run("get user without auth", func(t *testing.T) {
		user, err := unauthedClient.GetUser(context.Background(), addr)
		require.NoError(t, err)
		assert.Equal(t, "matchmaker", user.Role)
	})

	t.Run("get protocol stats without auth", func(t *testing.T) {
		_, err := unauthedClient.GetProtocolStats(context.Background())
		require.NoError(t, err)
	})

	t.Run("get balance without auth", func(t *testing.T) {
		balance, err := unauthedClient.GetBalance(context.Background(), addr)
		require.NoError(t, err)
		assert.Equal(t, "0", balance.Amount)
	})

	t.Run("get supply without auth", func(t *testing.T) {
		_, err := unauthedClient.GetTotalSupply(context.Background())
		require.NoError(t, err)
	})
}

// TestAuth_WritesRequireKey tests that write endpoints reject missing and invalid keys
func TestAuth_WritesRequireKey(t *testing.T) {
	t.Run("register without key", func(t *testing.T) {
		c := newClient(testCtx.TestServer, "")
		_, err := c.RegisterUser(context.Background(), "matchmaker")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})

	t.Run("register with invalid key", func(t *testing.T) {
		c := newClient(testCtx.TestServer, "mf_key_bogus")
		_, err := c.RegisterUser(context.Background(), "matchmaker")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})

	t.Run("mint with invalid key", func(t *testing.T) {
		c := newClient(testCtx.TestServer, "mf_key_bogus")
		err := c.Mint(context.Background(), "0xa0a1a2a3a4a5a6a7a8a9aaabacadaeafb0b1b2b3", "100")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})
}

// TestAuth_OwnerRoutes tests that owner routes reject non-owner keys
func TestAuth_OwnerRoutes(t *testing.T) {
	const addr = "0xb0b1b2b3b4b5b6b7b8b9babbbcbdbebfc0c1c2c3"
	c := newUserClient(t, "auth-nonowner", addr)

	t.Run("non-owner cannot fund rewards", func(t *testing.T) {
		err := c.FundRewards(context.Background(), "100")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})

	t.Run("non-owner cannot assign roles", func(t *testing.T) {
		err := c.AssignRole(context.Background(), addr, "verifier")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})

	t.Run("non-owner cannot mint", func(t *testing.T) {
		err := c.Mint(context.Background(), addr, "100")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})
}

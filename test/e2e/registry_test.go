//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistry_RegisterUser tests user registration and role handling
func TestRegistry_RegisterUser(t *testing.T) {
	const (
		mmAddr  = "0xe0e1e2e3e4e5e6e7e8e9eaebecedeeeff0f1f2f3"
		vfAddr  = "0xf0f1f2f3f4f5f6f7f8f9fafbfcfdfefff1f2f3f4"
		unknown = "0x9999999999999999999999999999999999999999"
	)
	ctx := context.Background()

	matchmaker := newUserClient(t, "reg-matchmaker", mmAddr)
	verifier := newUserClient(t, "reg-verifier", vfAddr)

	t.Run("register matchmaker", func(t *testing.T) {
		user, err := matchmaker.RegisterUser(ctx, "matchmaker")
		require.NoError(t, err)
		assert.Equal(t, mmAddr, user.Address)
		assert.Equal(t, "matchmaker", user.Role)
		assert.True(t, user.Active)
		assert.Equal(t, "0", user.TotalRewardsEarned)
	})

	t.Run("register verifier", func(t *testing.T) {
		user, err := verifier.RegisterUser(ctx, "verifier")
		require.NoError(t, err)
		assert.Equal(t, "verifier", user.Role)
	})

	t.Run("duplicate registration rejected", func(t *testing.T) {
		_, err := matchmaker.RegisterUser(ctx, "verifier")
		assertHTTPError(t, err, "ALREADY_REGISTERED")
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		c := newUserClient(t, "reg-badrole", "0x8888888888888888888888888888888888888888")
		_, err := c.RegisterUser(ctx, "superuser")
		assertHTTPError(t, err, "INVALID_ROLE")
	})

	t.Run("unknown user reads as zero record", func(t *testing.T) {
		user, err := matchmaker.GetUser(ctx, unknown)
		require.NoError(t, err)
		assert.Equal(t, "none", user.Role)
		assert.False(t, user.Active)
		assert.Equal(t, "0", user.TotalRewardsEarned)
	})

	t.Run("malformed address rejected", func(t *testing.T) {
		_, err := matchmaker.GetUser(ctx, "0xzz")
		assertHTTPError(t, err, "INVALID_ADDRESS")
	})
}

// TestRegistry_AssignRole tests owner-driven role reassignment
func TestRegistry_AssignRole(t *testing.T) {
	const (
		ownerAddr = "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
		userAddr  = "0xb2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2"
	)
	ctx := context.Background()

	owner := newOwnerClient(t, "assign-owner", ownerAddr)
	user := newUserClient(t, "assign-user", userAddr)

	_, err := user.RegisterUser(ctx, "matchmaker")
	require.NoError(t, err)

	t.Run("owner promotes matchmaker to verifier", func(t *testing.T) {
		require.NoError(t, owner.AssignRole(ctx, userAddr, "verifier"))

		got, err := owner.GetUser(ctx, userAddr)
		require.NoError(t, err)
		assert.Equal(t, "verifier", got.Role)
	})

	t.Run("assign to unregistered address rejected", func(t *testing.T) {
		err := owner.AssignRole(ctx, "0xc3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3", "verifier")
		assertHTTPError(t, err, "NOT_REGISTERED")
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		err := owner.AssignRole(ctx, userAddr, "superuser")
		assertHTTPError(t, err, "INVALID_ROLE")
	})
}

//go:build e2e

package e2e

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLedger_MintAndTransfer tests the token accounting flow end to end
func TestLedger_MintAndTransfer(t *testing.T) {
	const (
		treasury  = "0xc0c1c2c3c4c5c6c7c8c9cacbcccdcecfd0d1d2d3"
		recipient = "0xd0d1d2d3d4d5d6d7d8d9dadbdcdddedfe0e1e2e3"
	)

	owner := newOwnerClient(t, "ledger-owner", treasury)
	ctx := context.Background()

	supplyBefore, err := owner.GetTotalSupply(ctx)
	require.NoError(t, err)
	before, ok := new(big.Int).SetString(supplyBefore, 10)
	require.True(t, ok)

	t.Run("mint credits balance and supply", func(t *testing.T) {
		require.NoError(t, owner.Mint(ctx, treasury, "1000"))

		balance, err := owner.GetBalance(ctx, treasury)
		require.NoError(t, err)
		assert.Equal(t, "1000", balance.Amount)

		supply, err := owner.GetTotalSupply(ctx)
		require.NoError(t, err)
		after, ok := new(big.Int).SetString(supply, 10)
		require.True(t, ok)
		assert.Equal(t, "1000", new(big.Int).Sub(after, before).String())
	})

	t.Run("transfer moves funds", func(t *testing.T) {
		require.NoError(t, owner.Transfer(ctx, recipient, "400"))

		from, err := owner.GetBalance(ctx, treasury)
		require.NoError(t, err)
		assert.Equal(t, "600", from.Amount)

		to, err := owner.GetBalance(ctx, recipient)
		require.NoError(t, err)
		assert.Equal(t, "400", to.Amount)
	})

	t.Run("transfer rejects overdraw", func(t *testing.T) {
		err := owner.Transfer(ctx, recipient, "601")
		assertHTTPError(t, err, "INSUFFICIENT_BALANCE")
	})

	t.Run("burn debits balance and supply", func(t *testing.T) {
		require.NoError(t, owner.Burn(ctx, "100"))

		balance, err := owner.GetBalance(ctx, treasury)
		require.NoError(t, err)
		assert.Equal(t, "500", balance.Amount)
	})

	t.Run("invalid amount rejected", func(t *testing.T) {
		err := owner.Mint(ctx, treasury, "twelve")
		assertHTTPError(t, err, "INVALID_AMOUNT")
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		err := owner.Mint(ctx, treasury, "-5")
		assertHTTPError(t, err, "INVALID_AMOUNT")
	})

	t.Run("invalid address rejected", func(t *testing.T) {
		err := owner.Mint(ctx, "not-an-address", "5")
		assertHTTPError(t, err, "INVALID_ADDRESS")
	})
}

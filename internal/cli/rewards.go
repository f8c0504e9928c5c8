package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func createRewardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Manage the reward pool (owner only)",
	}

	cmd.AddCommand(createRewardsFundCmd())
	cmd.AddCommand(createRewardsWithdrawCmd())
	cmd.AddCommand(createRewardsAssignRoleCmd())

	return cmd
}

func createRewardsFundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <amount>",
		Short: "Move tokens from the owner into the reward pool",
		Long: `Fund the reward pool. Requires the owner key, and the owner
address must hold the amount.

EXAMPLES:
  # Fund 1000 tokens (base units)
  matchforge rewards fund 1000000000000000000000
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewardsFund(args[0])
		},
	}
}

func createRewardsWithdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Move tokens from the reward pool back to the owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewardsWithdraw(args[0])
		},
	}
}

func createRewardsAssignRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign-role <address> <role>",
		Short: "Reassign a registered user's role",
		Long: `Overwrite a registered user's role. Requires the owner key.

An address moved to verifier joins the verifier set; moving it away
again does not remove it.

EXAMPLES:
  matchforge rewards assign-role 0xaaaa...aaaa verifier
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssignRole(args[0], args[1])
		},
	}
}

func runRewardsFund(amount string) error {
	c := newClient()
	if err := c.FundRewards(context.Background(), amount); err != nil {
		return fmt.Errorf("failed to fund rewards: %w", err)
	}

	fmt.Printf("✅ Funded reward pool with %s\n", amount)
	return nil
}

func runRewardsWithdraw(amount string) error {
	c := newClient()
	if err := c.WithdrawTokens(context.Background(), amount); err != nil {
		return fmt.Errorf("failed to withdraw: %w", err)
	}

	fmt.Printf("✅ Withdrew %s from the reward pool\n", amount)
	return nil
}

func runAssignRole(address, role string) error {
	c := newClient()
	if err := c.AssignRole(context.Background(), address, role); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	fmt.Printf("✅ Assigned %s to %s\n", role, address)
	return nil
}

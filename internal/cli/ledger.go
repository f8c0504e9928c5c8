package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func createLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Token ledger operations",
	}

	cmd.AddCommand(createBalanceCmd())
	cmd.AddCommand(createSupplyCmd())
	cmd.AddCommand(createMintCmd())
	cmd.AddCommand(createBurnCmd())
	cmd.AddCommand(createTransferCmd())

	return cmd
}

func createBalanceCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Show an address's token balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func createSupplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supply",
		Short: "Show the total minted supply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupply()
		},
	}
}

func createMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint <to> <amount>",
		Short: "Mint new tokens (owner only)",
		Long: `Mint tokens to an address. Requires the owner key.

Amounts are in base units (18 decimals): 100 tokens = 100000000000000000000.

EXAMPLES:
  matchforge ledger mint 0xaaaa...aaaa 100000000000000000000
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMint(args[0], args[1])
		},
	}

	return cmd
}

func createBurnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "burn <amount>",
		Short: "Burn tokens from your address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBurn(args[0])
		},
	}
}

func createTransferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Transfer tokens from your address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(args[0], args[1])
		},
	}
}

func runBalance(address string, jsonOutput bool) error {
	c := newClient()
	balance, err := c.GetBalance(context.Background(), address)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(balance)
	}

	fmt.Printf("%s: %s\n", balance.Address, balance.Amount)
	return nil
}

func runSupply() error {
	c := newClient()
	supply, err := c.GetTotalSupply(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get supply: %w", err)
	}

	fmt.Printf("Total supply: %s\n", supply)
	return nil
}

func runMint(to, amount string) error {
	c := newClient()
	if err := c.Mint(context.Background(), to, amount); err != nil {
		return fmt.Errorf("failed to mint: %w", err)
	}

	fmt.Printf("✅ Minted %s to %s\n", amount, to)
	return nil
}

func runBurn(amount string) error {
	c := newClient()
	if err := c.Burn(context.Background(), amount); err != nil {
		return fmt.Errorf("failed to burn: %w", err)
	}

	fmt.Printf("✅ Burned %s\n", amount)
	return nil
}

func runTransfer(to, amount string) error {
	c := newClient()
	if err := c.Transfer(context.Background(), to, amount); err != nil {
		return fmt.Errorf("failed to transfer: %w", err)
	}

	fmt.Printf("✅ Transferred %s to %s\n", amount, to)
	return nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func createRegisterCmd() *cobra.Command {
	var role string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register your address with a role",
		Long: `Register the address bound to your API key.

Roles: matchmaker (may create matches), verifier (may verify matches),
admin. An address registers once; use the server owner to reassign roles.

EXAMPLES:
  # Register as a matchmaker
  matchforge register --role matchmaker

  # Register as a verifier
  matchforge register --role verifier
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(role, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "role to register with (default from config, else matchmaker)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func createUserCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "user <address>",
		Short: "Show a user record",
		Long: `Display a user's role, reward total and match count.

Unknown addresses show a zero-valued record.

EXAMPLES:
  matchforge user 0xaaaa...aaaa
  matchforge user 0xaaaa...aaaa --json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUser(args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runRegister(role string, jsonOutput bool) error {
	if role == "" {
		if cfg := loadProjectConfigSilent(); cfg != nil && cfg.Role != "" {
			role = cfg.Role
		} else {
			role = "matchmaker"
		}
	}

	c := newClient()
	user, err := c.RegisterUser(context.Background(), role)
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(user)
	}

	fmt.Printf("✅ Registered %s as %s\n", user.Address, user.Role)
	return nil
}

func runUser(address string, jsonOutput bool) error {
	c := newClient()
	user, err := c.GetUser(context.Background(), address)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(user)
	}

	fmt.Printf("Address: %s\n", user.Address)
	fmt.Printf("Role:    %s\n", user.Role)
	fmt.Printf("Active:  %t\n", user.Active)
	fmt.Printf("Rewards: %s\n", user.TotalRewardsEarned)
	fmt.Printf("Matches: %d verified\n", user.SuccessfulMatches)

	return nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func createStatsCmd() *cobra.Command {
	var address string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show protocol or matchmaker statistics",
		Long: `Show aggregate protocol statistics, or one matchmaker's record
with --address.

EXAMPLES:
  # Protocol-wide counters and pool balance
  matchforge stats

  # One matchmaker's record
  matchforge stats --address 0xaaaa...aaaa
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				return runMatchmakerStats(address, jsonOutput)
			}
			return runProtocolStats(jsonOutput)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "show stats for one matchmaker")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runProtocolStats(jsonOutput bool) error {
	c := newClient()
	stats, err := c.GetProtocolStats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Matches:      %d total, %d verified\n", stats.TotalMatches, stats.SuccessfulMatches)
	fmt.Printf("Success rate: %d%%\n", stats.SuccessRate)
	fmt.Printf("Reward pool:  %s\n", stats.RewardPoolBalance)

	return nil
}

func runMatchmakerStats(address string, jsonOutput bool) error {
	c := newClient()
	stats, err := c.GetMatchmakerStats(context.Background(), address)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Matchmaker: %s\n", stats.Address)
	fmt.Printf("Rewards:    %s\n", stats.TotalRewardsEarned)
	fmt.Printf("Matches:    %d verified\n", stats.SuccessfulMatches)

	return nil
}

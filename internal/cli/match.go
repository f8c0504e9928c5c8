package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/matchforge/pkg/client"
)

func createMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Create, verify and inspect matches",
	}

	cmd.AddCommand(createMatchCreateCmd())
	cmd.AddCommand(createMatchVerifyCmd())
	cmd.AddCommand(createMatchInfoCmd())

	return cmd
}

func createMatchCreateCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "create <peer1> <peer2>",
		Short: "Record a match between two peers",
		Long: `Record a match between two peer addresses.

Requires a matchmaker key. The match captures the current reward amount
and pays it to you once a verifier confirms the match.

EXAMPLES:
  matchforge match create 0xbbbb...bbbb 0xcccc...cccc
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatchCreate(args[0], args[1], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func createMatchVerifyCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "verify <id>",
		Short: "Verify a match and pay its matchmaker",
		Long: `Verify a match by id.

Requires a verifier key. On success the fixed reward moves from the
reward pool to the matchmaker in the same operation.

EXAMPLES:
  matchforge match verify 7
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid match id: %s", args[0])
			}
			return runMatchVerify(id, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func createMatchInfoCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info <id>",
		Short: "Show match details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid match id: %s", args[0])
			}
			return runMatchInfo(id, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runMatchCreate(peer1, peer2 string, jsonOutput bool) error {
	c := newClient()
	match, err := c.CreateMatch(context.Background(), peer1, peer2)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(match)
	}

	fmt.Printf("✅ Match %d created\n", match.ID)
	fmt.Printf("   Peers:  %s / %s\n", match.Peer1, match.Peer2)
	fmt.Printf("   Reward: %s (paid on verification)\n", match.Reward)
	return nil
}

func runMatchVerify(id int64, jsonOutput bool) error {
	c := newClient()
	match, err := c.VerifyMatch(context.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to verify match: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(match)
	}

	fmt.Printf("✅ Match %d verified\n", match.ID)
	fmt.Printf("   Reward %s paid to %s\n", match.Reward, match.Matchmaker)
	return nil
}

func runMatchInfo(id int64, jsonOutput bool) error {
	c := newClient()
	match, err := c.GetMatch(context.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to get match: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(match)
	}

	printMatch(match)
	return nil
}

func printMatch(match *client.Match) {
	fmt.Printf("Match:      %d\n", match.ID)
	fmt.Printf("Matchmaker: %s\n", match.Matchmaker)
	fmt.Printf("Peers:      %s / %s\n", match.Peer1, match.Peer2)
	fmt.Printf("Reward:     %s\n", match.Reward)
	if match.Verified {
		fmt.Printf("Status:     verified at %s\n", time.Unix(match.CompletedAt, 0).UTC().Format(time.RFC3339))
	} else {
		fmt.Println("Status:     pending verification")
	}
	fmt.Printf("Created:    %s\n", time.Unix(match.CreatedAt, 0).UTC().Format(time.RFC3339))
}

// Package cli implements the matchforge command line client.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/matchforge/pkg/client"
)

var (
	cfgFile string
	server  string
	apiKey  string
)

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "matchforge",
		Short:   "Reward-matching registry CLI",
		Long:    `Matchforge is a CLI for registering users, recording and verifying matches, and moving ledger tokens.`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: matchforge.toml or mf.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")

	rootCmd.AddCommand(createRegisterCmd())
	rootCmd.AddCommand(createUserCmd())
	rootCmd.AddCommand(createMatchCmd())
	rootCmd.AddCommand(createStatsCmd())
	rootCmd.AddCommand(createLedgerCmd())
	rootCmd.AddCommand(createRewardsCmd())
	rootCmd.AddCommand(createAuthCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd.Execute()
}

// newClient builds an API client from the effective server and key.
func newClient() *client.Client {
	return client.New(getServer(), getAPIKey())
}

// getServer returns the server URL from flag, env, config file, or default
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv("MATCHFORGE_SERVER"); env != "" {
		return env
	}

	// 3. Project config file (TOML)
	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}

	// 4. Default
	return "http://localhost:8080"
}

// getAPIKey returns the API key from flag, env, or credentials file
func getAPIKey() string {
	// 1. Command line flag
	if apiKey != "" {
		return apiKey
	}

	// 2. Environment variable
	if env := os.Getenv("MATCHFORGE_API_KEY"); env != "" {
		return env
	}

	// 3. Credentials file (keyed by server URL)
	serverURL := getServer()
	if cred := getCredential(serverURL); cred != "" {
		return cred
	}

	return ""
}

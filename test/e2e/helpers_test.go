//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pendergraft/matchforge/internal/config"
	"github.com/pendergraft/matchforge/internal/server"
	"github.com/pendergraft/matchforge/internal/storage"
	"github.com/pendergraft/matchforge/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// registryAddr is the pool address every test server is configured with.
const registryAddr = config.DefaultRegistryAddress

// matchReward mirrors the server's fixed per-match reward.
const matchReward = config.DefaultMatchReward

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("matchforge"),
		postgres.WithUsername("matchforge"),
		postgres.WithPassword("matchforge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startServerE starts the matchforge server in-process against the given database
func startServerE(connString string) (*httptest.Server, storage.Store, error) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Auth: config.AuthConfig{Type: "api-key"},
		Rewards: config.RewardsConfig{
			MatchReward:     matchReward,
			RegistryAddress: registryAddr,
		},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{FilterEnabled: false, MaxBodySizeMB: 1},
		Proxy:     config.ProxyConfig{TrustProxy: false},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	srv := server.New(cfg, store, logger)
	testServer := httptest.NewServer(srv.Handler())

	return testServer, store, nil
}

// newClient creates an API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey)
}

// createTestAPIKey creates an identity key bound to an address using the store directly
func createTestAPIKey(t *testing.T, store storage.Store, name, address string, owner bool) string {
	t.Helper()
	key, err := store.CreateAPIKey(context.Background(), name, address, owner)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// newUserClient creates a key for address and returns a client authenticated with it
func newUserClient(t *testing.T, name, address string) *client.Client {
	t.Helper()
	key := createTestAPIKey(t, testCtx.Store, name, address, false)
	return newClient(testCtx.TestServer, key)
}

// newOwnerClient creates an owner key for address and returns a client authenticated with it
func newOwnerClient(t *testing.T, name, address string) *client.Client {
	t.Helper()
	key := createTestAPIKey(t, testCtx.Store, name, address, true)
	return newClient(testCtx.TestServer, key)
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError, got %T: %v", err, err)
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}

// Package client provides a Go client for the Matchforge API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a Matchforge API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new Matchforge client
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// User is a registered user record
type User struct {
	Address            string `json:"address"`
	Role               string `json:"role"`
	TotalRewardsEarned string `json:"totalRewardsEarned"`
	SuccessfulMatches  int64  `json:"successfulMatches"`
	Active             bool   `json:"active"`
}

// Match is a recorded match
type Match struct {
	ID          int64  `json:"id"`
	Matchmaker  string `json:"matchmaker"`
	Peer1       string `json:"peer1"`
	Peer2       string `json:"peer2"`
	Reward      string `json:"reward"`
	Verified    bool   `json:"verified"`
	CreatedAt   int64  `json:"createdAt"`
	CompletedAt int64  `json:"completedAt"`
}

// MatchmakerStats is a matchmaker's cumulative record
type MatchmakerStats struct {
	Address            string `json:"address"`
	TotalRewardsEarned string `json:"totalRewardsEarned"`
	SuccessfulMatches  int64  `json:"successfulMatches"`
}

// ProtocolStats holds the aggregate protocol counters
type ProtocolStats struct {
	TotalMatches      int64  `json:"totalMatches"`
	SuccessfulMatches int64  `json:"successfulMatches"`
	SuccessRate       int64  `json:"successRate"`
	RewardPoolBalance string `json:"rewardPoolBalance"`
}

// Balance is an address's token balance
type Balance struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Registry operations

// RegisterUser registers the key's address with a role.
func (c *Client) RegisterUser(ctx context.Context, role string) (*User, error) {
	var resp User
	if err := c.post(ctx, "/api/v1/registry/users", map[string]string{"role": role}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AssignRole reassigns a user's role. Owner key required.
func (c *Client) AssignRole(ctx context.Context, address, role string) error {
	path := "/api/v1/registry/users/" + url.PathEscape(address) + "/role"
	return c.post(ctx, path, map[string]string{"role": role}, nil)
}

// GetUser fetches a user record. Unknown addresses return a zero-valued
// record.
func (c *Client) GetUser(ctx context.Context, address string) (*User, error) {
	var resp User
	if err := c.get(ctx, "/api/v1/registry/users/"+url.PathEscape(address), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMatchmakerStats fetches a matchmaker's cumulative record.
func (c *Client) GetMatchmakerStats(ctx context.Context, address string) (*MatchmakerStats, error) {
	var resp MatchmakerStats
	if err := c.get(ctx, "/api/v1/registry/users/"+url.PathEscape(address)+"/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateMatch records a match between two peers.
func (c *Client) CreateMatch(ctx context.Context, peer1, peer2 string) (*Match, error) {
	var resp Match
	body := map[string]string{"peer1": peer1, "peer2": peer2}
	if err := c.post(ctx, "/api/v1/registry/matches", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMatch fetches a match by id.
func (c *Client) GetMatch(ctx context.Context, id int64) (*Match, error) {
	var resp Match
	if err := c.get(ctx, "/api/v1/registry/matches/"+strconv.FormatInt(id, 10), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyMatch verifies a match, paying the matchmaker.
func (c *Client) VerifyMatch(ctx context.Context, id int64) (*Match, error) {
	var resp Match
	path := "/api/v1/registry/matches/" + strconv.FormatInt(id, 10) + "/verify"
	if err := c.post(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProtocolStats fetches the aggregate counters.
func (c *Client) GetProtocolStats(ctx context.Context) (*ProtocolStats, error) {
	var resp ProtocolStats
	if err := c.get(ctx, "/api/v1/registry/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FundRewards moves tokens from the owner into the reward pool. Owner key
// required.
func (c *Client) FundRewards(ctx context.Context, amount string) error {
	return c.post(ctx, "/api/v1/registry/rewards/fund", map[string]string{"amount": amount}, nil)
}

// WithdrawTokens moves tokens from the reward pool to the owner. Owner key
// required.
func (c *Client) WithdrawTokens(ctx context.Context, amount string) error {
	return c.post(ctx, "/api/v1/registry/rewards/withdraw", map[string]string{"amount": amount}, nil)
}

// Ledger operations

// GetBalance fetches an address's token balance.
func (c *Client) GetBalance(ctx context.Context, address string) (*Balance, error) {
	var resp Balance
	if err := c.get(ctx, "/api/v1/ledger/balances/"+url.PathEscape(address), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTotalSupply fetches the total minted supply.
func (c *Client) GetTotalSupply(ctx context.Context) (string, error) {
	var resp struct {
		TotalSupply string `json:"totalSupply"`
	}
	if err := c.get(ctx, "/api/v1/ledger/supply", &resp); err != nil {
		return "", err
	}
	return resp.TotalSupply, nil
}

// Mint creates new tokens. Owner key required.
func (c *Client) Mint(ctx context.Context, to, amount string) error {
	body := map[string]string{"to": to, "amount": amount}
	return c.post(ctx, "/api/v1/ledger/mint", body, nil)
}

// Burn destroys tokens from the key's address.
func (c *Client) Burn(ctx context.Context, amount string) error {
	return c.post(ctx, "/api/v1/ledger/burn", map[string]string{"amount": amount}, nil)
}

// Transfer moves tokens from the key's address to another.
func (c *Client) Transfer(ctx context.Context, to, amount string) error {
	body := map[string]string{"to": to, "amount": amount}
	return c.post(ctx, "/api/v1/ledger/transfer", body, nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}

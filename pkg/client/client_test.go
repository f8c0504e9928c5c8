package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addrAlice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestClient_SendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		json.NewEncoder(w).Encode(map[string]string{"totalSupply": "0"})
	}))
	defer srv.Close()

	c := New(srv.URL, "mf_key_test")
	_, err := c.GetTotalSupply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mf_key_test", gotKey)
}

func TestClient_RegisterUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/registry/users", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "matchmaker", body["role"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(User{
			Address:            addrAlice,
			Role:               "matchmaker",
			TotalRewardsEarned: "0",
			Active:             true,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	user, err := c.RegisterUser(context.Background(), "matchmaker")
	require.NoError(t, err)
	assert.Equal(t, addrAlice, user.Address)
	assert.True(t, user.Active)
}

func TestClient_CreateAndVerifyMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/registry/matches":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(Match{ID: 3, Matchmaker: addrAlice, Reward: "100"})
		case "/api/v1/registry/matches/3/verify":
			json.NewEncoder(w).Encode(Match{ID: 3, Matchmaker: addrAlice, Reward: "100", Verified: true})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	m, err := c.CreateMatch(context.Background(), "0xb", "0xc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.ID)

	m, err = c.VerifyMatch(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, m.Verified)
}

func TestClient_GetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/ledger/balances/"+addrAlice, r.URL.Path)
		json.NewEncoder(w).Encode(Balance{Address: addrAlice, Amount: "250"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	b, err := c.GetBalance(context.Background(), addrAlice)
	require.NoError(t, err)
	assert.Equal(t, "250", b.Amount)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "ALREADY_VERIFIED",
				"message": "Match is already verified",
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	_, err := c.VerifyMatch(context.Background(), 1)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ALREADY_VERIFIED", apiErr.Code)
}

func TestClient_MalformedErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream broke"))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	_, err := c.GetProtocolStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

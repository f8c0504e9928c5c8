// Package transport provides HTTP request/response types for the registry domain.
package transport

import "github.com/pendergraft/matchforge/internal/registry/domain"

// RegisterUserRequest is the HTTP request body for registering the caller.
type RegisterUserRequest struct {
	Role string `json:"role"`
}

// AssignRoleRequest is the HTTP request body for reassigning a user's role.
type AssignRoleRequest struct {
	Role string `json:"role"`
}

// CreateMatchRequest is the HTTP request body for recording a match.
type CreateMatchRequest struct {
	Peer1 string `json:"peer1"`
	Peer2 string `json:"peer2"`
}

// FundRequest is the HTTP request body for funding or withdrawing from the
// reward pool.
type FundRequest struct {
	Amount string `json:"amount"`
}

// UserResponse is the response for a user query.
type UserResponse struct {
	Address            string `json:"address"`
	Role               string `json:"role"`
	TotalRewardsEarned string `json:"totalRewardsEarned"`
	SuccessfulMatches  int64  `json:"successfulMatches"`
	Active             bool   `json:"active"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		Address:            u.Address,
		Role:               string(u.Role),
		TotalRewardsEarned: u.TotalRewardsEarned.String(),
		SuccessfulMatches:  u.SuccessfulMatches,
		Active:             u.Active,
	}
}

// MatchResponse is the response for a match query or mutation.
type MatchResponse struct {
	ID          int64  `json:"id"`
	Matchmaker  string `json:"matchmaker"`
	Peer1       string `json:"peer1"`
	Peer2       string `json:"peer2"`
	Reward      string `json:"reward"`
	Verified    bool   `json:"verified"`
	CreatedAt   int64  `json:"createdAt"`
	CompletedAt int64  `json:"completedAt"`
}

func toMatchResponse(m *domain.Match) MatchResponse {
	return MatchResponse{
		ID:          m.ID,
		Matchmaker:  m.Matchmaker,
		Peer1:       m.Peer1,
		Peer2:       m.Peer2,
		Reward:      m.Reward.String(),
		Verified:    m.Verified,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
}

// MatchmakerStatsResponse is the response for a matchmaker stats query.
type MatchmakerStatsResponse struct {
	Address            string `json:"address"`
	TotalRewardsEarned string `json:"totalRewardsEarned"`
	SuccessfulMatches  int64  `json:"successfulMatches"`
}

// ProtocolStatsResponse is the response for the protocol stats query.
type ProtocolStatsResponse struct {
	TotalMatches      int64  `json:"totalMatches"`
	SuccessfulMatches int64  `json:"successfulMatches"`
	SuccessRate       int64  `json:"successRate"`
	RewardPoolBalance string `json:"rewardPoolBalance"`
}

// StatusResponse acknowledges a state-changing registry operation.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package domain

import (
	"math/big"
	"strings"
)

// Role is a participant's protocol role.
type Role string

// Recognized roles. RoleNone is never assignable.
const (
	RoleNone       Role = "none"
	RoleMatchmaker Role = "matchmaker"
	RoleVerifier   Role = "verifier"
	RoleAdmin      Role = "admin"
)

// ParseRole maps a request string to a Role; ok is false for RoleNone and
// anything unrecognized.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(s)) {
	case RoleMatchmaker:
		return RoleMatchmaker, true
	case RoleVerifier:
		return RoleVerifier, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return RoleNone, false
	}
}

// User is a registered participant.
type User struct {
	Address            string
	Role               Role
	TotalRewardsEarned *big.Int
	SuccessfulMatches  int64
	Active             bool
}

// Match links two peer addresses to the matchmaker who proposed them.
type Match struct {
	ID          int64
	Matchmaker  string
	Peer1       string
	Peer2       string
	Reward      *big.Int
	Verified    bool
	CreatedAt   int64
	CompletedAt int64
}

// MatchmakerStats is a matchmaker's cumulative reward record.
type MatchmakerStats struct {
	Address            string
	TotalRewardsEarned *big.Int
	SuccessfulMatches  int64
}

// ProtocolStats aggregates match counters across the registry.
type ProtocolStats struct {
	TotalMatches      int64
	SuccessfulMatches int64
	// SuccessRate is floor(successful*100/total), 0 when no matches exist.
	SuccessRate int64
}

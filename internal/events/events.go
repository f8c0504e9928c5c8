// Package events publishes protocol notifications for off-chain observers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types fired by the ledger and registry domains.
const (
	TypeUserRegistered    = "user.registered"
	TypeRoleAssigned      = "role.assigned"
	TypeMatchCreated      = "match.created"
	TypeMatchVerified     = "match.verified"
	TypeRewardDistributed = "reward.distributed"
	TypeTokensMinted      = "tokens.minted"
	TypeTokensBurned      = "tokens.burned"
	TypeTokensTransferred = "tokens.transferred"
)

// Event is a single protocol notification.
type Event struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data"`
}

// New builds an event with a fresh id and the current time.
func New(eventType string, data map[string]any) Event {
	return Event{
		ID:   uuid.New().String(),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: data,
	}
}

// Publisher delivers events to observers. Publishing is best-effort: domain
// operations commit before their events fire and never fail on publish errors.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards all events.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(ctx context.Context, event Event) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/farmgate/core"
)

const (
	TopicVerified = "farmgate.verified"
	TopicBlocked  = "farmgate.blocked"
)

// VerifiedEvent is published after a wallet proved control of its address
type VerifiedEvent struct {
	Address    string    `json:"address"`
	VerifiedAt time.Time `json:"verified_at"`
}

// BlockedEvent is published when a limiter scope rejects an identifier
type BlockedEvent struct {
	Scope      string    `json:"scope"`
	Identifier string    `json:"identifier"`
	BlockedAt  time.Time `json:"blocked_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
}

// PublishVerified publishes a verified event
func (p *WatermillPublisher) PublishVerified(ctx context.Context, identity *core.Identity) error {
	return p.publish(ctx, TopicVerified, VerifiedEvent{
		Address:    identity.WalletAddress,
		VerifiedAt: identity.VerifiedAt,
	})
}

// PublishBlocked publishes a blocked event
func (p *WatermillPublisher) PublishBlocked(ctx context.Context, scope, identifier string) error {
	return p.publish(ctx, TopicBlocked, BlockedEvent{
		Scope:      scope,
		Identifier: identifier,
		BlockedAt:  p.now(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the underlying publisher
func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

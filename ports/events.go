package ports

import (
	"context"

	"github.com/layer-3/farmgate/core"
)

// EventPublisher publishes authentication events to other services
type EventPublisher interface {
	PublishVerified(ctx context.Context, identity *core.Identity) error
	PublishBlocked(ctx context.Context, scope, identifier string) error
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/farmgate/conf"
	"github.com/layer-3/farmgate/core"
	"github.com/layer-3/farmgate/ports"
)

const rateLimitCollection = "rate_limits"

const (
	ScopeChallenge = "challenge"
	ScopeVerify    = "verify"
	ScopeMalformed = "malformed"
)

// RateLimiter counts attempts per identifier in fixed windows. An identifier
// is blocked once its attempts exceed the threshold; exactly threshold
// attempts are still allowed. The block lasts until the window elapses.
type RateLimiter struct {
	store   ports.DocumentStore
	scope   string
	rate    conf.Rate
	timeout time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a limiter whose records are namespaced by scope
func NewRateLimiter(store ports.DocumentStore, scope string, rate conf.Rate, timeout time.Duration) *RateLimiter {
	return &RateLimiter{
		store:   store,
		scope:   scope,
		rate:    rate,
		timeout: timeout,
		now:     time.Now,
	}
}

// Scope returns the namespace of the limiter
func (l *RateLimiter) Scope() string {
	return l.scope
}

// Window returns the length of the counting window
func (l *RateLimiter) Window() time.Duration {
	return l.rate.Window
}

func (l *RateLimiter) id(identifier string) string {
	return l.scope + ":" + identifier
}

// Admit counts one attempt for identifier. When the current window has
// elapsed the record starts over with a single attempt.
func (l *RateLimiter) Admit(ctx context.Context, identifier string) (core.Decision, error) {
	return l.apply(ctx, identifier, 1)
}

// RecordFailure charges one extra attempt to identifier
func (l *RateLimiter) RecordFailure(ctx context.Context, identifier string) (core.Decision, error) {
	return l.apply(ctx, identifier, 1)
}

// Penalize charges weight extra attempts to identifier without moving the
// window start
func (l *RateLimiter) Penalize(ctx context.Context, identifier string, weight int) (core.Decision, error) {
	if weight < 1 {
		weight = 1
	}
	return l.apply(ctx, identifier, weight)
}

// peek reads the current record for identifier without counting an attempt.
// A missing record is reported as ports.ErrNotFound.
func (l *RateLimiter) peek(ctx context.Context, identifier string) (*core.RateLimitRecord, error) {
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	data, err := l.store.Get(ctx, rateLimitCollection, l.id(identifier))
	if errors.Is(err, ports.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storageError("read rate limit", err)
	}

	var record core.RateLimitRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, storageError("read rate limit", fmt.Errorf("failed to decode record: %w", err))
	}
	return &record, nil
}

// apply fails closed: any store error yields Blocked together with the error
func (l *RateLimiter) apply(ctx context.Context, identifier string, attempts int) (core.Decision, error) {
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	decision := core.Blocked
	err := l.store.Update(ctx, rateLimitCollection, l.id(identifier), l.rate.Window, func(current []byte) ([]byte, error) {
		now := l.now()

		var record core.RateLimitRecord
		if current != nil {
			if err := json.Unmarshal(current, &record); err != nil {
				return nil, fmt.Errorf("failed to decode rate limit record: %w", err)
			}
		}

		if current == nil || record.Elapsed(now) {
			record = core.RateLimitRecord{
				Identifier:   identifier,
				FirstAttempt: now,
				WindowMs:     l.rate.Window.Milliseconds(),
			}
		}

		record.Attempts += attempts
		record.LastAttempt = now
		if record.Attempts > l.rate.Events {
			record.Blocked = true
		}

		decision = core.Allowed
		if record.Blocked {
			decision = core.Blocked
		}
		return json.Marshal(&record)
	})
	if err != nil {
		return core.Blocked, storageError("update rate limit", err)
	}

	return decision, nil
}

// Sweep deletes records whose window has elapsed
func (l *RateLimiter) Sweep(ctx context.Context) (int, error) {
	now := l.now()
	prefix := l.scope + ":"
	n, err := l.store.DeleteWhere(ctx, rateLimitCollection, func(id string, data []byte) bool {
		if !strings.HasPrefix(id, prefix) {
			return false
		}
		var record core.RateLimitRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return true
		}
		return record.Elapsed(now)
	})
	if err != nil {
		return n, storageError("sweep rate limits", err)
	}
	return n, nil
}

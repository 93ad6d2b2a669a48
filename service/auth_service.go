package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/farmgate/conf"
	"github.com/layer-3/farmgate/core"
	"github.com/layer-3/farmgate/observability"
	"github.com/layer-3/farmgate/ports"
	"github.com/sirupsen/logrus"
)

// Option customizes an AuthService
type Option func(*AuthService)

// WithMetrics records outcomes on m
func WithMetrics(m *observability.Metrics) Option {
	return func(s *AuthService) {
		s.metrics = m
	}
}

// WithClock replaces the time source of the service and its components
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) {
		s.now = now
		s.nonces.now = now
		for _, l := range s.limiters() {
			l.now = now
		}
	}
}

// AuthService runs the two phase challenge/verify protocol. It keeps no
// state of its own; every decision is read from and written to the store.
type AuthService struct {
	nonces     *NonceStore
	challenges *RateLimiter
	verifies   *RateLimiter
	malformed  *RateLimiter

	verifier  ports.SignatureVerifier
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
	metrics   *observability.Metrics

	statement              string
	signatureFailureWeight int
	now                    func() time.Time
	log                    *logrus.Entry
}

// NewAuthService creates a new authentication service
func NewAuthService(
	config *conf.GlobalConfiguration,
	store ports.DocumentStore,
	verifier ports.SignatureVerifier,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	opts ...Option,
) *AuthService {
	timeout := config.Store.Timeout
	s := &AuthService{
		nonces:                 NewNonceStore(store, config.Challenge.TTL, timeout),
		challenges:             NewRateLimiter(store, ScopeChallenge, config.RateLimit.Challenge, timeout),
		verifies:               NewRateLimiter(store, ScopeVerify, config.RateLimit.Verify, timeout),
		malformed:              NewRateLimiter(store, ScopeMalformed, config.RateLimit.Malformed, timeout),
		verifier:               verifier,
		tokenizer:              tokenizer,
		eventPub:               eventPub,
		statement:              config.Challenge.Statement,
		signatureFailureWeight: config.RateLimit.SignatureFailureWeight,
		now:                    time.Now,
		log:                    logrus.WithField("component", "auth_service"),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) limiters() []*RateLimiter {
	return []*RateLimiter{s.challenges, s.verifies, s.malformed}
}

// RequestChallenge issues a nonce for the address unless it is rate limited
func (s *AuthService) RequestChallenge(ctx context.Context, req core.ChallengeRequest) (*core.Challenge, error) {
	if err := req.Validate(); err != nil {
		s.metrics.Challenge("malformed")
		return nil, s.RejectMalformed(ctx, req.ClientIP, err)
	}

	decision, err := s.challenges.Admit(ctx, req.Address)
	if err != nil {
		s.metrics.Challenge("storage_error")
		return nil, err
	}
	if decision == core.Blocked {
		s.metrics.Challenge("rate_limited")
		return nil, s.blocked(ctx, s.challenges, req.Address)
	}

	record, err := s.nonces.Issue(ctx, req.Address)
	if err != nil {
		s.metrics.Challenge("storage_error")
		return nil, err
	}

	s.metrics.Challenge("issued")
	return &core.Challenge{
		Address:   record.WalletAddress,
		Nonce:     record.Nonce,
		Message:   core.ChallengeMessage(s.statement, record.WalletAddress, record.Nonce),
		IssuedAt:  record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Verify consumes the nonce and then checks the signature over the challenge
// message. The nonce is spent even when the signature turns out to be wrong,
// so every retry needs a fresh challenge.
func (s *AuthService) Verify(ctx context.Context, req core.VerifyRequest) (*core.Identity, error) {
	if err := req.Validate(); err != nil {
		s.metrics.Verification("malformed")
		return nil, s.RejectMalformed(ctx, req.ClientIP, err)
	}

	decision, err := s.verifies.Admit(ctx, req.Address)
	if err != nil {
		s.metrics.Verification("storage_error")
		return nil, err
	}
	if decision == core.Blocked {
		s.metrics.Verification("rate_limited")
		return nil, s.blocked(ctx, s.verifies, req.Address)
	}

	if _, err := s.nonces.Consume(ctx, req.Address, req.Nonce); err != nil {
		if errors.Is(err, core.ErrStorageUnavailable) {
			s.metrics.Verification("storage_error")
			return nil, err
		}
		s.penalize(ctx, req.Address, 1)
		s.metrics.Verification("invalid_nonce")
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidNonce, err)
	}

	message := core.ChallengeMessage(s.statement, req.Address, req.Nonce)
	valid, err := s.verifier.Verify(req.Address, message, req.Signature)
	if err != nil {
		s.penalize(ctx, req.Address, s.signatureFailureWeight)
		s.metrics.Verification("malformed")
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		s.penalize(ctx, req.Address, s.signatureFailureWeight)
		s.metrics.Verification("invalid_signature")
		return nil, core.ErrInvalidSignature
	}

	s.metrics.Verification("verified")
	return &core.Identity{
		WalletAddress: req.Address,
		VerifiedAt:    s.now(),
	}, nil
}

// Authenticate verifies the request and, only on success, issues a session
func (s *AuthService) Authenticate(ctx context.Context, req core.VerifyRequest) (*core.Session, error) {
	identity, err := s.Verify(ctx, req)
	if err != nil {
		return nil, err
	}

	session, err := s.tokenizer.IdentityToToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishVerified(ctx, identity); err != nil {
			// The session is already issued, the event is informational
			s.log.WithError(err).WithField("address", identity.WalletAddress).Warn("Failed to publish verified event")
		}
	}

	s.log.WithFields(logrus.Fields{
		"address":    identity.WalletAddress,
		"session_id": session.ID,
	}).Info("Wallet authenticated")

	return session, nil
}

// ValidateAccessToken parses a session token issued by Authenticate
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	if !s.now().Before(session.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	return session, nil
}

// RejectMalformed charges a malformed request to the client IP so that
// format fuzzing cannot bypass the address based limits. It returns a
// RateLimitError once the IP is blocked and cause otherwise.
func (s *AuthService) RejectMalformed(ctx context.Context, clientIP string, cause error) error {
	if cause == nil {
		cause = core.ErrMalformedInput
	} else if !errors.Is(cause, core.ErrMalformedInput) {
		cause = fmt.Errorf("%w: %w", core.ErrMalformedInput, cause)
	}

	if clientIP == "" {
		return cause
	}

	decision, err := s.malformed.Admit(ctx, clientIP)
	if err != nil {
		s.log.WithError(err).WithField("client_ip", clientIP).Warn("Failed to count malformed request")
		return cause
	}
	if decision == core.Blocked {
		return s.blocked(ctx, s.malformed, clientIP)
	}
	return cause
}

// Reaper returns a housekeeping sweeper for the records of this service
func (s *AuthService) Reaper() *Reaper {
	return NewReaper(s.nonces, s.limiters()...)
}

func (s *AuthService) penalize(ctx context.Context, address string, weight int) {
	decision, err := s.verifies.Penalize(ctx, address, weight)
	if err != nil {
		// the request already failed, a lost penalty only loosens the limit
		s.log.WithError(err).WithField("address", address).Warn("Failed to record authentication failure")
		return
	}
	if decision == core.Blocked {
		s.reportBlocked(ctx, s.verifies, address)
	}
}

func (s *AuthService) blocked(ctx context.Context, limiter *RateLimiter, identifier string) error {
	s.reportBlocked(ctx, limiter, identifier)
	return &core.RateLimitError{Scope: limiter.Scope(), RetryAfter: limiter.Window()}
}

func (s *AuthService) reportBlocked(ctx context.Context, limiter *RateLimiter, identifier string) {
	s.metrics.Blocked(limiter.Scope())
	s.log.WithFields(logrus.Fields{
		"scope":      limiter.Scope(),
		"identifier": identifier,
	}).Warn("Rate limit exceeded")

	if s.eventPub != nil {
		if err := s.eventPub.PublishBlocked(ctx, limiter.Scope(), identifier); err != nil {
			s.log.WithError(err).Warn("Failed to publish blocked event")
		}
	}
}

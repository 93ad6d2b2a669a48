package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/farmgate/adapters/store"
	"github.com/layer-3/farmgate/adapters/tokenizer"
	"github.com/layer-3/farmgate/conf"
	"github.com/layer-3/farmgate/core"
	"github.com/layer-3/farmgate/internal/eth"
	"github.com/layer-3/farmgate/observability"
	"github.com/layer-3/farmgate/ports"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *conf.GlobalConfiguration {
	return &conf.GlobalConfiguration{
		Store: conf.StoreConfiguration{
			Backend: conf.StoreBackendMemory,
			Timeout: time.Second,
		},
		Challenge: conf.ChallengeConfiguration{
			TTL:       5 * time.Minute,
			Statement: "Sign in to FarmGate",
		},
		RateLimit: conf.RateLimitConfiguration{
			Challenge:              conf.Rate{Events: 5, Window: time.Minute},
			Verify:                 conf.Rate{Events: 5, Window: time.Minute},
			Malformed:              conf.Rate{Events: 3, Window: time.Minute},
			SignatureFailureWeight: 2,
		},
		Token: conf.TokenConfiguration{
			TTL:      time.Hour,
			Audience: "farmgate:test",
		},
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	verified []string
	blocked  []string
	err      error
}

func (p *recordingPublisher) PublishVerified(_ context.Context, identity *core.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verified = append(p.verified, identity.WalletAddress)
	return p.err
}

func (p *recordingPublisher) PublishBlocked(_ context.Context, scope, identifier string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked = append(p.blocked, scope+":"+identifier)
	return p.err
}

func (p *recordingPublisher) Blocked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.blocked...)
}

// failingStore fails every operation with err
type failingStore struct {
	err error
}

func (f failingStore) Get(context.Context, string, string) ([]byte, error) {
	return nil, f.err
}

func (f failingStore) Set(context.Context, string, string, []byte, time.Duration) error {
	return f.err
}

func (f failingStore) Update(context.Context, string, string, time.Duration, ports.UpdateFunc) error {
	return f.err
}

func (f failingStore) DeleteWhere(context.Context, string, ports.MatchFunc) (int, error) {
	return 0, f.err
}

// blockingStore waits for the context to end before failing
type blockingStore struct {
	failingStore
}

func (b blockingStore) Update(ctx context.Context, _, _ string, _ time.Duration, _ ports.UpdateFunc) error {
	<-ctx.Done()
	return ctx.Err()
}

var errBackendDown = errors.New("connection refused")

type fixture struct {
	clock     *testClock
	store     *store.MemoryStore
	publisher *recordingPublisher
	metrics   *observability.Metrics
	service   *AuthService
	signer    *eth.Signer
}

func newFixture(t *testing.T, tweaks ...func(*conf.GlobalConfiguration)) *fixture {
	t.Helper()

	clock := newTestClock()
	mem := store.NewMemoryStoreWithClock(clock.Now)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	signer, err := eth.GenerateSigner()
	require.NoError(t, err)

	config := testConfig()
	for _, tweak := range tweaks {
		tweak(config)
	}
	tokens := tokenizer.NewJWTTokenizer(key, config.Token.Audience, config.Token.TTL)
	tokens.SetClock(clock.Now)

	publisher := &recordingPublisher{}
	metrics := observability.NewMetrics()
	svc := NewAuthService(
		config,
		mem,
		eth.NewVerifier(),
		tokens,
		publisher,
		WithClock(clock.Now),
		WithMetrics(metrics),
	)

	return &fixture{
		clock:     clock,
		store:     mem,
		publisher: publisher,
		metrics:   metrics,
		service:   svc,
		signer:    signer,
	}
}

func (f *fixture) address() string {
	return f.signer.Address().Hex()
}

// signedRequest asks for a challenge and signs its message
func (f *fixture) signedRequest(t *testing.T) core.VerifyRequest {
	t.Helper()

	challenge, err := f.service.RequestChallenge(context.Background(), core.ChallengeRequest{
		Address:  f.address(),
		ClientIP: "10.0.0.1",
	})
	require.NoError(t, err)

	sig, err := f.signer.SignText(challenge.Message)
	require.NoError(t, err)

	return core.VerifyRequest{
		Address:   f.address(),
		Nonce:     challenge.Nonce,
		Signature: sig,
		ClientIP:  "10.0.0.1",
	}
}

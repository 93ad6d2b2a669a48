package service

import (
	"context"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layer-3/farmgate/adapters/store"
	"github.com/layer-3/farmgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testAddress = "0xABCDEF0123456789abcdef0123456789ABCDEF01"

func newTestNonceStore(clock *testClock) (*NonceStore, *store.MemoryStore) {
	mem := store.NewMemoryStoreWithClock(clock.Now)
	nonces := NewNonceStore(mem, 5*time.Minute, time.Second)
	nonces.now = clock.Now
	return nonces, mem
}

func TestNonceIssue(t *testing.T) {
	clock := newTestClock()
	nonces, _ := newTestNonceStore(clock)

	record, err := nonces.Issue(context.Background(), testAddress)
	require.NoError(t, err)

	raw, err := hex.DecodeString(record.Nonce)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", record.WalletAddress)
	assert.Equal(t, clock.Now(), record.CreatedAt)
	assert.Equal(t, clock.Now().Add(5*time.Minute), record.ExpiresAt)
	assert.False(t, record.Used)

	other, err := nonces.Issue(context.Background(), testAddress)
	require.NoError(t, err)
	assert.NotEqual(t, record.Nonce, other.Nonce)
}

func TestNonceConsumeOnce(t *testing.T) {
	ctx := context.Background()
	nonces, _ := newTestNonceStore(newTestClock())

	record, err := nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	consumed, err := nonces.Consume(ctx, testAddress, record.Nonce)
	require.NoError(t, err)
	assert.True(t, consumed.Used)

	_, err = nonces.Consume(ctx, testAddress, record.Nonce)
	assert.ErrorIs(t, err, core.ErrNonceUsed)
}

func TestNonceReissueInvalidatesPrevious(t *testing.T) {
	ctx := context.Background()
	nonces, _ := newTestNonceStore(newTestClock())

	first, err := nonces.Issue(ctx, testAddress)
	require.NoError(t, err)
	second, err := nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	_, err = nonces.Consume(ctx, testAddress, first.Nonce)
	assert.ErrorIs(t, err, core.ErrNonceNotFound)

	_, err = nonces.Consume(ctx, testAddress, second.Nonce)
	assert.NoError(t, err)
}

func TestNonceConsumeUnknown(t *testing.T) {
	ctx := context.Background()
	nonces, _ := newTestNonceStore(newTestClock())

	_, err := nonces.Consume(ctx, testAddress, "0123456789abcdef0123456789abcdef")
	assert.ErrorIs(t, err, core.ErrNonceNotFound)

	record, err := nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	// another address never matches
	_, err = nonces.Consume(ctx, "0x1111111111111111111111111111111111111111", record.Nonce)
	assert.ErrorIs(t, err, core.ErrNonceNotFound)

	// a failed lookup leaves the record consumable
	_, err = nonces.Consume(ctx, testAddress, record.Nonce)
	assert.NoError(t, err)
}

func TestNonceExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	nonces, _ := newTestNonceStore(clock)

	record, err := nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	clock.Advance(5*time.Minute - time.Millisecond)
	_, err = nonces.Consume(ctx, testAddress, record.Nonce)
	require.NoError(t, err)

	record, err = nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = nonces.Consume(ctx, testAddress, record.Nonce)
	assert.ErrorIs(t, err, core.ErrNonceExpired)

	clock.Advance(5 * time.Minute)
	_, err = nonces.Consume(ctx, testAddress, record.Nonce)
	assert.ErrorIs(t, err, core.ErrNonceNotFound)
}

func TestNonceConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	nonces, _ := newTestNonceStore(newTestClock())

	record, err := nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	var won, used atomic.Int32
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			_, err := nonces.Consume(ctx, testAddress, record.Nonce)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, core.ErrNonceUsed):
				used.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, int32(31), used.Load())
}

func TestNonceStorageFailure(t *testing.T) {
	ctx := context.Background()
	nonces := NewNonceStore(failingStore{err: errBackendDown}, time.Minute, time.Second)

	_, err := nonces.Issue(ctx, testAddress)
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
	assert.ErrorIs(t, err, errBackendDown)

	_, err = nonces.Consume(ctx, testAddress, "0123456789abcdef0123456789abcdef")
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, core.ErrNonceNotFound)
}

func TestNonceStorageTimeout(t *testing.T) {
	nonces := NewNonceStore(blockingStore{failingStore{err: errBackendDown}}, time.Minute, 20*time.Millisecond)

	_, err := nonces.Consume(context.Background(), testAddress, "0123456789abcdef0123456789abcdef")
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNonceSweep(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	nonces, mem := newTestNonceStore(clock)

	used, err := nonces.Issue(ctx, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	_, err = nonces.Consume(ctx, used.WalletAddress, used.Nonce)
	require.NoError(t, err)

	_, err = nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	n, err := nonces.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, mem.Len(nonceCollection))

	clock.Advance(5 * time.Minute)
	n, err = nonces.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, mem.Len(nonceCollection))
}

package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/layer-3/farmgate/core"
	"github.com/layer-3/farmgate/ports"
)

const (
	nonceCollection = "nonces"
	nonceBytes      = 32
)

// NonceStore issues and consumes one-time challenge nonces, one per address
type NonceStore struct {
	store   ports.DocumentStore
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	random  io.Reader
}

// NewNonceStore creates a nonce store on top of a document store
func NewNonceStore(store ports.DocumentStore, ttl, timeout time.Duration) *NonceStore {
	return &NonceStore{
		store:   store,
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
		random:  rand.Reader,
	}
}

// Issue creates a fresh nonce for address and replaces any previous one
func (s *NonceStore) Issue(ctx context.Context, address string) (*core.NonceRecord, error) {
	buf := make([]byte, nonceBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now()
	record := &core.NonceRecord{
		Nonce:         hex.EncodeToString(buf),
		WalletAddress: strings.ToLower(address),
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nonce record: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	// keep expired records around for a while so they report Expired
	// rather than NotFound
	if err := s.store.Set(ctx, nonceCollection, record.WalletAddress, data, 2*s.ttl); err != nil {
		return nil, storageError("issue nonce", err)
	}

	return record, nil
}

// Consume marks the nonce for address as used. It fails with
// ErrNonceNotFound, ErrNonceExpired or ErrNonceUsed without changing anything.
// Concurrent calls with the same nonce succeed at most once.
func (s *NonceStore) Consume(ctx context.Context, address, nonce string) (*core.NonceRecord, error) {
	address = strings.ToLower(address)

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var consumed core.NonceRecord
	err := s.store.Update(ctx, nonceCollection, address, ports.KeepTTL, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, core.ErrNonceNotFound
		}

		var record core.NonceRecord
		if err := json.Unmarshal(current, &record); err != nil {
			return nil, fmt.Errorf("failed to decode nonce record: %w", err)
		}

		if subtle.ConstantTimeCompare([]byte(record.Nonce), []byte(nonce)) != 1 {
			return nil, core.ErrNonceNotFound
		}
		if record.Used {
			return nil, core.ErrNonceUsed
		}
		if record.Expired(s.now()) {
			return nil, core.ErrNonceExpired
		}

		record.Used = true
		consumed = record
		return json.Marshal(&record)
	})

	switch {
	case err == nil:
		return &consumed, nil
	case errors.Is(err, core.ErrNonceNotFound), errors.Is(err, core.ErrNonceUsed), errors.Is(err, core.ErrNonceExpired):
		return nil, err
	default:
		return nil, storageError("consume nonce", err)
	}
}

// Sweep deletes nonce records that can never be consumed again
func (s *NonceStore) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	n, err := s.store.DeleteWhere(ctx, nonceCollection, func(id string, data []byte) bool {
		var record core.NonceRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return true
		}
		return record.Used || record.Expired(now)
	})
	if err != nil {
		return n, storageError("sweep nonces", err)
	}
	return n, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// storageError marks err as a transient store failure, keeping the cause
func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStorageUnavailable, op, err)
}

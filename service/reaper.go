package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ReapStats counts the records removed by one sweep
type ReapStats struct {
	Nonces     int
	RateLimits map[string]int
}

// Reaper deletes nonce and rate limit records that no longer affect any
// decision. Nothing in the request path depends on it running.
type Reaper struct {
	nonces   *NonceStore
	limiters []*RateLimiter
	log      *logrus.Entry
}

// NewReaper creates a reaper over the given stores
func NewReaper(nonces *NonceStore, limiters ...*RateLimiter) *Reaper {
	return &Reaper{
		nonces:   nonces,
		limiters: limiters,
		log:      logrus.WithField("component", "reaper"),
	}
}

// Sweep runs one pass over every collection
func (r *Reaper) Sweep(ctx context.Context) (*ReapStats, error) {
	g, ctx := errgroup.WithContext(ctx)

	var nonces int
	perScope := make([]int, len(r.limiters))

	g.Go(func() error {
		n, err := r.nonces.Sweep(ctx)
		nonces = n
		return err
	})
	for i, l := range r.limiters {
		i, l := i, l
		g.Go(func() error {
			n, err := l.Sweep(ctx)
			perScope[i] = n
			return err
		})
	}

	err := g.Wait()

	stats := &ReapStats{Nonces: nonces, RateLimits: make(map[string]int, len(r.limiters))}
	for i, l := range r.limiters {
		stats.RateLimits[l.Scope()] = perScope[i]
	}

	r.log.WithFields(logrus.Fields{
		"nonces":      stats.Nonces,
		"rate_limits": stats.RateLimits,
	}).Info("Sweep finished")

	return stats, err
}

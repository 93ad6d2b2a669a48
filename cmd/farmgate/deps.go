package main

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/farmgate/adapters/events"
	"github.com/layer-3/farmgate/adapters/store"
	"github.com/layer-3/farmgate/adapters/tokenizer"
	"github.com/layer-3/farmgate/conf"
	"github.com/layer-3/farmgate/internal/eth"
	"github.com/layer-3/farmgate/observability"
	"github.com/layer-3/farmgate/ports"
	"github.com/layer-3/farmgate/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// app holds the wired service and everything that must be closed with it
type app struct {
	authService *service.AuthService
	metrics     *observability.Metrics
	closers     []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logrus.WithError(err).Warn("Failed to release resource")
		}
	}
}

func buildApp(ctx context.Context, config *conf.GlobalConfiguration) (*app, error) {
	a := &app{}

	var docs ports.DocumentStore
	var redisClient *redis.Client
	switch config.Store.Backend {
	case conf.StoreBackendRedis:
		client, err := store.Connect(ctx, config.Store.RedisURL)
		if err != nil {
			return nil, err
		}
		redisClient = client
		redisStore := store.NewRedisStore(client)
		a.closers = append(a.closers, redisStore.Close)
		docs = redisStore
	default:
		logrus.Warn("Using the in-memory store, state is lost on restart and not shared between instances")
		docs = store.NewMemoryStore()
	}

	eventPub, err := buildPublisher(config, redisClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	if eventPub != nil {
		a.closers = append(a.closers, eventPub.Close)
	}

	key, ephemeral, err := tokenizer.LoadSigningKey(config.Token.SigningKey)
	if err != nil {
		a.Close()
		return nil, err
	}
	if ephemeral {
		logrus.Warn("No token signing key configured, sessions will not survive a restart")
	}
	tokens := tokenizer.NewJWTTokenizer(key, config.Token.Audience, config.Token.TTL)

	var opts []service.Option
	if config.Metrics.Enabled {
		a.metrics = observability.NewMetrics()
		opts = append(opts, service.WithMetrics(a.metrics))
	}

	var publisher ports.EventPublisher
	if eventPub != nil {
		publisher = eventPub
	}

	a.authService = service.NewAuthService(config, docs, eth.NewVerifier(), tokens, publisher, opts...)
	return a, nil
}

func buildPublisher(config *conf.GlobalConfiguration, client *redis.Client) (*events.WatermillPublisher, error) {
	if !config.Events.Enabled {
		return nil, nil
	}

	logger := watermill.NewStdLogger(false, false)

	var publisher message.Publisher
	if client != nil {
		p, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: client,
			},
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		publisher = p
	} else {
		// events only reach in-process subscribers
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logger)
	}

	return events.NewWatermillPublisher(publisher), nil
}

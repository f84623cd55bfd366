// Package app wires the matching engine together. Both binaries (the API
// server and the worker) build the same stores, event bus and handlers, so
// the composition root lives here instead of in each main package.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"

	"github.com/Moeed-Tahir/perfect-connect/config"
	"github.com/Moeed-Tahir/perfect-connect/internal/application/command"
	"github.com/Moeed-Tahir/perfect-connect/internal/application/eventhandler"
	"github.com/Moeed-Tahir/perfect-connect/internal/application/query"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/notification"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/messaging"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/dynamo"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/guarded"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/memory"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/postgres"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/redis"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/service"
	"github.com/Moeed-Tahir/perfect-connect/internal/interface/http/handlers"
	"github.com/Moeed-Tahir/perfect-connect/pkg/metrics"
)

// Version is reported by the readiness check. Overridden at build time.
var Version = "dev"

// ══════════════════════════════════════════════════════════════════════════════
// CONTAINER
// ══════════════════════════════════════════════════════════════════════════════

// EventBus is the bus the container owns. Both bus implementations satisfy it.
type EventBus interface {
	shared.EventBus
	Close() error
}

// Container holds every long-lived dependency of a process.
type Container struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Metrics  *metrics.Manager
	Features *config.FeatureFlags

	Participants participant.Repository
	Blocks       participant.BlockRepository
	Edges        social.EdgeRepository
	Connections  social.ConnectionRepository
	Scorer       *social.Scorer

	Bus      EventBus
	Notifier notification.Notifier

	// Cache is nil when Redis is disabled.
	Cache *redis.Cache

	Health *handlers.CompositeHealthChecker

	closers []func() error
}

// New connects to every configured backend. On error everything opened so
// far is closed again.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Manager) (c *Container, err error) {
	c = &Container{
		Config:   cfg,
		Logger:   log,
		Metrics:  m,
		Features: config.LoadFeatureFlags(cfg.Features),
		Scorer:   social.NewScorer(cfg.ScoringPolicy()),
		Health:   handlers.NewCompositeHealthChecker(Version),
	}
	defer func() {
		if err != nil {
			_ = c.Close()
			c = nil
		}
	}()

	if err = c.initStores(ctx); err != nil {
		return nil, err
	}
	if err = c.initRedis(ctx); err != nil {
		return nil, err
	}
	if err = c.initBus(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

func (c *Container) initStores(ctx context.Context) error {
	var (
		participants participant.Repository
		blocks       participant.BlockRepository
		edges        social.EdgeRepository
		connections  social.ConnectionRepository
	)

	switch c.Config.Storage.Backend {
	case config.BackendMemory:
		c.Logger.Warn().Msg("using in-memory storage; data is lost on restart")
		participants = memory.NewParticipantRepository()
		blocks = memory.NewBlockRepository()
		edges = memory.NewEdgeRepository()
		connections = memory.NewConnectionRepository()

	case config.BackendPostgres, config.BackendDynamo:
		conn, err := c.openPostgres(ctx)
		if err != nil {
			return err
		}
		participants = postgres.NewParticipantRepository(conn)
		blocks = postgres.NewBlockRepository(conn)

		if c.Config.Storage.Backend == config.BackendPostgres {
			edges = postgres.NewEdgeRepository(conn)
			connections = postgres.NewConnectionRepository(conn)
			break
		}

		client, err := c.openDynamo(ctx)
		if err != nil {
			return err
		}
		edges = dynamo.NewEdgeRepository(client, c.Config.Dynamo.EdgeTable)
		connections = dynamo.NewConnectionRepository(client, c.Config.Dynamo.ConnectionTable)

	default:
		return fmt.Errorf("unknown storage backend %q", c.Config.Storage.Backend)
	}

	if c.Config.Storage.Backend == config.BackendMemory {
		c.Participants, c.Blocks, c.Edges, c.Connections = participants, blocks, edges, connections
		return nil
	}

	guard := guarded.NewGuard(guarded.GuardParams{
		Name:             c.Config.Storage.Backend,
		FailureThreshold: c.Config.Breaker.FailureThreshold,
		Timeout:          c.Config.Breaker.Timeout,
		Logger:           c.Logger,
		Metrics:          c.Metrics,
	})
	c.Participants = guarded.NewParticipantRepository(participants, guard)
	c.Blocks = guarded.NewBlockRepository(blocks, guard)
	c.Edges = guarded.NewEdgeRepository(edges, guard)
	c.Connections = guarded.NewConnectionRepository(connections, guard)
	return nil
}

func (c *Container) openPostgres(ctx context.Context) (*postgres.Connection, error) {
	c.Logger.Info().Str("host", c.Config.Database.Host).Msg("connecting to postgres")
	conn, err := postgres.NewConnection(ctx, c.Config.PostgresConfig())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.onClose(func() error {
		conn.Close()
		return nil
	})

	if c.Config.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	c.Health.AddCheck("postgres", handlers.NewPingCheck(conn))
	return conn, nil
}

func (c *Container) openDynamo(ctx context.Context) (*dynamodb.Client, error) {
	dcfg := c.Config.DynamoClientConfig()
	client, err := dynamo.NewClient(ctx, dcfg)
	if err != nil {
		return nil, fmt.Errorf("connect dynamodb: %w", err)
	}
	c.Health.AddCheck("dynamodb", func(ctx context.Context) error {
		return dynamo.Ping(ctx, client, dcfg)
	})
	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS & EVENTS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Container) initRedis(ctx context.Context) error {
	if c.Config.Redis.Disabled {
		return nil
	}

	client, err := redis.NewClient(ctx, c.Config.RedisClientConfig())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	c.Cache = redis.NewCache(client)
	c.onClose(c.Cache.Close)
	c.Health.AddCheck("redis", handlers.NewPingCheck(c.Cache))

	if ttl := c.Config.Redis.ParticipantCacheTTL; ttl > 0 {
		c.Participants = redis.NewParticipantCache(c.Participants, c.Cache, ttl, c.Logger)
	}
	return nil
}

func (c *Container) initBus() error {
	local := messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: messaging.DefaultInMemoryEventBusConfig().WorkerPoolSize,
		Logger:         c.Logger,
		Metrics:        c.Metrics,
	}

	if c.Cache == nil {
		c.Bus = messaging.NewInMemoryEventBus(local)
		c.Notifier = service.NewLogNotifier(c.Logger)
		c.onClose(c.Bus.Close)
		return nil
	}

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         redis.NewPubSub(c.Cache.Client()),
		ChannelName:    c.Config.Redis.EventChannel,
		InstanceID:     c.Config.App.InstanceID,
		LocalBusConfig: local,
		Logger:         c.Logger,
	})
	if err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	c.Bus = bus
	c.Notifier = redis.NewNotifier(c.Cache, redis.NotificationChannel, c.Logger)
	c.onClose(c.Bus.Close)
	return nil
}

// SubscribeNotifications delivers match notifications when the feature is on.
func (c *Container) SubscribeNotifications() error {
	if !c.Features.IsEnabled(config.FeatureMatchNotifications, nil) {
		c.Logger.Info().Msg("match notifications disabled")
		return nil
	}
	h := eventhandler.NewOnMatchMadeHandler(
		c.Notifier,
		service.NewIDGenerator().GenerateID,
		c.Metrics,
		c.Logger,
		eventhandler.DefaultMatchMadeConfig(),
	)
	return c.Bus.Subscribe(shared.EventMatchMade, h.Handle)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// ToggleInterest builds the toggle command handler.
func (c *Container) ToggleInterest() *command.ToggleInterestHandler {
	return command.NewToggleInterestHandler(command.ToggleInterestParams{
		Participants:   c.Participants,
		Edges:          c.Edges,
		Connections:    c.Connections,
		Scorer:         c.Scorer,
		EventPublisher: c.Bus,
		Metrics:        c.Metrics,
		Logger:         c.Logger,
	})
}

// Reconciler builds the reconciliation handler. The Redis cache, when
// present, serializes passes across instances.
func (c *Container) Reconciler() *command.ReconcileConnectionsHandler {
	params := command.ReconcileConnectionsParams{
		Participants:   c.Participants,
		Edges:          c.Edges,
		Connections:    c.Connections,
		Scorer:         c.Scorer,
		EventPublisher: c.Bus,
		LockTTL:        c.Config.Reconcile.LockTTL,
		MaxAttempts:    c.Config.Reconcile.MaxAttempts,
		InitialDelay:   c.Config.Reconcile.InitialDelay,
		Metrics:        c.Metrics,
		Logger:         c.Logger,
	}
	if c.Cache != nil {
		params.Locker = c.Cache
	}
	return command.NewReconcileConnectionsHandler(params)
}

// Queries groups the read-side handlers.
type Queries struct {
	GetConnections     *query.GetConnectionsHandler
	GetCommonalities   *query.GetCommonalitiesHandler
	ListInterests      *query.ListInterestsHandler
	HasPendingInterest *query.HasPendingInterestHandler
	DiscoverCandidates *query.DiscoverCandidatesHandler
}

// Queries builds the read-side handlers.
func (c *Container) Queries() Queries {
	return Queries{
		GetConnections:     query.NewGetConnectionsHandler(c.Participants, c.Connections),
		GetCommonalities:   query.NewGetCommonalitiesHandler(c.Participants, c.Connections, c.Scorer),
		ListInterests:      query.NewListInterestsHandler(c.Edges),
		HasPendingInterest: query.NewHasPendingInterestHandler(c.Edges),
		DiscoverCandidates: query.NewDiscoverCandidatesHandler(query.DiscoverCandidatesParams{
			Participants: c.Participants,
			Blocks:       c.Blocks,
			Edges:        c.Edges,
			Connections:  c.Connections,
			Scorer:       c.Scorer,
		}),
	}
}

// ShutdownContext bounds graceful shutdown by the configured timeout.
func (c *Container) ShutdownContext() (context.Context, context.CancelFunc) {
	timeout := c.Config.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

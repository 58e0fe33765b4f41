package bootstrap

import (
	"context"
	"fmt"

	"rag-pipeline-console/internal/config"
	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/progress"
	"rag-pipeline-console/internal/repository/contract"
	"rag-pipeline-console/internal/repository/implementation"
	"rag-pipeline-console/internal/repository/memory"
	"rag-pipeline-console/internal/service"
	"rag-pipeline-console/internal/transport"
	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/pipeline"
	"rag-pipeline-console/pkg/projection"
	"rag-pipeline-console/pkg/router"

	pktNats "rag-pipeline-console/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

// Container holds the console side of the application: the connection to the
// remote service, the pipeline machine and everything that feeds it.
type Container struct {
	Config *config.Config
	Logger *logger.ZapLogger

	Router      *router.Router
	Transport   *transport.Transport // nil in simulated mode
	Commands    service.ICommandService
	Machine     *pipeline.Machine
	System      *service.SystemService
	Credentials contract.ICredentialRepository

	// Snapshot fan-out
	Bus   *service.SnapshotBus
	Relay *service.SnapshotRelay // nil unless EVENTS_ENABLED

	closers []func()
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c := &Container{Config: cfg, Logger: sysLogger}

	credentials, err := c.newCredentialRepository(ctx)
	if err != nil {
		return nil, err
	}
	c.Credentials = credentials

	// 2. Wire: router <- transport -> command service
	c.Router = router.New(sysLogger)

	var sender service.Sender = disconnectedSender{}
	if !cfg.Remote.Simulate {
		clientID := cfg.Remote.ClientID
		if clientID == "" {
			clientID = "console-" + uuid.NewString()
		}
		c.Transport = transport.New(transport.Options{
			BaseURL:     cfg.Remote.BaseURL,
			ClientID:    clientID,
			Reconnect:   backoff.NewConstantBackOff(cfg.Remote.ReconnectDelay),
			PingPeriod:  cfg.Remote.PingPeriod,
			DialTimeout: cfg.Remote.DialTimeout,
		}, transport.WebsocketDialer{HandshakeTimeout: cfg.Remote.DialTimeout}, c.Router.Dispatch, sysLogger)
		c.Transport.SetFrameLogger(logger.NewIsolatedLogger(cfg.App.FrameLogFilePath))
		sender = c.Transport
	}
	c.Commands = service.NewCommandService(sender, otel.Tracer("rag-pipeline-console/commands"), sysLogger)

	// 3. Services
	c.System = service.NewSystemService(c.Commands, credentials, sysLogger)
	c.closers = append(c.closers, c.System.Attach(c.Router))

	simulated := progress.NewSimulated(ctx, progress.RealClock{}, cadence(cfg.Simulation), sysLogger)
	var source pipeline.Source = simulated
	if cfg.Remote.Simulate {
		c.closers = append(c.closers, c.Router.Register(events.TypeError, c.System.HandleErrorFrame))
	} else {
		remote := progress.NewRemote(ctx, c.Commands, simulated, sysLogger)
		remote.OnError(c.System.HandleError)
		c.closers = append(c.closers, remote.Attach(c.Router))
		source = remote
	}

	var opts []pipeline.Option
	if cfg.Simulation.Jitter {
		opts = append(opts, pipeline.WithJitterSeed(cfg.Simulation.JitterSeed))
	}
	c.Machine = pipeline.NewMachine(source, sysLogger, opts...)
	c.System.OnSearchResults(func(docs []projection.Document) { c.Machine.ApplySearchResults(docs) })

	// 4. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	c.Bus = service.NewSnapshotBus(pubSub, sysLogger)
	c.closers = append(c.closers, c.Machine.Subscribe(c.Bus.Publish))

	if cfg.Events.Enabled {
		natsPub, err := pktNats.NewPublisher(cfg.Events.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Container", "Failed to connect to NATS Publisher, snapshots stay local", map[string]interface{}{"error": err.Error()})
		} else {
			c.Relay = service.NewSnapshotRelay(c.Bus, natsPub, sysLogger)
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	return c, nil
}

func (c *Container) newCredentialRepository(ctx context.Context) (contract.ICredentialRepository, error) {
	switch c.Config.Storage.Credentials {
	case "memory", "":
		return memory.NewCredentialRepository(c.Config.Storage.CredentialTTL), nil
	case "redis":
		opt, err := redis.ParseURL(c.Config.Storage.RedisURL)
		if err != nil {
			c.Logger.Warn("Container", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: c.Config.Storage.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		return implementation.NewCredentialRepository(rdb, c.Config.Storage.CredentialTTL), nil
	default:
		return nil, fmt.Errorf("unknown credential storage %q", c.Config.Storage.Credentials)
	}
}

// Start runs the background consumers and opens the connection.
func (c *Container) Start(ctx context.Context) error {
	if c.Relay != nil {
		if err := c.Relay.Start(ctx); err != nil {
			return fmt.Errorf("start snapshot relay: %w", err)
		}
	}
	if c.Transport != nil {
		c.Transport.Connect()
	}
	return nil
}

// Close disconnects and releases everything in reverse order of creation.
func (c *Container) Close() {
	if c.Transport != nil {
		c.Transport.Disconnect()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

func cadence(cfg config.SimulationConfig) progress.Cadence {
	return progress.Cadence{
		DiscoveryStep: cfg.DiscoveryStep,
		FactoryStep:   cfg.FactoryStep,
		PhaseStep:     cfg.PhaseStep,
		DownloadTick:  cfg.DownloadTick,
		UploadTick:    cfg.UploadTick,
	}
}

// disconnectedSender stands in for the transport in simulated mode.
type disconnectedSender struct{}

func (disconnectedSender) Send([]byte) error {
	return transport.ErrNotConnected
}

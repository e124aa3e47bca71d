package bootstrap

import (
	"context"

	"collab-editor-be/internal/config"
	"collab-editor-be/internal/controller"
	"collab-editor-be/internal/pkg/logger"
	"collab-editor-be/internal/relay"
	"collab-editor-be/internal/repository/contract"
	"collab-editor-be/internal/repository/implementation"
	"collab-editor-be/internal/repository/memory"
	"collab-editor-be/pkg/events"
	pktNats "collab-editor-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger      logger.ILogger
	RelayLogger logger.ILogger

	Updates       contract.DocumentUpdateRepository
	UpdateLog     *relay.UpdateLog
	Authenticator *relay.Authenticator
	Hub           *relay.Hub

	RelayHandler       *relay.Handler
	DocumentController controller.IDocumentController

	redis      *redis.Client
	pubSub     *gochannel.GoChannel
	publisher  *pktNats.Publisher
	subscriber *pktNats.Subscriber
}

// NewContainer wires the relay. A nil db keeps the update log in memory.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	relayLogger := logger.NewIsolatedLogger(cfg.App.RelayLogFilePath)

	// 2. Update log storage
	var updates contract.DocumentUpdateRepository
	if db != nil {
		updates = implementation.NewDocumentUpdateRepository(db)
	} else {
		sysLogger.Warn("BOOTSTRAP", "DB_CONNECTION_STRING not set, update log kept in memory", nil)
		updates = memory.NewDocumentUpdateRepository(cfg.Collab.UpdateLogTTL)
	}

	// 3. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(cfg.Collab.SendBuffer)},
		watermill.NewStdLogger(false, false),
	)
	updateLog := relay.NewUpdateLog(pubSub, pubSub, cfg.Collab.UpdateTopic, updates, relayLogger)

	// 4. NATS (optional)
	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	var hubEvents relay.EventPublisher
	if cfg.App.NatsURL != "" {
		var err error
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS publisher", map[string]interface{}{"error": err.Error()})
		} else {
			hubEvents = natsPub
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS subscriber", map[string]interface{}{"error": err.Error()})
		}
	}

	// 5. Redis (optional, enables cross-instance fan-out)
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Invalid REDIS_URL, running single instance", map[string]interface{}{"error": err.Error()})
		} else {
			rdb = redis.NewClient(opt)
		}
	}

	// 6. Relay
	auth := relay.NewAuthenticator(cfg.Auth.JwtSecret)
	hub := relay.NewHub(relay.HubConfig{
		Redis:         rdb,
		ChannelPrefix: cfg.Collab.RedisChannelPrefix,
		Log:           updateLog,
		Events:        hubEvents,
		Logger:        relayLogger,
		SendBuffer:    cfg.Collab.SendBuffer,
	})

	return &Container{
		Logger:             sysLogger,
		RelayLogger:        relayLogger,
		Updates:            updates,
		UpdateLog:          updateLog,
		Authenticator:      auth,
		Hub:                hub,
		RelayHandler:       relay.NewHandler(hub, auth, relayLogger),
		DocumentController: controller.NewDocumentController(hub, updates, auth, cfg.Auth.TokenTTL),
		redis:              rdb,
		pubSub:             pubSub,
		publisher:          natsPub,
		subscriber:         natsSub,
	}
}

// Start launches the persister, the hub and the event audit consumer.
func (c *Container) Start(ctx context.Context) error {
	if err := c.UpdateLog.Start(ctx); err != nil {
		return err
	}
	if err := c.Hub.Start(ctx); err != nil {
		return err
	}
	if c.subscriber != nil {
		err := c.subscriber.Subscribe(ctx, pktNats.SubjectPrefix+".>", "collab-relay-audit", func(_ context.Context, event events.Event) error {
			c.RelayLogger.Info("EVENTS", event.EventType(), event.Payload())
			return nil
		})
		if err != nil {
			c.Logger.Warn("BOOTSTRAP", "Failed to subscribe to document events", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (c *Container) Close() {
	if c.subscriber != nil {
		c.subscriber.Close()
	}
	if c.publisher != nil {
		c.publisher.Close()
	}
	if c.redis != nil {
		c.redis.Close()
	}
	c.pubSub.Close()
	c.RelayLogger.Sync()
	c.Logger.Sync()
}

package app

import (
	"context"
	"fmt"
	"net/http"

	"checkoutservice/internal/config"
	"checkoutservice/internal/idempotency"
	"checkoutservice/internal/platform/kafka"
	"checkoutservice/internal/platform/observability"
	"checkoutservice/internal/platform/postgres"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Container holds expensive-to-create singleton resources and dependencies
type Container struct {
	config          *config.Config
	logger          observability.Logger
	tracer          observability.Tracer
	tracerProvider  trace.TracerProvider
	telemetry       *observability.Telemetry
	db              *postgres.DB
	idempotency     idempotency.Store
	messageConsumer kafka.Consumer
	messageProducer kafka.Producer
	services        *Services
	httpServer      *http.Server
}

// NewContainer creates and initializes all infrastructure components
func NewContainer(ctx context.Context) (*Container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	container := &Container{
		config: cfg,
		logger: observability.NewLogger(false),
	}

	container.setupObservability(ctx)

	if err := container.setupStorage(ctx); err != nil {
		container.Shutdown(ctx)
		return nil, err
	}

	if err := container.setupKafka(); err != nil {
		container.Shutdown(ctx)
		return nil, err
	}

	container.services = NewServiceFactory(container).Build()

	container.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      container.services.HTTP.Router(container.tracerProvider),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return container, nil
}

// setupObservability configures OpenTelemetry logging and tracing. Exporter
// failures are logged and the service keeps running without them.
func (c *Container) setupObservability(ctx context.Context) {
	tel, err := observability.SetupTelemetry(ctx, c.config)
	if err != nil {
		c.logger.Error("Failed to setup OpenTelemetry", zap.Error(err))
	}
	c.telemetry = tel
	c.tracerProvider = tel.TracerProvider

	if c.config.TelemetryEnabled() {
		c.logger = observability.NewLogger(true)
		c.logger.Info("Logger re-initialized with OpenTelemetry bridge")
	}

	c.tracer = otel.Tracer(config.ServiceName)
}

func (c *Container) setupStorage(ctx context.Context) error {
	db, err := postgres.New(ctx, c.config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.db = db

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	c.logger.Info("Database ready")

	if c.config.RedisURL == "" {
		c.logger.Warn("REDIS_URL not set, idempotency keys are kept in process memory")
		c.idempotency = idempotency.NewMemoryStore(config.IdempotencyTTL)
		return nil
	}

	store, err := idempotency.NewRedisStore(c.config.RedisURL, config.IdempotencyTTL)
	if err != nil {
		return err
	}
	c.idempotency = store
	return nil
}

// setupKafka creates the shipment consumer and the order event producer.
func (c *Container) setupKafka() error {
	consumer, err := kafka.NewConsumer(c.config.KafkaBroker, config.ShipmentUpdatedTopic)
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	c.messageConsumer = consumer

	producer, err := kafka.NewProducer(c.config.KafkaBroker, config.OrderEventsTopic, c.tracerProvider)
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	c.messageProducer = producer
	return nil
}

// Shutdown gracefully shuts down all infrastructure components
func (c *Container) Shutdown(ctx context.Context) {
	c.logger.Info("Shutting down infrastructure...")

	if c.messageConsumer != nil {
		if err := c.messageConsumer.Close(); err != nil {
			c.logger.Error("Failed to close message consumer", zap.Error(err))
		}
	}

	if c.messageProducer != nil {
		if err := c.messageProducer.Close(); err != nil {
			c.logger.Error("Failed to close message producer", zap.Error(err))
		}
	}

	if closer, ok := c.idempotency.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			c.logger.Error("Failed to close idempotency store", zap.Error(err))
		}
	}

	if c.db != nil {
		c.db.Close()
	}

	if c.telemetry != nil {
		if err := c.telemetry.Shutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}

	c.logger.Info("Infrastructure shutdown complete")

	if err := c.logger.Sync(); err != nil {
		// Can't log this error since logger might be closed
		fmt.Printf("Failed to sync logger: %v\n", err)
	}
}

// Getters for accessing infrastructure components
func (c *Container) Config() *config.Config          { return c.config }
func (c *Container) Logger() observability.Logger    { return c.logger }
func (c *Container) Tracer() observability.Tracer    { return c.tracer }
func (c *Container) DB() *postgres.DB                { return c.db }
func (c *Container) Idempotency() idempotency.Store  { return c.idempotency }
func (c *Container) MessageConsumer() kafka.Consumer { return c.messageConsumer }
func (c *Container) MessageProducer() kafka.Producer { return c.messageProducer }
func (c *Container) Services() *Services             { return c.services }
func (c *Container) HTTPServer() *http.Server        { return c.httpServer }

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/akmmp241/catalog-gateway/shared"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// newFiberApp builds the HTTP surface on top of an already wired gateway.
func newFiberApp(gateway Gateway, validate *validator.Validate, cfg *Config, store pinger) *fiber.App {
	server := fiber.New(fiber.Config{
		ErrorHandler: shared.ErrorHandler,
	})

	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		slog.Debug("Request handled", "method", c.Method(), "path", c.Path(), "status", c.Response().StatusCode(), "request_id", c.Locals(requestid.ConfigDefault.ContextKey))
		return err
	})

	server.Get("/healthcheck", func(c *fiber.Ctx) error {
		if err := store.Ping(c.UserContext()); err != nil {
			slog.Error("Healthcheck failed", "err", err)
			return fiber.NewError(fiber.StatusServiceUnavailable, "Store unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(shared.Response[any]{Message: "OK"})
	})
	server.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app := server.Group("/api/v1")

	catalogService := NewCatalogService(gateway, validate, []byte(cfg.ServiceJWTSecret), cfg.AppEnv)
	catalogService.RegisterRoutes(app)

	return server
}

type AppServer struct {
	cfg      *Config
	server   *fiber.App
	mongo    *mongo.Client
	producer *KafkaProducer
	consumer *KafkaConsumer
	applier  *NotificationApplier
	grpc     *GrpcServer

	cancelConsumer context.CancelFunc
	wg             sync.WaitGroup
}

func NewAppServer(ctx context.Context, cfg *Config) (*AppServer, error) {
	validate := shared.NewValidator()

	mongoClient, err := ConnectMongo(ctx, cfg.MongoURL, cfg.StoreTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	store := NewMongoStore(mongoClient.Database(cfg.MongoDB), int64(cfg.MaxResults), cfg.StoreTimeout)

	writer, err := shared.NewProducer(cfg.Kafka, cfg.KafkaTopic)
	if err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	producer := NewKafkaProducer(writer, cfg.KafkaTopic, cfg.PublishTimeout)

	catalog := NewCatalogClient(cfg.CatalogClientConfig())
	gateway := NewGateway(NewRepository(store, catalog, producer), cfg.StreamConsume)

	app := &AppServer{
		cfg:      cfg,
		server:   newFiberApp(gateway, validate, cfg, store),
		mongo:    mongoClient,
		producer: producer,
	}

	if cfg.ConsumerEnabled {
		reader, err := shared.NewKafkaConsumer(cfg.Kafka, cfg.KafkaGroupID, cfg.KafkaTopic)
		if err != nil {
			app.closeClients()
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		slog.Info("Kafka Consumer created with", "topic:", cfg.KafkaTopic, "group-id:", cfg.KafkaGroupID)

		var ledger EventLedger
		if cfg.RedisHost != "" {
			ledger = NewRedisLedger(shared.NewRedis(cfg.RedisHost, cfg.RedisPort), cfg.LedgerTTL)
		} else {
			slog.Warn("REDIS_HOST not set, processed events are tracked in memory")
			ledger = NewMemoryLedger(cfg.LedgerTTL)
		}

		app.consumer = NewKafkaConsumer(reader)
		app.applier = NewNotificationApplier(store, ledger)
	}

	grpcServer, err := NewGrpcServer(":" + cfg.GrpcPort)
	if err != nil {
		app.closeClients()
		return nil, fmt.Errorf("grpc listener: %w", err)
	}
	app.grpc = grpcServer

	return app, nil
}

// Run serves HTTP until Shutdown is called. The gRPC health server and the
// notification consumer run alongside it.
func (app *AppServer) Run() error {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.grpc.Run(); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	if app.consumer != nil {
		ctx, cancel := context.WithCancel(context.Background())
		app.cancelConsumer = cancel

		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			slog.Info("Starting notification consumer", "topic", app.cfg.KafkaTopic)
			if err := app.consumer.Start(ctx, app.applier.Handle); err != nil {
				slog.Error("Notification consumer stopped", "err", err)
			}
		}()
	}

	app.grpc.SetServing(true)

	slog.Info("Starting Catalog Gateway in HTTP server on port:", "port", app.cfg.Port, "stream_consume", app.cfg.StreamConsume)
	return app.server.Listen(":" + app.cfg.Port)
}

func (app *AppServer) Shutdown() error {
	app.grpc.SetServing(false)

	var errs []error
	if err := app.server.ShutdownWithTimeout(app.cfg.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if app.cancelConsumer != nil {
		app.cancelConsumer()
	}
	app.grpc.Stop()
	app.wg.Wait()

	if err := app.closeClients(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (app *AppServer) closeClients() error {
	var errs []error
	if app.consumer != nil {
		if err := app.consumer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka reader: %w", err))
		}
	}
	if app.producer != nil {
		if err := app.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka writer: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownTimeout)
	defer cancel()
	if err := app.mongo.Disconnect(ctx); err != nil {
		errs = append(errs, fmt.Errorf("disconnect mongodb: %w", err))
	}
	return errors.Join(errs...)
}

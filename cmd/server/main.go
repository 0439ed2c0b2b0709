package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-seat-reservation/internal/config"
	"github.com/iliyamo/event-seat-reservation/internal/database"
	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/queue"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/router"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Printf("redis unavailable at %s; rate limiting and caching disabled", cfg.Redis.Address())
	} else {
		defer rdb.Close()
	}

	store, closeStore, err := openStore(ctx, cfg, rdb)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	var notifier service.Notifier
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, cfg.BookingExchange, cfg.RabbitMQDialTimeout)
		defer pub.Close()
		notifier = pub
	} else {
		log.Printf("RABBITMQ_URL not set; booking notifications disabled")
	}
	if cfg.Audit.Enabled {
		consumer := queue.AuditConsumer{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.BookingExchange,
			Queue:    cfg.Audit.Queue,
			LogPath:  cfg.Audit.LogPath,
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("booking-consumer: stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echoMw.Recover())
	e.Use(echoMw.RequestIDWithConfig(echoMw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	router.RegisterRoutes(e, router.Deps{
		Events:    handler.NewEventHandler(service.NewEventService(store)),
		Bookings:  handler.NewBookingHandler(service.NewBookingService(store, notifier)),
		Redis:     rdb,
		RateLimit: cfg.RateLimit,
		Cache:     cfg.Cache,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreBackend)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openStore builds the configured backend and returns a func releasing
// whatever it opened.
func openStore(ctx context.Context, cfg config.Config, rdb *redis.Client) (repository.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMySQL:
		db, err := database.OpenMySQL(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
		if err != nil {
			return nil, nil, err
		}
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := database.MigrateMySQL(migrateCtx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repository.NewMySQLStore(db), func() { _ = db.Close() }, nil

	case config.BackendPostgres:
		pool, err := database.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := database.MigratePostgres(migrateCtx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPostgresStore(pool), pool.Close, nil

	case config.BackendRedis:
		if rdb == nil {
			return nil, nil, errors.New("STORE_BACKEND=redis but redis is unreachable")
		}
		return repository.NewRedisStore(rdb, cfg.Redis.KeyPrefix), func() {}, nil

	default:
		return repository.NewMemoryStore(), func() {}, nil
	}
}

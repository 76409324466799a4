/**
 * @description
 * This is the main entry point for the dispatch-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external API clients, message brokers, repositories, the core application service,
 * and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/geoclient, pkg/notify, pkg/rabbitmq: Clients for external systems.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/allobrico/dispatch-service/internal/api"
	"github.com/allobrico/dispatch-service/internal/app"
	"github.com/allobrico/dispatch-service/internal/config"
	"github.com/allobrico/dispatch-service/internal/store"
	"github.com/allobrico/dispatch-service/pkg/geoclient"
	"github.com/allobrico/dispatch-service/pkg/notify"
	rmrabbit "github.com/allobrico/dispatch-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting dispatch-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer; missing RabbitMQ degrades to a no-op
	// publisher rather than blocking dispatch.
	var publisher rmrabbit.Publisher = &rmrabbit.EventProducerFallback{}
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL, cfg.DispatchEventExchange)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the geocoder client. Missing configuration degrades city
	// matching to broadcast-to-all, never blocks boot.
	var geoClient *geoclient.Client
	if strings.TrimSpace(cfg.GeocoderBaseURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"geocoder not configured; city resolution limited to client profiles\" env=GEOCODER_BASE_URL")
	} else {
		geoClient = geoclient.NewClient(cfg.GeocoderBaseURL, cfg.GeocoderAPIKey)
	}

	// Initialize the push gateway client.
	var notifier *notify.Client
	if strings.TrimSpace(cfg.PushGatewayURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"push gateway not configured; notifications disabled\" env=PUSH_GATEWAY_URL")
	} else {
		notifier = notify.NewClient(cfg.PushGatewayURL, cfg.PushGatewayAPIKey)
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; location ping rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; location ping rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; location ping rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	var geo app.AddressResolver
	if geoClient != nil {
		geo = geoClient
	}
	var push app.Notifier
	if notifier != nil {
		push = notifier
	}
	dispatchService := app.NewService(repository, geo, push, publisher, nil)
	dispatchService.SetPingLimit(cfg.LocationPingLimitPerMinute)
	if redisClient != nil {
		dispatchService.SetRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix))
	}

	// Start the periodic expiry sweeper. Lazy expiration in the read and write
	// paths stays authoritative; the sweeper settles stored statuses.
	sweeper, err := app.NewExpirySweeper(dispatchService, cfg.ExpirySweepSchedule)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid expiry sweep schedule\" schedule=%q err=%v", cfg.ExpirySweepSchedule, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize the API handlers.
	dispatchHandlers := api.NewDispatchHandlers(dispatchService)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/dispatch", api.DispatchRoutes(dispatchHandlers, cfg.AuthJWKSURL))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

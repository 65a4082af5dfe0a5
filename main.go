package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/config"
	"github.com/NomadCrew/nomad-crew-planner/db"
	"github.com/NomadCrew/nomad-crew-planner/handlers"
	"github.com/NomadCrew/nomad-crew-planner/internal/clock"
	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/geo"
	"github.com/NomadCrew/nomad-crew-planner/internal/identity"
	"github.com/NomadCrew/nomad-crew-planner/internal/navigation"
	"github.com/NomadCrew/nomad-crew-planner/internal/realtime"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/internal/views"
	"github.com/NomadCrew/nomad-crew-planner/internal/websocket"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	authsvc "github.com/NomadCrew/nomad-crew-planner/models/auth/service"
	locationsvc "github.com/NomadCrew/nomad-crew-planner/models/location/service"
	pagesvc "github.com/NomadCrew/nomad-crew-planner/models/page/service"
	tripsvc "github.com/NomadCrew/nomad-crew-planner/models/trip/service"
	"github.com/NomadCrew/nomad-crew-planner/router"
	"github.com/NomadCrew/nomad-crew-planner/services"
	"github.com/NomadCrew/nomad-crew-planner/store"
	"github.com/NomadCrew/nomad-crew-planner/store/memory"
	"github.com/NomadCrew/nomad-crew-planner/store/postgres"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer func() { _ = logger.Close() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sysClock := clock.NewSystem()
	state := session.New()
	httpClient := &http.Client{Timeout: 30 * time.Second}

	// User store
	var users store.UserStore
	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		if err := db.RunMigrations(cfg.Database.URL()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		pool, err = db.Connect(ctx, cfg.Database, cfg.IsProduction())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		users = postgres.NewUserStore(pool)
	} else {
		log.Info("DATABASE_HOST not set, using in-memory user store")
		users = memory.NewUserStore()
	}

	// Realtime backend
	var provider *realtime.StoreProvider
	var redisClient *redis.Client
	var publisher *events.RedisPublisher
	switch cfg.Sync.Backend {
	case config.RealtimeRedis:
		redisClient = newRedisClient(cfg)
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", cfg.Redis.Address, err)
		}
		publisher = events.NewRedisPublisher(redisClient, events.Config{
			PublishTimeout:   time.Duration(cfg.EventService.PublishTimeoutSeconds) * time.Second,
			SubscribeTimeout: time.Duration(cfg.EventService.SubscribeTimeoutSeconds) * time.Second,
			EventBufferSize:  cfg.EventService.EventBufferSize,
		})
		provider = realtime.NewRedisProvider(redisClient, publisher, sysClock)
	default:
		memStore := realtime.NewMemoryStore()
		provider = realtime.NewMemoryProvider(memStore, sysClock)
		if cfg.Auth.DevUserID != "" {
			if err := seedDevTrip(ctx, memStore, cfg.Auth.DevUserID); err != nil {
				log.Warnw("Failed to seed development trip", "error", err)
			}
		}
	}

	// Identity provider
	var idp identity.Provider
	if cfg.Auth.DevUserID != "" {
		log.Warnw("Using development identity provider", "userID", cfg.Auth.DevUserID)
		idp = &identity.DevProvider{
			UserID:    cfg.Auth.DevUserID,
			Name:      cfg.Auth.DevUserName,
			AppID:     cfg.Auth.AppID,
			AppSecret: cfg.Auth.AppSecret,
			Scope:     cfg.Auth.Scope,
		}
	} else {
		idp = identity.NewHTTPProvider(cfg.Auth, nil)
	}

	// Location
	var locator geo.Locator
	if cfg.Location.StaticAddress != "" {
		locator = geo.NewStaticLocator(cfg.Location.StaticAddress)
	} else {
		locator = geo.NewIPLocator(cfg.Location.LocatorURL, cfg.Location.UserAgent, httpClient)
	}
	geocoder := geo.NewHTTPGeocoder(cfg.Location.GeocoderURL, cfg.Location.FallbackGeocoderURL, cfg.Location.UserAgent, httpClient)

	// Services
	history := navigation.NewHistory()
	tripSync := tripsvc.NewTripSyncService(provider, history, state, sysClock, cfg.Sync)
	authenticator := authsvc.NewSessionAuthenticator(idp, users, state, tripSync, sysClock, cfg.Auth)
	resolver := locationsvc.NewLocationResolver(locator, geocoder, users, state, cfg.Location.Timeout())

	// Views
	hub := websocket.NewHub()
	mapView := views.NewMap(hub)
	sidebar := views.NewSidebar(hub)
	navSub := views.FollowNavigation(hub, history)
	defer navSub.Unsubscribe()

	page := pagesvc.NewPageController(authenticator, resolver, tripSync, provider, state,
		mapView, sidebar, views.NewNotifier(hub))
	history.OnRoute(func(path string) {
		params, ok := navigation.ParseTripPath(path)
		if !ok {
			return
		}
		if err := page.Render(ctx, params); err != nil {
			log.Warnw("Route render failed", "path", path, "error", err)
		}
	})

	// HTTP
	var dbPinger services.Pinger
	if pool != nil {
		dbPinger = pool
	}
	var rdb redis.UniversalClient
	if redisClient != nil {
		rdb = redisClient
	}
	health := services.NewHealthService(dbPinger, rdb, cfg.Server.Version)
	health.SetRealtimeBackend(cfg.Sync.Backend)
	health.SetActiveConnectionsGetter(hub.ConnectionCount)

	r := router.SetupRouter(router.Dependencies{
		Config:        cfg,
		HealthHandler: handlers.NewHealthHandler(health),
		PageHandler:   handlers.NewPageHandler(page, authenticator, state),
		TokenHandler:  handlers.NewSocketTokenHandler(state, cfg.Auth),
		WSHandler:     websocket.NewHandler(hub, &cfg.Server),
		RedisClient:   rdb,
		CurrentUser:   state.User,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	page.Close()
	authenticator.Close()
	mapView.Close()
	sidebar.Close()
	if err := hub.Shutdown(shutdownCtx); err != nil {
		log.Errorw("WebSocket hub shutdown failed", "error", err)
	}
	if publisher != nil {
		if err := publisher.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Event publisher shutdown failed", "error", err)
		}
	}
	log.Info("Shutdown complete")
}

func newRedisClient(cfg *config.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	if cfg.Redis.UseTLS || cfg.IsProduction() {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// seedDevTrip gives the development user one trip to select on the memory backend.
func seedDevTrip(ctx context.Context, s *realtime.MemoryStore, userID string) error {
	trip := &types.Trip{
		ID:          "dev-trip",
		OwnerID:     userID,
		Name:        "Development trip",
		Origin:      &types.Airport{Code: "LHR", Name: "Heathrow", City: "London", Country: "GB"},
		Destination: &types.Airport{Code: "JFK", Name: "John F. Kennedy", City: "New York", Country: "US"},
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.SaveTrip(ctx, trip); err != nil {
		return err
	}
	if err := s.SaveParticipant(ctx, &types.Participant{UserID: userID, TripID: trip.ID, UpdatedAt: trip.UpdatedAt}); err != nil {
		return err
	}
	return s.AddUserTrip(ctx, userID, trip.ID)
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/config"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService reports on the backing stores the planner was started with.
// A nil dependency is not configured and is left out of the report.
type HealthService struct {
	db          Pinger
	redisClient redis.UniversalClient
	version     string
	startTime   time.Time
	log         *zap.SugaredLogger

	realtimeBackend   string
	activeConnections func() int
}

func NewHealthService(db Pinger, redisClient redis.UniversalClient, version string) *HealthService {
	return &HealthService{
		db:          db,
		redisClient: redisClient,
		version:     version,
		startTime:   time.Now(),
		log:         logger.GetLogger().Named("health"),
	}
}

// SetRealtimeBackend adds a realtime component naming the trip sync backend.
// On the redis backend it follows the redis check.
func (h *HealthService) SetRealtimeBackend(backend string) {
	h.realtimeBackend = backend
}

// SetActiveConnectionsGetter adds a websocket component reporting fn's count.
func (h *HealthService) SetActiveConnectionsGetter(fn func() int) {
	h.activeConnections = fn
}

func (h *HealthService) CheckHealth(ctx context.Context) types.HealthCheck {
	components := make(map[string]types.HealthComponent)
	overallStatus := types.HealthStatusUp

	if h.db != nil {
		dbStatus := h.checkDatabase(ctx)
		components[types.HealthComponentDatabase] = dbStatus
		if dbStatus.Status == types.HealthStatusDown {
			overallStatus = types.HealthStatusDown
		}
	}

	// The planner keeps serving from its last snapshots without redis, so a
	// redis failure only degrades it.
	redisStatus := types.HealthComponent{Status: types.HealthStatusUp}
	if h.redisClient != nil {
		redisStatus = h.checkRedis(ctx)
		components[types.HealthComponentRedis] = redisStatus
		if redisStatus.Status != types.HealthStatusUp && overallStatus == types.HealthStatusUp {
			overallStatus = types.HealthStatusDegraded
		}
	}

	if h.realtimeBackend != "" {
		realtime := types.HealthComponent{Status: types.HealthStatusUp, Backend: h.realtimeBackend}
		if h.realtimeBackend == config.RealtimeRedis && redisStatus.Status != types.HealthStatusUp {
			realtime.Status = redisStatus.Status
			realtime.Details = "Trip updates unavailable"
		}
		components[types.HealthComponentRealtime] = realtime
	}

	if h.activeConnections != nil {
		components[types.HealthComponentWebSocket] = types.HealthComponent{
			Status:  types.HealthStatusUp,
			Details: fmt.Sprintf("%d active connections", h.activeConnections()),
		}
	}

	return types.HealthCheck{
		Status:     overallStatus,
		Components: components,
		Version:    h.version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
}

func (h *HealthService) checkDatabase(ctx context.Context) types.HealthComponent {
	if err := h.db.Ping(ctx); err != nil {
		h.log.Errorw("Database health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Database connection failed",
		}
	}
	return types.HealthComponent{Status: types.HealthStatusUp}
}

func (h *HealthService) checkRedis(ctx context.Context) types.HealthComponent {
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		h.log.Errorw("Redis health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDegraded,
			Details: "Redis connection failed",
		}
	}
	return types.HealthComponent{Status: types.HealthStatusUp}
}

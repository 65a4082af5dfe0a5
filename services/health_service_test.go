package services

import (
	"context"
	"errors"
	"testing"

	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/go-redis/redismock/v9"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

func newMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestCheckHealth_AllUp(t *testing.T) {
	db := newMockDB(t)
	db.ExpectPing()
	rdb, redisMock := redismock.NewClientMock()
	redisMock.ExpectPing().SetVal("PONG")

	svc := NewHealthService(db, rdb, "1.0.0")
	svc.SetRealtimeBackend("redis")
	svc.SetActiveConnectionsGetter(func() int { return 3 })

	health := svc.CheckHealth(context.Background())

	assert.Equal(t, types.HealthStatusUp, health.Status)
	assert.Equal(t, "1.0.0", health.Version)
	assert.NotEmpty(t, health.Timestamp)
	assert.NotEmpty(t, health.Uptime)
	require.Len(t, health.Components, 4)
	assert.Equal(t, "3 active connections", health.Components[types.HealthComponentWebSocket].Details)
	assert.Equal(t, types.HealthComponent{Status: types.HealthStatusUp, Backend: "redis"},
		health.Components[types.HealthComponentRealtime])
	assert.NoError(t, db.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCheckHealth_DatabaseDown(t *testing.T) {
	db := newMockDB(t)
	db.ExpectPing().WillReturnError(errors.New("connection refused"))

	health := NewHealthService(db, nil, "1.0.0").CheckHealth(context.Background())

	assert.Equal(t, types.HealthStatusDown, health.Status)
	assert.Equal(t, types.HealthStatusDown, health.Components["database"].Status)
	assert.NotContains(t, health.Components, "redis")
}

func TestCheckHealth_RedisFailureDegrades(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	redisMock.ExpectPing().SetErr(errors.New("timeout"))

	svc := NewHealthService(nil, rdb, "1.0.0")
	svc.SetRealtimeBackend("redis")
	health := svc.CheckHealth(context.Background())

	assert.Equal(t, types.HealthStatusDegraded, health.Status)
	assert.Equal(t, "Redis connection failed", health.Components[types.HealthComponentRedis].Details)
	realtime := health.Components[types.HealthComponentRealtime]
	assert.Equal(t, types.HealthStatusDegraded, realtime.Status)
	assert.Equal(t, "redis", realtime.Backend)
}

func TestCheckHealth_MemoryBackendIgnoresRedis(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	redisMock.ExpectPing().SetErr(errors.New("timeout"))

	svc := NewHealthService(nil, rdb, "1.0.0")
	svc.SetRealtimeBackend("memory")
	health := svc.CheckHealth(context.Background())

	assert.Equal(t, types.HealthComponent{Status: types.HealthStatusUp, Backend: "memory"},
		health.Components[types.HealthComponentRealtime])
}

func TestCheckHealth_DownWinsOverDegraded(t *testing.T) {
	db := newMockDB(t)
	db.ExpectPing().WillReturnError(errors.New("connection refused"))
	rdb, redisMock := redismock.NewClientMock()
	redisMock.ExpectPing().SetErr(errors.New("timeout"))

	health := NewHealthService(db, rdb, "1.0.0").CheckHealth(context.Background())

	assert.Equal(t, types.HealthStatusDown, health.Status)
}

func TestCheckHealth_NothingConfigured(t *testing.T) {
	health := NewHealthService(nil, nil, "dev").CheckHealth(context.Background())

	assert.Equal(t, types.HealthStatusUp, health.Status)
	assert.Empty(t, health.Components)
}

package types

type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "UP"
	HealthStatusDown     HealthStatus = "DOWN"
	HealthStatusDegraded HealthStatus = "DEGRADED"
)

// Components reported by the planner's health check.
const (
	HealthComponentDatabase  = "database"
	HealthComponentRedis     = "redis"
	HealthComponentRealtime  = "realtime"
	HealthComponentWebSocket = "websocket"
)

// HealthComponent is the state of one dependency. Backend names the
// implementation in use where the planner can run on more than one.
type HealthComponent struct {
	Status  HealthStatus `json:"status"`
	Backend string       `json:"backend,omitempty"`
	Details string       `json:"details,omitempty"`
}

// HealthCheck is the body of the /health endpoints.
type HealthCheck struct {
	Status     HealthStatus               `json:"status"`
	Components map[string]HealthComponent `json:"components"`
	Version    string                     `json:"version"`
	Timestamp  string                     `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
}

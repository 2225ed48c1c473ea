package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"
)

// HealthStatus reports connectivity and pool utilization for the database
// connection, used by the readiness endpoint.
type HealthStatus struct {
	Connected       bool          `json:"connected"`
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration"`
	Error           string        `json:"error,omitempty"`
}

// Health pings db and reports its current pool statistics.
func Health(ctx context.Context, db *stdsql.DB) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	stats := db.Stats()
	status := &HealthStatus{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}

	if err := db.PingContext(ctx); err != nil {
		status.Connected = false
		status.Error = err.Error()
		return status, fmt.Errorf("database: health ping: %w", err)
	}

	status.Connected = true
	return status, nil
}

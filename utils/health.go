package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// BackendPinger reports whether the practice-management API is reachable.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Redis     bool      `json:"redis"`
	Backend   bool      `json:"backend"`
	CheckedAt time.Time `json:"checkedAt"`
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// StartHealthMonitor performs periodic health checks and updates in-memory state.
func StartHealthMonitor(redisClient *redis.Client, backend BackendPinger) {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

			redisHealthy := redisClient.Ping(ctx).Err() == nil
			backendHealthy := backend.Ping(ctx) == nil
			cancel()

			mu.Lock()
			currentHealth = HealthStatus{
				Redis:     redisHealthy,
				Backend:   backendHealthy,
				CheckedAt: time.Now(),
			}
			mu.Unlock()
		}
	}()
}

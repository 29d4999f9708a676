package health

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/jeancarlo3213/ferrefactura/internal/backend"
)

// Deps implements Checker over the service's concrete dependencies.
type Deps struct {
	Redis   *redis.Client
	Backend *backend.Client
}

// PingRedis probes the Redis connection within the timeout.
func (d Deps) PingRedis(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

// PingBackend probes the store backend within the timeout.
func (d Deps) PingBackend(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Backend.Ping(ctx)
}

package queue

import (
	"fmt"

	"notification-relay/internal/config"

	"github.com/rs/zerolog"
)

// Open constructs the configured Queue backend.
func Open(cfg config.Config, logger zerolog.Logger) (Queue, error) {
	switch cfg.Queue.Backend {
	case "memory":
		return NewMemoryQueue(cfg.Queue.MemorySize, logger), nil
	case "redis":
		client := NewRedisClient(cfg.Redis)
		return NewRedisQueue(client, cfg.Queue.Name), nil
	case "failover":
		client := NewRedisClient(cfg.Redis)
		primary := NewRedisQueue(client, cfg.Queue.Name)
		fallback := NewMemoryQueue(cfg.Queue.MemorySize, logger)
		return NewFailoverQueue(primary, fallback, logger), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.Queue.Backend)
	}
}

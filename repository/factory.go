package repository

import (
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewJobStore selects the configured backend. The memory store is the
// fallback when nothing is configured.
func NewJobStore(backend string, db *sql.DB, rdb *redis.Client) (JobStore, error) {
	switch backend {
	case "postgres":
		return NewPostgresStore(db)
	case "redis":
		return NewRedisStore(rdb), nil
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

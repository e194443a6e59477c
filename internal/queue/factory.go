package queue

import (
	"context"
	"path/filepath"

	"github.com/novaguard-ai/ckg-pipeline/internal/config"
)

// New selects a Queue backend: QueueConfig.Broker set to a Postgres DSN
// selects PostgresQueue (production); an empty broker falls back to the
// embedded BoltQueue next to the local SQLite store path, matching how
// "local" deployment mode (config.DeploymentMode) runs without any
// external services.
func New(ctx context.Context, cfg config.QueueConfig, storage config.StorageConfig) (Queue, error) {
	if cfg.Broker != "" {
		return NewPostgresQueue(ctx, cfg.Broker)
	}
	dir := filepath.Dir(storage.LocalPath)
	return NewBoltQueue(filepath.Join(dir, "queue.db"))
}

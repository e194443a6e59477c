package store

import (
	"context"
	"fmt"

	"github.com/novaguard-ai/ckg-pipeline/internal/config"
	"github.com/sirupsen/logrus"
)

// New selects a Store implementation from StorageConfig.Type.
func New(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	case "sqlite", "":
		return NewSQLiteStore(cfg.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

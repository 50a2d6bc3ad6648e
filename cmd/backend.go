package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/config"
	"github.com/kozaktomas/face-recognition/internal/store"
	"github.com/kozaktomas/face-recognition/internal/store/filestore"
	"github.com/kozaktomas/face-recognition/internal/store/postgres"
)

const (
	backendFile     = "file"
	backendPostgres = "postgres"
)

// openPersistence opens the named profile backend. The returned close function
// must be called when the backend is no longer used.
func openPersistence(ctx context.Context, cfg *config.Config, backend string, logger logrus.FieldLogger) (store.Persistence, func(), error) {
	switch backend {
	case backendFile:
		logger.WithField("path", cfg.Storage.File).Info("using file profile backend")
		return filestore.New(cfg.Storage.File), func() {}, nil

	case backendPostgres:
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		logger.Info("using PostgreSQL profile backend")
		closeFn := func() {
			if err := pool.Close(); err != nil {
				logger.WithError(err).Warn("failed to close PostgreSQL pool")
			}
		}
		return postgres.NewProfileRepository(pool), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown profile backend %q (expected %s or %s)", backend, backendFile, backendPostgres)
	}
}

// openStore opens the configured backend and loads the profile store.
func openStore(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*store.Store, func(), error) {
	persistence, closeFn, err := openPersistence(ctx, cfg, cfg.Storage.Backend, logger)
	if err != nil {
		return nil, nil, err
	}

	s := store.New(persistence, cfg.Recognition.MaxProfiles, logger.WithField("component", "store"))
	if err := s.Load(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return s, closeFn, nil
}

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"foresttracker/internal/config"
	"foresttracker/internal/mongo"
	"foresttracker/internal/mysql"
	"foresttracker/internal/redis"
	"foresttracker/pkg/session"
)

const purgeInterval = 10 * time.Minute

// Open builds the session store named by cfg.SessionStore. The returned func releases whatever
// the backend holds; it is safe to call once the server has stopped.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func() error, error) {
	logger = logger.With("store", cfg.SessionStore)

	switch cfg.SessionStore {
	case config.StoreMemory:
		s := session.NewMemoryStore(cfg.SessionCapacity)
		return s, s.Close, nil

	case config.StoreFile:
		s := session.NewFileStore(cfg.SessionsFile, cfg.SessionCapacity, cfg.SessionTTL, logger)
		return s, s.Close, nil

	case config.StoreMySQL:
		db, err := mysql.LoadDB(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		s := session.NewMySQLStore(db)

		janitorCtx, cancel := context.WithCancel(ctx)
		go session.RunJanitor(janitorCtx, s, purgeInterval, logger)

		return s, func() error {
			cancel()
			return db.Close()
		}, nil

	case config.StoreRedis:
		client, err := redis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client), client.Close, nil

	case config.StoreMongo:
		db, err := mongo.LoadDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		s := session.NewMongoStore(db)
		if err := s.EnsureIndexes(ctx); err != nil {
			logger.Error("create session indexes", "error", err)
		}
		return s, func() error {
			return db.Client().Disconnect(context.Background())
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
}

package services

import (
	"context"
	"time"

	"github.com/arcrm/engage/pkg/pg"
	"github.com/arcrm/engage/pkg/redis"
	"github.com/pkg/errors"
)

const healthCheckTimeout = 2 * time.Second

// HealthService reports whether the service's backing stores are reachable.
type HealthService struct {
	db      *pg.DB
	adapter redis.RedisAdapter
}

func NewHealthService(db *pg.DB, adapter redis.RedisAdapter) *HealthService {
	return &HealthService{db: db, adapter: adapter}
}

func (s *HealthService) Get() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	if s.db != nil {
		sqlDB, err := s.db.Read(ctx).DB()
		if err != nil {
			return errors.Wrap(err, "database handle")
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return errors.Wrap(err, "database ping")
		}
	}

	if s.adapter != nil {
		if cmd := s.adapter.Client().Ping(ctx); cmd.Err() != nil {
			return errors.Wrap(cmd.Err(), "redis ping")
		}
	}

	return nil
}

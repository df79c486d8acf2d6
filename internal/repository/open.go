package repository

import (
	"context"
	"fmt"

	"github.com/vjpiles/backend/internal/config"
	"github.com/vjpiles/backend/internal/domain"
	"go.uber.org/zap"
)

// Store is implemented by both subscription backends.
type Store interface {
	SaveSubscription(ctx context.Context, userID string, sub *domain.Subscription) error
	AppendTransaction(ctx context.Context, key string, tx *domain.Transaction) error
	FindSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]domain.UserSubscription, error)
	Ping(ctx context.Context) error
}

// Open connects the backend selected by cfg.StoreBackend and returns it
// together with a function releasing its connections.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rdb, err := NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
		return NewRedisSubscriptionStore(rdb), func() { _ = rdb.Close() }, nil

	case config.StorePostgres:
		db, err := NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("database connected & migrated")
		return NewSubscriptionRepository(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

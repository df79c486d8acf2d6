package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vjpiles/backend/internal/domain"
)

const (
	subscriptionKeyPrefix = "subscriptions/"
	transactionKeyPrefix  = "walletTransactions/"
	subscriptionIndexKey  = "subscriptions:index"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis creates a Redis client and checks the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// RedisSubscriptionStore keeps subscriptions as JSON documents under
// subscriptions/{userId} and audit entries under walletTransactions/{key}.
type RedisSubscriptionStore struct {
	rdb *redis.Client
}

func NewRedisSubscriptionStore(rdb *redis.Client) *RedisSubscriptionStore {
	return &RedisSubscriptionStore{rdb: rdb}
}

// SaveSubscription replaces the user's subscription document.
func (s *RedisSubscriptionStore) SaveSubscription(ctx context.Context, userID string, sub *domain.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, subscriptionKeyPrefix+userID, data, 0)
		pipe.SAdd(ctx, subscriptionIndexKey, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// AppendTransaction writes an audit entry under key.
func (s *RedisSubscriptionStore) AppendTransaction(ctx context.Context, key string, tx *domain.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	if err := s.rdb.Set(ctx, transactionKeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// FindSubscription returns the user's subscription, or nil if there is none.
func (s *RedisSubscriptionStore) FindSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	data, err := s.rdb.Get(ctx, subscriptionKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	return &sub, nil
}

// ListSubscriptions returns every stored subscription, newest start first.
func (s *RedisSubscriptionStore) ListSubscriptions(ctx context.Context) ([]domain.UserSubscription, error) {
	userIDs, err := s.rdb.SMembers(ctx, subscriptionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = subscriptionKeyPrefix + id
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	subs := make([]domain.UserSubscription, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // removed since the index was read
		}
		var sub domain.Subscription
		if err := json.Unmarshal([]byte(raw), &sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription %s: %w", strings.TrimPrefix(keys[i], subscriptionKeyPrefix), err)
		}
		subs = append(subs, domain.UserSubscription{UserID: userIDs[i], Subscription: &sub})
	}

	sort.Slice(subs, func(i, j int) bool {
		return subs[i].Subscription.StartDate.After(subs[j].Subscription.StartDate)
	})
	return subs, nil
}

// Ping checks the Redis connection.
func (s *RedisSubscriptionStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

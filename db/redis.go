// db/redis.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	pulse_errors "github.com/schoolsync/pulse/errors"
	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/model"
)

var RedisClient *redis.Client

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

// InvalidateNamespace marks a query namespace stale: the version key is
// bumped so cached reads miss, and subscribers of the invalidation channel
// are told to refetch.
func InvalidateNamespace(ctx context.Context, namespace string) error {
	versionKey := fmt.Sprintf("cache:version:%s", namespace)
	if err := RedisClient.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("%w: bumping version for %s: %v", pulse_errors.ErrInvalidationFailed, namespace, err)
	}

	if err := RedisClient.Publish(ctx, "cache:invalidate", namespace).Err(); err != nil {
		return fmt.Errorf("%w: publishing for %s: %v", pulse_errors.ErrInvalidationFailed, namespace, err)
	}

	logger.Debug("Cache namespace invalidated", zap.String("namespace", namespace))
	return nil
}

// RateLimit allows at most limit calls per key within the window.
func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	bucket := fmt.Sprintf("ratelimit:%s", key)
	count, err := RedisClient.Incr(ctx, bucket).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := RedisClient.Expire(ctx, bucket, per).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// NamespaceInvalidator adapts the Redis invalidation helpers to the
// notification router's Invalidator interface.
type NamespaceInvalidator struct{}

func NewNamespaceInvalidator() *NamespaceInvalidator {
	return &NamespaceInvalidator{}
}

func (i *NamespaceInvalidator) Invalidate(ctx context.Context, namespace string) error {
	return InvalidateNamespace(ctx, namespace)
}

// SessionStore persists the impersonation blob in Redis for deployments
// where the agent state must survive host restarts or move between hosts.
type SessionStore struct {
	Key string
}

func NewSessionStore(key string) *SessionStore {
	if key == "" {
		key = "impersonation:session"
	}
	return &SessionStore{Key: key}
}

func (s *SessionStore) Save(session model.ImpersonationSession) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal impersonation session: %w", err)
	}
	if err := RedisClient.Set(ctx, s.Key, sessionJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to store impersonation session: %w", err)
	}

	logger.Debug("Impersonation session stored", zap.String("key", s.Key))
	return nil
}

func (s *SessionStore) Load() (*model.ImpersonationSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessionJSON, err := RedisClient.Get(ctx, s.Key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load impersonation session: %w", err)
	}

	var session model.ImpersonationSession
	if err := json.Unmarshal([]byte(sessionJSON), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal impersonation session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := RedisClient.Del(ctx, s.Key).Err(); err != nil {
		return fmt.Errorf("failed to clear impersonation session: %w", err)
	}
	logger.Debug("Impersonation session cleared", zap.String("key", s.Key))
	return nil
}

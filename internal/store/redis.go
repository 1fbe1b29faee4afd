package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/internal/track"
)

// RedisStore keeps the record table in one Redis hash, field per
// ticket id. Save replaces the hash in a transaction so readers never
// see a partial table.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// NewRedisStore connects to Redis and verifies reachability.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Addr, err)
	}

	key := cfg.Key
	if key == "" {
		key = "ticketsmith:tracking"
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.String("key", key))
	return &RedisStore{client: client, key: key, logger: logger}, nil
}

// Load reads every record from the hash.
func (s *RedisStore) Load(ctx context.Context) (map[string]*track.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records from redis: %w", err)
	}

	records := make(map[string]*track.Record, len(fields))
	for id, raw := range fields {
		var rec track.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to parse record %s: %w", id, err)
		}
		records[id] = &rec
	}
	return records, nil
}

// Save replaces the hash with the given table atomically.
func (s *RedisStore) Save(ctx context.Context, records map[string]*track.Record) error {
	fields := make(map[string]interface{}, len(records))
	for id, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", id, err)
		}
		fields[id] = raw
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(fields) > 0 {
		pipe.HSet(ctx, s.key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save records to redis: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

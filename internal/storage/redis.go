package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/storycli/storycli/pkg/session"
)

const saveKeyPrefix = "storycli:save:"

// RedisStore keeps save slots in Redis, for play sessions that roam
// between machines.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ SaveStore = (*RedisStore)(nil)

// NewRedisStore connects to the given redis:// URL.
func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		logger: logger,
	}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Save(ctx context.Context, slot string, snap *session.Snapshot) error {
	if !slotNameRe.MatchString(slot) {
		return fmt.Errorf("invalid slot name %q", slot)
	}

	data, err := snap.Encode()
	if err != nil {
		return err
	}

	// Saves do not expire; a save slot lives until overwritten.
	if err := s.client.Set(ctx, saveKeyPrefix+slot, data, 0).Err(); err != nil {
		return fmt.Errorf("write save to redis: %w", err)
	}

	s.logger.Info("Session saved", "slot", slot, "bytes", len(data))
	return nil
}

func (s *RedisStore) Load(ctx context.Context, slot string) (*session.Snapshot, error) {
	if !slotNameRe.MatchString(slot) {
		return nil, fmt.Errorf("invalid slot name %q", slot)
	}

	data, err := s.client.Get(ctx, saveKeyPrefix+slot).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %q", ErrSlotNotFound, slot)
		}
		return nil, fmt.Errorf("read save from redis: %w", err)
	}

	snap, err := session.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session loaded", "slot", slot, "turns", len(snap.Turns))
	return snap, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var slots []string
	iter := s.client.Scan(ctx, 0, saveKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		slots = append(slots, strings.TrimPrefix(iter.Val(), saveKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan save slots: %w", err)
	}
	return slots, nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	return nil
}

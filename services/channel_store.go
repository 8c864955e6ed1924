package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"quizchat/models"

	"github.com/redis/go-redis/v9"
)

// ChannelStore is the durable, versioned home of game channels.
type ChannelStore interface {
	LoadChannel(ctx context.Context, name string) (*models.GameChannel, error)
	// SaveChannel writes doc if the stored version still equals
	// expectedVersion and returns the new version. Version 0 means the
	// channel must not exist yet.
	SaveChannel(ctx context.Context, doc *models.GameChannel, expectedVersion int64) (int64, error)
}

type RedisChannelStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisChannelStore(client *redis.Client, ttl time.Duration) *RedisChannelStore {
	return &RedisChannelStore{redis: client, ttl: ttl}
}

func channelKey(name string) string {
	return "channel:" + name
}

func (s *RedisChannelStore) LoadChannel(ctx context.Context, name string) (*models.GameChannel, error) {
	vals, err := s.redis.HMGet(ctx, channelKey(name), "version", "doc").Result()
	if err != nil {
		return nil, fmt.Errorf("load channel %s: %w", name, err)
	}
	rawVersion, ok1 := vals[0].(string)
	rawDoc, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return nil, ErrChannelNotFound
	}

	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("load channel %s: bad version %q", name, rawVersion)
	}
	var doc models.GameChannel
	if err := json.Unmarshal([]byte(rawDoc), &doc); err != nil {
		return nil, fmt.Errorf("load channel %s: %w", name, err)
	}
	doc.Version = version
	return &doc, nil
}

func (s *RedisChannelStore) SaveChannel(ctx context.Context, doc *models.GameChannel, expectedVersion int64) (int64, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode channel %s: %w", doc.Name, err)
	}

	key := channelKey(doc.Name)
	var newVersion int64
	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "version").Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != expectedVersion {
			return ErrVersionConflict
		}

		newVersion = current + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "version", newVersion, "doc", data)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return newVersion, nil
	case errors.Is(err, ErrVersionConflict), errors.Is(err, redis.TxFailedErr):
		return 0, ErrVersionConflict
	default:
		return 0, fmt.Errorf("save channel %s: %w", doc.Name, err)
	}
}

// Ping reports whether redis is reachable.
func (s *RedisChannelStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

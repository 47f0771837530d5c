package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldVersion = "version"
	fieldState   = "state"
)

// RedisSnapshots keeps each game as a hash {version, state} under
// <prefix><game_id>. Every write refreshes the TTL.
type RedisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisSnapshots(client *redis.Client, ttl time.Duration, prefix string) *RedisSnapshots {
	if prefix == "" {
		prefix = "domino:game:"
	}
	return &RedisSnapshots{client: client, ttl: ttl, prefix: prefix}
}

func (r *RedisSnapshots) key(gameID string) string {
	return r.prefix + gameID
}

func (r *RedisSnapshots) write(ctx context.Context, pipe redis.Pipeliner, snap Snapshot) {
	key := r.key(snap.GameID)
	pipe.HSet(ctx, key, fieldVersion, snap.Version, fieldState, snap.Data)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
}

func (r *RedisSnapshots) Put(ctx context.Context, snap Snapshot) error {
	key := r.key(snap.GameID)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, fieldVersion).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			cur, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return err
			}
			if cur != snap.Version-1 {
				return ErrVersionConflict
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.write(ctx, pipe, snap)
			return nil
		})
		return err
	}
	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

func (r *RedisSnapshots) Restore(ctx context.Context, snap Snapshot) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.write(ctx, pipe, snap)
		return nil
	})
	return err
}

func (r *RedisSnapshots) Get(ctx context.Context, gameID string) (Snapshot, error) {
	vals, err := r.client.HGetAll(ctx, r.key(gameID)).Result()
	if err != nil {
		return Snapshot{}, err
	}
	if len(vals) == 0 {
		return Snapshot{}, ErrNotFound
	}
	version, err := strconv.ParseInt(vals[fieldVersion], 10, 64)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{GameID: gameID, Version: version, Data: []byte(vals[fieldState])}, nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, gameID string) error {
	return r.client.Del(ctx, r.key(gameID)).Err()
}

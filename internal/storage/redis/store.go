// Package redis stores run checkpoints as JSON documents in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/louisbranch/replaykit/internal/replay"
)

const keyPrefix = "replaykit:checkpoint:"

var (
	// ErrAddrRequired indicates a missing Redis address.
	ErrAddrRequired = errors.New("redis address is required")
	// ErrClientRequired indicates a nil Redis client.
	ErrClientRequired = errors.New("redis client is required")
	// ErrRunIDRequired indicates a missing run id.
	ErrRunIDRequired = errors.New("run id is required")
)

// Options configures a Redis checkpoint store.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL expires checkpoints after the given duration. Zero keeps them.
	TTL time.Duration
}

// Store is a Redis-backed replay.CheckpointStore.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, ErrAddrRequired
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &Store{client: client, ttl: opts.TTL}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	return &Store{client: client, ttl: ttl}, nil
}

// Key returns the Redis key holding the checkpoint of runID.
func Key(runID string) string {
	return keyPrefix + strings.TrimSpace(runID)
}

// Close closes the client. It is safe on a nil store.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Get loads the checkpoint of runID.
func (s *Store) Get(ctx context.Context, runID string) (replay.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return replay.Checkpoint{}, err
	}
	if strings.TrimSpace(runID) == "" {
		return replay.Checkpoint{}, ErrRunIDRequired
	}

	data, err := s.client.Get(ctx, Key(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return replay.Checkpoint{}, replay.ErrCheckpointNotFound
	}
	if err != nil {
		return replay.Checkpoint{}, fmt.Errorf("get checkpoint %s: %w", runID, err)
	}

	var checkpoint replay.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return replay.Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", runID, err)
	}
	return checkpoint, nil
}

// Save writes the checkpoint, replacing any previous one for the run.
func (s *Store) Save(ctx context.Context, checkpoint replay.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	checkpoint.RunID = strings.TrimSpace(checkpoint.RunID)
	if checkpoint.RunID == "" {
		return ErrRunIDRequired
	}

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", checkpoint.RunID, err)
	}
	if err := s.client.Set(ctx, Key(checkpoint.RunID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set checkpoint %s: %w", checkpoint.RunID, err)
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 3 * time.Second

// Redis persists State under the fixed keys so several terminals can share
// one watch list.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedis connects to url and verifies the server answers.
func NewRedis(ctx context.Context, url string, log *zap.Logger) (*Redis, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, log: log}, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Load reads both keys. Missing keys and undecodable values yield defaults.
func (r *Redis) Load(ctx context.Context) (State, error) {
	var st State

	raw, err := r.client.Get(ctx, KeyWatchList).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return State{}, fmt.Errorf("get %s: %w", KeyWatchList, err)
	default:
		if err := json.Unmarshal(raw, &st.WatchList); err != nil {
			r.log.Warn("watch list unreadable, using empty list", zap.String("key", KeyWatchList), zap.Error(err))
			st.WatchList = nil
		}
	}

	theme, err := r.client.Get(ctx, KeyMapTheme).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return State{}, fmt.Errorf("get %s: %w", KeyMapTheme, err)
	default:
		st.MapTheme = theme
	}

	return Normalize(st), nil
}

// Save writes both keys in one transaction.
func (r *Redis) Save(ctx context.Context, st State) error {
	st = Normalize(st)
	data, err := json.Marshal(st.WatchList)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, KeyWatchList, data, 0)
		p.Set(ctx, KeyMapTheme, st.MapTheme, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Package queue schedules deferred room tasks, either on a Redis list or in process.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Rooms/internal/app"
	"github.com/dkeye/Rooms/internal/core"
)

// DefaultKey is the list tasks are pushed to, in the same {"class","args"} shape Resque uses.
const DefaultKey = "queue:rooms"

// Connect opens a client for a redis:// URL or a comma separated address list and pings it.
func Connect(ctx context.Context, rawURL string) (redis.UniversalClient, error) {
	if rawURL == "" {
		return nil, errors.New("redis URL must be provided")
	}
	opts := &redis.UniversalOptions{}
	for _, part := range strings.Split(rawURL, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "://") {
			opts.Addrs = append(opts.Addrs, part)
			continue
		}
		parsed, err := redis.ParseURL(part)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		opts.Addrs = append(opts.Addrs, parsed.Addr)
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
		if opts.DB == 0 {
			opts.DB = parsed.DB
		}
		if opts.TLSConfig == nil {
			opts.TLSConfig = parsed.TLSConfig
		}
	}
	if len(opts.Addrs) == 0 {
		return nil, errors.New("no redis addresses provided")
	}
	if len(opts.Addrs) > 1 && opts.DB != 0 {
		log.Warn().Str("module", "queue").Msg("ignoring non-zero DB for a cluster configuration")
		opts.DB = 0
	}

	client := redis.NewUniversalClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info().Str("module", "queue").Strs("addrs", opts.Addrs).Msg("connected to redis")
	return client, nil
}

type RedisQueue struct {
	client      redis.UniversalClient
	key         string
	pollTimeout time.Duration
	concurrency int
}

func NewRedisQueue(client redis.UniversalClient, key string, concurrency int) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	if concurrency <= 0 {
		concurrency = 16
	}
	return &RedisQueue{client: client, key: key, pollTimeout: 2 * time.Second, concurrency: concurrency}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task core.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return q.client.RPush(ctx, q.key, payload).Err()
}

// Run pops tasks until ctx is done. Each task runs on its own goroutine, at most concurrency at once.
func (q *RedisQueue) Run(ctx context.Context, handle core.TaskHandler) error {
	g := &errgroup.Group{}
	g.SetLimit(q.concurrency)
	defer func() { _ = g.Wait() }()

	log.Info().Str("module", "queue").Str("key", q.key).Msg("redis worker started")
	for {
		res, err := q.client.BLPop(ctx, q.pollTimeout, q.key).Result()
		switch {
		case ctx.Err() != nil:
			log.Info().Str("module", "queue").Msg("redis worker stopped")
			return nil
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			log.Error().Err(err).Str("module", "queue").Msg("pop failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		var task core.Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			log.Error().Err(err).Str("module", "queue").Str("payload", res[1]).Msg("dropping malformed task")
			continue
		}
		g.Go(func() error {
			q.process(ctx, handle, task)
			return nil
		})
	}
}

// process runs task and puts it back on the list when shutdown cut it short,
// so the next worker picks it up.
func (q *RedisQueue) process(ctx context.Context, handle core.TaskHandler, task core.Task) {
	if !runTask(ctx, handle, task) {
		return
	}
	requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := q.Enqueue(requeueCtx, task); err != nil {
		log.Error().Err(err).Str("module", "queue").Str("class", task.Class).Interface("args", task.Args).Msg("requeue failed, task lost")
		return
	}
	log.Info().Str("module", "queue").Str("class", task.Class).Msg("task requeued on shutdown")
}

// runTask reports whether task was interrupted by ctx ending. Other failures are logged.
func runTask(ctx context.Context, handle core.TaskHandler, task core.Task) bool {
	err := handle(ctx, task)
	if err == nil {
		return false
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return true
	}
	if ctx.Err() == nil {
		log.Error().Err(err).Str("module", "queue").Str("class", task.Class).Interface("args", task.Args).Msg("task failed")
	}
	return false
}

// RedisLocker is an app.Locker backed by redsync mutexes.
type RedisLocker struct {
	rs *redsync.Redsync
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{rs: redsync.New(goredis.NewPool(client))}
}

// WithLock runs fn if the lock is free. A lock held elsewhere yields app.ErrLocked without retrying.
func (l *RedisLocker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func() error) error {
	mutex := l.rs.NewMutex(name, redsync.WithExpiry(ttl), redsync.WithTries(1))

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return app.ErrLocked
		}
		return err
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Str("module", "queue").Str("lock", name).Msg("failed to unlock mutex")
		}
	}()
	return fn()
}

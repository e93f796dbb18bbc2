package locker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker implements Locker with Redsync (Redlock on a single pool).
type RedisLocker struct {
	rs     *redsync.Redsync
	prefix string
	logger *zap.Logger
}

// NewRedisLocker creates a Redis-backed Locker. Keys are namespaced by prefix.
func NewRedisLocker(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: prefix,
		logger: logger,
	}
}

// TryAcquire makes a single attempt to take key for ttl.
func (r *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	name := key
	if r.prefix != "" {
		name = r.prefix + ":lock:" + key
	}

	mutex := r.rs.NewMutex(name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isTaken(err) {
			r.logger.Debug("lock held elsewhere", zap.String("key", key))

			return nil, nil
		}

		return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
	}

	r.logger.Debug("lock acquired",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)

	return &redisLease{key: key, mutex: mutex, logger: r.logger}, nil
}

// isTaken reports whether err means the lock is owned by someone else.
func isTaken(err error) bool {
	var taken *redsync.ErrTaken
	var nodeTaken *redsync.ErrNodeTaken

	return errors.Is(err, redsync.ErrFailed) ||
		errors.As(err, &taken) ||
		errors.As(err, &nodeTaken) ||
		strings.Contains(err.Error(), "lock already taken")
}

type redisLease struct {
	key    string
	mutex  *redsync.Mutex
	logger *zap.Logger
}

func (l *redisLease) Key() string {
	return l.key
}

func (l *redisLease) Release(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return nil
		}

		return fmt.Errorf("releasing lock %s: %w", l.key, err)
	}
	if !ok {
		l.logger.Debug("lock already expired", zap.String("key", l.key))
	}

	return nil
}

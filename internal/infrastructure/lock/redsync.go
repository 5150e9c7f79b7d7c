package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedsyncLocker implements Locker with a Redis mutex shared by all replicas
type RedsyncLocker struct {
	rs     *redsync.Redsync
	prefix string
	logger *zap.Logger
}

// NewRedsyncLocker creates a locker on top of an existing go-redis client
func NewRedsyncLocker(client goredislib.UniversalClient, logger *zap.Logger) *RedsyncLocker {
	pool := goredis.NewPool(client)
	return &RedsyncLocker{
		rs:     redsync.New(pool),
		prefix: "stockengine:lock:",
		logger: logger,
	}
}

// TryLock makes a single acquisition attempt
func (l *RedsyncLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	mutex := l.rs.NewMutex(l.prefix+name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.TryLockContext(ctx); err != nil {
		if isTaken(err) {
			return nil, ErrNotAcquired
		}
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			return fmt.Errorf("release lock %s: %w", name, err)
		}
		if !ok {
			l.logger.Warn("lock expired before release", zap.String("lock", name))
		}
		return nil
	}, nil
}

func isTaken(err error) bool {
	var takenPtr *redsync.ErrTaken
	var taken redsync.ErrTaken
	return errors.Is(err, redsync.ErrFailed) || errors.As(err, &takenPtr) || errors.As(err, &taken)
}

var _ Locker = (*RedsyncLocker)(nil)

package learnerlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

var (
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

type RedisConfig struct {
	Prefix string
	// lease length; refreshed every TTL/3 while held
	TTL time.Duration
	// wait between acquisition attempts
	RetryInterval time.Duration
}

// Redis is a cross-process Locker using SET NX PX with a per-holder token.
type Redis struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	cfg RedisConfig
}

func NewRedis(log *logger.Logger, rdb goredis.UniversalClient, cfg RedisConfig) (*Redis, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "delivery:learner-lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 25 * time.Millisecond
	}
	return &Redis{log: log.With("service", "RedisLearnerLock"), rdb: rdb, cfg: cfg}, nil
}

func (r *Redis) key(learnerID uuid.UUID) string { return r.cfg.Prefix + learnerID.String() }

func (r *Redis) Lock(ctx context.Context, learnerID uuid.UUID) (func(), error) {
	key := r.key(learnerID)
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.cfg.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire learner lock: %w", err)
		}
		if ok {
			break
		}
		t := time.NewTimer(r.cfg.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.heartbeat(key, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, r.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
				r.log.Warn("learner lock release failed", "learner_id", learnerID.String(), "error", err)
			}
		})
	}, nil
}

func (r *Redis) heartbeat(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.TTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, err := refreshScript.Run(ctx, r.rdb, []string{key}, token, r.cfg.TTL.Milliseconds()).Int()
			cancel()
			if err != nil || n == 0 {
				r.log.Warn("learner lock lease lost", "key", key, "error", err)
				return
			}
		}
	}
}

// Package redis opens the Redis connection backing the highlight store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/poll"
)

// urgentWindow is the remaining connect budget below which retries log at
// error level.
const urgentWindow = 10 * time.Second

// ConnectOptions defines Redis connection retry behavior.
type ConnectOptions struct {
	Addr           string        // Redis address (ex: "localhost:6379")
	User           string        // Optional username
	Password       string        // Optional password
	RedisDB        int           // Redis DB number
	DialTimeout    time.Duration // Redis dial timeout
	ReadTimeout    time.Duration // Redis read timeout
	WriteTimeout   time.Duration // Redis write timeout
	PoolSize       int           // Redis connection pool size
	ConnectTimeout time.Duration // Total time allowed for connection attempts (ex: 30s)
	RetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	MaxWait        time.Duration // max wait between retries (ex: 10s)
	PingTimeout    time.Duration // timeout for each ping attempt (ex: 2s)
	WarnThreshold  int           // warn after this many attempts
}

// validate reports every invalid setting at once.
func (o ConnectOptions) validate() error {
	var errs []error
	positive := []struct {
		name string
		val  time.Duration
	}{
		{"ConnectTimeout", o.ConnectTimeout},
		{"RetryInterval", o.RetryInterval},
		{"MaxWait", o.MaxWait},
		{"PingTimeout", o.PingTimeout},
	}
	for _, p := range positive {
		if p.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", p.name, p.val))
		}
	}
	if o.WarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("WarnThreshold must be >= 0, got %d", o.WarnThreshold))
	}
	return errors.Join(errs...)
}

// New creates a Redis client and pings it until it answers, backing off
// exponentially up to MaxWait. It gives up once ConnectTimeout is spent.
func New(opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.validate(); err != nil {
		log.Error("invalid redis options", logger.Error(err))
		return nil, fmt.Errorf("invalid redis options: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	if err := waitReady(client, opts, log.With(logger.String("addr", opts.Addr))); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func waitReady(client *redis.Client, opts ConnectOptions, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	log.Info("connecting to redis", logger.Duration("timeout", opts.ConnectTimeout))

	poller := poll.New(poll.Policy{
		Interval:    opts.RetryInterval,
		MaxInterval: opts.MaxWait,
	}).OnRetry(func(a poll.Attempt) {
		logRetry(log, a, poll.TimeLeft(ctx), opts.WarnThreshold)
	})

	err := poller.Run(ctx, func(ctx context.Context, _ int) error {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		defer pingCancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		log.Error("redis unavailable - failed to connect after timeout",
			logger.Int("attempts", poller.Attempts()),
			logger.Duration("timeout", opts.ConnectTimeout),
			logger.Error(poller.LastErr()))
		return fmt.Errorf("redis unavailable at %s after %d attempts (timeout: %v): %w",
			opts.Addr, poller.Attempts(), opts.ConnectTimeout, poller.LastErr())
	}

	if n := poller.Attempts(); n > 1 {
		log.Warn("connected to redis after retry",
			logger.Int("attempts", n),
			logger.Duration("elapsed", opts.ConnectTimeout-poll.TimeLeft(ctx)))
	} else {
		log.Info("connected to redis")
	}
	return nil
}

// logRetry escalates from warn to error once the warn threshold is passed
// or the connect budget is nearly spent.
func logRetry(log logger.Logger, a poll.Attempt, remaining time.Duration, warnThreshold int) {
	fields := []logger.Field{
		logger.Int("attempt", a.Number),
		logger.Duration("remaining", remaining),
		logger.Duration("next_retry_in", a.Next),
		logger.Error(a.Err),
	}
	switch {
	case remaining < urgentWindow:
		log.Error("redis still down - retrying but timeout approaching", fields...)
	case a.Number <= warnThreshold:
		log.Warn("redis connection failed, retrying", fields...)
	default:
		log.Error("redis still unavailable - connection attempts failing", fields...)
	}
}

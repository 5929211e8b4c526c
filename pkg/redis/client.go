package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Client owns the shared connection pool used by the session store, follow-up
// scheduler and notification stream.
type Client struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

type Options struct {
	URL          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	IdleTimeout  time.Duration
	PingTimeout  time.Duration
}

// DefaultOptions keeps read timeouts above the stream consumer's block time.
func DefaultOptions(url string) Options {
	return Options{
		URL:          url,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
		IdleTimeout:  5 * time.Minute,
		PingTimeout:  5 * time.Second,
	}
}

// Dial connects and verifies the server answers PING before returning.
func Dial(ctx context.Context, opts Options, logger *logrus.Logger) (*Client, error) {
	opt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.MaxRetries = opts.MaxRetries
	opt.DialTimeout = opts.DialTimeout
	opt.ReadTimeout = opts.ReadTimeout
	opt.WriteTimeout = opts.WriteTimeout
	opt.PoolSize = opts.PoolSize
	opt.MinIdleConns = opts.MinIdleConns
	opt.IdleTimeout = opts.IdleTimeout

	client := &Client{
		rdb:    redis.NewClient(opt),
		logger: logger,
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx); err != nil {
		client.rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"addr": opt.Addr,
		"db":   opt.DB,
	}).Info("Connected to Redis")
	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis exposes the underlying go-redis client to the Redis-backed components.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

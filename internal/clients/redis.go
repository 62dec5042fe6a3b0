package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"lireddit/server/internal/config"
	"lireddit/server/internal/orchestrator"
)

const redisProbeName = "redis"

// redisPinger is the interface used by RedisClient for health probing.
// It is implemented by the real go-redis client and by test doubles.
type redisPinger interface {
	PingResult(ctx context.Context) (string, error)
}

type realRedisPinger struct {
	client redis.UniversalClient
}

func (r *realRedisPinger) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

// RedisClient owns the go-redis client shared by the session store, reset
// tokens and health probes.
type RedisClient struct {
	client redis.UniversalClient
	cb     *gobreaker.CircuitBreaker
	pinger redisPinger
}

// NewRedisClient parses cfg.URL and builds a client. go-redis dials lazily;
// call Connect to establish the connection eagerly.
func NewRedisClient(cfg config.RedisConfig, cb *gobreaker.CircuitBreaker) (*RedisClient, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisClientFrom(redis.NewClient(opts), cb), nil
}

// NewRedisClientFrom wraps an existing client.
func NewRedisClientFrom(client redis.UniversalClient, cb *gobreaker.CircuitBreaker) *RedisClient {
	return &RedisClient{
		client: client,
		cb:     cb,
		pinger: &realRedisPinger{client: client},
	}
}

// Client returns the underlying go-redis client.
func (c *RedisClient) Client() redis.UniversalClient {
	return c.client
}

// Connect pings the server so that connection problems surface at startup
// rather than on the first request.
func (c *RedisClient) Connect(ctx context.Context) error {
	if err := c.ping(ctx); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	return nil
}

// Probe sends a PING command to Redis and validates the PONG response. The call
// is wrapped in the circuit breaker; after 3 consecutive failures the breaker
// opens and subsequent calls return immediately with "circuit open".
func (c *RedisClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.ping(ctx)
	})
	return probeResult(redisProbeName, start, err)
}

func (c *RedisClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *RedisClient) ping(ctx context.Context) error {
	val, err := c.pinger.PingResult(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if val != "PONG" {
		return fmt.Errorf("unexpected PING response: %q", val)
	}
	return nil
}

package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lireddit/server/internal/config"
)

// mockRedisPinger is a test double for redisPinger.
type mockRedisPinger struct {
	pingVal string
	pingErr error
}

func (m *mockRedisPinger) PingResult(_ context.Context) (string, error) {
	return m.pingVal, m.pingErr
}

func TestRedisProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pingVal    string
		pingErr    error
		wantOK     bool
		wantErrSub string
	}{
		{name: "PING returns PONG", pingVal: "PONG", wantOK: true},
		{name: "PING returns error", pingErr: errors.New("connection refused"), wantErrSub: "connection refused"},
		{name: "PING returns unexpected value", pingVal: "WHOOPS", wantErrSub: "unexpected PING response"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := &RedisClient{
				cb:     NewCircuitBreaker("redis-test-" + tc.name),
				pinger: &mockRedisPinger{pingVal: tc.pingVal, pingErr: tc.pingErr},
			}

			result := client.Probe(context.Background())

			assert.Equal(t, redisProbeName, result.Name)
			assert.Equal(t, tc.wantOK, result.OK)
			if tc.wantErrSub != "" {
				assert.Contains(t, result.Error, tc.wantErrSub)
			} else {
				assert.Empty(t, result.Error)
			}
		})
	}
}

func TestRedisProbeCircuitBreaker_OpensAfterThreeFailures(t *testing.T) {
	t.Parallel()

	client := &RedisClient{
		cb:     NewCircuitBreaker("redis-cb-open-test"),
		pinger: &mockRedisPinger{pingErr: errors.New("connection refused")},
	}

	for i := range 3 {
		result := client.Probe(context.Background())
		assert.False(t, result.OK, "probe %d should fail", i+1)
		assert.NotEqual(t, "circuit open", result.Error, "probe %d", i+1)
	}

	result := client.Probe(context.Background())
	assert.False(t, result.OK)
	assert.Equal(t, "circuit open", result.Error)
}

func TestNewRedisClient_FromURL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"}, NewCircuitBreaker("redis-url"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.Probe(context.Background()).OK)

	require.NoError(t, client.Client().Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisClient(config.RedisConfig{URL: "http://nope"}, NewCircuitBreaker("redis-bad-url"))
	assert.ErrorContains(t, err, "parsing redis url")
}

func TestRedisConnect_Unreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(config.RedisConfig{URL: "redis://" + mr.Addr()}, NewCircuitBreaker("redis-down"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	assert.ErrorContains(t, client.Connect(context.Background()), "connecting to redis")
}

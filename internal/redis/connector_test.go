package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkloom/internal/config"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
)

func testOptions(addr string) Options {
	return Options{
		Addr:          addr,
		PoolSize:      2,
		DialTimeout:   200 * time.Millisecond,
		ReadTimeout:   200 * time.Millisecond,
		WriteTimeout:  200 * time.Millisecond,
		Window:        600 * time.Millisecond,
		FirstBackoff:  50 * time.Millisecond,
		MaxBackoff:    100 * time.Millisecond,
		PingTimeout:   100 * time.Millisecond,
		QuietAttempts: 1,
	}
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), testOptions(mr.Addr()), logger.Nop())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConnectGivesUpAfterWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	start := time.Now()
	_, err := Connect(context.Background(), testOptions(addr), logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConnectHonorsCancellation(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := testOptions(addr)
	opts.Window = time.Minute
	start := time.Now()
	_, err := Connect(ctx, opts, logger.Nop())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"address", func(o *Options) { o.Addr = "" }},
		{"window", func(o *Options) { o.Window = 0 }},
		{"first backoff", func(o *Options) { o.FirstBackoff = 0 }},
		{"max below first", func(o *Options) { o.MaxBackoff = o.FirstBackoff / 2 }},
		{"ping timeout", func(o *Options) { o.PingTimeout = 0 }},
		{"quiet attempts", func(o *Options) { o.QuietAttempts = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions("localhost:0")
			tt.mutate(&opts)
			assert.Error(t, opts.Validate())
		})
	}
	assert.NoError(t, testOptions("localhost:0").Validate())
}

func TestBackoffCaps(t *testing.T) {
	bo := backoff{next: time.Second, max: 5 * time.Second}
	var got []time.Duration
	for range 5 {
		got = append(got, bo.wait())
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, got)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		RedisAddr:           "cache:6379",
		RedisDB:             2,
		RedisConnectTimeout: 30 * time.Second,
		RedisRetryInterval:  2 * time.Second,
		RedisMaxWait:        10 * time.Second,
		RedisPingTimeout:    5 * time.Second,
		RedisWarnThreshold:  3,
	}
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 30*time.Second, opts.Window)
	assert.Equal(t, 3, opts.QuietAttempts)
	assert.NoError(t, opts.Validate())
}

package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ai-studio/internal/github"
)

var _ github.Cache = (*Store)(nil)

func TestStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s := New(addr, os.Getenv("REDIS_PASSWORD"), 0)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, key, []byte(`{"a":1}`), time.Minute))
	b, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, string(b))

	require.NoError(t, s.Delete(ctx, key))
}

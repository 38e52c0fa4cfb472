package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要真实的 redis，通过 PRESENCE_TEST_REDIS_ADDR 指定
func TestRedisRegistry(t *testing.T) {
	addr := os.Getenv("PRESENCE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PRESENCE_TEST_REDIS_ADDR 未设置")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	id := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { rdb.Del(ctx, editorsKey(id), namesKey(id)) })

	registry := NewRedisRegistry(rdb, time.Minute)
	now := time.Now()
	registry.now = func() time.Time { return now }

	require.NoError(t, registry.Join(ctx, id, Editor{UserID: "u1", Name: "佐藤"}))
	require.NoError(t, registry.Join(ctx, id, Editor{UserID: "u2", Name: "鈴木"}))

	editors, err := registry.Editors(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Editor{{UserID: "u1", Name: "佐藤"}, {UserID: "u2", Name: "鈴木"}}, editors)

	require.NoError(t, registry.Leave(ctx, id, "u1"))
	editors, err = registry.Editors(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []Editor{{UserID: "u2", Name: "鈴木"}}, editors)

	// ttl 过后自动过期
	registry.now = func() time.Time { return now.Add(2 * time.Minute) }
	editors, err = registry.Editors(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, editors)
}

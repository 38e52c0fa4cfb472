package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry 用一个 ZSET 保存每条记录的编辑者，score 是过期时间（毫秒），
// 另一个 hash 保存用户名
type RedisRegistry struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedisRegistry(rdb *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{
		rdb: rdb,
		ttl: ttl,
		now: time.Now,
	}
}

func editorsKey(assignmentID string) string {
	return fmt.Sprintf("presence:%s", assignmentID)
}

func namesKey(assignmentID string) string {
	return fmt.Sprintf("presence:%s:names", assignmentID)
}

func (r *RedisRegistry) Join(ctx context.Context, assignmentID string, editor Editor) error {
	expiresAt := r.now().Add(r.ttl).UnixMilli()

	pipe := r.rdb.TxPipeline()
	pipe.ZAdd(ctx, editorsKey(assignmentID), redis.Z{Score: float64(expiresAt), Member: editor.UserID})
	pipe.HSet(ctx, namesKey(assignmentID), editor.UserID, editor.Name)
	// 整个 key 比最后一个编辑者多保留一个 ttl
	pipe.Expire(ctx, editorsKey(assignmentID), 2*r.ttl)
	pipe.Expire(ctx, namesKey(assignmentID), 2*r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("登记编辑状态失败: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Leave(ctx context.Context, assignmentID, userID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, editorsKey(assignmentID), userID)
	pipe.HDel(ctx, namesKey(assignmentID), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("退出编辑状态失败: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Editors(ctx context.Context, assignmentID string) ([]Editor, error) {
	now := strconv.FormatInt(r.now().UnixMilli(), 10)

	if err := r.rdb.ZRemRangeByScore(ctx, editorsKey(assignmentID), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("清理过期编辑状态失败: %w", err)
	}
	userIDs, err := r.rdb.ZRangeByScore(ctx, editorsKey(assignmentID), &redis.ZRangeBy{Min: now, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("查询编辑状态失败: %w", err)
	}
	if len(userIDs) == 0 {
		return []Editor{}, nil
	}

	names, err := r.rdb.HMGet(ctx, namesKey(assignmentID), userIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("查询编辑者姓名失败: %w", err)
	}

	editors := make([]Editor, 0, len(userIDs))
	for i, id := range userIDs {
		editor := Editor{UserID: id}
		if name, ok := names[i].(string); ok {
			editor.Name = name
		}
		editors = append(editors, editor)
	}
	return editors, nil
}

package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKV 是 Store 需要的 redis 命令子集，便于测试替换。
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Store 把每个用户的收藏职位集合持久化为 redis 里的 JSON 数组，
// 键名沿用老客户端的 favorites_{userId} 约定。写入是整键覆盖，
// 最后写入者胜出，没有合并语义。
type Store struct {
	client redisKV
}

// NewStore 构造收藏存储。
func NewStore(client redisKV) *Store {
	return &Store{client: client}
}

func key(userID string) string {
	return "favorites_" + userID
}

// List 返回用户当前收藏的职位 id 列表，保持插入顺序。
// 键不存在视为空集合。
func (s *Store) List(ctx context.Context, userID string) ([]string, error) {
	raw, err := s.client.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		// 键里的内容坏掉时当作空集合重新开始，不向上抛错。
		return []string{}, nil
	}
	return ids, nil
}

// Contains 查询某个职位是否已收藏。
func (s *Store) Contains(ctx context.Context, userID, jobID string) (bool, error) {
	ids, err := s.List(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == jobID {
			return true, nil
		}
	}
	return false, nil
}

// Toggle 翻转一个职位的收藏状态并立即持久化，返回翻转后的状态。
func (s *Store) Toggle(ctx context.Context, userID, jobID string) (bool, error) {
	ids, err := s.List(ctx, userID)
	if err != nil {
		return false, err
	}

	favorited := true
	next := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id == jobID {
			favorited = false
			continue
		}
		next = append(next, id)
	}
	if favorited {
		next = append(next, jobID)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("marshal favorites: %w", err)
	}
	if err := s.client.Set(ctx, key(userID), data, 0).Err(); err != nil {
		return false, fmt.Errorf("save favorites: %w", err)
	}
	return favorited, nil
}

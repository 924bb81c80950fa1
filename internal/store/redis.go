package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisResultStore 以Redis保存结果, 供多个进程共享查询
type RedisResultStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisResultStore 创建Redis存储, ttl 为0表示不过期
func NewRedisResultStore(addr, password string, db int, prefix string, ttl time.Duration) *RedisResultStore {
	return &RedisResultStore{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		prefix: prefix,
		ttl:    ttl,
	}
}

// Ping 检查连接
func (s *RedisResultStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭客户端
func (s *RedisResultStore) Close() error {
	return s.client.Close()
}

// PutResult 以JSON写入结果
func (s *RedisResultStore) PutResult(ctx context.Context, result models.JobResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+result.JobID, payload, s.ttl).Err()
}

// GetResult 读取结果, 键不存在时返回 false
func (s *RedisResultStore) GetResult(ctx context.Context, jobID string) (models.JobResult, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.JobResult{}, false, nil
		}
		return models.JobResult{}, false, err
	}

	var result models.JobResult
	if err := json.Unmarshal(val, &result); err != nil {
		return models.JobResult{}, false, err
	}
	return result, true, nil
}

// Package store 保存按任务ID查询的任务结果
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/models"
)

// ResultStore 任务结果存储
type ResultStore interface {
	PutResult(ctx context.Context, result models.JobResult) error
	GetResult(ctx context.Context, jobID string) (models.JobResult, bool, error)
	Close() error
}

// Options 存储后端配置
type Options struct {
	Backend string // memory | redis

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	RedisTTL      time.Duration
}

// New 按后端名称创建存储
func New(opts Options) (ResultStore, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisResultStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix, opts.RedisTTL), nil
	default:
		return nil, fmt.Errorf("未知的存储后端: %s", opts.Backend)
	}
}

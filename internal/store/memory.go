package store

import (
	"context"
	"sync"

	"github.com/RecoveryAshes/sitesnap/internal/models"
)

// MemoryStore 进程内结果存储
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]models.JobResult
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]models.JobResult)}
}

// PutResult 写入或覆盖结果
func (s *MemoryStore) PutResult(_ context.Context, result models.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.JobID] = result
	return nil
}

// GetResult 读取结果
func (s *MemoryStore) GetResult(_ context.Context, jobID string) (models.JobResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[jobID]
	return result, ok, nil
}

// Close 实现 ResultStore
func (s *MemoryStore) Close() error {
	return nil
}

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/google/uuid"
)

func exerciseStore(t *testing.T, s ResultStore) {
	t.Helper()
	ctx := context.Background()
	jobID := uuid.New().String()

	if _, ok, err := s.GetResult(ctx, jobID); err != nil || ok {
		t.Fatalf("不存在的任务应返回 ok=false, 得到 ok=%v err=%v", ok, err)
	}

	result := models.JobResult{
		JobID:     jobID,
		TargetURL: "https://example.com/",
		Status:    models.JobDelivered,
		Artifact:  &models.Artifact{JobID: jobID, Path: "/tmp/a.zip", Size: 42, Format: models.FormatZip},
		Stats:     models.JobStats{Fetched: 3},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.PutResult(ctx, result); err != nil {
		t.Fatalf("PutResult失败: %v", err)
	}

	got, ok, err := s.GetResult(ctx, jobID)
	if err != nil || !ok {
		t.Fatalf("GetResult失败: ok=%v err=%v", ok, err)
	}
	if got.Status != models.JobDelivered || got.Artifact == nil || got.Artifact.Size != 42 || got.Stats.Fetched != 3 {
		t.Errorf("读取结果不一致: %+v", got)
	}

	// 覆盖写入
	result.Status = models.JobFailed
	result.Artifact = nil
	if err := s.PutResult(ctx, result); err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}
	got, _, _ = s.GetResult(ctx, jobID)
	if got.Status != models.JobFailed || got.Artifact != nil {
		t.Errorf("覆盖写入未生效: %+v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

// 需要本地Redis: SITESNAP_TEST_REDIS=localhost:6379 go test ./internal/store
func TestRedisResultStore(t *testing.T) {
	addr := os.Getenv("SITESNAP_TEST_REDIS")
	if addr == "" {
		t.Skip("未设置 SITESNAP_TEST_REDIS, 跳过Redis集成测试")
	}
	s := NewRedisResultStore(addr, "", 0, "sitesnap:test:", time.Minute)
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("Redis不可用: %v", err)
	}
	exerciseStore(t, s)
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{"memory", false},
		{"redis", false},
		{"etcd", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := New(Options{Backend: tt.backend, RedisAddr: "localhost:6379"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v", tt.backend, err)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}

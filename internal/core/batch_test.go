package core

import (
	"context"
	"testing"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/store"
)

func TestBatchRunner_RunBatch(t *testing.T) {
	site := newMirrorSite(t)
	cfg := newTestRunnerConfig(t)
	results := store.NewMemoryStore()
	runner := NewRunner(cfg, nil, results)

	depth := 0
	reqs := []models.JobRequest{
		{TargetURL: site.srv.URL + "/", MaxDepth: &depth},
		{TargetURL: "not-a-url"},
		{TargetURL: site.srv.URL + "/page", MaxDepth: &depth},
	}

	summary, err := NewBatchRunner(runner, 2, true).RunBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("continueOnErr=true 时不应返回错误: %v", err)
	}
	if summary.SuccessCount != 2 || summary.FailCount != 1 {
		t.Errorf("摘要 = 成功%d 失败%d, 期望 2/1", summary.SuccessCount, summary.FailCount)
	}
	if summary.Results[1].Success || models.CodeOf(summary.Results[1].Error) != models.CodeInvalidURL {
		t.Errorf("第二个URL应失败为 InvalidURL: %+v", summary.Results[1])
	}

	// 每个任务独立的ID和产物
	seen := make(map[string]bool)
	for _, i := range []int{0, 2} {
		res := summary.Results[i]
		if !res.Success || res.Artifact == nil {
			t.Fatalf("第%d个URL应成功: %+v", i+1, res)
		}
		if seen[res.JobID] || seen[res.Artifact.Path] {
			t.Errorf("任务ID或产物路径重复: %s", res.JobID)
		}
		seen[res.JobID] = true
		seen[res.Artifact.Path] = true

		if _, ok, _ := results.GetResult(context.Background(), res.JobID); !ok {
			t.Errorf("任务 %s 的结果未记录", res.JobID)
		}
	}
}

func TestBatchRunner_StopOnError(t *testing.T) {
	site := newMirrorSite(t)
	runner := NewRunner(newTestRunnerConfig(t), nil, store.NewMemoryStore())

	depth := 0
	reqs := []models.JobRequest{
		{TargetURL: "://bad"},
		{TargetURL: site.srv.URL + "/", MaxDepth: &depth},
		{TargetURL: site.srv.URL + "/page", MaxDepth: &depth},
	}

	// 并发为1: 第一个失败后其余任务不再开始
	summary, err := NewBatchRunner(runner, 1, false).RunBatch(context.Background(), reqs)
	if err == nil {
		t.Fatal("continueOnErr=false 时应返回错误")
	}
	if summary.FailCount != 1 || summary.SuccessCount != 0 || summary.SkippedCount != 2 {
		t.Errorf("摘要 = 成功%d 失败%d 未执行%d, 期望 0/1/2",
			summary.SuccessCount, summary.FailCount, summary.SkippedCount)
	}
	if site.hitCount("/") != 0 {
		t.Error("中止后不应再抓取")
	}
}

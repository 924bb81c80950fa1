package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"golang.org/x/sync/errgroup"
)

// BatchRunner 批量镜像, 每个URL独立成一个任务(独立的根目录和结果)
type BatchRunner struct {
	runner        *Runner
	concurrency   int
	continueOnErr bool
}

// BatchResult 单个URL的结果
type BatchResult struct {
	URL         string
	JobID       string
	Success     bool
	Error       error
	Artifact    *models.Artifact
	Stats       models.JobStats
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量任务摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	SkippedCount  int
	TotalFetched  int
	TotalSize     int64
	TotalDuration float64
	Results       []BatchResult // 与输入顺序一致, 未执行的URL为零值
}

// NewBatchRunner 创建批量执行器
func NewBatchRunner(runner *Runner, concurrency int, continueOnErr bool) *BatchRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchRunner{runner: runner, concurrency: concurrency, continueOnErr: continueOnErr}
}

// RunBatch 以有限并发执行所有请求
// continueOnErr 为false时, 第一个失败会取消尚未开始的任务
func (br *BatchRunner) RunBatch(ctx context.Context, reqs []models.JobRequest) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量镜像: %d个URL (并发 %d)", len(reqs), br.concurrency)
	startTime := time.Now()

	summary := &BatchSummary{
		TotalURLs: len(reqs),
		Results:   make([]BatchResult, len(reqs)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(br.concurrency)

	var mu sync.Mutex
	for i, req := range reqs {
		i, req := i, req
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			utils.Infof("[%d/%d] 目标URL: %s", i+1, len(reqs), utils.SafeURL(req.TargetURL))
			result := br.runOne(gctx, req)

			mu.Lock()
			summary.Results[i] = result
			mu.Unlock()

			if !result.Success {
				utils.Errorf("❌ 镜像失败 [%s]: %v", utils.SafeURL(req.TargetURL), result.Error)
				if !br.continueOnErr {
					return fmt.Errorf("批量任务中止 [%s]: %w", req.TargetURL, result.Error)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	for _, result := range summary.Results {
		switch {
		case result.URL == "":
			summary.SkippedCount++
		case result.Success:
			summary.SuccessCount++
			summary.TotalFetched += result.Stats.Fetched
			summary.TotalSize += result.Stats.TotalBytes
		default:
			summary.FailCount++
		}
	}
	summary.TotalDuration = time.Since(startTime).Seconds()
	printSummary(summary)

	return summary, err
}

// runOne 执行单个任务
func (br *BatchRunner) runOne(ctx context.Context, req models.JobRequest) BatchResult {
	result := BatchResult{URL: req.TargetURL, ProcessedAt: time.Now()}
	startTime := time.Now()

	outcome, err := br.runner.Run(ctx, req)
	result.Duration = time.Since(startTime).Seconds()
	if outcome != nil && outcome.Job != nil {
		result.JobID = outcome.Job.ID
		result.Stats = outcome.Job.Stats
	}
	if err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	result.Artifact = outcome.Artifact
	return result
}

// printSummary 打印批量摘要
func printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量镜像摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	if summary.SkippedCount > 0 {
		utils.Infof("⏭️  未执行: %d", summary.SkippedCount)
	}
	utils.Infof("📦 总文件数: %d", summary.TotalFetched)
	utils.Infof("📦 总大小: %.2f MB", float64(summary.TotalSize)/(1024*1024))
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的URL:")
		for _, result := range summary.Results {
			if result.URL != "" && !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}

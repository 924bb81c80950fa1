package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/store"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
)

// OutputFinalizer 交付产物并清理任务工作目录
type OutputFinalizer struct {
	store       store.ResultStore
	keepWorkDir bool
}

// NewOutputFinalizer 创建交付器
func NewOutputFinalizer(results store.ResultStore, keepWorkDir bool) *OutputFinalizer {
	return &OutputFinalizer{store: results, keepWorkDir: keepWorkDir}
}

// Deliver 生成产物句柄并写入结果存储, 然后删除工作目录
// 清理失败只记录日志
func (f *OutputFinalizer) Deliver(ctx context.Context, job *models.CrawlJob, artifactPath string) (*models.Artifact, error) {
	info, err := os.Stat(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("读取产物信息失败: %w", err)
	}

	artifact := &models.Artifact{
		JobID:       job.ID,
		Path:        artifactPath,
		Size:        info.Size(),
		Format:      job.Format,
		DeliveredAt: time.Now(),
	}
	job.Status = models.JobDelivered

	if err := f.store.PutResult(ctx, models.JobResult{
		JobID:     job.ID,
		TargetURL: job.TargetURL,
		Status:    models.JobDelivered,
		Artifact:  artifact,
		Stats:     job.Stats,
		UpdatedAt: artifact.DeliveredAt,
	}); err != nil {
		utils.Warnf("写入任务结果失败 [%s]: %v", job.ID, err)
	}

	f.Cleanup(job)
	return artifact, nil
}

// Fail 记录失败结果并清理工作目录
func (f *OutputFinalizer) Fail(ctx context.Context, job *models.CrawlJob, cause error) {
	job.Status = models.JobFailed
	job.ErrorMessage = cause.Error()

	if err := f.store.PutResult(ctx, models.JobResult{
		JobID:     job.ID,
		TargetURL: job.TargetURL,
		Status:    models.JobFailed,
		Error:     cause.Error(),
		ErrorCode: models.CodeOf(cause),
		Stats:     job.Stats,
		UpdatedAt: time.Now(),
	}); err != nil {
		utils.Warnf("写入任务结果失败 [%s]: %v", job.ID, err)
	}

	f.Cleanup(job)
}

// Cleanup 删除任务工作目录
func (f *OutputFinalizer) Cleanup(job *models.CrawlJob) {
	if job.RootDir == "" {
		return
	}
	if f.keepWorkDir {
		utils.Infof("保留工作目录: %s", job.RootDir)
		return
	}
	if err := os.RemoveAll(job.RootDir); err != nil {
		cleanupErr := models.NewJobError(models.CodeCleanupFailure, "cleanup", err)
		utils.Logger.Warn().Err(cleanupErr).Str("job", job.ID).Str("dir", job.RootDir).Msg("清理工作目录失败")
		return
	}
	utils.Debugf("已删除工作目录: %s", job.RootDir)
}

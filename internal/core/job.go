package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/config"
	"github.com/RecoveryAshes/sitesnap/internal/crawlers"
	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/store"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"github.com/rs/zerolog"
)

// JobOutcome 一次任务的执行结果
type JobOutcome struct {
	Job        *models.CrawlJob
	Artifact   *models.Artifact
	Manifest   *models.ArchiveManifest
	Records    []models.ResourceRecord
	ReportPath string
}

// Runner 任务编排器
// 按状态机推进: seeded → crawling → finalizing_* → post_processing → archiving → delivered
type Runner struct {
	cfg       *config.Config
	headers   models.HeaderProvider
	results   store.ResultStore
	archiver  *Archiver
	finalizer *OutputFinalizer
	reporter  *utils.Reporter

	// OnRecord 每个资源抓取结束时回调(进度条使用), 可并发调用
	OnRecord func(models.ResourceRecord)
	// OnCrawlStart 爬取开始时回调
	OnCrawlStart func(job *models.CrawlJob)
}

// NewRunner 创建编排器
func NewRunner(cfg *config.Config, headers models.HeaderProvider, results store.ResultStore) *Runner {
	return &Runner{
		cfg:       cfg,
		headers:   headers,
		results:   results,
		archiver:  NewArchiver(),
		finalizer: NewOutputFinalizer(results, cfg.Output.KeepWorkDir),
		reporter:  utils.NewReporter(cfg.Output.Dir),
	}
}

// Result 按任务ID查询结果
func (r *Runner) Result(ctx context.Context, jobID string) (models.JobResult, bool, error) {
	return r.results.GetResult(ctx, jobID)
}

// Run 执行一次镜像任务
// 只有 InvalidURL / InvalidRequest / WorkDirFailure / ArchiveFailure / ConversionFailure 会返回给调用方,
// 单个资源的失败记录在报告中
func (r *Runner) Run(ctx context.Context, req models.JobRequest) (*JobOutcome, error) {
	job, err := r.newJob(req)
	if err != nil {
		return nil, err
	}
	outcome := &JobOutcome{Job: job}
	log := utils.JobLogger(job.ID)
	startTime := time.Now()

	log.Info().Str("url", utils.SafeURL(job.TargetURL)).Str("domain", job.Domain).Str("format", string(job.Format)).
		Int("max_depth", job.Config.MaxDepth).Bool("recursive", job.Config.Recursive).
		Int("concurrency", job.Config.Concurrency).Dur("timeout", job.Config.Timeout).
		Msg("🚀 开始镜像任务")

	if err := r.createRoot(job); err != nil {
		return outcome, r.fail(ctx, job, err)
	}

	mapper := crawlers.NewOsResourceMapper(job.RootDir)
	frontier := crawlers.NewFrontier(job.Domain, job.Config)
	if job.Config.RespectRobots {
		r.loadRobots(ctx, job, frontier, log)
	}

	pool := crawlers.NewFetchPool(frontier, mapper, job.Config, crawlers.PoolOptions{
		Selectors:        r.cfg.Selectors,
		HeaderProvider:   r.headers,
		UserAgent:        r.cfg.Fetch.UserAgent,
		Monitor:          r.cfg.Resource.Monitor(),
		OnRecord:         r.OnRecord,
		ProgressInterval: r.cfg.Fetch.ProgressInterval,
	})
	if err := pool.Seed(job.TargetURL); err != nil {
		return outcome, r.fail(ctx, job, models.NewJobError(models.CodeInvalidURL, "seed", err))
	}

	// 爬取: 抓取池与超时控制器赛跑, Watch 返回时所有worker已退出
	setStatus(job, models.JobCrawling, log)
	now := time.Now()
	job.StartedAt = &now
	if r.OnCrawlStart != nil {
		r.OnCrawlStart(job)
	}

	crawlCtx, cancel := context.WithCancel(ctx)
	go pool.Run(crawlCtx)
	timedOut := NewTimeoutGovernor(job.Config.Timeout).Watch(ctx, cancel, pool.Done())
	cancel()
	frontier.Close()

	job.Stats = pool.Stats()
	job.Stats.TimedOut = timedOut
	if err := ctx.Err(); err != nil && !timedOut {
		return outcome, r.fail(ctx, job, fmt.Errorf("任务被取消: %w", err))
	}
	if timedOut {
		setStatus(job, models.JobFinalizingTimeout, log)
	} else {
		setStatus(job, models.JobFinalizingSuccess, log)
	}
	log.Info().Int("discovered", job.Stats.Discovered).Int("fetched", job.Stats.Fetched).
		Int("failed", job.Stats.Failed).Int64("bytes", job.Stats.TotalBytes).Msg("爬取结束")

	// 后处理: 链接重写 + 水印
	setStatus(job, models.JobPostProcessing, log)
	outcome.Records = pool.Records()
	job.Stats.Rewritten = crawlers.NewLinkRewriter(mapper, outcome.Records, r.cfg.Selectors).RewriteAll()
	if r.cfg.Watermark.Enabled {
		n, err := NewWatermarker(mapper.Fs(), r.cfg.Watermark.Policy()).Apply(".")
		if err != nil {
			return outcome, r.fail(ctx, job, models.NewJobError(models.CodeWorkDirFailure, "watermark", err))
		}
		job.Stats.Watermarked = n
	}

	// 打包或转换
	setStatus(job, models.JobArchiving, log)
	outputPath := filepath.Join(r.cfg.Output.Dir, ArchiveName(job))
	if job.Format == models.FormatZip {
		manifest, err := r.archiver.Archive(ctx, mapper.Fs(), ".", outputPath)
		if err != nil {
			return outcome, r.fail(ctx, job, err)
		}
		outcome.Manifest = manifest
	} else if err := r.convert(ctx, job, pool, outputPath); err != nil {
		return outcome, r.fail(ctx, job, err)
	}

	job.Stats.Duration = time.Since(startTime).Seconds()
	completed := time.Now()
	job.CompletedAt = &completed

	artifact, err := r.finalizer.Deliver(context.WithoutCancel(ctx), job, outputPath)
	if err != nil {
		return outcome, r.fail(ctx, job, models.NewJobError(models.CodeArchiveFailure, "deliver", err))
	}
	outcome.Artifact = artifact
	log.Info().Str("status", string(job.Status)).Msg("状态变更")

	if r.cfg.Output.Report {
		reportPath, err := r.reporter.GenerateReport(&models.CrawlReport{
			Job:       job,
			Resources: outcome.Records,
			Manifest:  outcome.Manifest,
			Artifact:  artifact,
			StartTime: startTime,
			EndTime:   completed,
		})
		if err != nil {
			log.Warn().Err(err).Msg("生成报告失败")
		}
		outcome.ReportPath = reportPath
	}

	log.Info().Str("artifact", artifact.Path).Int64("size", artifact.Size).
		Bool("timed_out", job.Stats.TimedOut).Float64("duration", job.Stats.Duration).
		Msg("✅ 任务完成")
	return outcome, nil
}

// newJob 校验请求并创建任务
func (r *Runner) newJob(req models.JobRequest) (*models.CrawlJob, error) {
	if err := models.ValidateURL(req.TargetURL); err != nil {
		return nil, models.NewJobError(models.CodeInvalidURL, "validate", err)
	}
	domain, err := crawlers.DomainOf(req.TargetURL)
	if err != nil {
		return nil, models.NewJobError(models.CodeInvalidURL, "validate", err)
	}

	formatName := string(req.Format)
	if formatName == "" {
		formatName = r.cfg.Output.Format
	}
	format, err := models.ParseOutputFormat(formatName)
	if err != nil {
		return nil, models.NewJobError(models.CodeInvalidRequest, "validate", err)
	}

	job, err := models.NewCrawlJob(req.TargetURL, domain, format, req.Apply(r.cfg.Crawl))
	if err != nil {
		return nil, models.NewJobError(models.CodeInvalidRequest, "validate", err)
	}
	return job, nil
}

// createRoot 创建任务独占的根目录, 已存在时失败
func (r *Runner) createRoot(job *models.CrawlJob) error {
	if err := os.MkdirAll(r.cfg.Output.WorkDir, 0755); err != nil {
		return models.NewJobError(models.CodeWorkDirFailure, "workdir", err)
	}
	root := filepath.Join(r.cfg.Output.WorkDir, job.ID)
	if err := os.Mkdir(root, 0755); err != nil {
		return models.NewJobError(models.CodeWorkDirFailure, "workdir", err)
	}
	job.RootDir = root
	utils.Debugf("任务目录: %s", root)
	return nil
}

// loadRobots 加载robots.txt, 失败时放行所有URL
func (r *Runner) loadRobots(ctx context.Context, job *models.CrawlJob, frontier *crawlers.Frontier, log zerolog.Logger) {
	seed, err := crawlers.ParseAbsolute(job.TargetURL)
	if err != nil {
		return
	}
	client := &http.Client{Timeout: job.Config.RequestTimeout}
	policy, err := crawlers.FetchRobots(ctx, client, seed, r.cfg.Fetch.UserAgent)
	if err != nil {
		log.Warn().Err(err).Msg("加载robots.txt失败, 不做限制")
		return
	}
	frontier.SetRobots(policy)
}

// convert 将入口文档转换为PDF/Word
func (r *Runner) convert(ctx context.Context, job *models.CrawlJob, pool *crawlers.FetchPool, outputPath string) error {
	entry, ok := pool.Record(job.TargetURL)
	if !ok || entry.Status != models.StatusFetched || entry.Kind != models.KindDocument {
		return models.NewJobError(models.CodeConversionFailure, "convert",
			fmt.Errorf("入口文档未成功抓取: %s", job.TargetURL))
	}

	converter, err := NewConverter(job.Format, r.cfg.Convert.PandocPath, r.cfg.Convert.BrowserPath, r.cfg.Convert.Timeout)
	if err != nil {
		return models.NewJobError(models.CodeConversionFailure, "convert", err)
	}
	entryPath := filepath.Join(job.RootDir, filepath.FromSlash(entry.LocalPath))
	if err := converter.Convert(ctx, entryPath, outputPath); err != nil {
		return models.NewJobError(models.CodeConversionFailure, "convert", err)
	}
	utils.Infof("📄 转换完成: %s", outputPath)
	return nil
}

// fail 记录失败并清理
func (r *Runner) fail(ctx context.Context, job *models.CrawlJob, err error) error {
	log := utils.JobLogger(job.ID)
	log.Error().Err(err).Str("stage", string(job.Status)).Msg("❌ 任务失败")
	r.finalizer.Fail(context.WithoutCancel(ctx), job, err)
	return err
}

// setStatus 状态变更并记录日志
func setStatus(job *models.CrawlJob, status models.JobStatus, log zerolog.Logger) {
	job.Status = status
	log.Info().Str("status", string(status)).Msg("状态变更")
}

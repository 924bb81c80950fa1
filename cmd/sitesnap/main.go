package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/config"
	"github.com/RecoveryAshes/sitesnap/internal/core"
	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/store"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	headersFile    string
	validateConfig bool

	// 任务参数
	targetURL   string
	urlFile     string
	format      string
	depth       int
	recursive   bool
	concurrency int
	timeout     time.Duration
	outputDir   string
	keepWorkDir bool
	noProgress  bool

	// 批量处理参数
	batchConcurrency int
	continueOnError  bool
)

// appConfig 在 PersistentPreRunE 中加载
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "sitesnap",
	Short: "网站镜像与打包工具",
	Long: `SiteSnap - 将网站镜像到本地并打包交付

从一个入口URL出发, 在同一域名内并发抓取页面和静态资源, 支持:
  • 深度限制与非递归模式
  • 全局超时, 超时后交付已抓取的部分
  • 链接重写, 离线浏览
  • ZIP / PDF / Word 三种产物格式
  • 批量URL处理
  • 自定义HTTP请求头

示例:
  # 镜像整站并打包为ZIP
  sitesnap -u https://example.com

  # 只抓取入口页及其直接引用, 输出PDF
  sitesnap -u https://example.com/docs --recursive=false -F pdf

  # 自定义请求头
  sitesnap -u https://example.com -H "Cookie: session=abc"

  # 查询任务结果
  sitesnap result <任务ID>

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadAppConfig,
	RunE:              runMirror,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SiteSnap %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "查询任务结果",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := store.New(appConfig.Store.Options())
		if err != nil {
			return err
		}
		defer results.Close()

		res, ok, err := results.GetResult(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("查询任务结果失败: %w", err)
		}
		if !ok {
			return fmt.Errorf("任务不存在: %s", args[0])
		}
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// loadAppConfig 加载配置, 合并命令行参数并初始化日志
func loadAppConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	if err := ValidateFlags(cmd, targetURL, format, depth, concurrency, timeout); err != nil {
		return err
	}
	cfg.MergeCLIFlags(jobRequest(cmd, ""), logLevel)
	if cmd.Flags().Changed("output") {
		cfg.Output.Dir = outputDir
	}
	if cmd.Flags().Changed("keep-workdir") {
		cfg.Output.KeepWorkDir = keepWorkDir
	}
	if cmd.Flags().Changed("batch-concurrency") {
		cfg.Batch.Concurrency = batchConcurrency
	}
	if cmd.Flags().Changed("continue-on-error") {
		cfg.Batch.ContinueOnError = continueOnError
	}
	if headersFile != "" {
		cfg.Headers.File = headersFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logConfig := cfg.Logging.LogConfig()
	// 单任务显示进度条时, 控制台只输出警告及以上
	if targetURL != "" && !noProgress && !verbose && logConfig.ConsoleLevel == "" {
		logConfig.ConsoleLevel = "warn"
	}
	if err := utils.InitLogger(logConfig); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	if verbose {
		utils.Info("详细模式已启用")
	}

	appConfig = cfg
	return nil
}

// jobRequest 只有显式设置的参数才覆盖配置
func jobRequest(cmd *cobra.Command, url string) models.JobRequest {
	req := models.JobRequest{TargetURL: url}
	flags := cmd.Flags()
	if flags.Changed("format") {
		req.Format = models.OutputFormat(format)
	}
	if flags.Changed("depth") {
		req.MaxDepth = &depth
	}
	if flags.Changed("recursive") {
		req.Recursive = &recursive
	}
	if flags.Changed("concurrency") {
		req.Concurrency = &concurrency
	}
	if flags.Changed("timeout") {
		req.Timeout = timeout
	}
	return req
}

func runMirror(cmd *cobra.Command, args []string) error {
	headerManager, err := core.NewHeaderManager(appConfig.Headers.File, appConfig.Headers.Values, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return printHeaderValidation(headerManager)
	}

	if targetURL == "" && urlFile == "" {
		return cmd.Help()
	}

	// Ctrl+C 取消任务, 工作目录由任务自身清理
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := store.New(appConfig.Store.Options())
	if err != nil {
		return err
	}
	defer results.Close()

	runner := core.NewRunner(appConfig, headerManager, results)

	if urlFile != "" {
		return runBatch(ctx, cmd, runner)
	}

	bar := attachProgress(runner)
	outcome, err := runner.Run(ctx, models.JobRequest{TargetURL: targetURL})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		if outcome != nil && outcome.Job != nil {
			utils.Errorf("任务 %s 失败 [%s]", outcome.Job.ID, models.CodeOf(err))
		}
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("任务已取消")
		}
		return fmt.Errorf("镜像失败: %w", err)
	}

	printOutcome(outcome)
	utils.Info("✨ 镜像任务完成!")
	return nil
}

// runBatch 批量模式, 每个URL一个任务
func runBatch(ctx context.Context, cmd *cobra.Command, runner *core.Runner) error {
	urls, err := utils.ReadURLsFromFile(urlFile)
	if err != nil {
		return fmt.Errorf("读取URL文件失败: %w", err)
	}

	reqs := make([]models.JobRequest, 0, len(urls))
	for _, u := range urls {
		reqs = append(reqs, models.JobRequest{TargetURL: u})
	}

	batch := core.NewBatchRunner(runner, appConfig.Batch.Concurrency, appConfig.Batch.ContinueOnError)
	summary, err := batch.RunBatch(ctx, reqs)
	if err != nil {
		return fmt.Errorf("批量镜像失败: %w", err)
	}
	if summary.FailCount > 0 {
		utils.Warnf("批量镜像完成, %d 个URL失败", summary.FailCount)
		return nil
	}
	utils.Info("✨ 批量镜像任务完成!")
	return nil
}

// attachProgress 单任务模式下显示抓取进度
func attachProgress(runner *core.Runner) *progressbar.ProgressBar {
	if noProgress {
		return nil
	}
	bar := utils.NewProgressBar(-1, "抓取资源")
	runner.OnRecord = func(rec models.ResourceRecord) {
		_ = bar.Add(1)
	}
	return bar
}

// printHeaderValidation 显示合并后的头部(脱敏)
func printHeaderValidation(hm *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	safeHeaders := hm.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

func printOutcome(outcome *core.JobOutcome) {
	job := outcome.Job
	stats := job.Stats
	fmt.Println("==================================================")
	fmt.Println("📊 镜像统计")
	fmt.Println("==================================================")
	fmt.Printf("🆔 任务ID: %s\n", job.ID)
	fmt.Printf("✅ 发现URL数: %d\n", stats.Discovered)
	fmt.Printf("✅ 抓取成功: %d\n", stats.Fetched)
	fmt.Printf("❌ 抓取失败: %d\n", stats.Failed)
	fmt.Printf("🔗 重写文件: %d\n", stats.Rewritten)
	fmt.Printf("🏷️  水印文件: %d\n", stats.Watermarked)
	if stats.TimedOut {
		fmt.Println("⏰ 已超时, 产物只包含超时前抓取的内容")
	}
	fmt.Printf("📦 产物: %s (%.2f MB)\n", outcome.Artifact.Path, float64(outcome.Artifact.Size)/(1024*1024))
	if outcome.ReportPath != "" {
		fmt.Printf("📝 报告: %s\n", outcome.ReportPath)
	}
	fmt.Printf("⏱️  总耗时: %.2f秒\n", stats.Duration)
	fmt.Println("==================================================")
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&headersFile, "headers-file", "", "HTTP头部配置文件路径 (YAML)")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证HTTP头部配置")

	// 任务参数
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "入口URL (必需,除非使用 --url-file)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	rootCmd.Flags().StringVarP(&format, "format", "F", "zip", "产物格式 (zip|pdf|word)")
	rootCmd.Flags().IntVarP(&depth, "depth", "d", models.DefaultMaxDepth, "最大深度, -1 表示不限制")
	rootCmd.Flags().BoolVar(&recursive, "recursive", true, "递归展开非入口页面中的引用")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", models.DefaultConcurrency, "并发抓取数")
	rootCmd.Flags().DurationVar(&timeout, "timeout", models.DefaultTimeout, "全局超时, 超时后交付已抓取的部分")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "output", "产物输出目录")
	rootCmd.Flags().BoolVar(&keepWorkDir, "keep-workdir", false, "交付后保留工作目录")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")

	// 批量处理参数
	rootCmd.Flags().IntVar(&batchConcurrency, "batch-concurrency", 2, "批量模式同时执行的任务数")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	rootCmd.AddCommand(versionCmd, resultCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

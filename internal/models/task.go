package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobStatus 任务状态机
// seeded → crawling → finalizing_success|finalizing_timeout → post_processing → archiving → delivered
// 任意阶段发生不可恢复错误 → failed
type JobStatus string

const (
	JobSeeded            JobStatus = "seeded"             // 已创建,入口URL已入队
	JobCrawling          JobStatus = "crawling"           // 爬取中
	JobFinalizingSuccess JobStatus = "finalizing_success" // 队列耗尽,正常收尾
	JobFinalizingTimeout JobStatus = "finalizing_timeout" // 全局超时,强制收尾
	JobPostProcessing    JobStatus = "post_processing"    // 链接重写+水印
	JobArchiving         JobStatus = "archiving"          // 打包/转换
	JobDelivered         JobStatus = "delivered"          // 已交付
	JobFailed            JobStatus = "failed"             // 失败
)

// OutputFormat 产物格式
type OutputFormat string

const (
	FormatZip  OutputFormat = "zip"
	FormatPDF  OutputFormat = "pdf"
	FormatWord OutputFormat = "word"
)

// Extension 返回产物文件扩展名
func (f OutputFormat) Extension() string {
	switch f {
	case FormatPDF:
		return ".pdf"
	case FormatWord:
		return ".docx"
	default:
		return ".zip"
	}
}

// ParseOutputFormat 解析产物格式(不区分大小写)
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatZip, "":
		return FormatZip, nil
	case FormatPDF:
		return FormatPDF, nil
	case FormatWord, "docx":
		return FormatWord, nil
	default:
		return "", fmt.Errorf("不支持的输出格式: %s (有效值: zip, pdf, word)", s)
	}
}

const (
	// DefaultConcurrency 默认并发worker数
	DefaultConcurrency = 20
	// DefaultMaxDepth 默认最大深度
	DefaultMaxDepth = 50
	// DefaultTimeout 默认全局超时
	DefaultTimeout = 5 * time.Minute
	// DefaultRequestTimeout 单个请求默认超时
	DefaultRequestTimeout = 30 * time.Second
)

// CrawlConfig 爬取配置
// Recursive 与 MaxDepth 是两个独立的开关,互不推导
type CrawlConfig struct {
	MaxDepth       int           `json:"max_depth" mapstructure:"max_depth"`             // 最大深度, <0 表示不限制
	Recursive      bool          `json:"recursive" mapstructure:"recursive"`             // 是否展开非入口页面中的引用
	Concurrency    int           `json:"concurrency" mapstructure:"concurrency"`         // 并发worker数
	Timeout        time.Duration `json:"timeout" mapstructure:"timeout"`                 // 全局超时
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"` // 单请求超时
	MaxBodySize    int           `json:"max_body_size" mapstructure:"max_body_size"`     // 响应体上限(字节)
	RespectRobots  bool          `json:"respect_robots" mapstructure:"respect_robots"`   // 是否遵守robots.txt
	InsecureTLS    bool          `json:"insecure_tls" mapstructure:"insecure_tls"`       // 跳过证书验证
}

// DefaultCrawlConfig 默认爬取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		MaxDepth:       DefaultMaxDepth,
		Recursive:      true,
		Concurrency:    DefaultConcurrency,
		Timeout:        DefaultTimeout,
		RequestTimeout: DefaultRequestTimeout,
		MaxBodySize:    50 * 1024 * 1024,
	}
}

// DepthBounded 是否启用深度限制
func (c *CrawlConfig) DepthBounded() bool {
	return c.MaxDepth >= 0
}

// CanExpand 深度为depth的资源是否展开其引用
func (c *CrawlConfig) CanExpand(depth int) bool {
	if depth < 0 {
		return false
	}
	if !c.Recursive && depth > 0 {
		return false
	}
	if c.DepthBounded() && depth > c.MaxDepth {
		return false
	}
	return true
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 256 {
		return fmt.Errorf("并发数必须在1-256之间,当前值: %d", c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("全局超时必须大于0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("请求超时必须大于0")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("响应体上限不能为负数")
	}
	return nil
}

// JobRequest 调用方提交的任务请求
// 可选字段为nil时使用配置默认值
type JobRequest struct {
	TargetURL   string        `json:"target_url"`
	Format      OutputFormat  `json:"format"`
	Concurrency *int          `json:"concurrency,omitempty"`
	MaxDepth    *int          `json:"max_depth,omitempty"`
	Recursive   *bool         `json:"recursive,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Apply 将请求中的可选字段覆盖到基础配置上
func (r JobRequest) Apply(base CrawlConfig) CrawlConfig {
	cfg := base
	if r.Concurrency != nil {
		cfg.Concurrency = *r.Concurrency
	}
	if r.MaxDepth != nil {
		cfg.MaxDepth = *r.MaxDepth
	}
	if r.Recursive != nil {
		cfg.Recursive = *r.Recursive
	}
	if r.Timeout > 0 {
		cfg.Timeout = r.Timeout
	}
	return cfg
}

// JobStats 任务统计
type JobStats struct {
	Discovered  int     `json:"discovered"`   // 入队URL数
	Fetched     int     `json:"fetched"`      // 成功抓取数
	Failed      int     `json:"failed"`       // 失败数
	TotalBytes  int64   `json:"total_bytes"`  // 已写入字节数
	Watermarked int     `json:"watermarked"`  // 加水印文件数
	Rewritten   int     `json:"rewritten"`    // 重写链接的文件数
	TimedOut    bool    `json:"timed_out"`    // 是否因超时收尾
	Duration    float64 `json:"duration"`     // 总耗时(秒)
}

// CrawlJob 一次镜像任务
type CrawlJob struct {
	ID          string       `json:"id"`
	TargetURL   string       `json:"target_url"`
	Domain      string       `json:"domain"`
	Format      OutputFormat `json:"format"`
	Config      CrawlConfig  `json:"config"`
	Status      JobStatus    `json:"status"`
	RootDir     string       `json:"root_dir"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Stats       JobStats     `json:"stats"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewCrawlJob 创建新任务
// domain 为规范化后的主机名(由调用方通过域名门计算)
func NewCrawlJob(targetURL, domain string, format OutputFormat, config CrawlConfig) (*CrawlJob, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CrawlJob{
		ID:        generateID(),
		TargetURL: targetURL,
		Domain:    domain,
		Format:    format,
		Config:    config,
		Status:    JobSeeded,
		CreatedAt: time.Now(),
	}, nil
}

// ToJSON 序列化为JSON
func (j *CrawlJob) ToJSON() ([]byte, error) {
	return json.MarshalIndent(j, "", "  ")
}

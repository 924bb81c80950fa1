package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/crawlers"
	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/store"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 例如 SITESNAP_CRAWL_CONCURRENCY
const EnvPrefix = "SITESNAP"

// DefaultMarker 默认水印
const DefaultMarker = "<!-- Captured by SiteSnap -->\n"

// Config 应用程序配置
type Config struct {
	Crawl     models.CrawlConfig          `mapstructure:"crawl"`
	Fetch     FetchConfig                 `mapstructure:"fetch"`
	Watermark WatermarkConfig             `mapstructure:"watermark"`
	Output    OutputConfig                `mapstructure:"output"`
	Logging   LoggingConfig               `mapstructure:"logging"`
	Resource  ResourceConfig              `mapstructure:"resource"`
	Store     StoreConfig                 `mapstructure:"store"`
	Convert   ConvertConfig               `mapstructure:"convert"`
	Batch     BatchConfig                 `mapstructure:"batch"`
	Headers   HeadersConfig               `mapstructure:"headers"`
	Selectors []crawlers.ResourceSelector `mapstructure:"selectors"`
}

// FetchConfig 抓取客户端配置
type FetchConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// WatermarkConfig 水印配置
type WatermarkConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Marker     string   `mapstructure:"marker"`
	Extensions []string `mapstructure:"extensions"`
}

// Policy 转换为水印策略
func (w WatermarkConfig) Policy() models.WatermarkPolicy {
	return models.NewWatermarkPolicy(w.Marker, w.Extensions)
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`           // 产物目录
	WorkDir     string `mapstructure:"work_dir"`      // 任务工作目录的父目录
	Format      string `mapstructure:"format"`        // 默认产物格式
	KeepWorkDir bool   `mapstructure:"keep_work_dir"` // 交付后保留工作目录(调试用)
	Report      bool   `mapstructure:"report"`        // 生成JSON报告
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`

	ConsoleLevel string `mapstructure:"console_level"` // 为空时与level相同
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// LogConfig 转换为日志系统配置
func (l LoggingConfig) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      l.Level,
		LogDir:     l.LogDir,
		MaxSize:    l.Rotation.MaxSize,
		MaxBackups: l.Rotation.MaxBackups,
		MaxAge:     l.Rotation.MaxAge,
		Compress:   l.Rotation.Compress,

		ConsoleLevel: l.ConsoleLevel,
	}
}

// ResourceConfig 资源自适应配置
type ResourceConfig struct {
	Adaptive         bool `mapstructure:"adaptive"`
	SafetyReserveMB  int  `mapstructure:"safety_reserve_mb"`
	WorkerMemoryMB   int  `mapstructure:"worker_memory_mb"`
	CPULoadThreshold int  `mapstructure:"cpu_load_threshold"`
}

// Monitor 按配置创建资源检查器, 未启用时返回nil
func (r ResourceConfig) Monitor() *crawlers.ResourceMonitor {
	if !r.Adaptive {
		return nil
	}
	return crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
		SafetyReserveMemory: int64(r.SafetyReserveMB) * 1024 * 1024,
		WorkerMemoryUsage:   int64(r.WorkerMemoryMB) * 1024 * 1024,
		CPULoadThreshold:    r.CPULoadThreshold,
	})
}

// StoreConfig 结果存储配置
type StoreConfig struct {
	Backend string      `mapstructure:"backend"` // memory | redis
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis连接配置
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Options 转换为存储后端参数
func (s StoreConfig) Options() store.Options {
	return store.Options{
		Backend:       s.Backend,
		RedisAddr:     s.Redis.Addr,
		RedisPassword: s.Redis.Password,
		RedisDB:       s.Redis.DB,
		RedisPrefix:   s.Redis.Prefix,
		RedisTTL:      s.Redis.TTL,
	}
}

// ConvertConfig 文档转换配置
type ConvertConfig struct {
	PandocPath  string        `mapstructure:"pandoc_path"`
	BrowserPath string        `mapstructure:"browser_path"` // 为空时由rod自动下载/查找
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BatchConfig 批量模式配置
type BatchConfig struct {
	Concurrency     int  `mapstructure:"concurrency"`
	ContinueOnError bool `mapstructure:"continue_on_error"`
}

// HeadersConfig 自定义请求头配置
type HeadersConfig struct {
	File   string            `mapstructure:"file"`
	Values map[string]string `mapstructure:"values"`
}

// LoadConfig 加载配置文件
// configPath 为空时按 ./configs, ., $HOME/.sitesnap 顺序搜索 config.yaml,
// 找不到文件时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sitesnap"))
		}
	}

	setDefaults(v)

	// SITESNAP_CRAWL_MAX_DEPTH 覆盖 crawl.max_depth
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置失败: %w", err)}
	}
	if len(config.Selectors) == 0 {
		config.Selectors = crawlers.DefaultSelectors
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	crawl := models.DefaultCrawlConfig()
	v.SetDefault("crawl.max_depth", crawl.MaxDepth)
	v.SetDefault("crawl.recursive", crawl.Recursive)
	v.SetDefault("crawl.concurrency", crawl.Concurrency)
	v.SetDefault("crawl.timeout", crawl.Timeout)
	v.SetDefault("crawl.request_timeout", crawl.RequestTimeout)
	v.SetDefault("crawl.max_body_size", crawl.MaxBodySize)
	v.SetDefault("crawl.respect_robots", false)
	v.SetDefault("crawl.insecure_tls", false)

	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.progress_interval", 5*time.Second)

	v.SetDefault("watermark.enabled", true)
	v.SetDefault("watermark.marker", DefaultMarker)
	v.SetDefault("watermark.extensions", []string{".html", ".htm"})

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.work_dir", filepath.Join(os.TempDir(), "sitesnap"))
	v.SetDefault("output.format", string(models.FormatZip))
	v.SetDefault("output.keep_work_dir", false)
	v.SetDefault("output.report", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("resource.adaptive", false)
	v.SetDefault("resource.safety_reserve_mb", 512)
	v.SetDefault("resource.worker_memory_mb", 16)
	v.SetDefault("resource.cpu_load_threshold", 90)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "sitesnap:job:")
	v.SetDefault("store.redis.ttl", 24*time.Hour)

	v.SetDefault("convert.pandoc_path", "pandoc")
	v.SetDefault("convert.timeout", 2*time.Minute)

	v.SetDefault("batch.concurrency", 2)
	v.SetDefault("batch.continue_on_error", true)

	v.SetDefault("headers.file", "")
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return fmt.Errorf("crawl配置无效: %w", err)
	}
	if _, err := models.ParseOutputFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output配置无效: %w", err)
	}
	if err := crawlers.ValidateSelectors(c.Selectors); err != nil {
		return fmt.Errorf("selectors配置无效: %w", err)
	}
	if c.Watermark.Enabled && c.Watermark.Marker == "" {
		return fmt.Errorf("watermark配置无效: 启用水印时marker不能为空")
	}
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("store配置无效: 未知的后端 %q (有效值: memory, redis)", c.Store.Backend)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch配置无效: 并发数必须大于0")
	}
	return nil
}

// MergeCLIFlags 合并命令行参数到配置, 命令行参数优先于配置文件
// 未设置的参数为nil
func (c *Config) MergeCLIFlags(req models.JobRequest, logLevel string) {
	c.Crawl = req.Apply(c.Crawl)
	if req.Format != "" {
		c.Output.Format = string(req.Format)
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
}

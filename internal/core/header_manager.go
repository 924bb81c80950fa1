package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/sitesnap/internal/config"
	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
)

// HeaderManager 管理HTTP请求头部
// 优先级: 内置默认 < 头部配置文件 < 主配置 headers.values < 命令行
// 实现 models.HeaderProvider, 首次 GetHeaders 时加载并验证, 结果缓存
type HeaderManager struct {
	defaults http.Header
	file     http.Header
	values   http.Header
	cli      http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader // 未指定头部文件时为nil

	once   sync.Once
	merged http.Header
	err    error
}

// NewHeaderManager 创建头部管理器
// headersFile 为空时不读取头部配置文件; cliHeaders 每项格式为 "Name: Value"
func NewHeaderManager(headersFile string, values map[string]string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:  getDefaultHeaders(),
		file:      make(http.Header),
		values:    make(http.Header),
		cli:       make(http.Header),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}
	if headersFile != "" {
		hm.configLoader = config.NewHeaderConfigLoader(headersFile)
	}
	for name, value := range values {
		hm.values.Set(name, value)
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{config.DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,*/*;q=0.8"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// loadFile 读取头部配置文件
func (hm *HeaderManager) loadFile() error {
	if hm.configLoader == nil {
		return nil
	}
	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		return err
	}
	for name, value := range headerConfig.Headers {
		hm.file.Set(name, value)
	}
	if len(headerConfig.Headers) > 0 {
		utils.Debugf("成功加载%d个HTTP头部配置: %v", len(headerConfig.Headers), hm.redactor.Redact(hm.file))
	}
	return nil
}

// Validate 依次验证各来源的头部
func (hm *HeaderManager) Validate() error {
	sources := []struct {
		name    string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", hm.file},
		{"主配置", hm.values},
		{"命令行", hm.cli},
	}
	for _, src := range sources {
		if err := hm.validator.Validate(src.headers); err != nil {
			utils.Errorf("%s头部验证失败: %v", src.name, err)
			return err
		}
	}
	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// GetMergedHeaders 按优先级合并头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.file, hm.values, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(func() {
		if err := hm.loadFile(); err != nil {
			hm.err = err
			return
		}
		if err := hm.Validate(); err != nil {
			hm.err = err
			return
		}
		hm.merged = hm.GetMergedHeaders()
	})
	if hm.err != nil {
		return nil, hm.err
	}
	return hm.merged.Clone(), nil
}

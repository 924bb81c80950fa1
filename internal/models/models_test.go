package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://example.com/page", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
		{"无协议", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("错误应包装ErrInvalidURL, 得到: %v", err)
			}
		})
	}
}

func TestCrawlConfig_CanExpand(t *testing.T) {
	tests := []struct {
		name      string
		maxDepth  int
		recursive bool
		depth     int
		want      bool
	}{
		{"非递归只展开入口", 1, false, 0, true},
		{"非递归不展开深度1", 1, false, 1, false},
		{"递归maxDepth=0只展开入口", 0, true, 0, true},
		{"递归maxDepth=0不展开深度1", 0, true, 1, false},
		{"递归maxDepth=2展开深度2", 2, true, 2, true},
		{"递归maxDepth=2不展开深度3", 2, true, 3, false},
		{"不限深度", -1, true, 100, true},
		{"负深度", -1, true, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CrawlConfig{MaxDepth: tt.maxDepth, Recursive: tt.recursive}
			if got := cfg.CanExpand(tt.depth); got != tt.want {
				t.Errorf("CanExpand(%d) = %v, 期望 %v", tt.depth, got, tt.want)
			}
		})
	}
}

func TestCrawlConfig_Validate(t *testing.T) {
	cfg := DefaultCrawlConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("默认配置应有效: %v", err)
	}

	cfg.Concurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("并发数为0应报错")
	}

	cfg = DefaultCrawlConfig()
	cfg.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("超时为0应报错")
	}
}

func TestJobRequest_Apply(t *testing.T) {
	depth := 1
	recursive := false
	req := JobRequest{MaxDepth: &depth, Recursive: &recursive, Timeout: 100 * time.Millisecond}

	cfg := req.Apply(DefaultCrawlConfig())
	if cfg.MaxDepth != 1 || cfg.Recursive {
		t.Errorf("可选字段未覆盖: %+v", cfg)
	}
	if cfg.Timeout != 100*time.Millisecond {
		t.Errorf("Timeout = %v, 期望 100ms", cfg.Timeout)
	}
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("未设置的字段应保持默认值, 得到 %d", cfg.Concurrency)
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"zip", FormatZip, false},
		{"PDF", FormatPDF, false},
		{"word", FormatWord, false},
		{"docx", FormatWord, false},
		{"", FormatZip, false},
		{"epub", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, 期望 %q", tt.in, got, tt.want)
		}
	}
}

func TestNewCrawlJob(t *testing.T) {
	job, err := NewCrawlJob("https://example.com", "example.com", FormatZip, DefaultCrawlConfig())
	if err != nil {
		t.Fatalf("NewCrawlJob() error = %v", err)
	}
	if job.ID == "" {
		t.Error("任务ID不应为空")
	}
	if job.Status != JobSeeded {
		t.Errorf("Status = %v, 期望 %v", job.Status, JobSeeded)
	}

	other, _ := NewCrawlJob("https://example.com", "example.com", FormatZip, DefaultCrawlConfig())
	if other.ID == job.ID {
		t.Error("两个任务的ID不应相同")
	}
}

func TestJobError(t *testing.T) {
	cause := fmt.Errorf("磁盘已满")
	err := fmt.Errorf("包装: %w", NewJobError(CodeArchiveFailure, "archive", cause))

	if !errors.Is(err, ErrArchiveFailure) {
		t.Error("errors.Is 应匹配 ErrArchiveFailure")
	}
	if errors.Is(err, ErrInvalidURL) {
		t.Error("errors.Is 不应匹配 ErrInvalidURL")
	}
	if !errors.Is(err, cause) {
		t.Error("应能解包到底层错误")
	}
	if CodeOf(err) != CodeArchiveFailure {
		t.Errorf("CodeOf = %q", CodeOf(err))
	}
}

func TestKindClassification(t *testing.T) {
	if k := KindFromContentType("text/html; charset=utf-8"); k != KindDocument {
		t.Errorf("text/html 分类为 %q", k)
	}
	if k := KindFromContentType("application/javascript"); k != KindScript {
		t.Errorf("javascript 分类为 %q", k)
	}
	if k := KindFromContentType(""); k != "" {
		t.Errorf("空Content-Type应返回空分类, 得到 %q", k)
	}
	if k := KindFromExtension("/static/app.CSS"); k != KindStylesheet {
		t.Errorf(".CSS 分类为 %q", k)
	}
	if k := KindFromExtension("/about"); k != "" {
		t.Errorf("无扩展名应返回空分类, 得到 %q", k)
	}
}

func TestWatermarkPolicy(t *testing.T) {
	p := NewWatermarkPolicy("<!-- mark -->", []string{"html", ".HTM", " "})
	if !p.Applies("a/b/index.html") || !p.Applies("x.htm") {
		t.Error("html/htm 应适用水印")
	}
	if p.Applies("style.css") {
		t.Error("css 不应适用水印")
	}
}

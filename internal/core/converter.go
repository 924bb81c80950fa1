package core

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Converter 将镜像的入口文档转换为单文件产物
// entryPath 为本地磁盘上的入口HTML绝对路径
type Converter interface {
	Convert(ctx context.Context, entryPath, outputPath string) error
}

// NewConverter 按产物格式选择转换器, zip 不需要转换器
func NewConverter(format models.OutputFormat, pandocPath, browserPath string, timeout time.Duration) (Converter, error) {
	switch format {
	case models.FormatPDF:
		return &RodPDFConverter{BrowserPath: browserPath, Timeout: timeout}, nil
	case models.FormatWord:
		return &PandocConverter{Path: pandocPath, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("格式 %s 不需要转换器", format)
	}
}

// RodPDFConverter 使用无头Chromium打印PDF
type RodPDFConverter struct {
	BrowserPath string // 为空时由launcher查找或下载
	Timeout     time.Duration
}

// Convert 实现 Converter
func (c *RodPDFConverter) Convert(ctx context.Context, entryPath, outputPath string) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	l := launcher.New().Context(ctx).Headless(true)
	if c.BrowserPath != "" {
		l = l.Bin(c.BrowserPath)
	}
	// 本地文件中可能引用了https资源, 跳过证书验证
	l = l.Set("ignore-certificate-errors")
	defer l.Kill()

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("连接浏览器失败: %w", err)
	}
	defer browser.Close()

	fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(entryPath)}).String()
	page, err := browser.Page(proto.TargetCreateTarget{URL: fileURL})
	if err != nil {
		return fmt.Errorf("打开页面失败: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		utils.Warnf("等待页面加载失败, 继续打印: %v", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{PrintBackground: true})
	if err != nil {
		return fmt.Errorf("打印PDF失败: %w", err)
	}
	return writeArtifact(outputPath, stream)
}

// PandocConverter 调用pandoc生成docx
type PandocConverter struct {
	Path    string
	Timeout time.Duration
}

// Available 检查pandoc是否可用
func (c *PandocConverter) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, c.Path, "--version").Run(); err != nil {
		utils.Debugf("pandoc检测失败: %v", err)
		return false
	}
	return true
}

// Convert 实现 Converter
// 工作目录设为入口文档所在目录, 使相对路径的图片可被解析
func (c *PandocConverter) Convert(ctx context.Context, entryPath, outputPath string) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	absOut, err := filepath.Abs(outputPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absOut), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Path, filepath.Base(entryPath), "-f", "html", "-o", absOut)
	cmd.Dir = filepath.Dir(entryPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(absOut)
		return fmt.Errorf("pandoc执行失败: %w, output: %s", err, string(output))
	}
	return nil
}

// writeArtifact 通过临时文件写入产物
func writeArtifact(outputPath string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".sitesnap-*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("写入产物失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("重命名产物失败: %w", err)
	}
	return nil
}

package core

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/models"
)

func TestNewConverter(t *testing.T) {
	tests := []struct {
		format  models.OutputFormat
		want    string
		wantErr bool
	}{
		{models.FormatPDF, "*core.RodPDFConverter", false},
		{models.FormatWord, "*core.PandocConverter", false},
		{models.FormatZip, "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			c, err := NewConverter(tt.format, "pandoc", "", time.Minute)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewConverter() error = %v", err)
			}
			if err == nil {
				if got := typeName(c); got != tt.want {
					t.Errorf("转换器类型 = %s, 期望 %s", got, tt.want)
				}
			}
		})
	}
}

func typeName(c Converter) string {
	switch c.(type) {
	case *RodPDFConverter:
		return "*core.RodPDFConverter"
	case *PandocConverter:
		return "*core.PandocConverter"
	default:
		return "unknown"
	}
}

func TestPandocConverter_Missing(t *testing.T) {
	c := &PandocConverter{Path: filepath.Join(t.TempDir(), "no-such-pandoc"), Timeout: time.Second}
	if c.Available(context.Background()) {
		t.Error("不存在的pandoc不应可用")
	}

	out := filepath.Join(t.TempDir(), "out.docx")
	if err := c.Convert(context.Background(), filepath.Join(t.TempDir(), "index.html"), out); err == nil {
		t.Error("pandoc不存在时应返回错误")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("失败时不应留下产物")
	}
}

func TestPandocConverter_Convert(t *testing.T) {
	path, err := exec.LookPath("pandoc")
	if err != nil {
		t.Skip("未安装pandoc, 跳过")
	}
	dir := t.TempDir()
	entry := filepath.Join(dir, "index.html")
	if err := os.WriteFile(entry, []byte("<html><body><h1>标题</h1></body></html>"), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "site.docx")
	if err := (&PandocConverter{Path: path, Timeout: time.Minute}).Convert(context.Background(), entry, out); err != nil {
		t.Fatalf("Convert失败: %v", err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Errorf("产物无效: %v", err)
	}
}

func TestWriteArtifact(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "a.pdf")
	if err := writeArtifact(out, strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("writeArtifact失败: %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "%PDF-1.4" {
		t.Errorf("内容 = %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Errorf("不应留下临时文件: %d 项", len(entries))
	}
}

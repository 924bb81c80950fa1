package core

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

func TestArchiver_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"index.html":      "<html>首页</html>",
		"css/site.css":    "body { color: red }",
		"img/a/b/pic.png": "\x89PNG data",
		"page/index.html": "<p>page</p>",
	}
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.MkdirAll("empty/dir", 0755); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out", "site.zip")
	manifest, err := NewArchiver().Archive(context.Background(), fs, ".", out)
	if err != nil {
		t.Fatalf("Archive失败: %v", err)
	}

	wantNames := []string{"css/site.css", "img/a/b/pic.png", "index.html", "page/index.html"}
	if !reflect.DeepEqual(manifest.IncludedFiles, wantNames) {
		t.Errorf("IncludedFiles = %v, 期望 %v", manifest.IncludedFiles, wantNames)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("产物不存在: %v", err)
	}
	if manifest.TotalBytes != info.Size() {
		t.Errorf("TotalBytes = %d, 文件大小 = %d", manifest.TotalBytes, info.Size())
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("打开归档失败: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Method != zip.Deflate {
			t.Errorf("%s 压缩方法 = %d, 期望 Deflate", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("读取条目失败: %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != files[f.Name] {
			t.Errorf("%s 内容不一致: %q", f.Name, data)
		}
	}
	if !reflect.DeepEqual(names, wantNames) {
		t.Errorf("条目顺序 = %v, 期望 %v", names, wantNames)
	}

	// 不留临时文件
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Errorf("输出目录应只有产物文件, 得到 %d 项", len(entries))
	}
}

func TestArchiver_FailureRemovesPartial(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "a.html", []byte("a"), 0644)

	outDir := t.TempDir()
	out := filepath.Join(outDir, "site.zip")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewArchiver().Archive(ctx, fs, ".", out)
	if !errors.Is(err, models.ErrArchiveFailure) {
		t.Fatalf("期望 ArchiveFailure, 得到 %v", err)
	}

	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("失败后不应留下部分产物: %d 项", len(entries))
	}
}

func TestArchiver_MissingRoot(t *testing.T) {
	_, err := NewArchiver().Archive(context.Background(), afero.NewMemMapFs(), "nope", filepath.Join(t.TempDir(), "x.zip"))
	if models.CodeOf(err) != models.CodeArchiveFailure {
		t.Errorf("期望 ArchiveFailure, 得到 %v", err)
	}
}

func TestArchiveName(t *testing.T) {
	job := &models.CrawlJob{ID: "abc", Domain: "127.0.0.1:8080", Format: models.FormatWord}
	if got := ArchiveName(job); got != "abc-127.0.0.1_8080.docx" {
		t.Errorf("ArchiveName() = %s", got)
	}
}

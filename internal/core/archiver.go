package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

// Archiver 将任务根目录打包为ZIP
type Archiver struct {
	level int
}

// NewArchiver 创建打包器, 使用最高压缩级别
func NewArchiver() *Archiver {
	return &Archiver{level: flate.BestCompression}
}

// Archive 打包fs中root下的所有文件到outputPath
// 条目为相对root的斜杠路径(不含root本身), 按字典序写入
// 先写临时文件再重命名, 任何失败都会删除部分产物并返回 ArchiveFailure
func (a *Archiver) Archive(ctx context.Context, fs afero.Fs, root, outputPath string) (*models.ArchiveManifest, error) {
	files, err := collectFiles(fs, root)
	if err != nil {
		return nil, models.NewJobError(models.CodeArchiveFailure, "archive", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, models.NewJobError(models.CodeArchiveFailure, "archive", fmt.Errorf("创建输出目录失败: %w", err))
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".sitesnap-*.zip.tmp")
	if err != nil {
		return nil, models.NewJobError(models.CodeArchiveFailure, "archive", fmt.Errorf("创建临时文件失败: %w", err))
	}
	tmpPath := tmp.Name()

	fail := func(err error) (*models.ArchiveManifest, error) {
		_ = tmp.Close()
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			utils.Warnf("删除未完成的归档失败 [%s]: %v", tmpPath, rmErr)
		}
		return nil, models.NewJobError(models.CodeArchiveFailure, "archive", err)
	}

	zw := zip.NewWriter(tmp)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, a.level)
	})

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := a.addFile(zw, fs, root, rel); err != nil {
			return fail(err)
		}
	}

	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("关闭归档失败: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("同步归档失败: %w", err))
	}
	info, err := tmp.Stat()
	if err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return fail(fmt.Errorf("重命名归档失败: %w", err))
	}

	utils.Infof("📦 归档完成: %s (%d 个文件, %.2f KB)", outputPath, len(files), float64(info.Size())/1024)
	return &models.ArchiveManifest{
		OutputPath:    outputPath,
		IncludedFiles: files,
		TotalBytes:    info.Size(),
	}, nil
}

// addFile 写入单个条目
func (a *Archiver) addFile(zw *zip.Writer, fs afero.Fs, root, rel string) error {
	src := filepath.Join(root, filepath.FromSlash(rel))
	info, err := fs.Stat(src)
	if err != nil {
		return fmt.Errorf("读取文件信息失败 [%s]: %w", rel, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("创建条目失败 [%s]: %w", rel, err)
	}
	header.Name = rel
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("创建条目失败 [%s]: %w", rel, err)
	}

	f, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("打开文件失败 [%s]: %w", rel, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("写入条目失败 [%s]: %w", rel, err)
	}
	return nil
}

// collectFiles 显式栈遍历root, 返回排序后的相对路径(斜杠分隔)
func collectFiles(fs afero.Fs, root string) ([]string, error) {
	var files []string
	stack := []string{""}
	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dir := filepath.Join(root, filepath.FromSlash(rel))
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			return nil, fmt.Errorf("读取目录失败 [%s]: %w", dir, err)
		}
		for _, entry := range entries {
			child := entry.Name()
			if rel != "" {
				child = rel + "/" + child
			}
			switch {
			case entry.IsDir():
				stack = append(stack, child)
			case entry.Mode().IsRegular():
				files = append(files, child)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// ArchiveName 产物文件名: <任务ID>-<域名>.<扩展名>
func ArchiveName(job *models.CrawlJob) string {
	domain := strings.NewReplacer(":", "_", "/", "_").Replace(job.Domain)
	return fmt.Sprintf("%s-%s%s", job.ID, domain, job.Format.Extension())
}

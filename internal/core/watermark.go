package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"github.com/spf13/afero"
)

// Watermarker 在匹配扩展名的文件开头插入水印
// 不做幂等检查: 对同一目录执行两次会得到两个水印
type Watermarker struct {
	fs     afero.Fs
	policy models.WatermarkPolicy
}

// NewWatermarker 创建水印处理器, fs 以任务根目录为根
func NewWatermarker(fs afero.Fs, policy models.WatermarkPolicy) *Watermarker {
	return &Watermarker{fs: fs, policy: policy}
}

// Apply 遍历root下所有普通文件并加水印, 返回处理的文件数
// 使用显式栈遍历, 不随目录深度递归
func (w *Watermarker) Apply(root string) (int, error) {
	if w.policy.MarkerText == "" || len(w.policy.Extensions) == 0 {
		return 0, nil
	}

	count := 0
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := afero.ReadDir(w.fs, dir)
		if err != nil {
			return count, fmt.Errorf("读取目录失败 [%s]: %w", dir, err)
		}
		// 逆序入栈, 按名称顺序处理
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() > entries[j].Name() })

		for _, entry := range entries {
			p := filepath.Join(dir, entry.Name())
			switch {
			case entry.IsDir():
				stack = append(stack, p)
			case entry.Mode().IsRegular() && w.policy.Applies(entry.Name()):
				if err := w.prepend(p, entry.Mode().Perm()); err != nil {
					return count, err
				}
				count++
			}
		}
	}

	utils.Debugf("水印处理完成: %d 个文件", count)
	return count, nil
}

// prepend 在文件开头写入水印
func (w *Watermarker) prepend(path string, perm os.FileMode) error {
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return fmt.Errorf("读取文件失败 [%s]: %w", path, err)
	}
	out := make([]byte, 0, len(w.policy.MarkerText)+len(data))
	out = append(out, w.policy.MarkerText...)
	out = append(out, data...)
	if err := afero.WriteFile(w.fs, path, out, perm); err != nil {
		return fmt.Errorf("写入水印失败 [%s]: %w", path, err)
	}
	return nil
}

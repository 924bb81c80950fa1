package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
// 报告写在产物旁边, 以任务ID命名, 不随工作目录一起删除
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// GenerateReport 生成任务报告, 返回主报告路径
func (r *Reporter) GenerateReport(report *models.CrawlReport) (string, error) {
	if report == nil || report.Job == nil {
		return "", fmt.Errorf("报告缺少任务信息")
	}
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	// 失败列表从记录中汇总
	report.Failed = report.Failed[:0]
	for _, rec := range report.Resources {
		if rec.Status == models.StatusFailed {
			report.Failed = append(report.Failed, models.FailedFileInfo{
				URL:       rec.RemoteURL,
				ErrorType: "fetch_failed",
				ErrorMsg:  rec.Error,
			})
		}
	}

	reportPath := filepath.Join(r.outputDir, report.Job.ID+"_report.json")
	if err := r.saveJSONReport(reportPath, report); err != nil {
		return "", err
	}

	Infof("✅ 报告已生成: %s", reportPath)
	return reportPath, nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条, max为-1时为不定长度
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

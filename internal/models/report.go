package models

import (
	"encoding/json"
	"path"
	"strings"
	"time"
)

// ArchiveManifest 打包清单
type ArchiveManifest struct {
	OutputPath    string   `json:"output_path"`
	IncludedFiles []string `json:"included_files"` // 相对根目录的路径,有序
	TotalBytes    int64    `json:"total_bytes"`    // 压缩后大小
}

// WatermarkPolicy 水印策略
type WatermarkPolicy struct {
	Extensions map[string]bool `json:"extensions"` // 小写,带点: ".html"
	MarkerText string          `json:"marker_text"`
}

// NewWatermarkPolicy 根据扩展名列表构造策略
func NewWatermarkPolicy(marker string, extensions []string) WatermarkPolicy {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}
	return WatermarkPolicy{Extensions: exts, MarkerText: marker}
}

// Applies 文件是否适用水印
func (p WatermarkPolicy) Applies(name string) bool {
	return p.Extensions[strings.ToLower(path.Ext(name))]
}

// Artifact 交付给调用方的产物句柄
type Artifact struct {
	JobID       string       `json:"job_id"`
	Path        string       `json:"path"`
	Size        int64        `json:"size"`
	Format      OutputFormat `json:"format"`
	DeliveredAt time.Time    `json:"delivered_at"`
}

// JobResult 按任务ID可查询的结果
type JobResult struct {
	JobID     string    `json:"job_id"`
	TargetURL string    `json:"target_url"`
	Status    JobStatus `json:"status"`
	Artifact  *Artifact `json:"artifact,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	Stats     JobStats  `json:"stats"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CrawlReport 任务报告
type CrawlReport struct {
	Job       *CrawlJob        `json:"job"`
	Resources []ResourceRecord `json:"resources"`
	Failed    []FailedFileInfo `json:"failed"`
	Manifest  *ArchiveManifest `json:"manifest,omitempty"`
	Artifact  *Artifact        `json:"artifact,omitempty"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
}

// FailedFileInfo 失败资源信息
type FailedFileInfo struct {
	URL       string `json:"url"`
	ErrorType string `json:"error_type"`
	ErrorMsg  string `json:"error_msg"`
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

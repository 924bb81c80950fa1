package models

import (
	"path"
	"strings"
	"time"
)

// ResourceKind 资源分类
type ResourceKind string

const (
	KindDocument   ResourceKind = "document"
	KindStylesheet ResourceKind = "stylesheet"
	KindScript     ResourceKind = "script"
	KindImage      ResourceKind = "image"
	KindOther      ResourceKind = "other"
)

// ResourceStatus 资源抓取状态
type ResourceStatus string

const (
	StatusPending ResourceStatus = "pending"
	StatusFetched ResourceStatus = "fetched"
	StatusFailed  ResourceStatus = "failed"
)

// ResourceRecord 每个规范化URL对应唯一一条记录
type ResourceRecord struct {
	Key         string         `json:"key"`                 // 规范化URL(去重键)
	RemoteURL   string         `json:"remote_url"`          // 原始URL
	FinalURL    string         `json:"final_url,omitempty"` // 重定向后的URL
	SourceURL   string         `json:"source_url,omitempty"`
	Depth       int            `json:"depth"`
	LocalPath   string         `json:"local_path,omitempty"` // 相对任务根目录的路径(斜杠分隔)
	ContentType string         `json:"content_type,omitempty"`
	Kind        ResourceKind   `json:"kind"`
	Status      ResourceStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	Size        int64          `json:"size"`
	FetchedAt   *time.Time     `json:"fetched_at,omitempty"`
}

// KindFromContentType 根据Content-Type分类, 无法判断时返回空串
func KindFromContentType(contentType string) ResourceKind {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	switch {
	case ct == "text/html" || ct == "application/xhtml+xml":
		return KindDocument
	case ct == "text/css":
		return KindStylesheet
	case strings.Contains(ct, "javascript") || ct == "application/ecmascript":
		return KindScript
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case ct == "":
		return ""
	default:
		return KindOther
	}
}

// KindFromExtension 根据URL路径扩展名分类
func KindFromExtension(urlPath string) ResourceKind {
	switch strings.ToLower(path.Ext(urlPath)) {
	case ".html", ".htm", ".xhtml", ".php", ".asp", ".aspx", ".jsp":
		return KindDocument
	case ".css":
		return KindStylesheet
	case ".js", ".mjs":
		return KindScript
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".bmp", ".avif":
		return KindImage
	case "":
		return ""
	default:
		return KindOther
	}
}

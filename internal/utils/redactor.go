package utils

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

var (
	// SensitiveKeywords 敏感头部名称/查询参数关键字 (用于脱敏)
	SensitiveKeywords = []string{
		"authorization",
		"token",
		"key",
		"secret",
		"password",
		"credential",
		"cookie",
		"session",
	}
)

const redactedMark = "***"

// HeaderRedactor 头部脱敏器
// 镜像任务常携带登录态(Cookie/Authorization), 写入日志和报告前需要脱敏
type HeaderRedactor struct {
	sensitiveKeywords []string
}

// NewHeaderRedactor 创建头部脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitiveHeader 检查头部是否为敏感头部
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range hr.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 脱敏单个头部值
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}

	lower := strings.ToLower(name)
	if lower == "cookie" || lower == "set-cookie" {
		return redactCookie(value)
	}

	// Bearer/Basic 只保留认证方案
	if scheme, _, ok := strings.Cut(value, " "); ok && (scheme == "Bearer" || scheme == "Basic") {
		return scheme + " " + redactedMark
	}

	if len(value) > 8 {
		return value[:4] + redactedMark + value[len(value)-4:]
	}
	return redactedMark
}

// redactCookie 保留cookie名称, 隐藏值: "a=1; b=2" → "a=***; b=***"
func redactCookie(value string) string {
	parts := strings.Split(value, ";")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if name, _, ok := strings.Cut(part, "="); ok {
			parts[i] = name + "=" + redactedMark
		} else {
			parts[i] = redactedMark
		}
	}
	return strings.Join(parts, "; ")
}

// Redact 脱敏整个http.Header,返回安全的字符串map (用于日志)
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string)
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = hr.RedactHeaderValue(name, values[0])
	}
	return result
}

// RedactToString 脱敏http.Header并返回按名称排序的字符串
// 格式: "Header1: value1, Header2: value2, ..."
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	redacted := hr.Redact(headers)
	names := make([]string, 0, len(redacted))
	for name := range redacted {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+redacted[name])
	}
	return strings.Join(parts, ", ")
}

// RedactURL 隐藏URL中的密码和敏感查询参数, 解析失败时原样返回
func (hr *HeaderRedactor) RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), redactedMark)
		}
	}
	if u.RawQuery != "" {
		query := u.Query()
		changed := false
		for name := range query {
			if hr.IsSensitiveHeader(name) {
				query.Set(name, redactedMark)
				changed = true
			}
		}
		if changed {
			u.RawQuery = query.Encode()
		}
	}
	return u.String()
}

var defaultRedactor = NewHeaderRedactor()

// SafeURL 使用默认脱敏器处理URL (日志使用)
func SafeURL(rawURL string) string {
	return defaultRedactor.RedactURL(rawURL)
}

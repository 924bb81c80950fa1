package crawlers

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"golang.org/x/net/idna"
)

// ParseAbsolute 将原始字符串解析为绝对http(s) URL
// 失败时返回包装了 models.ErrInvalidURL 的错误
func ParseAbsolute(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: 空URL", models.ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: 不支持的协议 %q", models.ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: 缺少主机名", models.ErrInvalidURL)
	}
	return u, nil
}

// CanonicalHost 规范化主机名: 小写、去端口、IDN转ASCII、去掉开头的 "www."
func CanonicalHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return strings.TrimPrefix(host, "www.")
}

// DomainOf 返回URL的规范化域名
func DomainOf(raw string) (string, error) {
	u, err := ParseAbsolute(raw)
	if err != nil {
		return "", err
	}
	return CanonicalHost(u.Host), nil
}

// SameDomain 域名门: URL是否属于任务域名
// 解析失败视为不属于,不是错误
func SameDomain(raw string, domain string) bool {
	d, err := DomainOf(raw)
	if err != nil {
		return false
	}
	return d == domain
}

// NormalizeURL 生成去重键
// 规则: 协议小写、主机规范化、去默认端口、去fragment、空路径补 "/"
func NormalizeURL(raw string) (string, error) {
	u, err := ParseAbsolute(raw)
	if err != nil {
		return "", err
	}
	return normalizeParsed(u), nil
}

func normalizeParsed(u *url.URL) string {
	n := *u
	n.User = nil
	n.Fragment = ""
	n.RawFragment = ""

	host := CanonicalHost(u.Hostname())
	port := u.Port()
	if (n.Scheme == "http" && port == "80") || (n.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}
	n.Host = host

	if n.Path == "" {
		n.Path = "/"
		n.RawPath = ""
	}
	return n.String()
}

// ResolveReference 将页面中的引用解析为绝对URL
// 非http(s)引用(mailto:, javascript:, data: 等)返回false
func ResolveReference(base *url.URL, ref string) (*url.URL, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return nil, false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return nil, false
	}
	abs := base.ResolveReference(r)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	return abs, true
}

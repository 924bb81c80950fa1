package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"github.com/temoto/robotstxt"
)

// RobotsPolicy robots.txt 准入策略
// nil 策略放行所有URL
type RobotsPolicy struct {
	data      *robotstxt.RobotsData
	userAgent string
}

// NewRobotsPolicy 从robots.txt内容构造策略
func NewRobotsPolicy(body []byte, userAgent string) (*RobotsPolicy, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("解析robots.txt失败: %w", err)
	}
	return &RobotsPolicy{data: data, userAgent: userAgent}, nil
}

// FetchRobots 下载并解析入口站点的robots.txt
// 4xx视为全部允许, 5xx视为全部禁止(robotstxt库的默认语义)
func FetchRobots(ctx context.Context, client *http.Client, seed *url.URL, userAgent string) (*RobotsPolicy, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", seed.Scheme, seed.Host)
	utils.Debugf("加载robots.txt: %s", robotsURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载robots.txt失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("解析robots.txt失败: %w", err)
	}
	return &RobotsPolicy{data: data, userAgent: userAgent}, nil
}

// Allowed 检查URL路径是否允许抓取
func (p *RobotsPolicy) Allowed(u *url.URL) bool {
	if p == nil || p.data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	// TestAgent 会处理 4xx/5xx 对应的全部允许/全部禁止
	return p.data.TestAgent(path, p.userAgent)
}

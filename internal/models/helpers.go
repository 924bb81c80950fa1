package models

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// ValidateURL 验证入口URL: 必须是带主机名的http/https地址
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: URL必须是HTTP或HTTPS协议", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: URL必须包含主机名", ErrInvalidURL)
	}
	return nil
}

// generateID 生成任务ID
func generateID() string {
	return uuid.New().String()
}

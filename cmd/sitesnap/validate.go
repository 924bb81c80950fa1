package main

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/spf13/cobra"
)

// ValidateFlags 验证命令行标志, 只检查显式设置的参数
func ValidateFlags(cmd *cobra.Command, targetURL, format string, depth, concurrency int, timeout time.Duration) error {
	flags := cmd.Flags()

	if targetURL != "" {
		if err := models.ValidateURL(targetURL); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	if flags.Changed("format") {
		if _, err := models.ParseOutputFormat(format); err != nil {
			return err
		}
	}

	if flags.Changed("depth") && depth < -1 {
		return fmt.Errorf("最大深度必须大于等于-1,当前值: %d", depth)
	}

	if flags.Changed("concurrency") && (concurrency < 1 || concurrency > 256) {
		return fmt.Errorf("并发数必须在1-256之间,当前值: %d", concurrency)
	}

	if flags.Changed("timeout") && timeout <= 0 {
		return fmt.Errorf("全局超时必须大于0,当前值: %s", timeout)
	}

	return nil
}

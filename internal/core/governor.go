package core

import (
	"context"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/utils"
)

// TimeoutGovernor 全局超时控制
// 计时器与抓取池的完成信号赛跑, 先到者决定收尾方式
type TimeoutGovernor struct {
	timeout time.Duration
}

// NewTimeoutGovernor 创建超时控制器
func NewTimeoutGovernor(timeout time.Duration) *TimeoutGovernor {
	return &TimeoutGovernor{timeout: timeout}
}

// Watch 阻塞直到 done 关闭或超时
// 超时时调用 cancel 通知worker停止取新任务, 然后继续等待 done(即在途请求全部结束)
// 返回是否因超时收尾
func (g *TimeoutGovernor) Watch(ctx context.Context, cancel context.CancelFunc, done <-chan struct{}) bool {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	timedOut := false
	select {
	case <-done:
		return false
	case <-timer.C:
		timedOut = true
		utils.Warnf("⏰ 全局超时 (%v), 停止调度新请求并等待在途请求结束", g.timeout)
	case <-ctx.Done():
		utils.Warnf("任务被取消: %v", ctx.Err())
	}

	cancel()
	<-done
	return timedOut
}

package crawlers

import (
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源检查
// 职责: 根据可用内存和CPU负载给出抓取worker数的上限
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 采样函数, 测试中可替换
	sample func() (ResourceSample, error)
}

// ResourceMonitorConfig 资源检查配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	WorkerMemoryUsage   int64 // 单个worker平均内存消耗(字节)
	CPULoadThreshold    int   // CPU负载阈值(%), >=100 视为禁用
}

// ResourceSample 一次资源采样
type ResourceSample struct {
	AvailableMemory uint64  // 系统可用内存(字节)
	CPUUsage        float64 // 所有核心的平均使用率(%)
}

// MemoryPressure 内存压力等级
func (s ResourceSample) MemoryPressure() string {
	availableMB := s.AvailableMemory / (1024 * 1024)
	switch {
	case availableMB < 200:
		return "emergency"
	case availableMB < 300:
		return "critical"
	case availableMB < 500:
		return "warning"
	default:
		return "normal"
	}
}

// NewResourceMonitor 创建资源检查器
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.WorkerMemoryUsage <= 0 {
		config.WorkerMemoryUsage = 16 * 1024 * 1024
	}
	return &ResourceMonitor{config: config, sample: sampleSystem}
}

// sampleSystem 使用gopsutil获取真实系统数据
func sampleSystem() (ResourceSample, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return ResourceSample{}, fmt.Errorf("获取系统内存失败: %w", err)
	}
	s := ResourceSample{AvailableMemory: vmStat.Available}

	// 100毫秒采样间隔,避免阻塞过久
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
	} else if len(percentages) > 0 {
		s.CPUUsage = percentages[0]
	}
	return s, nil
}

// MaxWorkers 返回不超过requested的worker上限
// 采样失败时直接返回requested
func (rm *ResourceMonitor) MaxWorkers(requested int) int {
	if requested < 1 {
		requested = 1
	}
	s, err := rm.sample()
	if err != nil {
		log.Warn().Err(err).Msg("资源采样失败,使用配置的并发数")
		return requested
	}

	result := requested

	// 基于内存计算上限
	available := int64(s.AvailableMemory) - rm.config.SafetyReserveMemory
	byMemory := 1
	if available > 0 {
		byMemory = int(available / rm.config.WorkerMemoryUsage)
	}
	if byMemory < result {
		result = byMemory
	}

	// CPU过载时减半, 下限为CPU核数
	if rm.config.CPULoadThreshold > 0 && rm.config.CPULoadThreshold < 100 &&
		s.CPUUsage > float64(rm.config.CPULoadThreshold) {
		halved := result / 2
		if halved < runtime.NumCPU() {
			halved = runtime.NumCPU()
		}
		if halved < result {
			result = halved
		}
	}

	if result < 1 {
		result = 1
	}
	if result < requested {
		log.Warn().Msgf("资源受限(内存压力=%s, CPU=%.1f%%),并发数从 %d 降至 %d",
			s.MemoryPressure(), s.CPUUsage, requested, result)
	}
	return result
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/config"
	"github.com/RecoveryAshes/sitesnap/internal/store"
	"github.com/go-rod/rod/lib/launcher"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  SiteSnap 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("❌ 加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ 配置无效: %v\n", err)
		allOK = false
	} else {
		fmt.Println("✅ 配置有效")
	}

	// word 格式依赖pandoc
	if out, ok := commandOutput(cfg.Convert.PandocPath, "--version"); ok {
		fmt.Printf("✅ pandoc已安装: %s\n", firstLine(out))
	} else {
		fmt.Printf("⚠️  pandoc未找到 (%s) - word 格式将不可用\n", cfg.Convert.PandocPath)
	}

	// pdf 格式依赖Chromium, 未配置路径时rod会在首次使用时下载
	if cfg.Convert.BrowserPath != "" {
		if _, err := os.Stat(cfg.Convert.BrowserPath); err != nil {
			fmt.Printf("❌ 配置的浏览器不存在: %s\n", cfg.Convert.BrowserPath)
			allOK = false
		} else {
			fmt.Printf("✅ 浏览器: %s\n", cfg.Convert.BrowserPath)
		}
	} else if path, has := launcher.LookPath(); has {
		fmt.Printf("✅ 浏览器: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到本地Chromium - pdf 格式首次使用时将自动下载")
	}

	if cfg.Store.Backend == "redis" {
		rs := store.NewRedisResultStore(cfg.Store.Redis.Addr, cfg.Store.Redis.Password,
			cfg.Store.Redis.DB, cfg.Store.Redis.Prefix, cfg.Store.Redis.TTL)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rs.Ping(ctx); err != nil {
			fmt.Printf("❌ Redis连接失败 (%s): %v\n", cfg.Store.Redis.Addr, err)
			allOK = false
		} else {
			fmt.Printf("✅ Redis连接正常: %s\n", cfg.Store.Redis.Addr)
		}
		cancel()
		rs.Close()
	} else {
		fmt.Println("✅ 结果存储: memory")
	}

	// 工作目录可写
	probe, err := os.MkdirTemp(cfg.Output.WorkDir, "probe-")
	if err != nil {
		if mkErr := os.MkdirAll(cfg.Output.WorkDir, 0755); mkErr == nil {
			probe, err = os.MkdirTemp(cfg.Output.WorkDir, "probe-")
		}
	}
	if err != nil {
		fmt.Printf("❌ 工作目录不可写 (%s): %v\n", cfg.Output.WorkDir, err)
		allOK = false
	} else {
		os.RemoveAll(probe)
		fmt.Printf("✅ 工作目录可写: %s\n", cfg.Output.WorkDir)
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'make build' 构建项目")
		fmt.Println("  2. 运行 './sitesnap --help' 查看帮助")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}

// commandOutput 执行命令并返回输出
func commandOutput(name string, args ...string) (string, bool) {
	output, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", false
	}
	return string(output), true
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return strings.TrimSpace(s)
}

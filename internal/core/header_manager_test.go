package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/sitesnap/internal/config"
)

func TestHeaderManager_GetMergedHeaders(t *testing.T) {
	t.Run("默认头部存在", func(t *testing.T) {
		hm, err := NewHeaderManager("", nil, nil)
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}
		if ua := hm.GetMergedHeaders().Get("User-Agent"); ua != config.DefaultUserAgent {
			t.Errorf("期望默认User-Agent, 实际='%s'", ua)
		}
	})

	t.Run("多个命令行头部", func(t *testing.T) {
		hm, err := NewHeaderManager("", nil, []string{
			"User-Agent: CustomBot/1.0",
			"X-Custom: value1",
			"Authorization: Bearer token123",
		})
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}
		headers := hm.GetMergedHeaders()
		if headers.Get("User-Agent") != "CustomBot/1.0" {
			t.Error("User-Agent未正确设置")
		}
		if headers.Get("X-Custom") != "value1" {
			t.Error("X-Custom未正确设置")
		}
		if headers.Get("Authorization") != "Bearer token123" {
			t.Error("Authorization未正确设置")
		}
	})
}

func TestHeaderManager_Priority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "headers.yaml")
	content := `headers:
  X-Config: from-config
  X-Layer: file
  User-Agent: config-agent`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	hm, err := NewHeaderManager(configPath,
		map[string]string{"X-Layer": "values", "X-Values": "v"},
		[]string{"X-CLI: from-cli", "User-Agent: cli-agent"})
	if err != nil {
		t.Fatalf("创建HeaderManager失败: %v", err)
	}

	headers, err := hm.GetHeaders()
	if err != nil {
		t.Fatalf("GetHeaders失败: %v", err)
	}
	if val := headers.Get("User-Agent"); val != "cli-agent" {
		t.Errorf("命令行头部应该覆盖配置文件, 得到: %s", val)
	}
	if val := headers.Get("X-Layer"); val != "values" {
		t.Errorf("主配置应该覆盖头部文件, 得到: %s", val)
	}
	for _, name := range []string{"X-Config", "X-Values", "X-CLI"} {
		if headers.Get(name) == "" {
			t.Errorf("缺少头部 %s", name)
		}
	}
}

func TestHeaderManager_GetSafeHeaders(t *testing.T) {
	hm, err := NewHeaderManager("", nil, []string{
		"User-Agent: CustomBot/1.0",
		"Authorization: Bearer secret-token-12345",
		"X-API-Key: api-key-67890",
	})
	if err != nil {
		t.Fatalf("创建HeaderManager失败: %v", err)
	}
	safe := hm.GetSafeHeaders()
	if safe["User-Agent"] != "CustomBot/1.0" {
		t.Error("普通头部不应该被脱敏")
	}
	if safe["Authorization"] != "Bearer ***" {
		t.Errorf("期望Authorization='Bearer ***', 实际='%s'", safe["Authorization"])
	}
	if safe["X-Api-Key"] == "api-key-67890" {
		t.Error("X-API-Key应该被脱敏")
	}
}

func TestHeaderManager_GetHeaders(t *testing.T) {
	t.Run("非法命令行参数返回错误", func(t *testing.T) {
		if _, err := NewHeaderManager("", nil, []string{"InvalidFormat"}); err == nil {
			t.Error("期望返回错误, 但成功了")
		}
	})

	t.Run("禁止头部返回验证错误", func(t *testing.T) {
		hm, err := NewHeaderManager("", nil, []string{"Host: example.com"})
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}
		if _, err := hm.GetHeaders(); err == nil {
			t.Error("期望返回验证错误, 但成功了")
		}
		// 结果被缓存, 第二次调用返回同样的错误
		if _, err := hm.GetHeaders(); err == nil {
			t.Error("第二次调用也应返回错误")
		}
	})

	t.Run("返回副本", func(t *testing.T) {
		hm, err := NewHeaderManager("", nil, []string{"X-Custom: test-value"})
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}
		first, err := hm.GetHeaders()
		if err != nil {
			t.Fatalf("GetHeaders失败: %v", err)
		}
		first.Set("X-Custom", "changed")
		second, _ := hm.GetHeaders()
		if second.Get("X-Custom") != "test-value" {
			t.Error("调用方修改不应影响缓存的头部")
		}
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHeaderConfigLoader_LoadConfig(t *testing.T) {
	t.Run("首次运行自动生成配置文件", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "headers.yaml")
		loader := NewHeaderConfigLoader(configPath)

		cfg, err := loader.LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			t.Fatal("配置文件应该被自动生成")
		}
		if cfg.Headers == nil {
			t.Fatal("Headers map应该被初始化")
		}
		if len(cfg.Headers) != 0 {
			t.Errorf("模板中的头部都是注释, 期望为空, 得到 %v", cfg.Headers)
		}
	})

	t.Run("加载已存在的配置文件", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		testConfig := `headers:
  User-Agent: "Test Bot/1.0"
  X-Custom: "test value"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("写入测试配置失败: %v", err)
		}

		cfg, err := NewHeaderConfigLoader(configPath).LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}
		// viper会将键名转换为小写
		if cfg.Headers["user-agent"] != "Test Bot/1.0" {
			t.Errorf("期望 user-agent='Test Bot/1.0', 实际='%s'", cfg.Headers["user-agent"])
		}
		if cfg.Headers["x-custom"] != "test value" {
			t.Errorf("期望 x-custom='test value', 实际='%s'", cfg.Headers["x-custom"])
		}
	})

	t.Run("YAML格式错误返回错误", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		badConfig := `headers:
  User-Agent: "Test Bot
  X-Custom: missing quote
`
		if err := os.WriteFile(configPath, []byte(badConfig), 0644); err != nil {
			t.Fatalf("写入错误配置失败: %v", err)
		}
		if _, err := NewHeaderConfigLoader(configPath).LoadConfig(); err == nil {
			t.Fatal("期望返回错误,但成功了")
		}
	})

	t.Run("空配置文件处理", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		if err := os.WriteFile(configPath, []byte(`headers:`), 0644); err != nil {
			t.Fatalf("写入空配置失败: %v", err)
		}
		cfg, err := NewHeaderConfigLoader(configPath).LoadConfig()
		if err != nil {
			t.Fatalf("加载空配置失败: %v", err)
		}
		if cfg.Headers == nil {
			t.Fatal("Headers map应该被初始化为空map")
		}
	})

	t.Run("配置文件大小验证", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		largeConfig := make([]byte, MaxConfigFileSize+1)
		if err := os.WriteFile(configPath, largeConfig, 0644); err != nil {
			t.Fatalf("写入大配置失败: %v", err)
		}
		if _, err := NewHeaderConfigLoader(configPath).LoadConfig(); err == nil {
			t.Fatal("期望超大配置文件被拒绝,但成功了")
		}
	})
}

func TestNewHeaderConfigLoader_DefaultPath(t *testing.T) {
	if got := NewHeaderConfigLoader("").Path(); got != DefaultHeadersFile {
		t.Errorf("默认路径 = %s, 期望 %s", got, DefaultHeadersFile)
	}
}

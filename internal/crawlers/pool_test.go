package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/spf13/afero"
)

// testSite 记录每个路径被请求次数的测试站点
type testSite struct {
	mu   sync.Mutex
	hits map[string]int
	srv  *httptest.Server
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	s := &testSite{hits: make(map[string]int)}

	pages := map[string]struct {
		contentType string
		body        string
	}{
		"/": {"text/html; charset=utf-8", `<html><head>
<link rel="stylesheet" href="/style.css">
</head><body>
<a href="/page">page</a>
<a href="https://other.example.org/">外部</a>
<a href="/missing">missing</a>
<img src="img.png">
</body></html>`},
		"/page":      {"text/html", `<html><body><a href="/deep">deep</a><img src="/img.png"></body></html>`},
		"/deep":      {"text/html", `<html><body>deep</body></html>`},
		"/img.png":   {"image/png", "\x89PNG\r\n\x1a\nfake"},
		"/style.css": {"text/css", `body { background: url("bg.png") }`},
		"/bg.png":    {"image/png", "\x89PNGbg"},
	}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", page.contentType)
		_, _ = w.Write([]byte(page.body))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func runTestPool(t *testing.T, site *testSite, seedPath string, maxDepth int, recursive bool) (*FetchPool, *ResourceMapper) {
	t.Helper()
	cfg := models.DefaultCrawlConfig()
	cfg.MaxDepth = maxDepth
	cfg.Recursive = recursive
	cfg.Concurrency = 8
	cfg.RequestTimeout = 5 * time.Second

	seed := site.srv.URL + seedPath
	domain, err := DomainOf(seed)
	if err != nil {
		t.Fatal(err)
	}
	frontier := NewFrontier(domain, cfg)
	mapper := NewResourceMapper(afero.NewMemMapFs())
	pool := NewFetchPool(frontier, mapper, cfg, PoolOptions{})
	if err := pool.Seed(seed); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool.Run(ctx)

	select {
	case <-pool.Done():
	default:
		t.Fatal("Run返回后Done应已关闭")
	}
	return pool, mapper
}

func TestFetchPool_FullCrawl(t *testing.T) {
	site := newTestSite(t)
	pool, mapper := runTestPool(t, site, "/", -1, true)

	for _, path := range []string{"/", "/page", "/deep", "/img.png", "/style.css", "/bg.png", "/missing"} {
		if n := site.hitCount(path); n != 1 {
			t.Errorf("%s 被请求 %d 次, 期望 1 次", path, n)
		}
	}

	stats := pool.Stats()
	if stats.Fetched != 6 || stats.Failed != 1 {
		t.Errorf("Stats() = %+v, 期望 fetched=6 failed=1", stats)
	}
	if stats.Discovered != 7 {
		t.Errorf("Discovered = %d, 期望 7", stats.Discovered)
	}

	rec, ok := pool.Record(site.srv.URL + "/missing")
	if !ok || rec.Status != models.StatusFailed || rec.Error == "" {
		t.Errorf("/missing 应记录为失败: %+v", rec)
	}

	rec, ok = pool.Record(site.srv.URL + "/page")
	if !ok || rec.LocalPath != "page/index.html" || rec.Kind != models.KindDocument {
		t.Errorf("/page 记录 = %+v", rec)
	}
	if rec.Depth != 1 {
		t.Errorf("/page 深度 = %d, 期望 1", rec.Depth)
	}

	data, err := mapper.Read("style.css")
	if err != nil || len(data) == 0 {
		t.Errorf("style.css 未落盘: %v", err)
	}
	if !mapper.Exists("bg.png") {
		t.Error("样式表引用的 bg.png 应被抓取")
	}
}

// 入口页面及其直接资源, 不继续展开
func TestFetchPool_DirectResourcesOnly(t *testing.T) {
	tests := []struct {
		name      string
		maxDepth  int
		recursive bool
	}{
		{"recursive=false,maxDepth=1", 1, false},
		{"recursive=true,maxDepth=0", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newTestSite(t)
			pool, _ := runTestPool(t, site, "/", tt.maxDepth, tt.recursive)

			for _, path := range []string{"/", "/page", "/img.png", "/style.css", "/missing"} {
				if n := site.hitCount(path); n != 1 {
					t.Errorf("%s 被请求 %d 次, 期望 1 次", path, n)
				}
			}
			for _, path := range []string{"/deep", "/bg.png"} {
				if n := site.hitCount(path); n != 0 {
					t.Errorf("%s 超出深度, 不应被请求 (实际 %d 次)", path, n)
				}
			}
			for _, rec := range pool.Records() {
				if rec.Depth > 1 {
					t.Errorf("记录深度越界: %+v", rec)
				}
			}
		})
	}
}

func TestFetchPool_SeedFromSubpage(t *testing.T) {
	site := newTestSite(t)
	runTestPool(t, site, "/page", 1, false)

	if site.hitCount("/page") != 1 || site.hitCount("/deep") != 1 || site.hitCount("/img.png") != 1 {
		t.Error("入口页面及其直接引用都应被抓取")
	}
	if site.hitCount("/") != 0 {
		t.Error("未被引用的页面不应被抓取")
	}
}

func TestFetchPool_OnRecord(t *testing.T) {
	site := newTestSite(t)
	cfg := models.DefaultCrawlConfig()
	cfg.Concurrency = 4
	domain, _ := DomainOf(site.srv.URL)

	var mu sync.Mutex
	seen := make(map[string]models.ResourceStatus)
	pool := NewFetchPool(NewFrontier(domain, cfg), NewResourceMapper(afero.NewMemMapFs()), cfg, PoolOptions{
		OnRecord: func(rec models.ResourceRecord) {
			mu.Lock()
			defer mu.Unlock()
			if _, dup := seen[rec.Key]; dup {
				t.Errorf("记录 %s 被回调两次", rec.Key)
			}
			seen[rec.Key] = rec.Status
		},
	})
	if err := pool.Seed(site.srv.URL + "/"); err != nil {
		t.Fatal(err)
	}
	pool.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 7 {
		t.Errorf("回调次数 = %d, 期望 7", len(seen))
	}
}

func TestFetchPool_SeedInvalid(t *testing.T) {
	cfg := models.DefaultCrawlConfig()
	pool := NewFetchPool(NewFrontier("example.com", cfg), NewResourceMapper(afero.NewMemMapFs()), cfg, PoolOptions{})
	if err := pool.Seed("not a url"); err == nil {
		t.Error("无效入口URL应返回错误")
	}
}

// 大量叶子资源并发抓取, 记录必须在worker取到条目前建立
func TestFetchPool_NoPendingAfterDrain(t *testing.T) {
	const leaves = 400

	var page strings.Builder
	page.WriteString("<html><body>")
	for i := 0; i < leaves; i++ {
		fmt.Fprintf(&page, `<img src="/r%d.png">`, i)
	}
	page.WriteString("</body></html>")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(page.String()))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG" + r.URL.Path))
	}))
	defer srv.Close()

	domain, err := DomainOf(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	for round := 0; round < 10; round++ {
		cfg := models.DefaultCrawlConfig()
		cfg.Concurrency = 64
		cfg.RequestTimeout = 5 * time.Second

		pool := NewFetchPool(NewFrontier(domain, cfg), NewResourceMapper(afero.NewMemMapFs()), cfg, PoolOptions{})
		if err := pool.Seed(srv.URL + "/"); err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		pool.Run(ctx)
		cancel()

		records := pool.Records()
		pending := 0
		for _, rec := range records {
			if rec.Status == models.StatusPending {
				pending++
			}
		}
		stats := pool.Stats()
		if pending != 0 || len(records) != leaves+1 || stats.Fetched != leaves+1 || stats.Discovered != leaves+1 {
			t.Fatalf("第 %d 轮: pending=%d records=%d stats=%+v, 期望全部 %d 个记录已下载",
				round, pending, len(records), stats, leaves+1)
		}
	}
}

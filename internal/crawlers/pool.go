package crawlers

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"github.com/gocolly/colly/v2"
)

// entryCtxKey colly请求上下文中保存队列项的键
const entryCtxKey = "frontier_entry"

// maxRedirects 单个请求允许的最大重定向次数
const maxRedirects = 10

// PoolOptions 抓取池可选项
type PoolOptions struct {
	// Selectors 标签→属性提取表, 为空时使用 DefaultSelectors
	Selectors []ResourceSelector

	// HeaderProvider 每次请求前获取自定义头部
	HeaderProvider models.HeaderProvider

	// UserAgent 为空时使用colly默认值
	UserAgent string

	// Monitor 非nil时按系统资源收紧worker数
	Monitor *ResourceMonitor

	// OnRecord 资源抓取结束(成功或失败)时回调, 在worker goroutine中调用
	OnRecord func(models.ResourceRecord)

	// ProgressInterval 进度日志间隔, 0 表示不输出
	ProgressInterval time.Duration
}

// FetchPool 固定大小的并发抓取池(使用Colly)
// worker从Frontier取任务, 抓取、分类、落盘, 并把发现的引用送回Frontier
type FetchPool struct {
	collector *colly.Collector
	frontier  *Frontier
	mapper    *ResourceMapper
	config    models.CrawlConfig
	opts      PoolOptions

	mu      sync.Mutex
	records map[string]*models.ResourceRecord // 规范化URL -> 记录
	stats   models.JobStats

	done chan struct{}
}

// NewFetchPool 创建抓取池
func NewFetchPool(frontier *Frontier, mapper *ResourceMapper, config models.CrawlConfig, opts PoolOptions) *FetchPool {
	if len(opts.Selectors) == 0 {
		opts.Selectors = DefaultSelectors
	}

	// 同步模式: 每个worker在自己的goroutine里阻塞执行请求
	// 去重由Frontier负责, 因此允许colly重复访问
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxBodySize(config.MaxBodySize),
	)
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	if config.InsecureTLS {
		c.WithTransport(&http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		})
		utils.Debugf("抓取池: TLS证书验证已禁用")
	}
	c.SetRequestTimeout(config.RequestTimeout)

	domain := frontier.domain
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("重定向次数超过 %d", maxRedirects)
		}
		if CanonicalHost(req.URL.Host) != domain {
			return fmt.Errorf("%w: 重定向到 %s", models.ErrDomainMismatch, req.URL)
		}
		return nil
	})

	p := &FetchPool{
		collector: c,
		frontier:  frontier,
		mapper:    mapper,
		config:    config,
		opts:      opts,
		records:   make(map[string]*models.ResourceRecord),
		done:      make(chan struct{}),
	}
	// 记录必须在条目可被Take之前建立, 否则抓取结果会找不到记录
	frontier.OnAdmit(p.track)
	p.setupCallbacks()
	return p
}

// setupCallbacks 设置Colly回调
func (p *FetchPool) setupCallbacks() {
	p.collector.OnRequest(func(r *colly.Request) {
		// 应用自定义HTTP头部
		if p.opts.HeaderProvider != nil {
			headers, err := p.opts.HeaderProvider.GetHeaders()
			if err != nil {
				utils.Warnf("获取HTTP头部失败: %v", err)
			} else {
				for name, values := range headers {
					if len(values) > 0 {
						r.Headers.Set(name, values[0])
					}
				}
			}
		}
		utils.Debugf("访问: %s", r.URL.String())
	})

	p.collector.OnResponse(func(r *colly.Response) {
		entry, ok := r.Ctx.GetAny(entryCtxKey).(models.FrontierEntry)
		if !ok {
			return
		}

		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressResponse(encoding, r.Body)
			if err != nil {
				// 解压失败,仍然使用原始body
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", entry.URL, encoding, err)
			} else {
				body = decompressed
			}
		}
		r.Body = body

		p.handleResponse(entry, r.Request.URL, r.Headers.Get("Content-Type"), body)
	})

	p.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		entry, ok := r.Ctx.GetAny(entryCtxKey).(models.FrontierEntry)
		if !ok {
			return
		}
		if r.StatusCode > 0 {
			err = fmt.Errorf("HTTP %d: %w", r.StatusCode, err)
		}
		p.fail(entry, err)
	})
}

// Seed 将入口URL写入队列, 记录由入队回调建立
func (p *FetchPool) Seed(rawURL string) error {
	return p.frontier.Seed(rawURL)
}

// Run 启动worker并阻塞到全部退出
// 队列耗尽或ctx取消后worker不再取新任务, 在途请求会完成
func (p *FetchPool) Run(ctx context.Context) {
	defer close(p.done)

	workers := p.config.Concurrency
	if p.opts.Monitor != nil {
		workers = p.opts.Monitor.MaxWorkers(workers)
	}
	if workers < 1 {
		workers = 1
	}
	utils.Debugf("抓取池启动: %d 个worker", workers)

	stopProgress := make(chan struct{})
	if p.opts.ProgressInterval > 0 {
		go p.reportProgress(stopProgress)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
	close(stopProgress)
}

// Done 全部worker退出后关闭
func (p *FetchPool) Done() <-chan struct{} {
	return p.done
}

func (p *FetchPool) worker(ctx context.Context) {
	for {
		entry, ok := p.frontier.Take(ctx)
		if !ok {
			return
		}
		p.fetch(entry)
		p.frontier.Done()
	}
}

// fetch 执行单个请求
func (p *FetchPool) fetch(entry models.FrontierEntry) {
	cctx := colly.NewContext()
	cctx.Put(entryCtxKey, entry)

	err := p.collector.Request(http.MethodGet, entry.URL, nil, cctx, nil)
	if err != nil {
		// OnError已处理的情况下fail为空操作
		p.fail(entry, err)
	}
}

// handleResponse 分类、落盘并展开引用
func (p *FetchPool) handleResponse(entry models.FrontierEntry, finalURL *url.URL, contentType string, body []byte) {
	kind := classifyResource(contentType, finalURL.Path, entry.Hint)

	localPath, err := p.mapper.MapToLocalPath(entry.URL, kind)
	if err != nil {
		p.fail(entry, err)
		return
	}
	if err := p.mapper.Write(localPath, body); err != nil {
		p.fail(entry, err)
		return
	}

	now := time.Now()
	rec := p.update(entry.Key, func(rec *models.ResourceRecord) {
		rec.Status = models.StatusFetched
		rec.FinalURL = finalURL.String()
		rec.LocalPath = localPath
		rec.ContentType = contentType
		rec.Kind = kind
		rec.Size = int64(len(body))
		rec.FetchedAt = &now
		p.stats.Fetched++
		p.stats.TotalBytes += int64(len(body))
	})
	if rec != nil {
		utils.Debugf("📥 下载成功: %s (%d bytes) - %s", localPath, len(body), entry.URL)
		p.notify(*rec)
	}

	if !p.config.CanExpand(entry.Depth) {
		return
	}

	var refs []Reference
	switch kind {
	case models.KindDocument:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			utils.Warnf("解析HTML失败 [%s]: %v", entry.URL, err)
			return
		}
		refs = ExtractHTMLReferences(doc.Selection, finalURL, p.opts.Selectors)
	case models.KindStylesheet:
		refs = ExtractCSSReferences(string(body), finalURL)
	default:
		return
	}

	for _, ref := range refs {
		p.frontier.Offer(ref.URL, entry.Depth+1, entry.URL, ref.Kind)
	}
}

// fail 标记记录失败, 已结束的记录不受影响
func (p *FetchPool) fail(entry models.FrontierEntry, err error) {
	if err == nil {
		err = models.ErrFetchFailure
	}
	rec := p.update(entry.Key, func(rec *models.ResourceRecord) {
		rec.Status = models.StatusFailed
		rec.Error = err.Error()
		p.stats.Failed++
	})
	if rec == nil {
		return
	}
	if errors.Is(err, models.ErrDomainMismatch) {
		utils.Debugf("跳过跨域重定向 [%s]: %v", entry.URL, err)
	} else {
		utils.Warnf("抓取失败 [%s]: %v", entry.URL, err)
	}
	p.notify(*rec)
}

// track 为新入队的URL建立待处理记录
func (p *FetchPool) track(entry models.FrontierEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.records[entry.Key]; exists {
		return
	}
	p.records[entry.Key] = &models.ResourceRecord{
		Key:       entry.Key,
		RemoteURL: entry.URL,
		SourceURL: entry.SourceURL,
		Depth:     entry.Depth,
		Kind:      entry.Hint,
		Status:    models.StatusPending,
	}
	p.stats.Discovered++
}

// update 在锁内修改仍处于pending状态的记录, 返回修改后的副本
func (p *FetchPool) update(key string, fn func(rec *models.ResourceRecord)) *models.ResourceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[key]
	if !ok || rec.Status != models.StatusPending {
		return nil
	}
	fn(rec)
	cp := *rec
	return &cp
}

func (p *FetchPool) notify(rec models.ResourceRecord) {
	if p.opts.OnRecord != nil {
		p.opts.OnRecord(rec)
	}
}

// reportProgress 周期性输出进度
func (p *FetchPool) reportProgress(stop <-chan struct{}) {
	ticker := time.NewTicker(p.opts.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s := p.Stats()
			utils.Infof("进度: 已发现 %d 个URL, 已下载 %d 个文件, 失败 %d 个, 待处理 %d 个",
				s.Discovered, s.Fetched, s.Failed, p.frontier.PendingCount())
		}
	}
}

// Stats 获取统计信息
func (p *FetchPool) Stats() models.JobStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Record 按URL查询记录
func (p *FetchPool) Record(rawURL string) (models.ResourceRecord, bool) {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return models.ResourceRecord{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[key]
	if !ok {
		return models.ResourceRecord{}, false
	}
	return *rec, true
}

// Records 返回所有记录的副本, 按规范化URL排序
func (p *FetchPool) Records() []models.ResourceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ResourceRecord, 0, len(p.records))
	for _, rec := range p.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

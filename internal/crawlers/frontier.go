package crawlers

import (
	"context"
	"sync"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/rs/zerolog/log"
)

// Frontier 去重、带深度的待抓取队列
// 职责: 域名门过滤、已访问去重、深度规则、并发安全的Offer/Take
//
// 所有状态由同一把互斥锁保护, 同一个URL只会交给一个worker
type Frontier struct {
	mu sync.Mutex

	// 待处理队列(FIFO)
	pending []models.FrontierEntry

	// 已入队的规范化URL集合
	visited map[string]bool

	// 已Take但尚未Done的数量
	inFlight int

	// 状态变化时关闭并替换, 用于唤醒阻塞在Take上的worker
	changed chan struct{}

	closed bool

	domain string
	config models.CrawlConfig
	robots *RobotsPolicy

	// 入队时在锁内回调, 先于唤醒worker执行
	onAdmit func(models.FrontierEntry)
}

// NewFrontier 创建队列实例, domain 为规范化后的任务域名
func NewFrontier(domain string, config models.CrawlConfig) *Frontier {
	return &Frontier{
		visited: make(map[string]bool),
		changed: make(chan struct{}),
		domain:  domain,
		config:  config,
	}
}

// SetRobots 设置robots.txt准入策略(可为nil)
func (f *Frontier) SetRobots(p *RobotsPolicy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.robots = p
}

// OnAdmit 设置入队回调
// 回调在持锁期间执行, 条目此时还不能被Take, 回调内不得再调用Frontier
func (f *Frontier) OnAdmit(fn func(models.FrontierEntry)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onAdmit = fn
}

// Seed 将入口URL以深度0入队
func (f *Frontier) Seed(rawURL string) error {
	u, err := ParseAbsolute(rawURL)
	if err != nil {
		return err
	}
	key := normalizeParsed(u)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visited[key] {
		return nil
	}
	f.visited[key] = true
	f.admitLocked(models.FrontierEntry{URL: u.String(), Key: key, Depth: 0})
	return nil
}

// Offer 尝试将发现的URL入队
// 准入条件: 同域名、未访问、robots允许、父资源允许展开(parent深度 = depth-1)
// 被拒绝不是错误, 返回false即可
func (f *Frontier) Offer(rawURL string, depth int, parent string, hint models.ResourceKind) bool {
	if depth < 1 {
		return false
	}
	u, err := ParseAbsolute(rawURL)
	if err != nil {
		return false
	}
	if CanonicalHost(u.Host) != f.domain {
		log.Trace().Str("url", rawURL).Str("domain", f.domain).Msg("跨域链接已过滤")
		return false
	}
	if !f.config.CanExpand(depth - 1) {
		return false
	}
	key := normalizeParsed(u)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.visited[key] {
		return false
	}
	if f.robots != nil && !f.robots.Allowed(u) {
		log.Debug().Str("url", rawURL).Msg("robots.txt 禁止抓取")
		return false
	}
	f.visited[key] = true
	u.Fragment = ""
	f.admitLocked(models.FrontierEntry{
		URL:       u.String(),
		Key:       key,
		Depth:     depth,
		SourceURL: parent,
		Hint:      hint,
	})
	return true
}

// admitLocked 追加条目并唤醒worker, 调用方需持有锁
func (f *Frontier) admitLocked(entry models.FrontierEntry) {
	if f.onAdmit != nil {
		f.onAdmit(entry)
	}
	f.pending = append(f.pending, entry)
	f.notifyLocked()
}

// Take 取出下一个待抓取项
// 队列为空但仍有在途抓取时阻塞等待; 队列耗尽(无待处理且无在途)、
// 队列关闭或ctx取消时返回false
func (f *Frontier) Take(ctx context.Context) (models.FrontierEntry, bool) {
	for {
		if ctx.Err() != nil {
			return models.FrontierEntry{}, false
		}

		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return models.FrontierEntry{}, false
		}
		if len(f.pending) > 0 {
			entry := f.pending[0]
			f.pending[0] = models.FrontierEntry{}
			f.pending = f.pending[1:]
			f.inFlight++
			f.mu.Unlock()
			return entry, true
		}
		if f.inFlight == 0 {
			f.mu.Unlock()
			return models.FrontierEntry{}, false
		}
		wait := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.FrontierEntry{}, false
		case <-wait:
		}
	}
}

// Done 标记一个Take出的项已处理完毕(成功或失败)
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight > 0 {
		f.inFlight--
	}
	f.notifyLocked()
}

// Close 关闭队列, 之后Offer返回false, Take立即返回
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.notifyLocked()
	}
}

// notifyLocked 唤醒所有等待者, 调用方必须持有锁
func (f *Frontier) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// IsVisited 检查URL是否已入队过
func (f *Frontier) IsVisited(rawURL string) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited[key]
}

// PendingCount 当前待处理数量
func (f *Frontier) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// InFlight 当前在途数量
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Admitted 累计入队数量
func (f *Frontier) Admitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

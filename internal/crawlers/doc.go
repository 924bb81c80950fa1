// Package crawlers 提供站点镜像的抓取引擎
//
// # 概述
//
// crawlers包负责从入口URL出发,在同一域名内并发抓取页面及其引用的资源,
// 并把每个资源落盘到任务根目录下与URL路径结构一致的位置。
//
// # 核心组件
//
// ## 规范化与域名门 (normalize.go)
//
// ParseAbsolute 校验并解析入口URL; CanonicalHost 统一主机名(小写、去端口、
// IDN转ASCII、去掉 "www.");NormalizeURL 生成去重键。
// 域名门只比较规范化后的主机名,被拒绝的URL静默丢弃。
//
// ## Frontier (frontier.go)
//
// 带深度的FIFO队列,以规范化URL去重。入口深度为0,发现的资源深度为父资源深度+1。
// 深度规则:
//
//	资源在深度d展开其引用 ⇔ (recursive || d == 0) && (maxDepth < 0 || d <= maxDepth)
//
// Take 在队列为空但仍有在途抓取时阻塞,队列耗尽或ctx取消时返回false。
//
// ## FetchPool (pool.go)
//
// 固定数量的worker共享一个Colly collector(同步模式),每个worker循环执行
// Take → 请求 → 分类 → 落盘 → 提取引用 → Offer。单个资源失败只记录在
// ResourceRecord上,不影响其他资源。
//
//	frontier := NewFrontier(domain, cfg)
//	mapper := NewOsResourceMapper(rootDir)
//	pool := NewFetchPool(frontier, mapper, cfg, PoolOptions{})
//	if err := pool.Seed("https://example.com"); err != nil { /* InvalidURL */ }
//	pool.Run(ctx)
//
// ## ResourceMapper (mapper.go)
//
// 确定性的URL→本地路径映射:
//   - 空路径或以 "/" 结尾 → index.html
//   - 无扩展名的文档 → <path>/index.html
//   - 非HTML扩展名的文档 → 追加 ".html"
//   - 带查询串 → 扩展名前插入 "_<hash8>"
//   - 路径段中的 ".."、分隔符与非法字符被替换,结果不会逃出根目录
//
// ## LinkRewriter (rewriter.go)
//
// 抓取结束后把文档与样式表中指向已抓取资源的引用改写为相对路径。
//
// ## ResourceMonitor (resource_monitor.go)
//
// 可选的worker数上限,基于gopsutil采样的可用内存和CPU负载。
//
// # 并发安全
//
// Frontier、FetchPool、ResourceMapper 内部均以互斥锁保护共享状态,可被任意数量的worker并发调用。
package crawlers

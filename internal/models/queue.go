package models

// FrontierEntry 队列中的一个待抓取项
type FrontierEntry struct {
	// URL 完整的URL字符串
	URL string

	// Key 规范化后的去重键
	Key string

	// Depth 深度层级
	//   - 0: 入口URL
	//   - 1: 入口页面直接引用的资源
	//   - 以此类推...
	Depth int

	// SourceURL 发现此URL的页面(入口为空)
	SourceURL string

	// Hint 发现该URL的选择器给出的资源类型提示
	Hint ResourceKind
}

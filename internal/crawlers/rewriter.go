package crawlers

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
)

// LinkRewriter 将已抓取文档与样式表中的引用改写为本地相对路径
// 只改写指向已成功抓取资源的引用, 其余保持原样
type LinkRewriter struct {
	mapper    *ResourceMapper
	selectors []ResourceSelector
	fetched   map[string]models.ResourceRecord // 规范化URL -> 已抓取记录
}

// NewLinkRewriter 创建链接改写器
func NewLinkRewriter(mapper *ResourceMapper, records []models.ResourceRecord, selectors []ResourceSelector) *LinkRewriter {
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}
	fetched := make(map[string]models.ResourceRecord)
	for _, rec := range records {
		if rec.Status == models.StatusFetched && rec.LocalPath != "" {
			fetched[rec.Key] = rec
		}
	}
	return &LinkRewriter{mapper: mapper, selectors: selectors, fetched: fetched}
}

// RewriteAll 改写所有已抓取的文档与样式表, 返回被修改的文件数
// 单个文件失败只记录日志
func (lr *LinkRewriter) RewriteAll() int {
	rewritten := 0
	for _, rec := range lr.fetched {
		if rec.Kind != models.KindDocument && rec.Kind != models.KindStylesheet {
			continue
		}
		changed, err := lr.rewriteFile(rec)
		if err != nil {
			utils.Warnf("改写链接失败 [%s]: %v", rec.LocalPath, err)
			continue
		}
		if changed {
			rewritten++
		}
	}
	return rewritten
}

func (lr *LinkRewriter) rewriteFile(rec models.ResourceRecord) (bool, error) {
	data, err := lr.mapper.Read(rec.LocalPath)
	if err != nil {
		return false, err
	}
	baseRaw := rec.FinalURL
	if baseRaw == "" {
		baseRaw = rec.RemoteURL
	}
	base, err := url.Parse(baseRaw)
	if err != nil {
		return false, fmt.Errorf("无效的基准URL: %w", err)
	}

	var out []byte
	var changed bool
	if rec.Kind == models.KindDocument {
		out, changed, err = lr.rewriteHTML(data, base, rec.LocalPath)
		if err != nil {
			return false, err
		}
	} else {
		css := RewriteCSS(string(data), lr.resolver(base, rec.LocalPath, &changed))
		out = []byte(css)
	}
	if !changed {
		return false, nil
	}
	return true, lr.mapper.Write(rec.LocalPath, out)
}

func (lr *LinkRewriter) rewriteHTML(data []byte, base *url.URL, from string) ([]byte, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("解析HTML失败: %w", err)
	}
	base = DocumentBase(doc.Selection, base)

	var changed bool
	resolve := lr.resolver(base, from, &changed)

	for _, s := range lr.selectors {
		doc.Find(s.Selector).Each(func(_ int, sel *goquery.Selection) {
			val, ok := sel.Attr(s.Attr)
			if !ok {
				return
			}
			if local, ok := resolve(val); ok {
				sel.SetAttr(s.Attr, local)
			}
		})
	}
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		css := sel.Text()
		if out := RewriteCSS(css, resolve); out != css {
			sel.SetText(out)
		}
	})
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		css := sel.AttrOr("style", "")
		if out := RewriteCSS(css, resolve); out != css {
			sel.SetAttr("style", out)
		}
	})

	if !changed {
		return nil, false, nil
	}
	// 本地副本中的<base>会让相对路径指回远端
	doc.Find("base").Remove()

	html, err := doc.Html()
	if err != nil {
		return nil, false, fmt.Errorf("序列化HTML失败: %w", err)
	}
	return []byte(html), true, nil
}

// resolver 返回引用→本地相对路径的替换函数
func (lr *LinkRewriter) resolver(base *url.URL, from string, changed *bool) func(string) (string, bool) {
	return func(ref string) (string, bool) {
		abs, ok := ResolveReference(base, ref)
		if !ok {
			return "", false
		}
		target, ok := lr.fetched[normalizeParsed(abs)]
		if !ok {
			return "", false
		}
		local := RelativeLink(from, target.LocalPath)
		if abs.Fragment != "" {
			local += "#" + abs.Fragment
		}
		*changed = true
		return local, true
	}
}

package crawlers

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/sitesnap/internal/models"
)

// Reference 页面或样式表中发现的一个引用
type Reference struct {
	URL  string
	Kind models.ResourceKind
}

var (
	cssURLPattern    = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+?)(['"]?)\s*\)`)
	cssImportPattern = regexp.MustCompile(`@import\s+(['"])([^'"]+)(['"])`)
)

// ExtractHTMLReferences 按选择器表从文档中提取引用(含<style>块与style属性中的url())
func ExtractHTMLReferences(doc *goquery.Selection, base *url.URL, table []ResourceSelector) []Reference {
	base = DocumentBase(doc, base)
	var refs []Reference
	for _, s := range table {
		doc.Find(s.Selector).Each(func(_ int, sel *goquery.Selection) {
			val, ok := sel.Attr(s.Attr)
			if !ok {
				return
			}
			if abs, ok := ResolveReference(base, val); ok {
				refs = append(refs, Reference{URL: abs.String(), Kind: s.Kind})
			}
		})
	}
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		refs = append(refs, ExtractCSSReferences(sel.Text(), base)...)
	})
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		refs = append(refs, ExtractCSSReferences(sel.AttrOr("style", ""), base)...)
	})
	return refs
}

// ExtractCSSReferences 提取样式表中的 url(...) 与 @import 引用
func ExtractCSSReferences(css string, base *url.URL) []Reference {
	var refs []Reference
	for _, m := range cssURLPattern.FindAllStringSubmatch(css, -1) {
		if abs, ok := ResolveReference(base, m[2]); ok {
			refs = append(refs, Reference{URL: abs.String(), Kind: models.KindImage})
		}
	}
	for _, m := range cssImportPattern.FindAllStringSubmatch(css, -1) {
		if abs, ok := ResolveReference(base, m[2]); ok {
			refs = append(refs, Reference{URL: abs.String(), Kind: models.KindStylesheet})
		}
	}
	return refs
}

// RewriteCSS 用replace替换样式表中的引用, replace返回false时保持原样
func RewriteCSS(css string, replace func(ref string) (string, bool)) string {
	css = cssURLPattern.ReplaceAllStringFunc(css, func(match string) string {
		m := cssURLPattern.FindStringSubmatch(match)
		if m[1] != m[3] {
			return match
		}
		if local, ok := replace(m[2]); ok {
			return "url(" + m[1] + local + m[3] + ")"
		}
		return match
	})
	return cssImportPattern.ReplaceAllStringFunc(css, func(match string) string {
		m := cssImportPattern.FindStringSubmatch(match)
		if m[1] != m[3] {
			return match
		}
		if local, ok := replace(m[2]); ok {
			return "@import " + m[1] + local + m[3]
		}
		return match
	})
}

// DocumentBase 处理 <base href>
func DocumentBase(doc *goquery.Selection, base *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return base
	}
	if abs, ok := ResolveReference(base, href); ok {
		return abs
	}
	return base
}

package crawlers

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/andybalholm/cascadia"
)

// ResourceSelector 资源选择器表中的一项
// Selector 为CSS选择器, Attr 为承载URL的属性, Kind 为资源类型提示
type ResourceSelector struct {
	Selector string              `mapstructure:"selector" json:"selector"`
	Attr     string              `mapstructure:"attr" json:"attr"`
	Kind     models.ResourceKind `mapstructure:"kind" json:"kind"`
}

// DefaultSelectors 默认的标签→属性提取表
var DefaultSelectors = []ResourceSelector{
	{Selector: "img[src]", Attr: "src", Kind: models.KindImage},
	{Selector: "link[rel=stylesheet][href]", Attr: "href", Kind: models.KindStylesheet},
	{Selector: "link[rel~=icon][href]", Attr: "href", Kind: models.KindImage},
	{Selector: "script[src]", Attr: "src", Kind: models.KindScript},
	{Selector: "a[href]", Attr: "href", Kind: models.KindDocument},
	{Selector: "iframe[src]", Attr: "src", Kind: models.KindDocument},
	{Selector: "video[poster]", Attr: "poster", Kind: models.KindImage},
	{Selector: "source[src]", Attr: "src", Kind: models.KindOther},
}

var validKinds = map[models.ResourceKind]bool{
	models.KindDocument:   true,
	models.KindStylesheet: true,
	models.KindScript:     true,
	models.KindImage:      true,
	models.KindOther:      true,
}

// ValidateSelectors 检查选择器表: 选择器可编译、属性非空、类型合法
func ValidateSelectors(table []ResourceSelector) error {
	if len(table) == 0 {
		return fmt.Errorf("选择器表不能为空")
	}
	for i, s := range table {
		if _, err := cascadia.Compile(s.Selector); err != nil {
			return fmt.Errorf("第%d项选择器无效 [%s]: %w", i+1, s.Selector, err)
		}
		if strings.TrimSpace(s.Attr) == "" {
			return fmt.Errorf("第%d项缺少属性名 [%s]", i+1, s.Selector)
		}
		if !validKinds[s.Kind] {
			return fmt.Errorf("第%d项资源类型无效: %q", i+1, s.Kind)
		}
	}
	return nil
}

package crawlers

import (
	"strings"
	"testing"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/spf13/afero"
)

func fetchedRecord(t *testing.T, rawURL, local string, kind models.ResourceKind) models.ResourceRecord {
	t.Helper()
	key, err := NormalizeURL(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	return models.ResourceRecord{
		Key:       key,
		RemoteURL: rawURL,
		LocalPath: local,
		Kind:      kind,
		Status:    models.StatusFetched,
	}
}

func TestLinkRewriter_RewriteAll(t *testing.T) {
	m := NewResourceMapper(afero.NewMemMapFs())
	files := map[string]string{
		"index.html": `<html><head><base href="https://example.com/"><link rel="stylesheet" href="css/site.css"></head>
<body><a href="/about#team">about</a><img src="img/logo.png"><a href="/missing">x</a>
<a href="https://other.org/">ext</a><div style="background:url(/img/logo.png)"></div></body></html>`,
		"about/index.html": `<html><body><img src="/img/logo.png"><a href="/">home</a></body></html>`,
		"css/site.css":     `body { background: url('../img/logo.png') } @import "/css/extra.css";`,
		"img/logo.png":     "PNG",
	}
	for p, body := range files {
		if err := m.Write(p, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}

	records := []models.ResourceRecord{
		fetchedRecord(t, "https://example.com/", "index.html", models.KindDocument),
		fetchedRecord(t, "https://example.com/about", "about/index.html", models.KindDocument),
		fetchedRecord(t, "https://example.com/css/site.css", "css/site.css", models.KindStylesheet),
		fetchedRecord(t, "https://example.com/img/logo.png", "img/logo.png", models.KindImage),
		{Key: "https://example.com/missing", Status: models.StatusFailed},
	}

	n := NewLinkRewriter(m, records, nil).RewriteAll()
	if n != 3 {
		t.Errorf("RewriteAll() = %d, 期望 3", n)
	}

	index, _ := m.Read("index.html")
	for _, want := range []string{
		`href="css/site.css"`,
		`href="about/index.html#team"`,
		`src="img/logo.png"`,
		`href="/missing"`,
		`href="https://other.org/"`,
		`url(img/logo.png)`,
	} {
		if !strings.Contains(string(index), want) {
			t.Errorf("index.html 缺少 %s:\n%s", want, index)
		}
	}
	if strings.Contains(string(index), "<base") {
		t.Error("改写后应移除<base>")
	}

	about, _ := m.Read("about/index.html")
	if !strings.Contains(string(about), `src="../img/logo.png"`) || !strings.Contains(string(about), `href="../index.html"`) {
		t.Errorf("about/index.html 改写结果错误:\n%s", about)
	}

	css, _ := m.Read("css/site.css")
	if !strings.Contains(string(css), `url('../img/logo.png')`) {
		t.Errorf("样式表引用应保持为相对路径:\n%s", css)
	}
	if !strings.Contains(string(css), `@import "/css/extra.css"`) {
		t.Errorf("未抓取的@import应保持原样:\n%s", css)
	}

	png, _ := m.Read("img/logo.png")
	if string(png) != "PNG" {
		t.Error("非文档资源不应被修改")
	}
}

func TestLinkRewriter_SkipsUnchanged(t *testing.T) {
	m := NewResourceMapper(afero.NewMemMapFs())
	original := `<html><body><p>no links</p></body></html>`
	if err := m.Write("index.html", []byte(original)); err != nil {
		t.Fatal(err)
	}
	records := []models.ResourceRecord{
		fetchedRecord(t, "https://example.com/", "index.html", models.KindDocument),
	}
	if n := NewLinkRewriter(m, records, nil).RewriteAll(); n != 0 {
		t.Errorf("RewriteAll() = %d, 期望 0", n)
	}
	data, _ := m.Read("index.html")
	if string(data) != original {
		t.Error("无引用的文档不应被重写")
	}
}

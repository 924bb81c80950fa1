package crawlers

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// maxSegmentLen 单个路径段的最大长度, 超出部分截断并追加哈希
const maxSegmentLen = 120

// ResourceMapper 将远程URL映射为任务根目录下的本地相对路径
//
// 映射只取决于URL的路径与查询串(主机名被忽略, 所有资源同域),
// 同一规范化URL总是得到同一路径; 不同URL映射到同一路径时,
// 后到者追加其规范化URL的哈希. 文件与目录同名时同样由后到者让路
type ResourceMapper struct {
	fs afero.Fs

	mu     sync.Mutex
	byKey  map[string]string // 规范化URL -> 本地路径
	owners map[string]string // 本地路径 -> 规范化URL
	dirs   map[string]bool   // 已映射文件的所有父目录
}

// NewResourceMapper 创建映射器, fs 的根即任务根目录
func NewResourceMapper(fs afero.Fs) *ResourceMapper {
	return &ResourceMapper{
		fs:     fs,
		byKey:  make(map[string]string),
		owners: make(map[string]string),
		dirs:   make(map[string]bool),
	}
}

// NewOsResourceMapper 以磁盘目录root为根创建映射器
func NewOsResourceMapper(root string) *ResourceMapper {
	return NewResourceMapper(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// Fs 返回任务根目录的文件系统
func (m *ResourceMapper) Fs() afero.Fs {
	return m.fs
}

// MapToLocalPath 返回URL对应的本地相对路径(斜杠分隔)
// kind 为响应分类结果, 文档类资源总是落到 .html 文件
func (m *ResourceMapper) MapToLocalPath(rawURL string, kind models.ResourceKind) (string, error) {
	u, err := ParseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	key := normalizeParsed(u)

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.byKey[key]; ok {
		return p, nil
	}

	base := m.relocateLocked(candidatePath(u, kind))
	local := base
	for i := 0; ; i++ {
		owner, taken := m.owners[local]
		if (!taken || owner == key) && !m.dirs[local] {
			break
		}
		local = withSuffix(base, shortHash(fmt.Sprintf("%s#%d", key, i)))
	}
	m.byKey[key] = local
	m.owners[local] = key
	for dir := path.Dir(local); dir != "."; dir = path.Dir(dir) {
		m.dirs[dir] = true
	}
	return local, nil
}

// relocateLocked 父目录与已映射文件同名时改用带哈希的目录名
// 哈希只取决于目录前缀, 同一目录下的资源仍落在一起
func (m *ResourceMapper) relocateLocked(local string) string {
	segments := strings.Split(local, "/")
	prefix := ""
	for i, seg := range segments[:len(segments)-1] {
		if prefix != "" {
			prefix += "/"
		}
		prefix += seg
		for {
			if _, isFile := m.owners[prefix]; !isFile {
				break
			}
			prefix = withSuffix(prefix, shortHash(prefix+"/"))
		}
		segments[i] = path.Base(prefix)
	}
	return strings.Join(segments, "/")
}

// Lookup 返回已映射URL的本地路径
func (m *ResourceMapper) Lookup(rawURL string) (string, bool) {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byKey[key]
	return p, ok
}

// Write 写入文件, 自动创建父目录
func (m *ResourceMapper) Write(localPath string, data []byte) error {
	name := filepath.FromSlash(localPath)
	if err := m.fs.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if err := afero.WriteFile(m.fs, name, data, 0644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}

// Read 读取已写入的文件
func (m *ResourceMapper) Read(localPath string) ([]byte, error) {
	return afero.ReadFile(m.fs, filepath.FromSlash(localPath))
}

// Exists 本地文件是否存在
func (m *ResourceMapper) Exists(localPath string) bool {
	_, err := m.fs.Stat(filepath.FromSlash(localPath))
	return !os.IsNotExist(err)
}

// candidatePath 计算未消歧的本地路径
func candidatePath(u *url.URL, kind models.ResourceKind) string {
	raw := u.EscapedPath()
	trailing := raw == "" || strings.HasSuffix(raw, "/")

	var segments []string
	for _, seg := range strings.Split(raw, "/") {
		if seg == "" {
			continue
		}
		if dec, err := url.PathUnescape(seg); err == nil {
			seg = dec
		}
		segments = append(segments, sanitizeSegment(seg))
	}

	if trailing || len(segments) == 0 {
		segments = append(segments, "index.html")
	} else if kind == models.KindDocument {
		last := segments[len(segments)-1]
		switch ext := strings.ToLower(path.Ext(last)); ext {
		case ".html", ".htm":
		case "":
			segments = append(segments, "index.html")
		default:
			segments[len(segments)-1] = last + ".html"
		}
	}

	local := strings.Join(segments, "/")
	if u.RawQuery != "" {
		local = withSuffix(local, shortHash(u.RawQuery))
	}
	return local
}

// sanitizeSegment 去掉路径段中不能落盘或可能逃出根目录的字符
func sanitizeSegment(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(`/\:*?"<>|#`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "." || s == ".." || strings.Trim(s, ". ") == "" {
		s = strings.Repeat("_", len(s))
	}
	if len(s) > maxSegmentLen {
		ext := path.Ext(s)
		if len(ext) > 16 {
			ext = ""
		}
		cut := maxSegmentLen - len(ext) - 9
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "_" + shortHash(s) + ext
	}
	return s
}

// withSuffix 在扩展名前插入 "_<suffix>"
func withSuffix(local, suffix string) string {
	dir, file := path.Split(local)
	ext := path.Ext(file)
	return dir + strings.TrimSuffix(file, ext) + "_" + suffix + ext
}

func shortHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))[:8]
}

// RelativeLink 计算从文件from指向文件to的相对链接(均为根目录下的斜杠路径)
func RelativeLink(from, to string) string {
	rel, err := filepath.Rel(filepath.FromSlash(path.Dir(from)), filepath.FromSlash(to))
	if err != nil {
		return to
	}
	return filepath.ToSlash(rel)
}

// Package layout loads plate layouts and answers point lookups by
// (plate, treatment, replicate, vendor, well).
package layout

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dirmeier/tixparser/internal/domain"
)

// Layout 是只读的孔位布局：加载完成后不再修改，可被多个 goroutine 并发查询而无需加锁。
type Layout struct {
	path    string
	entries map[domain.LayoutKey]domain.LayoutEntry
}

// Load 把布局文件完整读入内存。格式由扩展名决定：
//   - .yaml/.yml：entries 列表
//   - .csv：逗号分隔，首行为表头
//   - 其他（.tsv/.txt/无扩展名）：制表符分隔，首行为表头
//
// 任何失败都返回 *LoadError（not_found / unreadable / malformed），绝不返回半成品布局。
func Load(path string) (*Layout, error) {
	path = filepath.Clean(strings.TrimSpace(path))

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Err: err}
		}
		return nil, &LoadError{Code: ErrCodeUnreadable, Path: path, Err: err}
	}
	defer f.Close()

	if fi, err := f.Stat(); err != nil {
		return nil, &LoadError{Code: ErrCodeUnreadable, Path: path, Err: err}
	} else if fi.IsDir() {
		return nil, &LoadError{Code: ErrCodeUnreadable, Path: path, Err: errors.New("是目录而不是文件")}
	}

	b := newBuilder(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = readYAML(f, b)
	case ".csv":
		err = readTable(f, ',', b)
	default:
		err = readTable(f, '\t', b)
	}
	if err != nil {
		return nil, err
	}
	if len(b.entries) == 0 {
		return nil, malformed(path, 0, "没有任何布局条目")
	}

	return &Layout{path: path, entries: b.entries}, nil
}

// Find 按五元主键查找孔位元数据；ok=false 表示布局中没有该坐标（与加载失败是两回事）。
func (l *Layout) Find(key domain.LayoutKey) (domain.LayoutEntry, bool) {
	if l == nil {
		return domain.LayoutEntry{}, false
	}
	e, ok := l.entries[key]
	return e, ok
}

// FindParts 是 Find 的便捷形式：参数会先经过与加载时相同的规范化。
// 参数不合法（例如 well 越界）同样视为未找到。
func (l *Layout) FindParts(plate, treatment string, replicate int, vendor, well string) (domain.LayoutEntry, bool) {
	k, err := domain.NewLayoutKey(plate, treatment, replicate, vendor, well)
	if err != nil {
		return domain.LayoutEntry{}, false
	}
	return l.Find(k)
}

// Len 返回条目数。
func (l *Layout) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Path 返回加载时使用的文件路径（clean 后）。
func (l *Layout) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Keys 返回全部主键（按 plate/classifier/well 排序，保证稳定）。
func (l *Layout) Keys() []domain.LayoutKey {
	if l == nil {
		return nil
	}
	keys := make([]domain.LayoutKey, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

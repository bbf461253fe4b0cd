package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dirmeier/tixparser/internal/domain"
)

// ListPlate 列出板目录下的候选文件名（不递归，只保留普通文件）。
//
// 规则（硬约束）：
// - 只看 root 这一层；子目录、符号链接、设备文件等一律跳过
// - exts 非空时按扩展名（不区分大小写）过滤；为空表示不过滤
// - 输出按文件名字典序排序，保证同一目录快照的多次扫描顺序一致
//
// 注意：列目录阶段只读目录项，不 stat、不读文件内容；stat 留给 Describe 按需执行。
func ListPlate(root string, exts []string) ([]string, error) {
	root = filepath.Clean(root)

	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%q 不是目录", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	allow := buildExtSet(exts)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if allow != nil {
			if _, ok := allow[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
				continue
			}
		}
		names = append(names, e.Name())
	}

	// os.ReadDir 已按文件名排序；这里仍显式排序，避免依赖实现细节。
	sort.Strings(names)
	return names, nil
}

// Describe 对 root 下的单个文件做 stat，构造 PlateFile。
// 文件在列目录之后被删除/替换为非普通文件时返回错误。
func Describe(root, name string) (domain.PlateFile, error) {
	root = filepath.Clean(root)
	path := filepath.Join(root, name)

	info, err := os.Lstat(path)
	if err != nil {
		return domain.PlateFile{}, err
	}
	if !info.Mode().IsRegular() {
		return domain.PlateFile{}, fmt.Errorf("%q 不再是普通文件（%s）", path, info.Mode().Type())
	}

	ext := filepath.Ext(name)
	return domain.PlateFile{
		AbsPath: path,
		RelPath: name,
		Base:    strings.TrimSuffix(name, ext),
		Ext:     strings.ToLower(ext),
		Size:    info.Size(),
		ModUnix: info.ModTime().Unix(),
	}, nil
}

// NormalizeExts 把扩展名列表规范为小写、带前导 '.'，去空去重并排序。
func NormalizeExts(exts []string) []string {
	set := buildExtSet(exts)
	if set == nil {
		return nil
	}
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func buildExtSet(exts []string) map[string]struct{} {
	var set map[string]struct{}
	for _, x := range exts {
		x = strings.ToLower(strings.TrimSpace(x))
		if x == "" {
			continue
		}
		if !strings.HasPrefix(x, ".") {
			x = "." + x
		}
		if set == nil {
			set = make(map[string]struct{}, len(exts))
		}
		set[x] = struct{}{}
	}
	return set
}

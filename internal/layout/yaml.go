package layout

import (
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// readYAML 读取如下结构：
//
//	entries:
//	  - plate: cb01-1a10a
//	    treatment: adeno
//	    replicate: 1
//	    vendor: selleck
//	    well: a1
//	    gene: PIK3CA
//
// 逐节点解析以便报错时带上行号。
func readYAML(r io.Reader, b *builder) error {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return malformed(b.path, 0, "文件为空")
		}
		return malformed(b.path, 0, "YAML 解析失败：%v", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return malformed(b.path, 0, "文件为空")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return malformed(b.path, root.Line, "顶层必须是映射（包含 entries）")
	}

	var entries *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "entries" {
			entries = root.Content[i+1]
			break
		}
	}
	if entries == nil {
		return malformed(b.path, root.Line, "缺少 entries")
	}
	if entries.Kind != yaml.SequenceNode {
		return malformed(b.path, entries.Line, "entries 必须是列表")
	}

	for _, item := range entries.Content {
		if item.Kind != yaml.MappingNode {
			return malformed(b.path, item.Line, "entries 的元素必须是映射")
		}
		fields := make(map[string]string, len(item.Content)/2)
		for i := 0; i+1 < len(item.Content); i += 2 {
			k, v := item.Content[i], item.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return malformed(b.path, v.Line, "字段 %s 必须是标量", k.Value)
			}
			c := canonicalColumn(k.Value)
			if _, dup := fields[c]; dup {
				return malformed(b.path, k.Line, "重复字段：%s", c)
			}
			fields[c] = strings.TrimSpace(v.Value)
		}
		if err := b.add(item.Line, fields); err != nil {
			return err
		}
	}
	return nil
}

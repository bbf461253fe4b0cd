package layout

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// readTable 读取带表头的分隔文本（TSV/CSV）。空行跳过；字段去首尾空白。
func readTable(r io.Reader, comma rune, b *builder) error {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return malformed(b.path, 0, "文件为空")
		}
		return malformed(b.path, 1, "无法读取表头：%v", err)
	}

	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		c := canonicalColumn(h)
		if c == "" {
			return malformed(b.path, 1, "第 %d 列表头为空", i+1)
		}
		if seen[c] {
			return malformed(b.path, 1, "重复列：%s", c)
		}
		seen[c] = true
		cols[i] = c
	}
	for _, c := range requiredColumns {
		if !seen[c] {
			return malformed(b.path, 1, "缺少必填列 %s", c)
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return malformed(b.path, line, "%v", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(rec) {
			continue
		}
		if len(rec) > len(cols) {
			return malformed(b.path, line, "字段数 %d 多于表头列数 %d", len(rec), len(cols))
		}

		fields := make(map[string]string, len(cols))
		for i, v := range rec {
			fields[cols[i]] = strings.TrimSpace(v)
		}
		if err := b.add(line, fields); err != nil {
			return err
		}
	}
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Package tsvout writes scanned cell features as a flat tab separated table,
// one line per feature file.
package tsvout

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/dirmeier/tixparser/internal/domain"
	"github.com/dirmeier/tixparser/internal/infra/fsx"
)

// Header 是输出表的固定列顺序。
var Header = []string{
	"treatment", "vendor", "library", "replicate", "plate",
	"sirna", "gene", "well", "welltype", "feature", "file",
}

// Encode 把报告条目写为 TSV：首行为 Header，之后每个成功解析的文件一行。
//
// 规则：
// - failed 条目与合成条目（File==""）不输出
// - 值统一小写；字段内的制表符/换行替换为空格，保证列数固定
// - 行顺序与 items 顺序一致（调用方负责排序）
func Encode(w io.Writer, items []domain.ItemResult) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, "\t") + "\n"); err != nil {
		return err
	}

	row := make([]string, len(Header))
	for _, it := range items {
		if it.File == "" || it.Status == domain.StatusFailed {
			continue
		}
		row[0] = it.Treatment
		row[1] = it.Vendor
		row[2] = it.Library
		row[3] = strconv.Itoa(it.Replicate)
		row[4] = it.Plate
		row[5] = it.SiRNA
		row[6] = it.Gene
		row[7] = it.Well
		row[8] = it.WellType
		row[9] = it.Feature
		row[10] = it.File
		for i := range row {
			row[i] = clean(row[i])
		}
		if _, err := bw.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile 原子写出 TSV 文件（已存在则覆盖）。
func WriteFile(path string, items []domain.ItemResult) error {
	return fsx.WriteAtomic(path, func(w io.Writer) error {
		return Encode(w, items)
	})
}

var fieldReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(fieldReplacer.Replace(s)))
}

package layout

import (
	"strconv"

	"github.com/dirmeier/tixparser/internal/domain"
)

const (
	colPlate     = "plate"
	colTreatment = "treatment"
	colReplicate = "replicate"
	colVendor    = "vendor"
	colWell      = "well"
	colSiRNA     = "sirna"
	colGene      = "gene"
	colWellType  = "welltype"
	colLibrary   = "library"
)

var requiredColumns = []string{colPlate, colTreatment, colReplicate, colVendor, colWell}

// 列名同义词（规范化后比较）。未列出的列一律作为 annotation 保留。
var columnAliases = map[string]string{
	"plate":          colPlate,
	"barcode":        colPlate,
	"treatment":      colTreatment,
	"pathogen":       colTreatment,
	"replicate":      colReplicate,
	"vendor":         colVendor,
	"library_vendor": colVendor,
	"well":           colWell,
	"sirna":          colSiRNA,
	"gene":           colGene,
	"welltype":       colWellType,
	"well_type":      colWellType,
	"library":        colLibrary,
	"library_type":   colLibrary,
}

func canonicalColumn(name string) string {
	n := domain.NormalizeToken(name)
	if c, ok := columnAliases[n]; ok {
		return c
	}
	return n
}

func isStandardColumn(c string) bool {
	switch c {
	case colPlate, colTreatment, colReplicate, colVendor, colWell, colSiRNA, colGene, colWellType, colLibrary:
		return true
	default:
		return false
	}
}

// builder 累积各格式读出的记录，统一做校验与去重。
type builder struct {
	path    string
	entries map[domain.LayoutKey]domain.LayoutEntry
}

func newBuilder(path string) *builder {
	return &builder{
		path:    path,
		entries: make(map[domain.LayoutKey]domain.LayoutEntry, 1024),
	}
}

// add 接收一条记录（key 已经是规范列名）。重复主键：内容相同视为幂等，内容不同则报错。
func (b *builder) add(line int, fields map[string]string) error {
	for _, c := range requiredColumns {
		if fields[c] == "" {
			return malformed(b.path, line, "缺少必填字段 %s", c)
		}
	}

	rep, err := strconv.Atoi(fields[colReplicate])
	if err != nil {
		return malformed(b.path, line, "replicate 不是整数：%q", fields[colReplicate])
	}
	key, err := domain.NewLayoutKey(fields[colPlate], fields[colTreatment], rep, fields[colVendor], fields[colWell])
	if err != nil {
		return malformed(b.path, line, "%v", err)
	}

	var ann map[string]string
	for k, v := range fields {
		if isStandardColumn(k) || v == "" {
			continue
		}
		if ann == nil {
			ann = make(map[string]string, 4)
		}
		ann[k] = v
	}
	entry := domain.NewLayoutEntry(fields[colSiRNA], fields[colGene], fields[colWellType], fields[colLibrary], ann)

	if prev, ok := b.entries[key]; ok {
		if prev.Equal(entry) {
			return nil
		}
		return malformed(b.path, line, "主键 %s 重复且内容冲突", key)
	}
	b.entries[key] = entry
	return nil
}

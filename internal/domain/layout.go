package domain

import (
	"fmt"
	"maps"
	"strconv"
)

// LayoutKey 是布局查找的五元主键：(plate, treatment, replicate, vendor, well)。
//
// 不变量：字符串字段均已经过 NormalizeToken；Well 已经过 ParseWell。
// 只能通过 NewLayoutKey 构造，保证同一逻辑键只有一种内存表示（可直接做 map key）。
type LayoutKey struct {
	Plate     string
	Treatment string
	Replicate int
	Vendor    string
	Well      Well
}

// NewLayoutKey 规范化并校验五个坐标分量。
func NewLayoutKey(plate, treatment string, replicate int, vendor, well string) (LayoutKey, error) {
	k := LayoutKey{
		Plate:     NormalizeToken(plate),
		Treatment: NormalizeToken(treatment),
		Replicate: replicate,
		Vendor:    NormalizeToken(vendor),
	}
	switch {
	case k.Plate == "":
		return LayoutKey{}, fmt.Errorf("plate 不能为空")
	case k.Treatment == "":
		return LayoutKey{}, fmt.Errorf("treatment 不能为空")
	case k.Vendor == "":
		return LayoutKey{}, fmt.Errorf("vendor 不能为空")
	case replicate < 1:
		return LayoutKey{}, fmt.Errorf("replicate 必须 >= 1，实际是 %d", replicate)
	}
	w, ok := ParseWell(well)
	if !ok {
		return LayoutKey{}, fmt.Errorf("非法 well：%q", well)
	}
	k.Well = w
	return k, nil
}

// Classifier 返回 "<treatment>-<vendor>-<replicate>"，与文件名/目录名中的写法一致。
func (k LayoutKey) Classifier() string {
	return k.Treatment + "-" + k.Vendor + "-" + strconv.Itoa(k.Replicate)
}

func (k LayoutKey) String() string {
	return k.Plate + "/" + k.Classifier() + "/" + string(k.Well)
}

// Less 定义主键的稳定顺序：plate → treatment → vendor → replicate → 行 → 列（列按数值比较）。
func (k LayoutKey) Less(o LayoutKey) bool {
	if k.Plate != o.Plate {
		return k.Plate < o.Plate
	}
	if k.Treatment != o.Treatment {
		return k.Treatment < o.Treatment
	}
	if k.Vendor != o.Vendor {
		return k.Vendor < o.Vendor
	}
	if k.Replicate != o.Replicate {
		return k.Replicate < o.Replicate
	}
	if k.Well.Row() != o.Well.Row() {
		return k.Well.Row() < o.Well.Row()
	}
	return k.Well.Column() < o.Well.Column()
}

// LayoutEntry 是某个孔位的布局元数据（不可变值）。
// Annotations 保存来源中除标准列以外的全部列，只能通过拷贝访问。
type LayoutEntry struct {
	SiRNA    string
	Gene     string
	WellType string
	Library  string

	annotations map[string]string
}

// NewLayoutEntry 构造条目；annotations 会被拷贝，调用方之后的修改不影响条目。
func NewLayoutEntry(sirna, gene, wellType, library string, annotations map[string]string) LayoutEntry {
	var ann map[string]string
	if len(annotations) > 0 {
		ann = maps.Clone(annotations)
	}
	return LayoutEntry{
		SiRNA:       sirna,
		Gene:        gene,
		WellType:    wellType,
		Library:     library,
		annotations: ann,
	}
}

// Annotation 读取单个附加列。
func (e LayoutEntry) Annotation(name string) (string, bool) {
	v, ok := e.annotations[NormalizeToken(name)]
	return v, ok
}

// Annotations 返回附加列的拷贝（可能为 nil）。
func (e LayoutEntry) Annotations() map[string]string {
	if len(e.annotations) == 0 {
		return nil
	}
	return maps.Clone(e.annotations)
}

// Equal 比较两个条目（含附加列）。
func (e LayoutEntry) Equal(o LayoutEntry) bool {
	return e.SiRNA == o.SiRNA &&
		e.Gene == o.Gene &&
		e.WellType == o.WellType &&
		e.Library == o.Library &&
		maps.Equal(e.annotations, o.annotations)
}

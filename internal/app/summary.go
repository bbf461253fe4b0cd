package app

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/dirmeier/tixparser/internal/domain"
)

// GroupByWell 把成功解析的条目按孔位坐标分组（WellGroup 只存条目下标）。
//
// - 失败条目与合成条目不参与分组
// - groups 稳定排序：按 LayoutKey.Less
// - 组内 ItemIdx 保持 items 的原始顺序
func GroupByWell(items []domain.ItemResult) []domain.WellGroup {
	index := make(map[domain.LayoutKey]int, 128)
	groups := make([]domain.WellGroup, 0, 128)

	for i := range items {
		k, ok := items[i].Key()
		if !ok {
			continue
		}
		if gi, ok := index[k]; ok {
			groups[gi].ItemIdx = append(groups[gi].ItemIdx, i)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, domain.WellGroup{Key: k, ItemIdx: []int{i}})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key.Less(groups[j].Key) })
	return groups
}

// Summarize 计算板级统计：孔位数、布局命中/缺失的孔位数、每孔文件数的均值与标准差。
// 少于两个孔位时标准差记为 0。
func Summarize(items []domain.ItemResult, groups []domain.WellGroup) domain.PlateStats {
	var st domain.PlateStats
	for _, it := range items {
		if it.File == "" {
			continue
		}
		st.TotalBytes += it.Size
		if it.Status != domain.StatusFailed {
			st.Features++
		}
	}

	st.Wells = len(groups)
	if st.Wells == 0 {
		return st
	}

	counts := make([]float64, 0, len(groups))
	for _, g := range groups {
		counts = append(counts, float64(len(g.ItemIdx)))
		if items[g.ItemIdx[0]].Status == domain.StatusAnnotated {
			st.AnnotatedWells++
		} else {
			st.MissingWells++
		}
	}

	if len(counts) == 1 {
		st.FilesPerWell = counts[0]
		return st
	}
	mean, sd := stat.MeanStdDev(counts, nil)
	st.FilesPerWell = finite(mean)
	st.FilesPerWellSD = finite(sd)
	return st
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

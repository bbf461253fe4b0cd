package app

import (
	"math"
	"testing"

	"github.com/dirmeier/tixparser/internal/domain"
)

func item(file, well string, status string, size int64) domain.ItemResult {
	return domain.ItemResult{
		File: file, Size: size, Plate: "cb01", Treatment: "adeno", Replicate: 1, Vendor: "selleck",
		Well: well, Status: status,
	}
}

func TestGroupByWell_StableOrderAndSkipsFailures(t *testing.T) {
	items := []domain.ItemResult{
		item("f1", "b2", domain.StatusAnnotated, 1),
		item("f2", "a10", domain.StatusAnnotated, 1),
		item("f3", "a2", domain.StatusUnannotated, 1),
		{File: "bad", Status: domain.StatusFailed, ErrorCode: domain.ErrCodeNoMatch},
		item("f4", "a10", domain.StatusAnnotated, 1),
		{Status: domain.StatusFailed, ErrorCode: domain.ErrCodeIOFailed},
	}

	groups := GroupByWell(items)
	if len(groups) != 3 {
		t.Fatalf("期望 3 个孔位，实际 %d", len(groups))
	}
	// 列号按数值排序：a2 在 a10 之前。
	wantWells := []domain.Well{"a2", "a10", "b2"}
	for i, w := range wantWells {
		if groups[i].Key.Well != w {
			t.Fatalf("第 %d 组期望 %s，实际 %s", i, w, groups[i].Key.Well)
		}
	}
	if got := groups[1].ItemIdx; len(got) != 2 || got[0] != 1 || got[1] != 4 {
		t.Fatalf("a10 的 ItemIdx 不符合预期：%v", got)
	}
}

func TestSummarize(t *testing.T) {
	items := []domain.ItemResult{
		item("f1", "a1", domain.StatusAnnotated, 100),
		item("f2", "a1", domain.StatusAnnotated, 100),
		item("f3", "a1", domain.StatusAnnotated, 100),
		item("f4", "a2", domain.StatusUnannotated, 50),
		{File: "bad", Size: 7, Status: domain.StatusFailed},
	}
	st := Summarize(items, GroupByWell(items))

	if st.Wells != 2 || st.AnnotatedWells != 1 || st.MissingWells != 1 {
		t.Fatalf("孔位统计不符合预期：%+v", st)
	}
	if st.Features != 4 || st.TotalBytes != 357 {
		t.Fatalf("文件统计不符合预期：%+v", st)
	}
	if st.FilesPerWell != 2 {
		t.Fatalf("期望均值 2，实际 %v", st.FilesPerWell)
	}
	// 样本标准差：counts = [3, 1]
	if math.Abs(st.FilesPerWellSD-math.Sqrt2) > 1e-9 {
		t.Fatalf("期望标准差 √2，实际 %v", st.FilesPerWellSD)
	}
}

func TestSummarize_EmptyAndSingleWell(t *testing.T) {
	if st := Summarize(nil, nil); st != (domain.PlateStats{}) {
		t.Fatalf("空输入应得到零值，实际 %+v", st)
	}

	items := []domain.ItemResult{item("f1", "a1", domain.StatusAnnotated, 1)}
	st := Summarize(items, GroupByWell(items))
	if st.FilesPerWell != 1 || st.FilesPerWellSD != 0 {
		t.Fatalf("单孔位统计不符合预期：%+v", st)
	}
}

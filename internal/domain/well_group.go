package domain

// WellGroup 是按孔位坐标聚合后的单元（同一孔位通常对应多个特征文件）。
// 为了数据局部性，WellGroup 只保存条目下标（指向 ScanReport.Items），避免复制大结构体。
type WellGroup struct {
	Key     LayoutKey
	ItemIdx []int
}

// PlateStats 是板级汇总：孔位覆盖情况与每孔文件数分布。
type PlateStats struct {
	Wells          int     `json:"wells"`
	AnnotatedWells int     `json:"annotated_wells"`
	MissingWells   int     `json:"missing_wells"`
	Features       int     `json:"features"`
	FilesPerWell   float64 `json:"files_per_well_mean"`
	FilesPerWellSD float64 `json:"files_per_well_sd"`
	TotalBytes     int64   `json:"total_bytes"`
}

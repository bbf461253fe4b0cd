package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusAnnotated   = "annotated"
	StatusUnannotated = "unannotated"
	StatusFailed      = "failed"
)

const (
	ErrCodeNoMatch       = "no_match"
	ErrCodeNoClassifier  = "no_classifier"
	ErrCodeAmbiguous     = "ambiguous"
	ErrCodeBadWell       = "bad_well"
	ErrCodeStatFailed    = "stat_failed"
	ErrCodeScanIOFailed  = "scan_io_failed"
	ErrCodeScannerInit   = "scanner_init_failed"
	ErrCodeIOFailed      = "io_failed"
	ErrCodeCatalogFailed = "catalog_failed"
	ErrCodeCanceled      = "canceled"
)

// ScanReport 是一次板扫描的对外稳定输出（stdout JSON / catalog）。
type ScanReport struct {
	RunID  string `json:"run_id"`
	Plate  string `json:"plate"`
	Layout string `json:"layout"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Stats   PlateStats    `json:"stats"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Files       int `json:"files"`
	Annotated   int `json:"annotated"`
	Unannotated int `json:"unannotated"`
	Failed      int `json:"failed"`
}

// ItemResult 是单个文件（或合成错误项）的结果。File=="" 表示合成项（配置/布局/IO 错误）。
type ItemResult struct {
	File string `json:"file"`
	Size int64  `json:"size"`

	Plate     string `json:"plate"`
	Treatment string `json:"treatment"`
	Replicate int    `json:"replicate"`
	Vendor    string `json:"vendor"`
	Well      string `json:"well"`
	Feature   string `json:"feature"`

	SiRNA    string `json:"sirna"`
	Gene     string `json:"gene"`
	WellType string `json:"welltype"`
	Library  string `json:"library"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Candidates []string `json:"candidates"`
}

// ItemFromFeature 把 CellFeature 展平为报告条目。
func ItemFromFeature(f CellFeature) ItemResult {
	it := ItemResult{
		File:       f.File.RelPath,
		Size:       f.File.Size,
		Plate:      f.Key.Plate,
		Treatment:  f.Key.Treatment,
		Replicate:  f.Key.Replicate,
		Vendor:     f.Key.Vendor,
		Well:       string(f.Key.Well),
		Feature:    f.Feature,
		Status:     StatusUnannotated,
		Candidates: []string{},
	}
	if f.Entry != nil {
		it.Status = StatusAnnotated
		it.SiRNA = f.Entry.SiRNA
		it.Gene = f.Entry.Gene
		it.WellType = f.Entry.WellType
		it.Library = f.Entry.Library
	}
	return it
}

// Key 重新构造条目的布局坐标；失败条目返回 false。
func (it ItemResult) Key() (LayoutKey, bool) {
	if it.Status == StatusFailed || it.File == "" {
		return LayoutKey{}, false
	}
	k, err := NewLayoutKey(it.Plate, it.Treatment, it.Replicate, it.Vendor, it.Well)
	if err != nil {
		return LayoutKey{}, false
	}
	return k, true
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 file 字典序（与扫描顺序一致）；file=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *ScanReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].File
		b := r.Items[j].File
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		if it.File != "" {
			s.Files++
		}
		switch it.Status {
		case StatusAnnotated:
			s.Annotated++
		case StatusUnannotated:
			s.Unannotated++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（nil 切片输出为 []）。
func (r ScanReport) MarshalJSON() ([]byte, error) {
	type Alias ScanReport
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	return json.Marshal(Alias(r))
}

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/dirmeier/tixparser/internal/domain"
)

// Filter 描述一次查询；空字段表示不过滤。
// Plate/Treatment/Well 按布局主键规则规范化后精确匹配；Gene/SiRNA 不区分大小写。
type Filter struct {
	RunID     string
	Plate     string
	Treatment string
	Well      string
	Gene      string
	SiRNA     string
	Status    string
	Limit     int
}

// Row 是查询结果的一行。
type Row struct {
	RunID string `json:"run_id"`
	domain.ItemResult
}

// Query 按 Filter 查询 cell_features，顺序为 (run 开始时间, run_id, 扫描顺序)，保证稳定。
func (c *Catalog) Query(ctx context.Context, f Filter) ([]Row, error) {
	var (
		where []string
		args  []any
	)
	eq := func(col, v string) {
		where = append(where, "c."+col+" = ?")
		args = append(args, v)
	}

	if v := strings.TrimSpace(f.RunID); v != "" {
		eq("run_id", v)
	}
	if v := domain.NormalizeToken(f.Plate); v != "" {
		eq("plate", v)
	}
	if v := domain.NormalizeToken(f.Treatment); v != "" {
		eq("treatment", v)
	}
	if strings.TrimSpace(f.Well) != "" {
		w, ok := domain.ParseWell(f.Well)
		if !ok {
			return nil, fmt.Errorf("非法 well：%q", f.Well)
		}
		eq("well", string(w))
	}
	if v := strings.TrimSpace(f.Gene); v != "" {
		where = append(where, "c.gene = ? COLLATE NOCASE")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.SiRNA); v != "" {
		where = append(where, "c.sirna = ? COLLATE NOCASE")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.Status); v != "" {
		switch v {
		case domain.StatusAnnotated, domain.StatusUnannotated, domain.StatusFailed:
		default:
			return nil, fmt.Errorf("status 只能是 annotated/unannotated/failed，实际是 %q", v)
		}
		eq("status", v)
	}

	var q strings.Builder
	q.WriteString(`
		SELECT c.run_id, c.file, c.size, c.plate, c.treatment, c.replicate, c.vendor, c.well, c.feature,
		       c.sirna, c.gene, c.welltype, c.library, c.status, c.error_code, c.error_msg, c.candidates
		FROM cell_features c
		JOIN scan_runs r ON r.run_id = c.run_id`)
	if len(where) > 0 {
		q.WriteString("\n\t\tWHERE ")
		q.WriteString(strings.Join(where, " AND "))
	}
	q.WriteString("\n\t\tORDER BY r.started_at, c.run_id, c.seq")
	if f.Limit > 0 {
		q.WriteString("\n\t\tLIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := c.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r          Row
			candidates string
		)
		if err := rows.Scan(&r.RunID, &r.File, &r.Size, &r.Plate, &r.Treatment, &r.Replicate, &r.Vendor,
			&r.Well, &r.Feature, &r.SiRNA, &r.Gene, &r.WellType, &r.Library, &r.Status,
			&r.ErrorCode, &r.ErrorMsg, &candidates); err != nil {
			return nil, err
		}
		r.Candidates = []string{}
		if candidates != "" {
			r.Candidates = strings.Split(candidates, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Package catalog persists scan reports into a local SQLite database and
// answers filtered queries over the stored cell features.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/dirmeier/tixparser/internal/domain"
)

// 定长 UTC 时间格式：字符串序即时间序。
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Catalog 是 scan_runs / cell_features 两张表的读写入口。
type Catalog struct {
	db   *sql.DB
	path string
	log  *zap.Logger
}

// Open 打开（必要时创建）数据库并执行迁移。
func Open(ctx context.Context, path string, log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite 只允许单写者；单连接也保证 PRAGMA 对后续语句生效。
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("设置 %q 失败：%w", p, err)
		}
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug("catalog opened", zap.String("path", path))
	return &Catalog{db: db, path: path, log: log}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) Path() string { return c.path }

// Record 在一个事务内写入整份报告；同一 run_id 再次写入时覆盖旧数据。
func (c *Catalog) Record(ctx context.Context, rr domain.ScanReport) error {
	if strings.TrimSpace(rr.RunID) == "" {
		return errors.New("run_id 不能为空")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cell_features WHERE run_id = ?`, rr.RunID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scan_runs WHERE run_id = ?`, rr.RunID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_runs (run_id, plate, layout, started_at, finished_at, files, annotated, unannotated, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rr.RunID, rr.Plate, rr.Layout,
		rr.StartedAt.UTC().Format(timeLayout),
		rr.FinishedAt.UTC().Format(timeLayout),
		rr.Summary.Files, rr.Summary.Annotated, rr.Summary.Unannotated, rr.Summary.Failed,
	)
	if err != nil {
		return fmt.Errorf("写入 scan_runs 失败：%w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cell_features (
			run_id, seq, file, size, plate, treatment, replicate, vendor, well, feature,
			sirna, gene, welltype, library, status, error_code, error_msg, candidates
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, it := range rr.Items {
		_, err := stmt.ExecContext(ctx,
			rr.RunID, i, it.File, it.Size, it.Plate, it.Treatment, it.Replicate, it.Vendor, it.Well, it.Feature,
			it.SiRNA, it.Gene, it.WellType, it.Library, it.Status, it.ErrorCode, it.ErrorMsg,
			strings.Join(it.Candidates, ","),
		)
		if err != nil {
			return fmt.Errorf("写入 cell_features 第 %d 条失败：%w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	c.log.Debug("catalog recorded",
		zap.String("run_id", rr.RunID),
		zap.Int("items", len(rr.Items)),
	)
	return nil
}

// RunInfo 是 scan_runs 的一行。
type RunInfo struct {
	RunID      string               `json:"run_id"`
	Plate      string               `json:"plate"`
	Layout     string               `json:"layout"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Summary    domain.ReportSummary `json:"summary"`
}

// Runs 按开始时间倒序列出全部扫描记录。
func (c *Catalog) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, plate, layout, started_at, finished_at, files, annotated, unannotated, failed
		FROM scan_runs
		ORDER BY started_at DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			ri                RunInfo
			started, finished string
		)
		if err := rows.Scan(&ri.RunID, &ri.Plate, &ri.Layout, &started, &finished,
			&ri.Summary.Files, &ri.Summary.Annotated, &ri.Summary.Unannotated, &ri.Summary.Failed); err != nil {
			return nil, err
		}
		if ri.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s 的 started_at 无效：%w", ri.RunID, err)
		}
		if ri.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("run %s 的 finished_at 无效：%w", ri.RunID, err)
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

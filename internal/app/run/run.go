package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dirmeier/tixparser/internal/app"
	"github.com/dirmeier/tixparser/internal/config"
	"github.com/dirmeier/tixparser/internal/domain"
	"github.com/dirmeier/tixparser/internal/infra/catalog"
	"github.com/dirmeier/tixparser/internal/infra/tsvout"
	"github.com/dirmeier/tixparser/internal/layout"
	"github.com/dirmeier/tixparser/internal/scanner"
)

// Execute 执行一次板扫描并返回对外稳定的 ScanReport。
// 所有错误都降级为报告中的失败条目（单个文件失败不影响其他文件）。
func Execute(ctx context.Context, eff config.EffectiveConfig, log *zap.Logger) domain.ScanReport {
	return ExecuteWithObserver(ctx, eff, nil, log)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 输出进度。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer, log *zap.Logger) domain.ScanReport {
	if log == nil {
		log = zap.NewNop()
	}
	rr := domain.ScanReport{
		RunID:     newRunID(),
		Plate:     eff.Plate,
		Layout:    eff.Layout,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, 0, 384),
	}
	log = log.With(zap.String("run_id", rr.RunID))

	if obs != nil {
		obs.OnStart(eff)
	}

	finish := func() domain.ScanReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	layoutStarted := time.Now()
	sc, err := scanner.New(eff.Plate, eff.Layout,
		scanner.WithLogger(log),
		scanner.WithWorkers(eff.Workers),
		scanner.WithExtensions(eff.Extensions...),
	)
	if err != nil {
		log.Error("scanner init failed", zap.Error(err), zap.String("layout_code", layout.Code(err)))
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeScannerInit, err.Error()))
		return finish()
	}
	if obs != nil {
		obs.OnPhaseDone("layout", map[string]any{
			"entries": sc.Layout().Len(),
		}, time.Since(layoutStarted))
	}

	scanStarted := time.Now()
	seq, err := sc.Scan()
	if err != nil {
		log.Error("scan failed", zap.Error(err))
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeScanIOFailed, err.Error()))
		return finish()
	}

	var annotated, unannotated, failed int
	for r := range seq {
		if ctx.Err() != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeCanceled, fmt.Sprintf("扫描被取消：%v", context.Cause(ctx))))
			break
		}
		it := itemFromResult(r)
		switch it.Status {
		case domain.StatusAnnotated:
			annotated++
		case domain.StatusUnannotated:
			unannotated++
		default:
			failed++
		}
		rr.Items = append(rr.Items, it)
		if obs != nil {
			obs.OnItemDone(annotated+unannotated+failed, it)
		}
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files":       annotated + unannotated + failed,
			"annotated":   annotated,
			"unannotated": unannotated,
			"failed":      failed,
		}, time.Since(scanStarted))
	}

	summaryStarted := time.Now()
	rr.Stats = app.Summarize(rr.Items, app.GroupByWell(rr.Items))
	if obs != nil {
		obs.OnPhaseDone("summary", map[string]any{
			"wells":         rr.Stats.Wells,
			"missing_wells": rr.Stats.MissingWells,
			"total_bytes":   rr.Stats.TotalBytes,
		}, time.Since(summaryStarted))
	}

	rr = finish()
	if ctx.Err() != nil {
		return rr
	}

	sinksStarted := time.Now()
	if eff.TSVOut != "" {
		if err := tsvout.WriteFile(eff.TSVOut, rr.Items); err != nil {
			log.Error("tsv export failed", zap.String("path", eff.TSVOut), zap.Error(err))
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("写入 TSV 失败：%v", err)))
			rr.Finalize()
		}
	}
	if eff.Catalog != "" {
		if err := record(ctx, eff.Catalog, rr, log); err != nil {
			log.Error("catalog record failed", zap.String("path", eff.Catalog), zap.Error(err))
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeCatalogFailed, fmt.Sprintf("写入 catalog 失败：%v", err)))
			rr.Finalize()
		}
	}
	if obs != nil && (eff.TSVOut != "" || eff.Catalog != "") {
		obs.OnPhaseDone("sinks", map[string]any{
			"tsv":     eff.TSVOut,
			"catalog": eff.Catalog,
		}, time.Since(sinksStarted))
	}

	log.Info("scan finished",
		zap.String("plate", rr.Plate),
		zap.Int("files", rr.Summary.Files),
		zap.Int("annotated", rr.Summary.Annotated),
		zap.Int("failed", rr.Summary.Failed),
		zap.Duration("elapsed", rr.FinishedAt.Sub(rr.StartedAt)),
	)
	return rr
}

func record(ctx context.Context, path string, rr domain.ScanReport, log *zap.Logger) (err error) {
	c, err := catalog.Open(ctx, path, log)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.Close())
	}()
	return c.Record(ctx, rr)
}

func itemFromResult(r scanner.Result) domain.ItemResult {
	if r.Feature != nil {
		return domain.ItemFromFeature(*r.Feature)
	}
	it := domain.ItemResult{
		File:       r.Err.RelPath,
		Status:     domain.StatusFailed,
		ErrorCode:  r.Err.Kind,
		ErrorMsg:   r.Err.Error(),
		Candidates: []string{},
	}
	if len(r.Err.Candidates) > 0 {
		it.Candidates = append(it.Candidates, r.Err.Candidates...)
	}
	return it
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:     domain.StatusFailed,
		ErrorCode:  code,
		ErrorMsg:   msg,
		Candidates: []string{},
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

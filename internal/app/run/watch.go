package run

import (
	"context"

	"go.uber.org/zap"

	"github.com/dirmeier/tixparser/internal/config"
	"github.com/dirmeier/tixparser/internal/domain"
	"github.com/dirmeier/tixparser/internal/infra/watch"
)

// Watch 先扫描一次，然后在板目录发生变化（防抖 eff.WatchDebounce）后重新扫描。
// 每次扫描的报告交给 emit；ctx 取消时返回 nil。
func Watch(ctx context.Context, eff config.EffectiveConfig, obs Observer, log *zap.Logger, emit func(domain.ScanReport)) error {
	if log == nil {
		log = zap.NewNop()
	}
	emit(ExecuteWithObserver(ctx, eff, obs, log))

	opts := watch.Options{
		Dir:      eff.Plate,
		Debounce: eff.WatchDebounce,
		Log:      log,
		Ignore:   []string{eff.TSVOut},
	}
	if eff.Catalog != "" {
		opts.Ignore = append(opts.Ignore, eff.Catalog, eff.Catalog+"-wal", eff.Catalog+"-shm", eff.Catalog+"-journal")
	}
	return watch.Run(ctx, opts, func(ctx context.Context) error {
		emit(ExecuteWithObserver(ctx, eff, obs, log))
		return nil
	})
}

package run

import (
	"time"

	"github.com/dirmeier/tixparser/internal/config"
	"github.com/dirmeier/tixparser/internal/domain"
)

// Observer 把运行进度从核心流程中解耦出来：run 包只发事件，不做任何输出。
//
// 事件在 ExecuteWithObserver 的调用 goroutine 中按顺序发出。
type Observer interface {
	// OnStart 在开始时调用一次。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用；阶段依次为 layout、scan、summary、sinks（失败时提前结束）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在每个文件处理完成时调用，idx 从 1 开始。
	OnItemDone(idx int, res domain.ItemResult)
}

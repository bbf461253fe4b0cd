// Package watch notifies when a plate folder's set of files changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// 影响板目录文件集合或内容的事件；Chmod 忽略。
const relevantOps = fsnotify.Create | fsnotify.Remove | fsnotify.Rename | fsnotify.Write

// Options 配置一次监听。
type Options struct {
	Dir      string
	Debounce time.Duration
	Log      *zap.Logger
	// Ignore 中的路径（与事件路径 clean 后比较）不触发回调，用于排除本程序自己写出的文件。
	Ignore []string
}

// Run 监听 opts.Dir（不递归），每当一批变化在 Debounce 时间内静止下来后调用一次 onChange。
//
// - ctx 取消时返回 nil；监听器错误或 onChange 返回错误时返回该错误
// - onChange 在 Run 所在的 goroutine 中串行调用；执行期间到达的事件会合并到下一批
// - 以 '.' 开头的文件（例如原子写入的临时文件）被忽略
func Run(ctx context.Context, opts Options, onChange func(context.Context) error) error {
	dir, debounce, log := opts.Dir, opts.Debounce, opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		return fmt.Errorf("debounce 必须为正数，实际是 %s", debounce)
	}
	ignore := make(map[string]struct{}, len(opts.Ignore))
	for _, p := range opts.Ignore {
		if p != "" {
			ignore[filepath.Clean(p)] = struct{}{}
		}
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%q 不是目录", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Info("watch started", zap.String("dir", dir), zap.Duration("debounce", debounce))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	pending := 0

	for {
		select {
		case <-ctx.Done():
			log.Info("watch stopped", zap.String("dir", dir))
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("监听器已关闭")
			}
			if ev.Op&relevantOps == 0 || isHidden(ev.Name) {
				continue
			}
			if _, skip := ignore[filepath.Clean(ev.Name)]; skip {
				continue
			}
			log.Debug("watch event", zap.String("file", filepath.Base(ev.Name)), zap.String("op", ev.Op.String()))
			pending++
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("监听器已关闭")
			}
			return fmt.Errorf("监听 %q 失败：%w", dir, err)

		case <-timer.C:
			if pending == 0 {
				continue
			}
			log.Debug("watch settled", zap.Int("events", pending))
			pending = 0
			if err := onChange(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func isHidden(path string) bool {
	b := filepath.Base(path)
	return len(b) > 0 && b[0] == '.'
}

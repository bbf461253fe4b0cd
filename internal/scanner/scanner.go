// Package scanner turns a plate folder into a lazy sequence of per-cell
// feature records annotated from a plate layout.
package scanner

import (
	"errors"
	"iter"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dirmeier/tixparser/internal/domain"
	"github.com/dirmeier/tixparser/internal/layout"
	"github.com/dirmeier/tixparser/internal/naming"
	"github.com/dirmeier/tixparser/internal/scan"
)

// MaxWorkers 是 WithWorkers 的上限。
const MaxWorkers = 32

// Result 是扫描序列的元素：Feature 与 Err 恰好一个非 nil。
type Result struct {
	Feature *domain.CellFeature
	Err     *FeatureParseError
}

// OK 表示该元素是成功解析的特征记录。
func (r Result) OK() bool { return r.Feature != nil }

// RelPath 返回元素对应的文件名（成功与失败都有）。
func (r Result) RelPath() string {
	if r.Feature != nil {
		return r.Feature.File.RelPath
	}
	if r.Err != nil {
		return r.Err.RelPath
	}
	return ""
}

// Scanner 绑定一个板目录与一份已加载的布局。构造成功即意味着布局可用。
type Scanner struct {
	folder   string
	metaFile string
	layout   *layout.Layout

	log     *zap.Logger
	workers int
	exts    []string
}

type Option func(*Scanner)

// WithLogger 设置结构化日志；默认不输出。
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.log = l
		}
	}
}

// WithWorkers 设置每批并发处理的文件数（1 表示串行）。超出 [1, MaxWorkers] 的值会被截断。
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		s.workers = min(max(n, 1), MaxWorkers)
	}
}

// WithExtensions 只扫描给定扩展名的文件（不区分大小写）；不设置表示全部普通文件。
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		s.exts = scan.NormalizeExts(exts)
	}
}

// New 构造扫描器，并立即加载布局。布局加载失败时返回 *InitError（包裹 *layout.LoadError）。
func New(plateFolder, metaFile string, opts ...Option) (*Scanner, error) {
	s := &Scanner{
		metaFile: metaFile,
		log:      zap.NewNop(),
		workers:  1,
	}
	for _, opt := range opts {
		opt(s)
	}

	folder := strings.TrimSpace(plateFolder)
	if folder == "" {
		return nil, &InitError{PlateFolder: plateFolder, MetaFile: metaFile, Err: errors.New("板目录不能为空")}
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, &InitError{PlateFolder: plateFolder, MetaFile: metaFile, Err: err}
	}
	s.folder = abs

	l, err := layout.Load(metaFile)
	if err != nil {
		return nil, &InitError{PlateFolder: s.folder, MetaFile: metaFile, Err: err}
	}
	s.layout = l
	s.log.Info("layout loaded",
		zap.String("layout", l.Path()),
		zap.Int("entries", l.Len()),
	)
	return s, nil
}

func (s *Scanner) Layout() *layout.Layout { return s.layout }
func (s *Scanner) PlateFolder() string    { return s.folder }
func (s *Scanner) MetaFile() string       { return s.metaFile }
func (s *Scanner) Workers() int           { return s.workers }

// Scan 列出板目录（不递归，只取普通文件，按文件名排序），返回惰性序列。
//
// 列目录失败时返回 *ScanIOError，且不产出任何元素。序列可以重复遍历：每次遍历按同一份
// 文件名快照、同样的顺序重新 stat 与解析；消费方提前 break 时不会再读取后续文件。
func (s *Scanner) Scan() (iter.Seq[Result], error) {
	names, err := scan.ListPlate(s.folder, s.exts)
	if err != nil {
		return nil, &ScanIOError{Path: s.folder, Err: err}
	}
	s.log.Debug("scan started",
		zap.String("folder", s.folder),
		zap.Int("files", len(names)),
		zap.Int("workers", s.workers),
	)

	return func(yield func(Result) bool) {
		var ok, failed int
		emit := func(r Result) bool {
			if r.OK() {
				ok++
			} else {
				failed++
			}
			return yield(r)
		}

		var complete bool
		if s.workers <= 1 {
			complete = s.sequential(names, emit)
		} else {
			complete = s.batched(names, emit)
		}
		if complete {
			s.log.Debug("scan finished",
				zap.String("folder", s.folder),
				zap.Int("features", ok),
				zap.Int("failed", failed),
			)
		}
	}, nil
}

func (s *Scanner) sequential(names []string, yield func(Result) bool) bool {
	for _, name := range names {
		if !yield(s.build(name)) {
			return false
		}
	}
	return true
}

// build 处理单个文件：stat → 文件名解析 → 布局查找。失败不会 panic，而是变成 Result.Err。
func (s *Scanner) build(name string) Result {
	f, err := scan.Describe(s.folder, name)
	if err != nil {
		return s.failed(&FeatureParseError{
			Path:    filepath.Join(s.folder, name),
			RelPath: name,
			Kind:    domain.ErrCodeStatFailed,
			Err:     err,
		})
	}

	co, err := naming.Extract(f)
	if err != nil {
		fe := &FeatureParseError{Path: f.AbsPath, RelPath: f.RelPath, Kind: domain.ErrCodeNoMatch, Err: err}
		var ue *naming.UnmatchedError
		if errors.As(err, &ue) {
			fe.Kind = ue.Kind
			fe.Candidates = append([]string(nil), ue.Candidates...)
		}
		return s.failed(fe)
	}

	cf := &domain.CellFeature{File: f, Key: co.Key, Feature: co.Feature}
	if e, ok := s.layout.Find(co.Key); ok {
		cf.Entry = &e
	}
	return Result{Feature: cf}
}

func (s *Scanner) failed(fe *FeatureParseError) Result {
	s.log.Warn("feature unparsed",
		zap.String("file", fe.RelPath),
		zap.String("kind", fe.Kind),
		zap.Error(fe.Err),
	)
	return Result{Err: fe}
}

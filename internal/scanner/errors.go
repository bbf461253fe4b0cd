package scanner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dirmeier/tixparser/internal/domain"
)

// InitError 表示扫描器构造失败（布局加载失败）。Err 通常是 *layout.LoadError。
type InitError struct {
	PlateFolder string
	MetaFile    string
	Err         error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s：无法初始化板 %q 的扫描器：%v", domain.ErrCodeScannerInit, e.PlateFolder, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ScanIOError 表示列目录失败（目录不存在、不是目录、无权限）。
// 它总是在产出任何元素之前返回。
type ScanIOError struct {
	Path string
	Err  error
}

func (e *ScanIOError) Error() string {
	return fmt.Sprintf("%s：无法列出板目录 %q：%v", domain.ErrCodeScanIOFailed, e.Path, e.Err)
}

func (e *ScanIOError) Unwrap() error { return e.Err }

// FeatureParseError 是单个文件的失败；它作为序列元素返回，不会中断扫描。
type FeatureParseError struct {
	Path    string
	RelPath string
	// Kind: no_match / no_classifier / ambiguous / bad_well / stat_failed
	Kind       string
	Candidates []string
	Err        error
}

func (e *FeatureParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	b.WriteString("：")
	b.WriteString(e.RelPath)
	if e.Err != nil {
		b.WriteString("：")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FeatureParseError) Unwrap() error { return e.Err }

func IsInitError(err error) bool {
	var e *InitError
	return errors.As(err, &e)
}

func IsScanIOError(err error) bool {
	var e *ScanIOError
	return errors.As(err, &e)
}

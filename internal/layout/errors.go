package layout

import (
	"errors"
	"fmt"
)

const (
	// ErrCodeNotFound 表示布局文件不存在。
	ErrCodeNotFound = "layout_not_found"
	// ErrCodeUnreadable 表示布局文件存在但无法读取（权限、是目录等）。
	ErrCodeUnreadable = "layout_unreadable"
	// ErrCodeMalformed 表示布局文件内容不合法（缺列、坏值、冲突条目、空文件）。
	ErrCodeMalformed = "layout_malformed"
)

// LoadError 是布局加载阶段的结构化错误（带 error_code）。
// Line 为 0 表示错误与具体行无关。
type LoadError struct {
	Code string
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	where := fmt.Sprintf("%q", e.Path)
	if e.Line > 0 {
		where = fmt.Sprintf("%q 第 %d 行", e.Path, e.Line)
	}
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到布局文件 %s", e.Code, where)
	case ErrCodeUnreadable:
		return fmt.Sprintf("%s：无法读取布局文件 %s：%v", e.Code, where, e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：布局文件 %s 无效：%v", e.Code, where, e.Err)
		}
		return fmt.Sprintf("%s：布局文件 %s 无效", e.Code, where)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *LoadError 则返回空串。
func Code(err error) string {
	var e *LoadError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func malformed(path string, line int, format string, args ...any) *LoadError {
	return &LoadError{Code: ErrCodeMalformed, Path: path, Line: line, Err: fmt.Errorf(format, args...)}
}

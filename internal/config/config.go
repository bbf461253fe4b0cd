package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName 是配置文件的固定文件名。
const FileName = "tixparser.yaml"

const (
	// ErrCodeNotFound 表示需要配置文件（--config 指定或无 --plate 运行）但文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPlate 表示 CLI 与配置文件都没有给出板目录。
	ErrCodeMissingPlate = "config_missing_plate"
	// ErrCodeMissingLayout 表示 CLI 与配置文件都没有给出布局文件。
	ErrCodeMissingLayout = "config_missing_layout"
)

const (
	DefaultWorkers       = 1
	MaxWorkers           = 32
	DefaultWatchDebounce = 500 * time.Millisecond
)

// 输出格式。OutputAuto 由 CLI 根据 stdout 是否为终端决定（终端 → text，否则 → json）。
const (
	OutputAuto = ""
	OutputJSON = "json"
	OutputTSV  = "tsv"
	OutputText = "text"
)

// CLIArgs 保留“是否显式指定”的信息，保证 --workers=1 能覆盖配置文件里的 workers: 8。
type CLIArgs struct {
	ConfigPath string

	Plate  string
	Layout string

	Workers    int
	WorkersSet bool

	Output    string
	OutputSet bool

	TSVOut  string
	Catalog string
}

// FileConfig 对应 tixparser.yaml。
type FileConfig struct {
	Plate         string   `yaml:"plate"`
	Layout        string   `yaml:"layout"`
	Workers       int      `yaml:"workers"`
	Extensions    []string `yaml:"extensions"`
	Output        string   `yaml:"output"`
	TSVOut        string   `yaml:"tsv_out"`
	Catalog       string   `yaml:"catalog"`
	WatchDebounce string   `yaml:"watch_debounce"`
}

// EffectiveConfig 是合并并规范化后的最终配置；路径均为 clean + absolute（空串表示未启用）。
type EffectiveConfig struct {
	ConfigPath string

	Plate  string
	Layout string

	Workers    int
	Extensions []string
	Output     string

	TSVOut  string
	Catalog string

	WatchDebounce time.Duration
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPlate:
		return fmt.Sprintf("%s：未指定板目录（--plate 或配置文件 %q 中的 plate）", e.Code, e.Path)
	case ErrCodeMissingLayout:
		return fmt.Sprintf("%s：未指定布局文件（--layout 或配置文件 %q 中的 layout）", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并。
//
// 发现规则：
//  1. --config 指定：必须存在
//  2. 否则 CLI 给了 plate：可选读取 <plate 的父目录>/tixparser.yaml
//  3. 否则：必须读取 <cwd>/tixparser.yaml
//
// 覆盖优先级：CLI > 配置文件 > 内置默认。配置文件里的相对路径以配置文件所在目录为基准，
// CLI 的相对路径以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath  string
		required bool
	)
	switch {
	case strings.TrimSpace(cli.ConfigPath) != "":
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	case strings.TrimSpace(cli.Plate) != "":
		cfgPath = filepath.Join(filepath.Dir(absCleanFrom(cwdAbs, cli.Plate)), FileName)
	default:
		cfgPath = filepath.Join(cwdAbs, FileName)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if required && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	eff, err := merge(cwdAbs, cli, fc, cfgPath)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if exists {
		eff.ConfigPath = cfgPath
	}
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	cfgDir := filepath.Dir(cfgPath)
	pick := func(cliVal, fileVal string) string {
		if strings.TrimSpace(cliVal) != "" {
			return absCleanFrom(cwdAbs, cliVal)
		}
		return absCleanFrom(cfgDir, fileVal)
	}

	eff := EffectiveConfig{
		Plate:   pick(cli.Plate, fc.Plate),
		Layout:  pick(cli.Layout, fc.Layout),
		TSVOut:  pick(cli.TSVOut, fc.TSVOut),
		Catalog: pick(cli.Catalog, fc.Catalog),
	}
	if eff.Plate == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPlate, Path: cfgPath}
	}
	if eff.Layout == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingLayout, Path: cfgPath}
	}

	workers := fc.Workers
	if cli.WorkersSet {
		workers = cli.Workers
	}
	if workers == 0 {
		workers = DefaultWorkers
	}
	eff.Workers = min(max(workers, 1), MaxWorkers)

	output := strings.ToLower(strings.TrimSpace(fc.Output))
	if cli.OutputSet {
		output = strings.ToLower(strings.TrimSpace(cli.Output))
	}
	switch output {
	case OutputAuto, OutputJSON, OutputTSV, OutputText:
		eff.Output = output
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("output 只能是 json/tsv/text，实际是 %q", output)}
	}

	eff.WatchDebounce = DefaultWatchDebounce
	if s := strings.TrimSpace(fc.WatchDebounce); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("watch_debounce 无效：%q", s)}
		}
		eff.WatchDebounce = d
	}

	for _, x := range fc.Extensions {
		if x = strings.TrimSpace(x); x != "" {
			eff.Extensions = append(eff.Extensions, x)
		}
	}
	return eff, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute；空输入返回空串。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件；exists=false 表示文件不存在（不算错误）。
// 未知字段视为错误。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return FileConfig{}, true, nil
		}
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dirmeier/tixparser/internal/config"
)

// rootOptions 是所有子命令共享的全局参数与运行时对象。
type rootOptions struct {
	verbose bool
	log     *zap.Logger
}

// newRootCommand 构造命令树；opts.log 在 PersistentPreRunE 中替换，由调用方在执行结束后 Sync。
func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tixparser",
		Short: "RNAi 筛选板扫描：解析特征文件名并匹配布局元数据",
		Long: `tixparser 扫描一个板目录（每个文件是一个孔位的一种特征），
从文件名解析 (plate, treatment, replicate, vendor, well) 坐标，
并在布局文件中查找该孔位的 siRNA / gene 等元数据。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.log = newLogger(cmd.ErrOrStderr(), opts.verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出 debug 日志（stderr）")

	cmd.AddCommand(newScanCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newLayoutCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))

	return cmd
}

// newLogger 构造写到 w 的 JSON 日志；默认只输出 warn 及以上，避免干扰进度输出。
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// configFlags 是 scan / watch 共享的参数；是否显式指定由 cobra 的 Changed 判断。
type configFlags struct {
	configPath string
	plate      string
	layout     string
	workers    int
	output     string
	tsvOut     string
	catalog    string
}

func (f *configFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "配置文件路径（默认 <plate 的父目录>/"+config.FileName+"）")
	fs.StringVar(&f.plate, "plate", "", "板目录")
	fs.StringVar(&f.layout, "layout", "", "布局文件（.tsv/.csv/.yaml）")
	fs.IntVar(&f.workers, "workers", config.DefaultWorkers, fmt.Sprintf("并发 worker 数（1-%d）", config.MaxWorkers))
	fs.StringVar(&f.output, "output", "", "stdout 输出格式：json|tsv|text（默认终端为 text，否则 json）")
	fs.StringVar(&f.tsvOut, "tsv-out", "", "额外写出逐文件 TSV")
	fs.StringVar(&f.catalog, "catalog", "", "把结果写入 SQLite catalog")
}

func (f *configFlags) cliArgs(cmd *cobra.Command) config.CLIArgs {
	return config.CLIArgs{
		ConfigPath: f.configPath,
		Plate:      f.plate,
		Layout:     f.layout,
		Workers:    f.workers,
		WorkersSet: cmd.Flags().Changed("workers"),
		Output:     f.output,
		OutputSet:  cmd.Flags().Changed("output"),
		TSVOut:     f.tsvOut,
		Catalog:    f.catalog,
	}
}

var validOutputs = []string{config.OutputJSON, config.OutputTSV, config.OutputText}

// resolveOutput 把 auto 落到具体格式：stdout 是终端 → text，否则 json。
func resolveOutput(output string, stdout io.Writer) string {
	if slices.Contains(validOutputs, output) {
		return output
	}
	if isTTY(stdout) {
		return config.OutputText
	}
	return config.OutputJSON
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// failf 向 stderr 输出一行错误并返回退出码 1。
func failf(cmd *cobra.Command, format string, args ...any) error {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	return &exitError{code: 1}
}

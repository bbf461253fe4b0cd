package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dirmeier/tixparser/internal/app/run"
	"github.com/dirmeier/tixparser/internal/config"
	"github.com/dirmeier/tixparser/internal/domain"
	"github.com/dirmeier/tixparser/internal/infra/tsvout"
)

func newScanCommand(opts *rootOptions) *cobra.Command {
	var f configFlags
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "扫描板目录一次并输出报告",
		Long: `扫描 --plate 指定的板目录（不递归），为每个文件输出一个条目：
annotated（布局中有该孔位）、unannotated（坐标合法但布局中没有）或 failed。

stdout 非终端时只输出一个 ScanReport JSON；进度与摘要走 stderr。
存在 failed 条目时退出码为 1。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadEffective(f.cliArgs(cmd))
			if err != nil {
				emitReport(cmd, resolveOutput(f.output, cmd.OutOrStdout()), reportForConfigError(f.cliArgs(cmd), err))
				return &exitError{code: 1}
			}

			obs := pickObserver(cmd)
			rr := run.ExecuteWithObserver(cmd.Context(), eff, obs, opts.log)
			emitReport(cmd, resolveOutput(eff.Output, cmd.OutOrStdout()), rr)
			if obs != nil {
				emitLocations(cmd.ErrOrStderr(), eff)
			}
			if rr.Summary.Failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func loadEffective(cli config.CLIArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, &config.Error{Code: config.ErrCodeInvalid, Err: err}
	}
	return config.LoadEffective(cwd, cli)
}

// pickObserver 只在 stderr 是交互终端时启用进度输出。
func pickObserver(cmd *cobra.Command) run.Observer {
	if !isTTY(cmd.ErrOrStderr()) {
		return nil
	}
	return newProgressUI(cmd.ErrOrStderr())
}

// emitReport 按格式把报告写到 stdout；非 text 格式时摘要行写到 stderr。
func emitReport(cmd *cobra.Command, format string, rr domain.ScanReport) {
	out, errW := cmd.OutOrStdout(), cmd.ErrOrStderr()
	switch format {
	case config.OutputText:
		writeText(out, rr)
		return
	case config.OutputTSV:
		if err := tsvout.Encode(out, rr.Items); err != nil {
			fmt.Fprintf(errW, "写出 TSV 失败：%v\n", err)
		}
	default:
		_ = json.NewEncoder(out).Encode(rr)
	}
	fmt.Fprintln(errW, summaryLine(rr))
	writeFailures(errW, rr)
}

func summaryLine(rr domain.ScanReport) string {
	return fmt.Sprintf("完成：files=%d annotated=%d unannotated=%d failed=%d",
		rr.Summary.Files, rr.Summary.Annotated, rr.Summary.Unannotated, rr.Summary.Failed,
	)
}

func writeText(w io.Writer, rr domain.ScanReport) {
	fmt.Fprintln(w, summaryLine(rr))
	st := rr.Stats
	if st.Wells > 0 {
		fmt.Fprintf(w, "孔位：wells=%d annotated=%d missing=%d features=%d files/well=%.2f±%.2f size=%s\n",
			st.Wells, st.AnnotatedWells, st.MissingWells, st.Features,
			st.FilesPerWell, st.FilesPerWellSD, humanize.IBytes(uint64(max(st.TotalBytes, 0))),
		)
	}
	writeFailures(w, rr)
}

func writeFailures(w io.Writer, rr domain.ScanReport) {
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		key := it.File
		if key == "" {
			key = "<" + it.ErrorCode + ">"
		}
		fmt.Fprintf(w, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
	}
}

// reportForConfigError 把配置错误包装成只有一个合成条目的报告，保持 stdout 契约不变。
func reportForConfigError(cli config.CLIArgs, err error) domain.ScanReport {
	now := time.Now().UTC()
	rr := domain.ScanReport{
		Plate:      absOrEmpty(cli.Plate),
		Layout:     absOrEmpty(cli.Layout),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:     domain.StatusFailed,
			ErrorCode:  config.Code(err),
			ErrorMsg:   err.Error(),
			Candidates: []string{},
		}},
	}
	rr.Finalize()
	return rr
}

func absOrEmpty(p string) string {
	if strings.TrimSpace(p) == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if eff.TSVOut != "" {
		fmt.Fprintf(w, "tsv: %s\n", eff.TSVOut)
	}
	if eff.Catalog != "" {
		fmt.Fprintf(w, "catalog: %s\n", eff.Catalog)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dirmeier/tixparser/internal/config"
	"github.com/dirmeier/tixparser/internal/domain"
	"github.com/dirmeier/tixparser/internal/infra/catalog"
	"github.com/dirmeier/tixparser/internal/infra/tsvout"
)

type queryFlags struct {
	catalog string
	filter  catalog.Filter
	runs    bool
	output  string
}

func newQueryCommand(opts *rootOptions) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "查询 catalog 中记录的扫描结果",
		Long: `按 run / plate / treatment / well / gene / sirna / status 过滤 catalog 中的条目。
plate、treatment、well 与布局主键使用同样的规范化；gene、sirna 不区分大小写。
--runs 改为列出全部扫描记录（最新在前）。`,
		Example: `  tixparser query --catalog screens.db --plate cb01-1a10a --gene pik3ca
  tixparser query --catalog screens.db --runs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(f.catalog); err != nil {
				return failf(cmd, "打开 catalog 失败：%v", err)
			}
			c, err := catalog.Open(cmd.Context(), f.catalog, opts.log)
			if err != nil {
				return failf(cmd, "打开 catalog 失败：%v", err)
			}
			defer c.Close()

			format := resolveOutput(f.output, cmd.OutOrStdout())
			out := cmd.OutOrStdout()

			if f.runs {
				runs, err := c.Runs(cmd.Context())
				if err != nil {
					return failf(cmd, "查询失败：%v", err)
				}
				if format == config.OutputText {
					writeRunsText(out, runs)
					return nil
				}
				if runs == nil {
					runs = []catalog.RunInfo{}
				}
				return json.NewEncoder(out).Encode(runs)
			}

			rows, err := c.Query(cmd.Context(), f.filter)
			if err != nil {
				return failf(cmd, "查询失败：%v", err)
			}
			opts.log.Debug("catalog query", zap.Int("rows", len(rows)))
			switch format {
			case config.OutputText:
				writeRowsText(out, rows)
			case config.OutputTSV:
				items := make([]domain.ItemResult, 0, len(rows))
				for _, r := range rows {
					items = append(items, r.ItemResult)
				}
				return tsvout.Encode(out, items)
			default:
				if rows == nil {
					rows = []catalog.Row{}
				}
				return json.NewEncoder(out).Encode(rows)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.catalog, "catalog", "", "SQLite catalog 路径")
	fs.StringVar(&f.filter.RunID, "run", "", "只看某次扫描")
	fs.StringVar(&f.filter.Plate, "plate", "", "板条码")
	fs.StringVar(&f.filter.Treatment, "treatment", "", "处理")
	fs.StringVar(&f.filter.Well, "well", "", "孔位（a1-p24）")
	fs.StringVar(&f.filter.Gene, "gene", "", "基因")
	fs.StringVar(&f.filter.SiRNA, "sirna", "", "siRNA")
	fs.StringVar(&f.filter.Status, "status", "", "annotated|unannotated|failed")
	fs.IntVar(&f.filter.Limit, "limit", 0, "最多返回的条数（0 表示不限）")
	fs.BoolVar(&f.runs, "runs", false, "列出扫描记录而不是条目")
	fs.StringVar(&f.output, "output", "", "输出格式：json|tsv|text")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}

func writeRowsText(w io.Writer, rows []catalog.Row) {
	for _, r := range rows {
		if r.Status == domain.StatusFailed {
			fmt.Fprintf(w, "%s %s %s: %s\n", r.RunID, r.File, r.ErrorCode, r.ErrorMsg)
			continue
		}
		fmt.Fprintf(w, "%s %s %s/%s/%d/%s %s %s %s %s\n",
			r.RunID, r.File, r.Plate, r.Treatment, r.Replicate, r.Vendor, r.Well, r.Feature, r.Gene, r.SiRNA,
		)
	}
	fmt.Fprintf(w, "rows=%d\n", len(rows))
}

func writeRunsText(w io.Writer, runs []catalog.RunInfo) {
	for _, r := range runs {
		fmt.Fprintf(w, "%s %s files=%d annotated=%d failed=%d (%s)\n",
			r.RunID, r.Plate, r.Summary.Files, r.Summary.Annotated, r.Summary.Failed, humanize.Time(r.StartedAt),
		)
	}
}

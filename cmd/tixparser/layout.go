package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dirmeier/tixparser/internal/layout"
)

func newLayoutCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "检查布局文件或查询单个孔位",
	}
	cmd.AddCommand(newLayoutCheckCommand(opts))
	cmd.AddCommand(newLayoutFindCommand(opts))
	return cmd
}

func newLayoutCheckCommand(opts *rootOptions) *cobra.Command {
	var keys bool
	cmd := &cobra.Command{
		Use:   "check <layout-file>",
		Short: "加载布局文件并报告条目数或第一个错误",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := layout.Load(args[0])
			if err != nil {
				opts.log.Debug("layout check failed", zap.String("path", args[0]), zap.String("code", layout.Code(err)))
				return failf(cmd, "%v", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: %s entries=%d\n", l.Path(), l.Len())
			if keys {
				for _, k := range l.Keys() {
					fmt.Fprintln(out, k.String())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keys, "keys", false, "同时列出全部主键（已排序）")
	return cmd
}

// findResult 是 layout find 的 JSON 输出。
type findResult struct {
	Plate       string            `json:"plate"`
	Treatment   string            `json:"treatment"`
	Replicate   int               `json:"replicate"`
	Vendor      string            `json:"vendor"`
	Well        string            `json:"well"`
	Found       bool              `json:"found"`
	SiRNA       string            `json:"sirna,omitempty"`
	Gene        string            `json:"gene,omitempty"`
	WellType    string            `json:"welltype,omitempty"`
	Library     string            `json:"library,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func newLayoutFindCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <layout-file> <plate> <treatment> <replicate> <vendor> <well>",
		Short: "按五元主键查询一个孔位",
		Long: `按 (plate, treatment, replicate, vendor, well) 查询布局，输出一个 JSON 对象。
参数与加载时一样先做规范化（大小写、两侧空白、well 的前导零）。
未找到时 found=false，退出码 1。`,
		Example: `  tixparser layout find layout.tsv cb01-1a10a adeno 1 selleck a1`,
		Args:    cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			replicate, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("replicate 必须是整数，实际是 %q", args[3])
			}
			l, err := layout.Load(args[0])
			if err != nil {
				return failf(cmd, "%v", err)
			}

			res := findResult{
				Plate: args[1], Treatment: args[2], Replicate: replicate, Vendor: args[4], Well: args[5],
			}
			e, ok := l.FindParts(args[1], args[2], replicate, args[4], args[5])
			opts.log.Debug("layout find", zap.Strings("key", args[1:]), zap.Bool("found", ok))
			if ok {
				res.Found = true
				res.SiRNA, res.Gene, res.WellType, res.Library = e.SiRNA, e.Gene, e.WellType, e.Library
				res.Annotations = e.Annotations()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			_ = enc.Encode(res)
			if !ok {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/dirmeier/tixparser/internal/app/run"
	"github.com/dirmeier/tixparser/internal/domain"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var f configFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "监听板目录，文件变化后重新扫描",
		Long: `先扫描一次，之后每当板目录中的文件新增/删除/改名并静止 watch_debounce
（默认 500ms）后重新扫描。每次扫描输出一份报告（json 格式下每行一个）。
Ctrl-C 退出，退出码 0。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadEffective(f.cliArgs(cmd))
			if err != nil {
				emitReport(cmd, resolveOutput(f.output, cmd.OutOrStdout()), reportForConfigError(f.cliArgs(cmd), err))
				return &exitError{code: 1}
			}

			format := resolveOutput(eff.Output, cmd.OutOrStdout())
			err = run.Watch(cmd.Context(), eff, pickObserver(cmd), opts.log, func(rr domain.ScanReport) {
				emitReport(cmd, format, rr)
			})
			if err != nil {
				return failf(cmd, "监听失败：%v", err)
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
